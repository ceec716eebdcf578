// Package cluster groups transcripts by vocabulary profile with agglomerative
// Ward linkage.
//
// Only transcripts (matrix columns) are clustered; vocabulary rows keep their
// order. Cluster ids follow the usual linkage numbering: leaves are 0..n-1 and
// the k-th merge creates cluster n+k.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/onnwee/chat-tender/backend/vocab"
)

// ErrShape reports a matrix whose rows do not match the number of labels.
var ErrShape = errors.New("matrix shape mismatch")

// Merge is one agglomeration step.
type Merge struct {
	// Left and Right are the merged cluster ids, Left < Right.
	Left, Right int
	// Distance is the Ward linkage distance between the two clusters.
	Distance float64
	// Size is the number of leaves in the new cluster.
	Size int
}

// Result is the full dendrogram.
type Result struct {
	// Labels are the leaf names in input (column) order.
	Labels []string
	// Merges has len(Labels)-1 entries in merge order.
	Merges []Merge
	// Leaves is the dendrogram leaf order as indexes into Labels.
	Leaves []int
	// Order is Leaves mapped to names.
	Order []string
}

// Condensed holds the pairwise distances of n points, upper triangle only.
type Condensed struct {
	n int
	d []float64
}

// Len is the number of points.
func (c Condensed) Len() int { return c.n }

// At returns the distance between points i and j.
func (c Condensed) At(i, j int) float64 {
	if i == j {
		return 0
	}
	if i > j {
		i, j = j, i
	}
	return c.d[c.n*i-i*(i+1)/2+j-i-1]
}

// Distances returns the Euclidean distances between the cols columns of rows,
// each column read as a vector over the rows.
func Distances(rows [][]float64, cols int) (Condensed, error) {
	for i, r := range rows {
		if len(r) != cols {
			return Condensed{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(r), cols)
		}
	}
	c := Condensed{n: cols}
	if cols > 1 {
		c.d = make([]float64, 0, cols*(cols-1)/2)
	}
	for i := 0; i < cols; i++ {
		for j := i + 1; j < cols; j++ {
			var ss float64
			for _, r := range rows {
				diff := r[i] - r[j]
				ss += diff * diff
			}
			c.d = append(c.d, math.Sqrt(ss))
		}
	}
	return c, nil
}

// Ward clusters the columns of rows, named by labels.
func Ward(labels []string, rows [][]float64) (*Result, error) {
	d, err := Distances(rows, len(labels))
	if err != nil {
		return nil, err
	}
	return Linkage(context.Background(), labels, d)
}

// Linkage runs Ward agglomeration over precomputed distances, updating
// inter-cluster distances with the Lance-Williams recurrence. When several
// pairs share the minimum distance the pair with the lowest ids wins.
func Linkage(ctx context.Context, labels []string, d Condensed) (*Result, error) {
	n := len(labels)
	if d.Len() != n {
		return nil, fmt.Errorf("%w: %d distances for %d labels", ErrShape, d.Len(), n)
	}
	res := &Result{Labels: append([]string(nil), labels...)}
	if n == 0 {
		return res, nil
	}

	total := 2*n - 1
	dist := make([][]float64, total)
	for i := range dist {
		dist[i] = make([]float64, total)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist[i][j] = d.At(i, j)
			dist[j][i] = dist[i][j]
		}
	}
	size := make([]int, total)
	active := make([]int, 0, n)
	for i := 0; i < n; i++ {
		size[i] = 1
		active = append(active, i)
	}

	for step := 0; step < n-1; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// active stays sorted by id, so the first minimum found is the lowest pair.
		bi, bj := 0, 1
		best := math.Inf(1)
		for x := 0; x < len(active); x++ {
			for y := x + 1; y < len(active); y++ {
				if v := dist[active[x]][active[y]]; v < best {
					best, bi, bj = v, x, y
				}
			}
		}
		a, b := active[bi], active[bj]
		id := n + step
		size[id] = size[a] + size[b]
		res.Merges = append(res.Merges, Merge{Left: a, Right: b, Distance: best, Size: size[id]})

		active = append(active[:bj], active[bj+1:]...)
		active = append(active[:bi], active[bi+1:]...)
		na, nb := float64(size[a]), float64(size[b])
		for _, k := range active {
			nk := float64(size[k])
			v := ((na+nk)*dist[k][a]*dist[k][a] + (nb+nk)*dist[k][b]*dist[k][b] - nk*best*best) / (na + nb + nk)
			v = math.Sqrt(math.Max(v, 0))
			dist[k][id], dist[id][k] = v, v
		}
		active = append(active, id)
	}

	res.Leaves = res.leafOrder()
	res.Order = make([]string, len(res.Leaves))
	for i, l := range res.Leaves {
		res.Order[i] = labels[l]
	}
	return res, nil
}

// leafOrder walks the tree depth first from the root, lower child id first.
func (r *Result) leafOrder() []int {
	n := len(r.Labels)
	if n == 0 {
		return nil
	}
	stack := []int{2*n - 2}
	out := make([]int, 0, n)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id < n {
			out = append(out, id)
			continue
		}
		m := r.Merges[id-n]
		stack = append(stack, m.Right, m.Left)
	}
	return out
}

// Cut splits the tree into k flat clusters by undoing the last k-1 merges.
// It returns one label per input column; labels run 1..k in order of first
// appearance along the dendrogram.
func (r *Result) Cut(k int) ([]int, error) {
	n := len(r.Labels)
	if k < 1 || k > n {
		return nil, fmt.Errorf("cut into %d clusters: want 1..%d", k, n)
	}
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for step, m := range r.Merges[:n-k] {
		id := n + step
		parent[find(m.Left)] = id
		parent[find(m.Right)] = id
	}
	labels := make([]int, n)
	seen := map[int]int{}
	for _, leaf := range r.Leaves {
		root := find(leaf)
		if _, ok := seen[root]; !ok {
			seen[root] = len(seen) + 1
		}
		labels[leaf] = seen[root]
	}
	return labels, nil
}

// Cluster scales the frequency matrix rows and clusters its transcripts.
func Cluster(ctx context.Context, m *vocab.Matrix, scaling Scaling) (*Result, error) {
	if m == nil {
		return &Result{}, nil
	}
	d, err := Distances(scaling.Apply(m.Counts), len(m.Transcripts))
	if err != nil {
		return nil, err
	}
	return Linkage(ctx, m.Transcripts, d)
}
