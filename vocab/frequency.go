package vocab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chat-tender/backend/transcript"
)

// ErrNegativeCount rejects structurally invalid frequency input.
var ErrNegativeCount = errors.New("negative vocabulary count")

// Cell is one (word, transcript, count) triple.
type Cell struct {
	Word       string
	Transcript string
	Count      int
}

// CountTranscript counts exact whitespace-delimited matches of the vocabulary
// in one transcript. Words never seen are absent from the result.
func CountTranscript(t *transcript.Transcript, vocab map[string]struct{}) map[string]int {
	counts := map[string]int{}
	if t == nil {
		return counts
	}
	for _, ev := range t.Events {
		for _, tok := range strings.Fields(ev.Message) {
			if _, ok := vocab[tok]; ok {
				counts[tok]++
			}
		}
	}
	return counts
}

// Count counts items in every transcript, one goroutine per transcript bounded
// by workers (<= 0 means unbounded). Cells are ordered by transcript (input
// order) then word.
func Count(ctx context.Context, ts []*transcript.Transcript, items []Item, workers int) ([]Cell, error) {
	vocab := make(map[string]struct{}, len(items))
	for _, it := range items {
		vocab[it.Name] = struct{}{}
	}
	parts := make([][]Cell, len(ts))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, t := range ts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			counts := CountTranscript(t, vocab)
			cells := make([]Cell, 0, len(counts))
			for w, c := range counts {
				cells = append(cells, Cell{Word: w, Transcript: t.Name(), Count: c})
			}
			sort.Slice(cells, func(a, b int) bool { return cells[a].Word < cells[b].Word })
			parts[i] = cells
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []Cell
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// Matrix is a dense word x transcript count table. Words (rows) and
// transcripts (columns) are sorted.
type Matrix struct {
	Words       []string
	Transcripts []string
	// Counts[i][j] is the count of Words[i] in Transcripts[j].
	Counts [][]float64
}

// BuildMatrix pivots cells into a matrix. Only triples whose count exceeds
// minCount survive; every other cell is zero, including pairs whose true count
// was positive but at or below minCount. The filter is per (word, transcript)
// pair: a word kept for one transcript can read 0 for another. Rows are the
// words with at least one surviving triple; columns are every transcript named
// by any input cell.
func BuildMatrix(cells []Cell, minCount int) (*Matrix, error) {
	wordSet := map[string]struct{}{}
	trSet := map[string]struct{}{}
	kept := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if c.Count < 0 {
			return nil, fmt.Errorf("%w: %s in %s = %d", ErrNegativeCount, c.Word, c.Transcript, c.Count)
		}
		trSet[c.Transcript] = struct{}{}
		if c.Count <= minCount {
			continue
		}
		kept = append(kept, c)
		wordSet[c.Word] = struct{}{}
	}
	m := &Matrix{Words: sortedKeys(wordSet), Transcripts: sortedKeys(trSet)}
	row := indexOf(m.Words)
	col := indexOf(m.Transcripts)
	m.Counts = make([][]float64, len(m.Words))
	for i := range m.Counts {
		m.Counts[i] = make([]float64, len(m.Transcripts))
	}
	for _, c := range kept {
		m.Counts[row[c.Word]][col[c.Transcript]] += float64(c.Count)
	}
	return m, nil
}

// At returns the count for word in transcript, 0 when either is absent.
func (m *Matrix) At(word, transcript string) float64 {
	i := indexOf(m.Words).get(word)
	j := indexOf(m.Transcripts).get(transcript)
	if i < 0 || j < 0 {
		return 0
	}
	return m.Counts[i][j]
}

// Column returns the counts of transcript j over all words.
func (m *Matrix) Column(j int) []float64 {
	col := make([]float64, len(m.Words))
	for i := range m.Words {
		col[i] = m.Counts[i][j]
	}
	return col
}

// Cells flattens the matrix (including zero cells) back to tidy triples.
func (m *Matrix) Cells() []Cell {
	out := make([]Cell, 0, len(m.Words)*len(m.Transcripts))
	for i, w := range m.Words {
		for j, t := range m.Transcripts {
			out = append(out, Cell{Word: w, Transcript: t, Count: int(m.Counts[i][j])})
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type index map[string]int

// get returns the position of k, or -1 when k is absent.
func (ix index) get(k string) int {
	if v, ok := ix[k]; ok {
		return v
	}
	return -1
}

func indexOf(keys []string) index {
	ix := make(index, len(keys))
	for i, k := range keys {
		ix[k] = i
	}
	return ix
}
