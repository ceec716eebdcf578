// Package export writes analysis results as delimited text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/onnwee/chat-tender/backend/activity"
	"github.com/onnwee/chat-tender/backend/cluster"
	"github.com/onnwee/chat-tender/backend/labels"
	"github.com/onnwee/chat-tender/backend/vocab"
)

// ActivityHeader is the column order of activity exports.
var ActivityHeader = []string{"timestamp", "counts", "desc", "name", "is_peak"}

// Delimiter picks the field separator for path: tab for .tsv and .txt, comma otherwise.
func Delimiter(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt":
		return '\t'
	default:
		return ','
	}
}

func newWriter(w io.Writer, comma rune) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	return cw
}

func flush(cw *csv.Writer) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// WriteActivity writes one line per row under ActivityHeader.
func WriteActivity(w io.Writer, comma rune, rows []activity.TimeBucket) error {
	cw := newWriter(w, comma)
	if err := cw.Write(ActivityHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.Start.String(), strconv.Itoa(r.Count), r.Label, r.Transcript, strconv.FormatBool(r.IsPeak)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	return flush(cw)
}

// WriteMatrix writes a "word" column followed by one column per transcript.
func WriteMatrix(w io.Writer, comma rune, m *vocab.Matrix) error {
	cw := newWriter(w, comma)
	if err := cw.Write(append([]string{"word"}, m.Transcripts...)); err != nil {
		return err
	}
	rec := make([]string, len(m.Transcripts)+1)
	for i, word := range m.Words {
		rec[0] = word
		for j := range m.Transcripts {
			rec[j+1] = strconv.FormatFloat(m.Counts[i][j], 'f', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	return flush(cw)
}

// WriteLabels writes an encoded<TAB>decoded line for every name, sorted by
// encoded label.
func WriteLabels(w io.Writer, names []string) error {
	cw := newWriter(w, '\t')
	enc := make([][]string, 0, len(names))
	for _, n := range names {
		enc = append(enc, []string{labels.Encode(n), n})
	}
	sort.Slice(enc, func(i, j int) bool { return enc[i][0] < enc[j][0] })
	for _, rec := range enc {
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	return flush(cw)
}

// WriteClusters writes the dendrogram: the leaf order with optional flat
// cluster labels, then the merge table. k above the leaf count gives every
// leaf its own cluster.
func WriteClusters(w io.Writer, comma rune, res *cluster.Result, k int) error {
	cw := newWriter(w, comma)
	var flat []int
	k = min(k, len(res.Labels))
	if k > 0 {
		var err error
		if flat, err = res.Cut(k); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"position", "name", "cluster"}); err != nil {
		return err
	}
	for pos, leaf := range res.Leaves {
		c := ""
		if flat != nil {
			c = strconv.Itoa(flat[leaf])
		}
		if err := cw.Write([]string{strconv.Itoa(pos), res.Labels[leaf], c}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"left", "right", "distance", "size"}); err != nil {
		return err
	}
	for _, m := range res.Merges {
		rec := []string{strconv.Itoa(m.Left), strconv.Itoa(m.Right), strconv.FormatFloat(m.Distance, 'g', -1, 64), strconv.Itoa(m.Size)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	return flush(cw)
}

// ToFile creates path (and its directory) and hands it to write with the
// delimiter implied by the extension.
func ToFile(path string, write func(io.Writer, rune) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	return write(f, Delimiter(path))
}
