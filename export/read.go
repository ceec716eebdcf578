package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/onnwee/chat-tender/backend/vocab"
)

// ReadMatrix parses a table written by WriteMatrix so clustering can be rerun
// without recounting.
func ReadMatrix(r io.Reader, comma rune) (*vocab.Matrix, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &vocab.Matrix{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read matrix header: %w", err)
	}
	if len(header) == 0 || header[0] != "word" {
		return nil, fmt.Errorf("read matrix header: first column must be \"word\"")
	}
	m := &vocab.Matrix{Transcripts: append([]string(nil), header[1:]...)}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read matrix line %d: %w", line, err)
		}
		row := make([]float64, len(m.Transcripts))
		for j := range row {
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("read matrix line %d: %w", line, err)
			}
			if v < 0 {
				return nil, fmt.Errorf("read matrix line %d: %w", line, vocab.ErrNegativeCount)
			}
			row[j] = v
		}
		m.Words = append(m.Words, rec[0])
		m.Counts = append(m.Counts, row)
	}
	return m, nil
}
