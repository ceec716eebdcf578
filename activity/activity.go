// Package activity buckets chat events into fixed-width time windows and counts
// total messages and per-pattern matches in each window.
package activity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chat-tender/backend/transcript"
)

// TotalLabel is the series label of the all-messages count.
const TotalLabel = "total"

// Pattern is a named regular expression matched against message text.
type Pattern struct {
	Name string
	Expr *regexp.Regexp
}

// PatternSpec is an uncompiled pattern as it appears in configuration.
type PatternSpec struct {
	Name    string `yaml:"name" toml:"name" json:"name" jsonschema:"description=Label written to the label column"`
	Pattern string `yaml:"pattern" toml:"pattern" json:"pattern" jsonschema:"description=Regular expression matched against message text"`
}

// CompilePatterns compiles specs in order. With ignoreCase the expressions
// match case-insensitively.
func CompilePatterns(specs []PatternSpec, ignoreCase bool) ([]Pattern, error) {
	out := make([]Pattern, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("pattern %q has no name", s.Pattern)
		}
		if s.Name == TotalLabel {
			return nil, fmt.Errorf("pattern name %q is reserved", TotalLabel)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("duplicate pattern name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		expr := s.Pattern
		if ignoreCase {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %s: %w", s.Name, err)
		}
		out = append(out, Pattern{Name: s.Name, Expr: re})
	}
	return out, nil
}

// Options configures aggregation.
type Options struct {
	Granularity time.Duration
	Patterns    []Pattern
	// Workers bounds AggregateAll parallelism; <= 0 means unbounded.
	Workers int
}

// TimeBucket is one (window, series, transcript) count. IsPeak is set by the
// peak detector.
type TimeBucket struct {
	Start      transcript.Timestamp
	Label      string
	Transcript string
	Count      int
	IsPeak     bool
}

// Aggregate counts the events of t per window. Every window containing at
// least one event yields a "total" row followed by one row per pattern, in
// pattern order, even when the pattern count is zero. Windows without events
// are not emitted; see FillGaps.
func Aggregate(t *transcript.Transcript, opts Options) []TimeBucket {
	if t == nil || len(t.Events) == 0 {
		return []TimeBucket{}
	}
	type window struct {
		total   int
		matches []int
	}
	windows := make(map[transcript.Timestamp]*window)
	var order []transcript.Timestamp
	for _, ev := range t.Events {
		start := ev.Timestamp.Floor(opts.Granularity)
		w, ok := windows[start]
		if !ok {
			w = &window{matches: make([]int, len(opts.Patterns))}
			windows[start] = w
			order = append(order, start)
		}
		w.total++
		for i, p := range opts.Patterns {
			if p.Expr.MatchString(ev.Message) {
				w.matches[i]++
			}
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	name := t.Name()
	rows := make([]TimeBucket, 0, len(order)*(1+len(opts.Patterns)))
	for _, start := range order {
		w := windows[start]
		rows = append(rows, TimeBucket{Start: start, Label: TotalLabel, Transcript: name, Count: w.total})
		for i, p := range opts.Patterns {
			rows = append(rows, TimeBucket{Start: start, Label: p.Name, Transcript: name, Count: w.matches[i]})
		}
	}
	return rows
}

// AggregateAll aggregates each transcript independently (concurrently) and
// concatenates the rows in input order. The result equals calling Aggregate on
// each transcript and appending.
func AggregateAll(ctx context.Context, ts []*transcript.Transcript, opts Options) ([]TimeBucket, error) {
	parts := make([][]TimeBucket, len(ts))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, t := range ts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parts[i] = Aggregate(t, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]TimeBucket, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// MaxFilledRows bounds the output of FillGaps.
const MaxFilledRows = 2_000_000

// ErrTooManyBuckets is returned by FillGaps when the filled series would
// exceed MaxFilledRows.
var ErrTooManyBuckets = errors.New("too many buckets")

// FillGaps inserts zero-count rows so every (transcript, label) series has a
// row for each window between that transcript's first and last window. Input
// order of transcripts and labels is kept; rows within a series are ordered by
// start.
func FillGaps(rows []TimeBucket, granularity time.Duration) ([]TimeBucket, error) {
	if len(rows) == 0 || granularity <= 0 {
		return rows, nil
	}
	type key struct{ transcript, label string }
	type span struct{ first, last transcript.Timestamp }
	var (
		transcripts []string
		labelsOf    = map[string][]string{}
		spans       = map[string]*span{}
		counts      = map[key]map[transcript.Timestamp]TimeBucket{}
	)
	for _, r := range rows {
		sp, ok := spans[r.Transcript]
		if !ok {
			transcripts = append(transcripts, r.Transcript)
			sp = &span{first: r.Start, last: r.Start}
			spans[r.Transcript] = sp
		}
		if r.Start < sp.first {
			sp.first = r.Start
		}
		if r.Start > sp.last {
			sp.last = r.Start
		}
		k := key{r.Transcript, r.Label}
		if _, ok := counts[k]; !ok {
			counts[k] = map[transcript.Timestamp]TimeBucket{}
			labelsOf[r.Transcript] = append(labelsOf[r.Transcript], r.Label)
		}
		counts[k][r.Start] = r
	}

	total := 0
	for _, name := range transcripts {
		sp := spans[name]
		windows := int64(sp.last-sp.first)/int64(granularity) + 1
		total += int(min(windows, MaxFilledRows+1)) * len(labelsOf[name])
		if total > MaxFilledRows {
			return nil, fmt.Errorf("%w: filling %s at %s needs more than %d rows", ErrTooManyBuckets, name, granularity, MaxFilledRows)
		}
	}

	out := make([]TimeBucket, 0, total)
	for _, name := range transcripts {
		sp := spans[name]
		for start := sp.first; start <= sp.last; start += transcript.Timestamp(granularity) {
			for _, label := range labelsOf[name] {
				if r, ok := counts[key{name, label}][start]; ok {
					out = append(out, r)
					continue
				}
				out = append(out, TimeBucket{Start: start, Label: label, Transcript: name})
			}
		}
	}
	return out, nil
}
