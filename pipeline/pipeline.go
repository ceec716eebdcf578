// Package pipeline wires the analysis stages together: transcripts are loaded
// once, then the activity path (aggregate, peaks) and the vocabulary path
// (count, matrix, cluster) run side by side.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chat-tender/backend/activity"
	"github.com/onnwee/chat-tender/backend/cluster"
	"github.com/onnwee/chat-tender/backend/peaks"
	"github.com/onnwee/chat-tender/backend/telemetry"
	"github.com/onnwee/chat-tender/backend/transcript"
	"github.com/onnwee/chat-tender/backend/vocab"
)

// ErrDuplicateTranscript is returned when two transcripts share a name. Rows,
// series and matrix columns are keyed by name, so the two would merge.
var ErrDuplicateTranscript = errors.New("duplicate transcript name")

// CheckNames returns ErrDuplicateTranscript naming the first repeated
// transcript name.
func CheckNames(ts []*transcript.Transcript) error {
	seen := make(map[string]int, len(ts))
	for i, t := range ts {
		if t == nil {
			return errors.New("pipeline: nil transcript")
		}
		if j, ok := seen[t.Name()]; ok {
			return fmt.Errorf("%w: %q (inputs %d and %d, ids %q and %q)", ErrDuplicateTranscript, t.Name(), j+1, i+1, ts[j].ID, t.ID)
		}
		seen[t.Name()] = i
	}
	return nil
}

// Options configures a run. A nil Vocabulary skips the vocabulary path.
type Options struct {
	Activity activity.Options
	// FillGaps inserts zero rows for quiet windows before peaks are detected.
	FillGaps bool
	// SkipActivity disables the activity path.
	SkipActivity bool

	Vocabulary []vocab.Item
	MinCount   int
	Scaling    cluster.Scaling

	// Workers bounds per-transcript parallelism; <= 0 means unbounded.
	Workers int
}

// Report is the output of one run.
type Report struct {
	RunID       string
	Transcripts []string

	Activity []activity.TimeBucket
	Peaks    int

	Cells    []vocab.Cell
	Matrix   *vocab.Matrix
	Clusters *cluster.Result

	Elapsed time.Duration
}

// LoadFiles loads every path concurrently. format "" picks the format from
// each file's extension. Transcripts keep the order of paths.
func LoadFiles(ctx context.Context, paths []string, format string, workers int) ([]*transcript.Transcript, error) {
	var fixed *transcript.Format
	if format != "" {
		f, err := transcript.ParseFormat(format)
		if err != nil {
			return nil, err
		}
		fixed = &f
	}
	out := make([]*transcript.Transcript, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f := transcript.FormatFromPath(p)
			if fixed != nil {
				f = *fixed
			}
			t, err := transcript.LoadFile(p, f)
			telemetry.RecordTranscript(err)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := CheckNames(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Run analyses ts. The two paths share no state; either failing cancels the other.
func Run(ctx context.Context, ts []*transcript.Transcript, opts Options) (*Report, error) {
	start := time.Now()
	rep := &Report{RunID: uuid.NewString()}
	if err := CheckNames(ts); err != nil {
		return nil, err
	}
	for _, t := range ts {
		rep.Transcripts = append(rep.Transcripts, t.Name())
	}
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "pipeline"), slog.String("run_id", rep.RunID))
	logger.Info("analysis run starting", slog.Int("transcripts", len(ts)), slog.Int("vocabulary", len(opts.Vocabulary)))

	ctx, done := telemetry.Stage(ctx, "run", attribute.String("run_id", rep.RunID), attribute.Int("transcripts", len(ts)))
	var err error
	defer func() { done(err) }()

	opts.Activity.Workers = opts.Workers
	g, gctx := errgroup.WithContext(ctx)
	if !opts.SkipActivity {
		g.Go(func() error {
			rows, n, err := runActivity(gctx, ts, opts)
			if err != nil {
				return fmt.Errorf("activity: %w", err)
			}
			rep.Activity, rep.Peaks = rows, n
			return nil
		})
	}
	if opts.Vocabulary != nil {
		g.Go(func() error {
			cells, m, res, err := runVocabulary(gctx, ts, opts)
			if err != nil {
				return fmt.Errorf("vocabulary: %w", err)
			}
			rep.Cells, rep.Matrix, rep.Clusters = cells, m, res
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		logger.Error("analysis run failed", slog.Any("err", err))
		return nil, err
	}
	rep.Elapsed = time.Since(start)
	logger.Info("analysis run finished",
		slog.Int("activity_rows", len(rep.Activity)),
		slog.Int("peaks", rep.Peaks),
		slog.Int("cells", len(rep.Cells)),
		slog.Duration("elapsed", rep.Elapsed))
	return rep, nil
}

// RunActivity runs only the activity path.
func RunActivity(ctx context.Context, ts []*transcript.Transcript, opts Options) ([]activity.TimeBucket, int, error) {
	if err := CheckNames(ts); err != nil {
		return nil, 0, err
	}
	opts.Activity.Workers = opts.Workers
	return runActivity(ctx, ts, opts)
}

func runActivity(ctx context.Context, ts []*transcript.Transcript, opts Options) (rows []activity.TimeBucket, flagged int, err error) {
	actx, done := telemetry.Stage(ctx, "aggregate")
	rows, err = activity.AggregateAll(actx, ts, opts.Activity)
	done(err)
	if err != nil {
		return nil, 0, err
	}
	if opts.FillGaps {
		if rows, err = activity.FillGaps(rows, opts.Activity.Granularity); err != nil {
			return nil, 0, err
		}
	}
	_, done = telemetry.Stage(ctx, "peaks", attribute.Int("rows", len(rows)))
	flagged = peaks.Annotate(rows)
	done(nil)
	telemetry.AddPeaks(flagged)
	return rows, flagged, nil
}

func runVocabulary(ctx context.Context, ts []*transcript.Transcript, opts Options) ([]vocab.Cell, *vocab.Matrix, *cluster.Result, error) {
	telemetry.SetVocabularySize(len(opts.Vocabulary))
	cctx, done := telemetry.Stage(ctx, "count", attribute.Int("vocabulary", len(opts.Vocabulary)))
	cells, err := vocab.Count(cctx, ts, opts.Vocabulary, opts.Workers)
	done(err)
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := vocab.BuildMatrix(cells, opts.MinCount)
	if err != nil {
		return nil, nil, nil, err
	}
	telemetry.SetMatrixCells(len(m.Words), len(m.Transcripts))

	lctx, done := telemetry.Stage(ctx, "cluster", attribute.String("scaling", opts.Scaling.String()))
	res, err := cluster.Cluster(lctx, m, opts.Scaling)
	done(err)
	if err != nil {
		return nil, nil, nil, err
	}
	return cells, m, res, nil
}
