package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/onnwee/chat-tender/backend/activity"
	"github.com/onnwee/chat-tender/backend/cluster"
	"github.com/onnwee/chat-tender/backend/config"
	"github.com/onnwee/chat-tender/backend/db"
	"github.com/onnwee/chat-tender/backend/export"
	"github.com/onnwee/chat-tender/backend/pipeline"
	"github.com/onnwee/chat-tender/backend/transcript"
	"github.com/onnwee/chat-tender/backend/twitchapi"
	"github.com/onnwee/chat-tender/backend/vocab"
)

// analysisFlags are command line overrides of the analysis file.
type analysisFlags struct {
	freq       string
	patterns   []string
	ignoreCase bool
	fill       bool
	minCount   int
	scaling    string
	emoteDirs  []string
	words      []string
	clusters   int
}

func (f *analysisFlags) addActivity(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.freq, "freq", "", "Bucket width: s, min, h, d or a duration like 30s; at least 1s")
	cmd.Flags().StringArrayVarP(&f.patterns, "pattern", "p", nil, "Named pattern name=regex; repeatable, counted in order")
	cmd.Flags().BoolVarP(&f.ignoreCase, "ignorecase", "i", false, "Match patterns case-insensitively")
	cmd.Flags().BoolVar(&f.fill, "fill", true, "Emit zero-count buckets between first and last activity")
}

func (f *analysisFlags) addVocab(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.minCount, "min-count", config.DefaultMinCount, "Keep (word, transcript) counts above this")
	cmd.Flags().StringArrayVar(&f.emoteDirs, "emotes", nil, "Directory of base64-named emote images; repeatable")
	cmd.Flags().StringSliceVar(&f.words, "word", nil, "Extra vocabulary tokens; comma separated or repeatable")
}

func (f *analysisFlags) addCluster(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scaling, "scaling", "", "Row scaling: zscore, minmax or none")
	cmd.Flags().IntVarP(&f.clusters, "clusters", "k", 0, "Cut the tree into k flat clusters")
}

// resolve loads the analysis file and applies the flags the user set.
func (f *analysisFlags) resolve(cmd *cobra.Command, path string) (*config.Resolved, error) {
	an, err := config.LoadAnalysis(path)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("freq") {
		an.Granularity = f.freq
	}
	if changed("pattern") {
		specs, err := parsePatterns(f.patterns)
		if err != nil {
			return nil, err
		}
		an.Patterns = specs
	}
	if changed("ignorecase") {
		an.IgnoreCase = f.ignoreCase
	}
	if changed("fill") {
		an.FillGaps = &f.fill
	}
	if changed("min-count") {
		an.MinCount = &f.minCount
	}
	if changed("scaling") {
		an.Scaling = f.scaling
	}
	if changed("emotes") {
		an.EmoteDirs = f.emoteDirs
	}
	if changed("clusters") {
		an.Clusters = f.clusters
	}
	return an.Validate()
}

func parsePatterns(raw []string) ([]activity.PatternSpec, error) {
	specs := make([]activity.PatternSpec, 0, len(raw))
	for _, p := range raw {
		name, expr, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("pattern %q: want name=regex", p)
		}
		specs = append(specs, activity.PatternSpec{Name: name, Pattern: expr})
	}
	return specs, nil
}

// sourceFlags select transcripts from files or from stored chat.
type sourceFlags struct {
	format string
	vods   []string
}

func (s *sourceFlags) add(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.format, "format", "", "Transcript format (chatlog, irc); default from extension")
	cmd.Flags().StringArrayVar(&s.vods, "vod", nil, "Load the stored chat of this VOD id; repeatable")
}

func (s *sourceFlags) load(ctx context.Context, a *app, files []string) ([]*transcript.Transcript, error) {
	if len(files) == 0 && len(s.vods) == 0 {
		return nil, fmt.Errorf("no transcripts: pass files or --vod")
	}
	ts, err := pipeline.LoadFiles(ctx, files, s.format, a.workers)
	if err != nil {
		return nil, err
	}
	if len(s.vods) == 0 {
		return ts, nil
	}
	database, err := db.Connect(a.cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	for _, id := range s.vods {
		t, err := db.LoadTranscript(ctx, database, id)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	if err := pipeline.CheckNames(ts); err != nil {
		return nil, err
	}
	return ts, nil
}

// vocabulary merges emote directories, extra words and, when requested,
// Helix emotes.
func vocabulary(ctx context.Context, a *app, r *config.Resolved, words []string, helix bool) ([]vocab.Item, error) {
	items, err := vocab.LoadDirs(r.EmoteDirs, r.DirOptions)
	if err != nil {
		return nil, err
	}
	if len(words) > 0 {
		items = vocab.Merge(items, vocab.FromNames(words, "flag", r.DirOptions.Blacklist))
	}
	if !helix {
		return items, nil
	}
	if err := a.cfg.ValidateHelixReady(); err != nil {
		return nil, err
	}
	hc := twitchapi.NewHelixClient(a.cfg.TwitchClientID, a.cfg.TwitchClientSecret)
	global, err := hc.GlobalEmotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("global emotes: %w", err)
	}
	lists := [][]vocab.Item{items, vocab.FromEmotes(global, r.DirOptions.Blacklist)}
	if a.cfg.TwitchChannel != "" {
		id, err := hc.GetUserID(ctx, a.cfg.TwitchChannel)
		if err != nil {
			return nil, fmt.Errorf("resolve channel %s: %w", a.cfg.TwitchChannel, err)
		}
		ch, err := hc.ChannelEmotes(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("channel emotes: %w", err)
		}
		lists = append(lists, vocab.FromEmotes(ch, r.DirOptions.Blacklist))
	}
	return vocab.Merge(lists...), nil
}

func writeTo(cmd *cobra.Command, path string, write func(io.Writer, rune) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout(), export.Delimiter(path))
	}
	return export.ToFile(path, write)
}

func newActivityCmd(a *app) *cobra.Command {
	var (
		af   analysisFlags
		src  sourceFlags
		out  string
		save bool
	)
	cmd := &cobra.Command{
		Use:   "activity [transcript...]",
		Short: "Count chat messages per time bucket and flag peaks",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := af.resolve(cmd, a.analysisPath)
			if err != nil {
				return err
			}
			ts, err := src.load(cmd.Context(), a, args)
			if err != nil {
				return err
			}
			rows, flagged, err := pipeline.RunActivity(cmd.Context(), ts, pipeline.Options{
				Activity: activity.Options{Granularity: r.Granularity, Patterns: r.Patterns},
				FillGaps: r.FillGaps,
				Workers:  a.workers,
			})
			if err != nil {
				return err
			}
			slog.Info("activity computed", slog.Int("rows", len(rows)), slog.Int("peaks", flagged))
			if save {
				if err := saveRun(cmd.Context(), a, rows); err != nil {
					return err
				}
			}
			return writeTo(cmd, out, func(w io.Writer, comma rune) error {
				return export.WriteActivity(w, comma, rows)
			})
		},
	}
	af.addActivity(cmd)
	src.add(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (.csv or .tsv); stdout when empty")
	cmd.Flags().BoolVar(&save, "save", false, "Store the rows in the database under a new run id")
	return cmd
}

func saveRun(ctx context.Context, a *app, rows []activity.TimeBucket) error {
	database, err := db.Connect(a.cfg.DBDsn)
	if err != nil {
		return err
	}
	defer database.Close()
	runID := uuid.NewString()
	if err := db.SaveActivity(ctx, database, runID, rows); err != nil {
		return err
	}
	slog.Info("activity run saved", slog.String("run_id", runID), slog.Int("rows", len(rows)))
	return nil
}

func newVocabCmd(a *app) *cobra.Command {
	var (
		af     analysisFlags
		src    sourceFlags
		out    string
		labels string
		helix  bool
	)
	cmd := &cobra.Command{
		Use:   "vocab [transcript...]",
		Short: "Build the word x transcript frequency matrix of the emote vocabulary",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := af.resolve(cmd, a.analysisPath)
			if err != nil {
				return err
			}
			items, err := vocabulary(cmd.Context(), a, r, af.words, helix)
			if err != nil {
				return err
			}
			ts, err := src.load(cmd.Context(), a, args)
			if err != nil {
				return err
			}
			cells, err := vocab.Count(cmd.Context(), ts, items, a.workers)
			if err != nil {
				return err
			}
			m, err := vocab.BuildMatrix(cells, r.MinCount)
			if err != nil {
				return err
			}
			if labels != "" {
				if err := export.ToFile(labels, func(w io.Writer, _ rune) error {
					return export.WriteLabels(w, m.Words)
				}); err != nil {
					return err
				}
			}
			return writeTo(cmd, out, func(w io.Writer, comma rune) error {
				return export.WriteMatrix(w, comma, m)
			})
		},
	}
	af.addVocab(cmd)
	src.add(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "", "Matrix output file (.csv or .tsv); stdout when empty")
	cmd.Flags().StringVar(&labels, "labels", "", "Also write the encoded/decoded word labels here")
	cmd.Flags().BoolVar(&helix, "helix", false, "Add global and TWITCH_CHANNEL emotes from the Twitch API")
	return cmd
}

func newClusterCmd(a *app) *cobra.Command {
	var (
		af     analysisFlags
		src    sourceFlags
		matrix string
		out    string
		helix  bool
	)
	cmd := &cobra.Command{
		Use:   "cluster [transcript...]",
		Short: "Ward-cluster transcripts by their vocabulary profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := af.resolve(cmd, a.analysisPath)
			if err != nil {
				return err
			}
			var m *vocab.Matrix
			if matrix != "" {
				if m, err = readMatrix(matrix); err != nil {
					return err
				}
			} else {
				items, err := vocabulary(cmd.Context(), a, r, af.words, helix)
				if err != nil {
					return err
				}
				ts, err := src.load(cmd.Context(), a, args)
				if err != nil {
					return err
				}
				cells, err := vocab.Count(cmd.Context(), ts, items, a.workers)
				if err != nil {
					return err
				}
				if m, err = vocab.BuildMatrix(cells, r.MinCount); err != nil {
					return err
				}
			}
			res, err := cluster.Cluster(cmd.Context(), m, r.Scaling)
			if err != nil {
				return err
			}
			return writeTo(cmd, out, func(w io.Writer, comma rune) error {
				return export.WriteClusters(w, comma, res, r.Clusters)
			})
		},
	}
	af.addVocab(cmd)
	af.addCluster(cmd)
	src.add(cmd)
	cmd.Flags().StringVar(&matrix, "matrix", "", "Cluster a matrix written by the vocab command instead of transcripts")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (.csv or .tsv); stdout when empty")
	cmd.Flags().BoolVar(&helix, "helix", false, "Add global and TWITCH_CHANNEL emotes from the Twitch API")
	return cmd
}

func readMatrix(path string) (*vocab.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix: %w", err)
	}
	defer f.Close()
	return export.ReadMatrix(f, export.Delimiter(path))
}

func newRunCmd(a *app) *cobra.Command {
	var (
		af     analysisFlags
		src    sourceFlags
		outDir string
		helix  bool
	)
	cmd := &cobra.Command{
		Use:   "run [transcript...]",
		Short: "Run activity, vocabulary and clustering together and write every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := af.resolve(cmd, a.analysisPath)
			if err != nil {
				return err
			}
			items, err := vocabulary(cmd.Context(), a, r, af.words, helix)
			if err != nil {
				return err
			}
			ts, err := src.load(cmd.Context(), a, args)
			if err != nil {
				return err
			}
			rep, err := pipeline.Run(cmd.Context(), ts, pipeline.Options{
				Activity:   activity.Options{Granularity: r.Granularity, Patterns: r.Patterns},
				FillGaps:   r.FillGaps,
				Vocabulary: items,
				MinCount:   r.MinCount,
				Scaling:    r.Scaling,
				Workers:    a.workers,
			})
			if err != nil {
				return err
			}
			return writeReport(outDir, rep, r.Clusters)
		},
	}
	af.addActivity(cmd)
	af.addVocab(cmd)
	af.addCluster(cmd)
	src.add(cmd)
	cmd.Flags().StringVar(&outDir, "out-dir", "out", "Directory for activity.tsv, matrix.tsv, labels.tsv and clusters.tsv")
	cmd.Flags().BoolVar(&helix, "helix", false, "Add global and TWITCH_CHANNEL emotes from the Twitch API")
	return cmd
}

func writeReport(dir string, rep *pipeline.Report, k int) error {
	if err := export.ToFile(filepath.Join(dir, "activity.tsv"), func(w io.Writer, comma rune) error {
		return export.WriteActivity(w, comma, rep.Activity)
	}); err != nil {
		return err
	}
	if rep.Matrix == nil {
		return nil
	}
	if err := export.ToFile(filepath.Join(dir, "matrix.tsv"), func(w io.Writer, comma rune) error {
		return export.WriteMatrix(w, comma, rep.Matrix)
	}); err != nil {
		return err
	}
	if err := export.ToFile(filepath.Join(dir, "labels.tsv"), func(w io.Writer, _ rune) error {
		return export.WriteLabels(w, rep.Matrix.Words)
	}); err != nil {
		return err
	}
	if rep.Clusters == nil {
		return nil
	}
	return export.ToFile(filepath.Join(dir, "clusters.tsv"), func(w io.Writer, comma rune) error {
		return export.WriteClusters(w, comma, rep.Clusters, k)
	})
}
