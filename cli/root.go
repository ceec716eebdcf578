// Package cli wires the chat-tender commands: offline transcript analysis,
// the VOD catalog, database maintenance and the HTTP API.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onnwee/chat-tender/backend/config"
	"github.com/onnwee/chat-tender/backend/telemetry"
)

// Version is stamped at build time.
var Version = "dev"

// app carries what every command needs once the root pre-run has finished.
type app struct {
	cfg          *config.Config
	analysisPath string
	workers      int
	shutdown     func()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "chat-tender",
		Short:         "Analyse Twitch chat transcripts: activity peaks, emote vocabulary and stream similarity",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.shutdown != nil {
				a.shutdown()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.analysisPath, "config", "c", "", "Analysis file (YAML or TOML); defaults to ANALYSIS_CONFIG")
	root.PersistentFlags().IntVar(&a.workers, "workers", 0, "Transcripts processed in parallel; defaults to MAX_CONCURRENT_TRANSCRIPTS")

	root.AddCommand(
		newActivityCmd(a),
		newVocabCmd(a),
		newClusterCmd(a),
		newRunCmd(a),
		newCatalogCmd(a),
		newImportCmd(a),
		newMigrateCmd(a),
		newServeCmd(a),
		newSchemaCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.Any("err", err))
		return 1
	}
	return 0
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	a.cfg = cfg
	if a.analysisPath == "" {
		a.analysisPath = cfg.AnalysisConfig
	}
	if a.workers <= 0 {
		a.workers = cfg.MaxConcurrentTranscripts
	}
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat))

	telemetry.Init()
	shutdown, err := telemetry.InitTracing("chat-tender", Version)
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the analysis file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.AnalysisSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

// output opens path for writing, or returns stdout for "" and "-".
func output(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
