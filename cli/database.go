package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/chat-tender/backend/db"
	"github.com/onnwee/chat-tender/backend/server"
	"github.com/onnwee/chat-tender/backend/transcript"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply, roll back or report database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.Connect(a.cfg.DBDsn)
			if err != nil {
				return err
			}
			defer database.Close()
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			switch action {
			case "up":
				return db.Migrate(database)
			case "down":
				return db.MigrateDown(database)
			case "version":
				v, dirty, err := db.MigrationVersion(database)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty %v\n", v, dirty)
				return err
			}
			return fmt.Errorf("unknown migrate action %q", action)
		},
	}
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var (
		vodID  string
		format string
	)
	cmd := &cobra.Command{
		Use:   "import <transcript>",
		Short: "Store a transcript file as the chat of a VOD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := transcript.FormatFromPath(args[0])
			if format != "" {
				var err error
				if f, err = transcript.ParseFormat(format); err != nil {
					return err
				}
			}
			t, err := transcript.LoadFile(args[0], f)
			if err != nil {
				return err
			}
			if vodID == "" {
				vodID = t.ID
			}
			database, err := db.Connect(a.cfg.DBDsn)
			if err != nil {
				return err
			}
			defer database.Close()
			if err := db.Migrate(database); err != nil {
				return err
			}
			n, err := db.InsertChatMessages(cmd.Context(), database, vodID, t.Events)
			if err != nil {
				return err
			}
			slog.Info("transcript imported", slog.String("vod_id", vodID), slog.Int("messages", n), slog.Int("skipped", t.Skipped))
			return nil
		},
	}
	cmd.Flags().StringVar(&vodID, "vod", "", "VOD id to store under; defaults to the file name")
	cmd.Flags().StringVar(&format, "format", "", "Transcript format (chatlog, irc); default from extension")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			database, err := db.Connect(a.cfg.DBDsn)
			if err != nil {
				return err
			}
			defer func() {
				if err := database.Close(); err != nil {
					slog.Error("failed to close database", slog.Any("err", err))
				}
			}()
			slog.Info("running database migrations", slog.String("component", "db_migrate"))
			if err := db.Migrate(database); err != nil {
				return err
			}
			go db.ReportPoolMetrics(cmd.Context(), database, 15*time.Second)
			return server.Start(cmd.Context(), database, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; defaults to HTTP_ADDR")
	return cmd
}
