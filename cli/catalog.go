package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/onnwee/chat-tender/backend/catalog"
	"github.com/onnwee/chat-tender/backend/db"
	"github.com/onnwee/chat-tender/backend/export"
	"github.com/onnwee/chat-tender/backend/twitchapi"
)

func newCatalogCmd(a *app) *cobra.Command {
	var (
		in      string
		channel string
		limit   int
		opts    catalog.Options
		out     string
		names   string
		store   bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Select VOD metadata from a Helix listing or the API and write it keyed by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var vids []twitchapi.Video
			switch {
			case in != "":
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("open catalog: %w", err)
				}
				vids, err = catalog.Load(f)
				f.Close()
				if err != nil {
					return err
				}
			default:
				if channel == "" {
					channel = a.cfg.TwitchChannel
				}
				if channel == "" {
					return fmt.Errorf("no catalog source: pass --in or --channel (or set TWITCH_CHANNEL)")
				}
				if err := a.cfg.ValidateHelixReady(); err != nil {
					return err
				}
				hc := twitchapi.NewHelixClient(a.cfg.TwitchClientID, a.cfg.TwitchClientSecret)
				var err error
				if vids, err = catalog.Fetch(cmd.Context(), hc, channel, "", limit); err != nil {
					return err
				}
			}

			selected, err := catalog.Select(vids, opts)
			if err != nil {
				return err
			}
			slog.Info("catalog selected", slog.Int("input", len(vids)), slog.Int("selected", len(selected)))

			if store {
				database, err := db.Connect(a.cfg.DBDsn)
				if err != nil {
					return err
				}
				defer database.Close()
				if err := db.UpsertVideos(cmd.Context(), database, selected); err != nil {
					return err
				}
			}

			if names != "" {
				if err := writeNames(names, selected); err != nil {
					return err
				}
			}

			w, err := output(cmd, out)
			if err != nil {
				return err
			}
			if err := catalog.WriteByID(w, selected); err != nil {
				w.Close()
				return err
			}
			return w.Close()
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Helix video listing (JSON array) to read instead of calling the API")
	cmd.Flags().StringVar(&channel, "channel", "", "Channel login to fetch; defaults to TWITCH_CHANNEL")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop fetching after this many videos; 0 fetches all")
	cmd.Flags().StringVar(&opts.SortBy, "sort", catalog.DefaultSortBy, "Sort field: published_at, created_at, view_count, duration, title, id")
	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "Sort descending")
	cmd.Flags().IntVar(&opts.Top, "top", 0, "Keep the first n after sorting; 0 keeps all")
	cmd.Flags().StringVar(&opts.Type, "type", "", "Keep one video type: archive, highlight or upload")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output JSON file; stdout when empty")
	cmd.Flags().StringVar(&names, "names", "", "Also write id<TAB>display name lines, used to name transcripts after their VOD")
	cmd.Flags().BoolVar(&store, "store", false, "Also upsert the selected videos into the database")
	return cmd
}

// writeNames writes the display name of every selected video in selection
// order.
func writeNames(path string, vids []twitchapi.Video) error {
	byID := catalog.DisplayNames(vids)
	return export.ToFile(path, func(w io.Writer, comma rune) error {
		for _, v := range vids {
			if _, err := fmt.Fprintf(w, "%s%c%s\n", v.ID, comma, byID[v.ID]); err != nil {
				return err
			}
		}
		return nil
	})
}
