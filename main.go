// Command chat-tender analyses Twitch chat transcripts.
//
// Offline commands read transcript files (or chat stored in Postgres) and
// write activity, vocabulary and clustering tables. The serve command exposes
// the same activity analysis over HTTP with /healthz, /readyz and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/onnwee/chat-tender/backend/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
