package server

import (
	"fmt"
	"net/http"

	"github.com/onnwee/chat-tender/backend/db"
)

// HandleHealthz answers liveness probes. It does not touch the database.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz answers readiness probes: the database must respond and its
// schema must not be in a dirty migration state.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return db.Ping(r.Context(), h.db) }},
		{"schema", func() error {
			version, dirty, err := db.MigrationVersion(h.db)
			if err != nil {
				return err
			}
			if dirty {
				return fmt.Errorf("migration %d is dirty", version)
			}
			if version == 0 {
				return fmt.Errorf("no migrations applied")
			}
			return nil
		}},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
