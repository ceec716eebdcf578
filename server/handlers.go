package server

import (
	"database/sql"
	"runtime"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db *sql.DB
	// workers bounds per-request transcript parallelism.
	workers int
}

// NewHandlers creates a new Handlers instance. MAX_CONCURRENT_TRANSCRIPTS
// overrides the worker bound.
func NewHandlers(db *sql.DB) *Handlers {
	return &Handlers{
		db:      db,
		workers: getEnvInt("MAX_CONCURRENT_TRANSCRIPTS", runtime.GOMAXPROCS(0)),
	}
}
