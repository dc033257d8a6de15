// Package ledger keeps a history of trainer invocations.
package ledger

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRunNotFound is returned when no record matches an id.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousID is returned when an id prefix matches more than one record.
	ErrAmbiguousID = errors.New("run id prefix is ambiguous")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusSuccessful  Status = "successful"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Record describes one trainer invocation.
type Record struct {
	ID         string            `json:"id"`
	Preset     string            `json:"preset"`
	Variant    string            `json:"variant,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Argv       []string          `json:"argv"`
	SearchPath string            `json:"search_path"`
	Workdir    string            `json:"workdir"`
	Hostname   string            `json:"hostname"`
	GitCommit  string            `json:"git_commit,omitempty"`
	GitDirty   bool              `json:"git_dirty"`
	LogPath    string            `json:"log_path,omitempty"`
	Status     Status            `json:"status"`
	ExitCode   int               `json:"exit_code"`
	LastError  string            `json:"last_error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// NewRecord returns a running record with a fresh id.
func NewRecord(preset string) *Record {
	host, _ := os.Hostname()
	return &Record{
		ID:        uuid.NewString(),
		Preset:    preset,
		Hostname:  host,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Complete marks the record finished with the given exit code.
func (r *Record) Complete(exitCode int, interrupted bool, at time.Time) {
	at = at.UTC()
	r.FinishedAt = &at
	r.ExitCode = exitCode
	switch {
	case interrupted:
		r.Status = StatusInterrupted
	case exitCode == 0:
		r.Status = StatusSuccessful
	default:
		r.Status = StatusFailed
	}
}

// Duration is the wall time of a finished run, or the time elapsed so far.
func (r *Record) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ShortID is the first block of the id.
func (r *Record) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// Store persists run records. Implementations are safe for concurrent use.
type Store interface {
	// Begin records a run that has just started.
	Begin(ctx context.Context, r *Record) error
	// Finish records the outcome of a run recorded with Begin.
	Finish(ctx context.Context, r *Record) error
	// Get returns the run whose id equals or uniquely starts with id.
	Get(ctx context.Context, id string) (*Record, error)
	// List returns up to limit runs, newest first. A limit of 0 means all.
	List(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) Begin(context.Context, *Record) error  { return nil }
func (NopStore) Finish(context.Context, *Record) error { return nil }
func (NopStore) Get(_ context.Context, id string) (*Record, error) {
	return nil, ErrRunNotFound
}
func (NopStore) List(context.Context, int) ([]*Record, error) { return nil, nil }
func (NopStore) Close() error                                 { return nil }
