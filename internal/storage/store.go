// Package storage persists completed forecast runs and their metrics.
package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/daryltucker/forecast-runner/internal/model"
	"golang.org/x/crypto/blake2b"
)

// Run is a completed (script, dataset) pair to record.
type Run struct {
	User         string
	DatasetRef   string // empty when the dataset was an ad-hoc upload
	ScriptName   string
	SourceFile   string // uploaded CSV name, empty for stored datasets
	ScriptDigest string
	CreatedAt    time.Time
}

// RunRecord is a persisted run with its metrics.
type RunRecord struct {
	ID           string         `json:"id"`
	User         string         `json:"user"`
	DatasetRef   string         `json:"dataset,omitempty"`
	ScriptName   string         `json:"script_name"`
	SourceFile   string         `json:"csv_file_name,omitempty"`
	ScriptDigest string         `json:"script_digest,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Metrics      []model.Metric `json:"metrics"`
}

// Store records runs.
type Store interface {
	SaveRun(ctx context.Context, run Run, metrics []model.Metric) (string, error)
	ListRuns(ctx context.Context, user, datasetRef string) ([]RunRecord, error)
	Close() error
}

// PersistenceError wraps a failure of the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Digest fingerprints script source so identical uploads can be grouped.
func Digest(src []byte) string {
	sum := blake2b.Sum256(src)
	return hex.EncodeToString(sum[:])
}
