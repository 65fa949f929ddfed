package storage

import (
	"context"
	"sync"
	"time"

	"github.com/daryltucker/forecast-runner/internal/model"
	"github.com/google/uuid"
)

// Memory is an in-process Store. Runs are lost on exit.
type Memory struct {
	mu   sync.Mutex
	runs []RunRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveRun(ctx context.Context, run Run, metrics []model.Metric) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &PersistenceError{Op: "save run", Err: err}
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := RunRecord{
		ID:           uuid.NewString(),
		User:         run.User,
		DatasetRef:   run.DatasetRef,
		ScriptName:   run.ScriptName,
		SourceFile:   run.SourceFile,
		ScriptDigest: run.ScriptDigest,
		CreatedAt:    run.CreatedAt,
		Metrics:      append([]model.Metric(nil), metrics...),
	}
	m.runs = append(m.runs, rec)
	return rec.ID, nil
}

// ListRuns returns the user's runs, newest first, optionally filtered by dataset.
func (m *Memory) ListRuns(ctx context.Context, user, datasetRef string) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RunRecord
	for i := len(m.runs) - 1; i >= 0; i-- {
		r := m.runs[i]
		if r.User != user {
			continue
		}
		if datasetRef != "" && r.DatasetRef != datasetRef && r.SourceFile != datasetRef {
			continue
		}
		r.Metrics = append([]model.Metric(nil), r.Metrics...)
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
