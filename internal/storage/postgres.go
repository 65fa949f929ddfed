/*
PURPOSE:
  PostgreSQL implementation of Store. Each run is one row in forecast_runs and
  one row per metric in forecast_metrics.

REQUIREMENTS:
  User-specified:
  - Persist user, optional dataset reference, script name, optional CSV name,
    and the named metric values of every successful pair.

  Implementation-discovered:
  - A run and its metrics are written in one transaction.
  - Transient failures are retried with exponential backoff; constraint and
    syntax errors are not.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (through Store), internal/cli, internal/server
  - Dependencies: database/sql, github.com/lib/pq, github.com/cenkalti/backoff/v4

ERROR HANDLING:
  - All failures are returned as *PersistenceError.

USAGE:
  st, err := storage.OpenPostgres(ctx, dsn, 10*time.Second)
  id, err := st.SaveRun(ctx, run, metrics)
*/

package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/daryltucker/forecast-runner/internal/model"
	"github.com/lib/pq"
)

// Postgres stores runs in PostgreSQL.
type Postgres struct {
	db         *sql.DB
	newBackOff func() backoff.BackOff
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB, maxElapsed time.Duration) *Postgres {
	return &Postgres{
		db: db,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			return b
		},
	}
}

// OpenPostgres connects, checks the connection and creates missing tables.
func OpenPostgres(ctx context.Context, dsn string, maxElapsed time.Duration) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "ping", Err: err}
	}

	p := NewPostgres(db, maxElapsed)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// Migrate creates the tables if they don't exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS forecast_runs (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			dataset_ref TEXT,
			script_name TEXT NOT NULL,
			csv_file_name TEXT,
			script_digest TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return &PersistenceError{Op: "migrate", Err: err}
	}

	_, err = p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS forecast_metrics (
			id BIGSERIAL PRIMARY KEY,
			run_id BIGINT NOT NULL REFERENCES forecast_runs(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL
		)
	`)
	if err != nil {
		return &PersistenceError{Op: "migrate", Err: err}
	}
	return nil
}

// SaveRun inserts the run and its metrics, retrying transient failures.
func (p *Postgres) SaveRun(ctx context.Context, run Run, metrics []model.Metric) (string, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var id int64
	operation := func() error {
		var err error
		id, err = p.insert(ctx, run, metrics)
		if err != nil && permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(p.newBackOff(), ctx)); err != nil {
		return "", &PersistenceError{Op: "save run", Err: err}
	}
	return strconv.FormatInt(id, 10), nil
}

func (p *Postgres) insert(ctx context.Context, run Run, metrics []model.Metric) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO forecast_runs (
			user_id, dataset_ref, script_name, csv_file_name, script_digest, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, run.User, nullString(run.DatasetRef), run.ScriptName, nullString(run.SourceFile),
		run.ScriptDigest, run.CreatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO forecast_metrics (run_id, name, value) VALUES ($1, $2, $3)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx, id, m.Name, m.Value); err != nil {
			return 0, err
		}
	}

	return id, tx.Commit()
}

// ListRuns returns the user's runs with metrics, newest first.
func (p *Postgres) ListRuns(ctx context.Context, user, datasetRef string) ([]RunRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT r.id, r.user_id, r.dataset_ref, r.script_name, r.csv_file_name,
			r.script_digest, r.created_at, m.name, m.value
		FROM forecast_runs r
		LEFT JOIN forecast_metrics m ON m.run_id = r.id
		WHERE r.user_id = $1
			AND ($2 = '' OR r.dataset_ref = $2 OR r.csv_file_name = $2)
		ORDER BY r.created_at DESC, r.id DESC, m.id
	`, user, datasetRef)
	if err != nil {
		return nil, &PersistenceError{Op: "list runs", Err: err}
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			id                  int64
			rec                 RunRecord
			datasetRef, csvName sql.NullString
			metricName          sql.NullString
			metricValue         sql.NullFloat64
		)
		if err := rows.Scan(&id, &rec.User, &datasetRef, &rec.ScriptName, &csvName,
			&rec.ScriptDigest, &rec.CreatedAt, &metricName, &metricValue); err != nil {
			return nil, &PersistenceError{Op: "list runs", Err: err}
		}
		rec.ID = strconv.FormatInt(id, 10)
		rec.DatasetRef = datasetRef.String
		rec.SourceFile = csvName.String

		if len(out) == 0 || out[len(out)-1].ID != rec.ID {
			out = append(out, rec)
		}
		if metricName.Valid {
			last := &out[len(out)-1]
			last.Metrics = append(last.Metrics, model.Metric{Name: metricName.String, Value: metricValue.Float64})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list runs", Err: err}
	}
	return out, nil
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// permanent reports errors a retry cannot fix: integrity violations,
// syntax or access errors, and a cancelled context.
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23", "42":
			return true
		}
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
