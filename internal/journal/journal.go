// Package journal records provisioning and teardown runs in a local SQLite
// database so past activity can be inspected without touching the cloud APIs.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Journal is a SQLite-backed run log.
type Journal struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

// Run outcomes.
const (
	OutcomeProvisioned = "provisioned"
	OutcomeSkipped     = "skipped"
	OutcomeRolledBack  = "rolled-back"
	OutcomeDeleted     = "deleted"
	OutcomeFailed      = "failed"
)

// Run is one recorded invocation.
type Run struct {
	ID         string
	Action     string
	Outcome    string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Resources  []Resource
}

// Resource is one cloud resource a run created.
type Resource struct {
	Kind string // "instance", "volume" or "alarm"
	ID   string
}

// Open opens (or creates) the journal database at path and applies migrations.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := j.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Begin records the start of a run and returns its id.
func (j *Journal) Begin(ctx context.Context, action string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, action, outcome, started_at) VALUES (?, ?, '', ?)`,
		id, action, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// Finish records a run's outcome and the resources it created. runErr may be
// nil. Finish never partially records: the outcome row and resource rows land
// in one transaction.
func (j *Journal) Finish(ctx context.Context, runID, outcome string, runErr error, resources []Resource) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET outcome = ?, error = ?, finished_at = ? WHERE id = ?`,
		outcome, errText, time.Now().UTC().Format(time.RFC3339), runID)
	if err != nil {
		return fmt.Errorf("record run outcome: %w", err)
	}
	for _, r := range resources {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO resources (run_id, kind, resource_id) VALUES (?, ?, ?)`,
			runID, r.Kind, r.ID)
		if err != nil {
			return fmt.Errorf("record resource %s/%s: %w", r.Kind, r.ID, err)
		}
	}
	return tx.Commit()
}

// History returns the most recent runs, newest first, with their resources.
func (j *Journal) History(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, action, outcome, COALESCE(error, ''), started_at, COALESCE(finished_at, '')
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Action, &r.Outcome, &r.Error, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		res, err := j.resources(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Resources = res
	}
	return runs, nil
}

func (j *Journal) resources(ctx context.Context, runID string) ([]Resource, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT kind, resource_id FROM resources WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.Kind, &r.ID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
