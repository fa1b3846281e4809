package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// Store persists scheduler Tasks for one tenant, one SQLite file under
// the tenant's on-disk directory.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a tenant's scheduler database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open scheduler db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		at TEXT,
		every_secs INTEGER,
		cron_expr TEXT,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		run_count INTEGER NOT NULL DEFAULT 0,
		last_run TEXT,
		next_run TEXT
	)`)
	if err != nil {
		return fmt.Errorf("migrate scheduler db: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Create persists a new task, assigning an id if absent and computing
// its initial NextRun.
func (s *Store) Create(ctx context.Context, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := InitialNextRun(t, time.Now().UTC()); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = models.TaskPending
	}
	return s.upsert(ctx, t)
}

func (s *Store) upsert(ctx context.Context, t *models.Task) error {
	actionJSON, err := json.Marshal(t.Action)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks
		(id,name,type,at,every_secs,cron_expr,action,status,enabled,run_count,last_run,next_run)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, type=excluded.type, at=excluded.at,
			every_secs=excluded.every_secs, cron_expr=excluded.cron_expr, action=excluded.action,
			status=excluded.status, enabled=excluded.enabled, run_count=excluded.run_count,
			last_run=excluded.last_run, next_run=excluded.next_run`,
		t.ID, t.Name, t.Type, formatTime(t.At), t.EverySecs, t.CronExpr, string(actionJSON),
		t.Status, t.Enabled, t.RunCount, formatTime(t.LastRun), formatTime(t.NextRun))
	return err
}

// Update persists changes to an existing task (used by the tick loop
// after a task fires).
func (s *Store) Update(ctx context.Context, t *models.Task) error {
	return s.upsert(ctx, t)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

const taskCols = `id,name,type,at,every_secs,cron_expr,action,status,enabled,run_count,last_run,next_run`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	var t models.Task
	var at, lastRun, nextRun, actionJSON sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &t.Type, &at, &t.EverySecs, &t.CronExpr, &actionJSON,
		&t.Status, &t.Enabled, &t.RunCount, &lastRun, &nextRun); err != nil {
		return nil, err
	}
	t.At = parseTime(at.String)
	t.LastRun = parseTime(lastRun.String)
	t.NextRun = parseTime(nextRun.String)
	_ = json.Unmarshal([]byte(actionJSON.String), &t.Action)
	return &t, nil
}

// Get retrieves a task by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	return t, err
}

// List returns every task ordered by name.
func (s *Store) List(ctx context.Context) ([]*models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Due returns every enabled task whose NextRun has arrived as of now.
func (s *Store) Due(ctx context.Context, now time.Time) ([]*models.Task, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var due []*models.Task
	for _, t := range all {
		if ShouldRun(t, now) {
			due = append(due, t)
		}
	}
	return due, nil
}

// Delete removes a task.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
