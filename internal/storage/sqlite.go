package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"github.com/atlasforge/agentmesh/pkg/models"
)

// SQLiteStore is the platform DB: tenants, users, audit log, and per-tenant
// channel/agent/config mirrors, all in one file with WAL enabled.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the platform database at path and
// runs schema migrations.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // one connection: every statement, read or write, runs one at a time
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			slug TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			port INTEGER UNIQUE NOT NULL,
			status TEXT NOT NULL,
			pairing_code TEXT,
			provider TEXT,
			model TEXT,
			pid INTEGER,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL,
			tenant_id TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS password_resets (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			consumed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			details TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_channels (
			id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			channel_type TEXT NOT NULL,
			enabled INTEGER NOT NULL,
			agent_name TEXT,
			config TEXT,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (tenant_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_agents (
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT,
			description TEXT,
			provider TEXT,
			model TEXT,
			system_prompt TEXT,
			enabled INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (tenant_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_configs (
			tenant_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (tenant_id, key)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Tenants() TenantStore             { return &tenantStore{db: s.db} }
func (s *SQLiteStore) Users() UserStore                 { return &userStore{db: s.db} }
func (s *SQLiteStore) Channels() ChannelStore           { return &channelStore{db: s.db} }
func (s *SQLiteStore) TenantAgents() TenantAgentStore   { return &tenantAgentStore{db: s.db} }
func (s *SQLiteStore) Configs() ConfigStore             { return &configStore{db: s.db} }
func (s *SQLiteStore) PasswordResets() PasswordResetStore { return &resetStore{db: s.db} }
func (s *SQLiteStore) Audit() AuditStore                { return &auditStore{db: s.db} }

// ---- tenants ----

type tenantStore struct{ db *sql.DB }

func (t *tenantStore) Create(ctx context.Context, tn *models.Tenant) error {
	if tn.ID == "" {
		tn.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tn.CreatedAt, tn.UpdatedAt = now, now
	_, err := t.db.ExecContext(ctx, `INSERT INTO tenants
		(id, slug, name, owner_id, port, status, pairing_code, provider, model, pid, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		tn.ID, tn.Slug, tn.Name, tn.OwnerID, tn.Port, tn.Status, tn.PairingCode, tn.Provider, tn.Model, tn.PID,
		tn.CreatedAt.Format(time.RFC3339), tn.UpdatedAt.Format(time.RFC3339))
	return err
}

func scanTenant(row interface{ Scan(...any) error }) (*models.Tenant, error) {
	var tn models.Tenant
	var pairingCode sql.NullString
	var pid sql.NullInt64
	var createdAt, updatedAt string
	if err := row.Scan(&tn.ID, &tn.Slug, &tn.Name, &tn.OwnerID, &tn.Port, &tn.Status,
		&pairingCode, &tn.Provider, &tn.Model, &pid, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if pairingCode.Valid {
		tn.PairingCode = &pairingCode.String
	}
	if pid.Valid {
		p := int(pid.Int64)
		tn.PID = &p
	}
	tn.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tn.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &tn, nil
}

const tenantCols = `id, slug, name, owner_id, port, status, pairing_code, provider, model, pid, created_at, updated_at`

func (t *tenantStore) Get(ctx context.Context, id string) (*models.Tenant, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id = ?`, id)
	tn, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return tn, err
}

func (t *tenantStore) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+tenantCols+` FROM tenants WHERE slug = ?`, slug)
	tn, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return tn, err
}

func (t *tenantStore) List(ctx context.Context, ownerID string) ([]*models.Tenant, error) {
	var rows *sql.Rows
	var err error
	if ownerID == "" {
		rows, err = t.db.QueryContext(ctx, `SELECT `+tenantCols+` FROM tenants ORDER BY created_at`)
	} else {
		rows, err = t.db.QueryContext(ctx, `SELECT `+tenantCols+` FROM tenants WHERE owner_id = ? ORDER BY created_at`, ownerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Tenant
	for rows.Next() {
		tn, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tn)
	}
	return out, rows.Err()
}

func (t *tenantStore) Update(ctx context.Context, tn *models.Tenant) error {
	tn.UpdatedAt = time.Now().UTC()
	res, err := t.db.ExecContext(ctx, `UPDATE tenants SET slug=?, name=?, owner_id=?, port=?, status=?,
		pairing_code=?, provider=?, model=?, pid=?, updated_at=? WHERE id=?`,
		tn.Slug, tn.Name, tn.OwnerID, tn.Port, tn.Status, tn.PairingCode, tn.Provider, tn.Model, tn.PID,
		tn.UpdatedAt.Format(time.RFC3339), tn.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (t *tenantStore) Delete(ctx context.Context, id string) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM tenants WHERE id=?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (t *tenantStore) UsedPorts(ctx context.Context) (map[int]bool, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT port FROM tenants`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	used := make(map[int]bool)
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		used[p] = true
	}
	return used, rows.Err()
}

func (t *tenantStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tenants WHERE slug=?`, slug).Scan(&n)
	return n > 0, err
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- users ----

type userStore struct{ db *sql.DB }

func (u *userStore) Create(ctx context.Context, usr *models.User) error {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	usr.CreatedAt, usr.UpdatedAt = now, now
	_, err := u.db.ExecContext(ctx, `INSERT INTO users (id,email,password_hash,role,status,tenant_id,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?)`, usr.ID, usr.Email, usr.PasswordHash, usr.Role, usr.Status, usr.TenantID,
		usr.CreatedAt.Format(time.RFC3339), usr.UpdatedAt.Format(time.RFC3339))
	return err
}

const userCols = `id,email,password_hash,role,status,tenant_id,created_at,updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var usr models.User
	var tenantID sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash, &usr.Role, &usr.Status, &tenantID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if tenantID.Valid {
		usr.TenantID = &tenantID.String
	}
	usr.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	usr.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &usr, nil
}

func (u *userStore) Get(ctx context.Context, id string) (*models.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	usr, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return usr, err
}

func (u *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=?`, email)
	usr, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return usr, err
}

func (u *userStore) List(ctx context.Context) ([]*models.User, error) {
	rows, err := u.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.User
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, usr)
	}
	return out, rows.Err()
}

func (u *userStore) Update(ctx context.Context, usr *models.User) error {
	usr.UpdatedAt = time.Now().UTC()
	res, err := u.db.ExecContext(ctx, `UPDATE users SET email=?,password_hash=?,role=?,status=?,tenant_id=?,updated_at=? WHERE id=?`,
		usr.Email, usr.PasswordHash, usr.Role, usr.Status, usr.TenantID, usr.UpdatedAt.Format(time.RFC3339), usr.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (u *userStore) Delete(ctx context.Context, id string) error {
	res, err := u.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ---- audit ----

type auditStore struct{ db *sql.DB }

func (a *auditStore) Log(ctx context.Context, eventType, actorType, actorID, details string) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO audit_log (id,event_type,actor_type,actor_id,details,created_at)
		VALUES (?,?,?,?,?,?)`, uuid.NewString(), eventType, actorType, actorID, details, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (a *auditStore) List(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, `SELECT id,event_type,actor_type,actor_id,details,created_at
		FROM audit_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var details sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &r.EventType, &r.ActorType, &r.ActorID, &details, &createdAt); err != nil {
			return nil, err
		}
		r.Details = details.String
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
