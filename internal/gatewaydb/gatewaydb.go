// Package gatewaydb implements the per-tenant database: provider records,
// agent configurations, channel bindings, and free-form settings. Exactly
// one file exists per tenant, opened by cmd/gateway at startup.
package gatewaydb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// DB is the per-tenant gateway database.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) a tenant's gateway database and seeds
// default provider rows if the providers table is empty.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open gateway db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := d.seedDefaultProviders(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS providers (
			name TEXT PRIMARY KEY,
			label TEXT,
			icon TEXT,
			type TEXT,
			base_url TEXT,
			chat_path TEXT,
			models_path TEXT,
			auth_style TEXT,
			env_keys TEXT,
			api_key TEXT,
			models TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			name TEXT PRIMARY KEY,
			role TEXT,
			description TEXT,
			provider TEXT,
			model TEXT,
			system_prompt TEXT,
			enabled INTEGER NOT NULL DEFAULT 1,
			channel_bindings TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channel_instances (
			id TEXT PRIMARY KEY,
			channel_type TEXT NOT NULL,
			enabled INTEGER NOT NULL,
			agent_name TEXT,
			config TEXT,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			trigger TEXT NOT NULL,
			trigger_config TEXT,
			action TEXT,
			priority INTEGER NOT NULL DEFAULT 100,
			cooldown_secs INTEGER NOT NULL DEFAULT 0,
			last_triggered TEXT,
			run_count INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("migrate gateway db: %w", err)
		}
	}
	return nil
}

func (d *DB) seedDefaultProviders() error {
	var count int
	if err := d.db.QueryRow(`SELECT COUNT(1) FROM providers`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, p := range defaultProviderCatalog() {
		if err := d.UpsertProvider(context.Background(), p); err != nil {
			return err
		}
	}
	return nil
}

// defaultProviderCatalog returns the seed rows written into a freshly
// created tenant database. The authoritative compile-time catalog (with
// richer model lists) lives in internal/providers; this keeps the DB
// self-describing per spec even before the gateway process attaches it.
func defaultProviderCatalog() []*models.ProviderRecord {
	return []*models.ProviderRecord{
		{Name: "openai", Label: "OpenAI", Type: models.ProviderTypeCloud, BaseURL: "https://api.openai.com/v1",
			ChatPath: "/chat/completions", ModelsPath: "/models", AuthStyle: models.AuthBearer,
			EnvKeys: []string{"OPENAI_API_KEY"}},
		{Name: "anthropic", Label: "Anthropic", Type: models.ProviderTypeCloud, BaseURL: "https://api.anthropic.com/v1",
			ChatPath: "/messages", ModelsPath: "/models", AuthStyle: models.AuthHeaderKeyed,
			EnvKeys: []string{"ANTHROPIC_API_KEY"}},
		{Name: "ollama", Label: "Ollama", Type: models.ProviderTypeLocal, BaseURL: "http://localhost:11434",
			ChatPath: "/v1/chat/completions", ModelsPath: "/api/tags", AuthStyle: models.AuthNone},
		{Name: "brain", Label: "Local Brain", Type: models.ProviderTypeLocal, BaseURL: "http://localhost:8089",
			ChatPath: "/v1/chat/completions", ModelsPath: "", AuthStyle: models.AuthNone},
	}
}

// Close releases the underlying database handle.
func (d *DB) Close() error { return d.db.Close() }

// ---- providers ----

func (d *DB) UpsertProvider(ctx context.Context, p *models.ProviderRecord) error {
	envKeys, err := json.Marshal(p.EnvKeys)
	if err != nil {
		return err
	}
	modelsJSON, err := json.Marshal(p.CachedModels)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `INSERT INTO providers
		(name,label,icon,type,base_url,chat_path,models_path,auth_style,env_keys,api_key,models)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET label=excluded.label, icon=excluded.icon, type=excluded.type,
			base_url=excluded.base_url, chat_path=excluded.chat_path, models_path=excluded.models_path,
			auth_style=excluded.auth_style, env_keys=excluded.env_keys, api_key=excluded.api_key, models=excluded.models`,
		p.Name, p.Label, p.Icon, p.Type, p.BaseURL, p.ChatPath, p.ModelsPath, p.AuthStyle, string(envKeys), p.APIKey, string(modelsJSON))
	return err
}

func (d *DB) GetProvider(ctx context.Context, name string) (*models.ProviderRecord, error) {
	row := d.db.QueryRowContext(ctx, `SELECT name,label,icon,type,base_url,chat_path,models_path,auth_style,env_keys,api_key,models
		FROM providers WHERE name=?`, name)
	return scanProvider(row)
}

func (d *DB) ListProviders(ctx context.Context) ([]*models.ProviderRecord, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name,label,icon,type,base_url,chat_path,models_path,auth_style,env_keys,api_key,models FROM providers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ProviderRecord
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) DeleteProvider(ctx context.Context, name string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM providers WHERE name=?`, name)
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

func scanProvider(row interface{ Scan(...any) error }) (*models.ProviderRecord, error) {
	var p models.ProviderRecord
	var envKeys, modelsJSON string
	if err := row.Scan(&p.Name, &p.Label, &p.Icon, &p.Type, &p.BaseURL, &p.ChatPath, &p.ModelsPath, &p.AuthStyle, &envKeys, &p.APIKey, &modelsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal([]byte(envKeys), &p.EnvKeys)
	_ = json.Unmarshal([]byte(modelsJSON), &p.CachedModels)
	return &p, nil
}

// ---- agents ----

func (d *DB) UpsertAgent(ctx context.Context, a *models.Agent) error {
	bindings, err := json.Marshal(a.ChannelBindings)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = d.db.ExecContext(ctx, `INSERT INTO agents
		(name,role,description,provider,model,system_prompt,enabled,channel_bindings,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET role=excluded.role, description=excluded.description,
			provider=excluded.provider, model=excluded.model, system_prompt=excluded.system_prompt,
			enabled=excluded.enabled, channel_bindings=excluded.channel_bindings, updated_at=excluded.updated_at`,
		a.Name, a.Role, a.Description, a.Provider, a.Model, a.SystemPrompt, a.Enabled, string(bindings), now, now)
	return err
}

func (d *DB) GetAgent(ctx context.Context, name string) (*models.Agent, error) {
	row := d.db.QueryRowContext(ctx, `SELECT name,role,description,provider,model,system_prompt,enabled,channel_bindings,created_at,updated_at
		FROM agents WHERE name=?`, name)
	return scanGatewayAgent(row)
}

func (d *DB) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name,role,description,provider,model,system_prompt,enabled,channel_bindings,created_at,updated_at FROM agents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Agent
	for rows.Next() {
		a, err := scanGatewayAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *DB) DeleteAgent(ctx context.Context, name string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM agents WHERE name=?`, name)
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

func scanGatewayAgent(row interface{ Scan(...any) error }) (*models.Agent, error) {
	var a models.Agent
	var bindings, createdAt, updatedAt string
	if err := row.Scan(&a.Name, &a.Role, &a.Description, &a.Provider, &a.Model, &a.SystemPrompt, &a.Enabled, &bindings, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal([]byte(bindings), &a.ChannelBindings)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

// ---- settings (free-form KV) ----

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO settings (key,value) VALUES (?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	return v, err
}

func (d *DB) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key,value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (d *DB) DeleteSetting(ctx context.Context, key string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM settings WHERE key=?`, key)
	return err
}

// ---- channel instances ----

func (d *DB) UpsertChannelInstance(ctx context.Context, c *models.ChannelInstance) error {
	cfg, err := json.Marshal(c.Config)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = time.Now().UTC()
	_, err = d.db.ExecContext(ctx, `INSERT INTO channel_instances
		(id,channel_type,enabled,agent_name,config,status,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET channel_type=excluded.channel_type, enabled=excluded.enabled,
			agent_name=excluded.agent_name, config=excluded.config, status=excluded.status, updated_at=excluded.updated_at`,
		c.ID, c.Type, c.Enabled, c.AgentName, string(cfg), c.Status, c.CreatedAt.Format(time.RFC3339), now)
	return err
}

func (d *DB) GetChannelInstance(ctx context.Context, id string) (*models.ChannelInstance, error) {
	row := d.db.QueryRowContext(ctx, `SELECT id,channel_type,enabled,agent_name,config,status,created_at,updated_at
		FROM channel_instances WHERE id=?`, id)
	return scanChannelInstance(row)
}

func (d *DB) ListChannelInstances(ctx context.Context) ([]*models.ChannelInstance, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id,channel_type,enabled,agent_name,config,status,created_at,updated_at FROM channel_instances`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ChannelInstance
	for rows.Next() {
		c, err := scanChannelInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) DeleteChannelInstance(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM channel_instances WHERE id=?`, id)
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

func scanChannelInstance(row interface{ Scan(...any) error }) (*models.ChannelInstance, error) {
	var c models.ChannelInstance
	var cfg, createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.Type, &c.Enabled, &c.AgentName, &cfg, &c.Status, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal([]byte(cfg), &c.Config)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

// ---- workflow rules ----

func (d *DB) UpsertWorkflowRule(ctx context.Context, r *models.WorkflowRule) error {
	cfg, err := json.Marshal(r.TriggerConfig)
	if err != nil {
		return err
	}
	action, err := json.Marshal(r.Action)
	if err != nil {
		return err
	}
	var lastTriggered string
	if !r.LastTriggered.IsZero() {
		lastTriggered = r.LastTriggered.Format(time.RFC3339)
	}
	_, err = d.db.ExecContext(ctx, `INSERT INTO workflow_rules
		(id,name,trigger,trigger_config,action,priority,cooldown_secs,last_triggered,run_count)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, trigger=excluded.trigger,
			trigger_config=excluded.trigger_config, action=excluded.action, priority=excluded.priority,
			cooldown_secs=excluded.cooldown_secs, last_triggered=excluded.last_triggered, run_count=excluded.run_count`,
		r.ID, r.Name, r.Trigger, string(cfg), string(action), r.Priority, r.CooldownSecs, lastTriggered, r.RunCount)
	return err
}

func (d *DB) GetWorkflowRule(ctx context.Context, id string) (*models.WorkflowRule, error) {
	row := d.db.QueryRowContext(ctx, `SELECT id,name,trigger,trigger_config,action,priority,cooldown_secs,last_triggered,run_count
		FROM workflow_rules WHERE id=?`, id)
	return scanWorkflowRule(row)
}

func (d *DB) ListWorkflowRules(ctx context.Context) ([]*models.WorkflowRule, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id,name,trigger,trigger_config,action,priority,cooldown_secs,last_triggered,run_count FROM workflow_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.WorkflowRule
	for rows.Next() {
		r, err := scanWorkflowRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) DeleteWorkflowRule(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM workflow_rules WHERE id=?`, id)
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

func scanWorkflowRule(row interface{ Scan(...any) error }) (*models.WorkflowRule, error) {
	var r models.WorkflowRule
	var cfg, action, lastTriggered string
	if err := row.Scan(&r.ID, &r.Name, &r.Trigger, &cfg, &action, &r.Priority, &r.CooldownSecs, &lastTriggered, &r.RunCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal([]byte(cfg), &r.TriggerConfig)
	_ = json.Unmarshal([]byte(action), &r.Action)
	if lastTriggered != "" {
		r.LastTriggered, _ = time.Parse(time.RFC3339, lastTriggered)
	}
	return &r, nil
}
