package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/atlasforge/agentmesh/pkg/models"
)

// ---- tenant channels ----

type channelStore struct{ db *sql.DB }

func (c *channelStore) Create(ctx context.Context, tenantID string, ch *models.ChannelInstance) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ch.CreatedAt, ch.UpdatedAt = now, now
	cfg, err := json.Marshal(ch.Config)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO tenant_channels
		(id,tenant_id,channel_type,enabled,agent_name,config,status,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`, ch.ID, tenantID, ch.Type, ch.Enabled, ch.AgentName, string(cfg), ch.Status,
		ch.CreatedAt.Format(time.RFC3339), ch.UpdatedAt.Format(time.RFC3339))
	return err
}

func scanChannel(row interface{ Scan(...any) error }) (*models.ChannelInstance, error) {
	var ch models.ChannelInstance
	var cfg string
	var createdAt, updatedAt string
	if err := row.Scan(&ch.ID, &ch.Type, &ch.Enabled, &ch.AgentName, &cfg, &ch.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(cfg), &ch.Config)
	ch.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ch.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &ch, nil
}

const channelCols = `id,channel_type,enabled,agent_name,config,status,created_at,updated_at`

func (c *channelStore) Get(ctx context.Context, tenantID, id string) (*models.ChannelInstance, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+channelCols+` FROM tenant_channels WHERE tenant_id=? AND id=?`, tenantID, id)
	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ch, err
}

func (c *channelStore) List(ctx context.Context, tenantID string) ([]*models.ChannelInstance, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+channelCols+` FROM tenant_channels WHERE tenant_id=? ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ChannelInstance
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (c *channelStore) Update(ctx context.Context, tenantID string, ch *models.ChannelInstance) error {
	ch.UpdatedAt = time.Now().UTC()
	cfg, err := json.Marshal(ch.Config)
	if err != nil {
		return err
	}
	res, err := c.db.ExecContext(ctx, `UPDATE tenant_channels SET channel_type=?,enabled=?,agent_name=?,config=?,status=?,updated_at=?
		WHERE tenant_id=? AND id=?`, ch.Type, ch.Enabled, ch.AgentName, string(cfg), ch.Status,
		ch.UpdatedAt.Format(time.RFC3339), tenantID, ch.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (c *channelStore) Delete(ctx context.Context, tenantID, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM tenant_channels WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ---- tenant agents ----

type tenantAgentStore struct{ db *sql.DB }

func (a *tenantAgentStore) Create(ctx context.Context, tenantID string, ag *models.Agent) error {
	if ag.ID == "" {
		ag.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ag.CreatedAt, ag.UpdatedAt = now, now
	_, err := a.db.ExecContext(ctx, `INSERT INTO tenant_agents
		(tenant_id,name,role,description,provider,model,system_prompt,enabled,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`, tenantID, ag.Name, ag.Role, ag.Description, ag.Provider, ag.Model,
		ag.SystemPrompt, ag.Enabled, ag.CreatedAt.Format(time.RFC3339), ag.UpdatedAt.Format(time.RFC3339))
	return err
}

const agentCols = `name,role,description,provider,model,system_prompt,enabled,created_at,updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*models.Agent, error) {
	var ag models.Agent
	var createdAt, updatedAt string
	if err := row.Scan(&ag.Name, &ag.Role, &ag.Description, &ag.Provider, &ag.Model, &ag.SystemPrompt,
		&ag.Enabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	ag.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ag.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &ag, nil
}

func (a *tenantAgentStore) Get(ctx context.Context, tenantID, name string) (*models.Agent, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+agentCols+` FROM tenant_agents WHERE tenant_id=? AND name=?`, tenantID, name)
	ag, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ag, err
}

func (a *tenantAgentStore) List(ctx context.Context, tenantID string) ([]*models.Agent, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT `+agentCols+` FROM tenant_agents WHERE tenant_id=? ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Agent
	for rows.Next() {
		ag, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ag)
	}
	return out, rows.Err()
}

func (a *tenantAgentStore) Update(ctx context.Context, tenantID string, ag *models.Agent) error {
	ag.UpdatedAt = time.Now().UTC()
	res, err := a.db.ExecContext(ctx, `UPDATE tenant_agents SET role=?,description=?,provider=?,model=?,
		system_prompt=?,enabled=?,updated_at=? WHERE tenant_id=? AND name=?`,
		ag.Role, ag.Description, ag.Provider, ag.Model, ag.SystemPrompt, ag.Enabled,
		ag.UpdatedAt.Format(time.RFC3339), tenantID, ag.Name)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (a *tenantAgentStore) Delete(ctx context.Context, tenantID, name string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM tenant_agents WHERE tenant_id=? AND name=?`, tenantID, name)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ---- tenant configs ----

type configStore struct{ db *sql.DB }

func (c *configStore) Set(ctx context.Context, tenantID, key, value string) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO tenant_configs (tenant_id,key,value) VALUES (?,?,?)
		ON CONFLICT(tenant_id,key) DO UPDATE SET value=excluded.value`, tenantID, key, value)
	return err
}

func (c *configStore) Get(ctx context.Context, tenantID, key string) (string, error) {
	var v string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM tenant_configs WHERE tenant_id=? AND key=?`, tenantID, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return v, err
}

func (c *configStore) List(ctx context.Context, tenantID string) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key,value FROM tenant_configs WHERE tenant_id=?`, tenantID)
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

func (c *configStore) Delete(ctx context.Context, tenantID, key string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM tenant_configs WHERE tenant_id=? AND key=?`, tenantID, key)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ---- password resets ----

type resetStore struct{ db *sql.DB }

func (r *resetStore) Create(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO password_resets (token,user_id,expires_at,consumed) VALUES (?,?,?,0)`,
		token, userID, expiresAt.Format(time.RFC3339))
	return err
}

func (r *resetStore) Consume(ctx context.Context, token string) (string, error) {
	var userID, expiresAt string
	var consumed bool
	err := r.db.QueryRowContext(ctx, `SELECT user_id,expires_at,consumed FROM password_resets WHERE token=?`, token).
		Scan(&userID, &expiresAt, &consumed)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if consumed {
		return "", ErrNotFound
	}
	exp, _ := time.Parse(time.RFC3339, expiresAt)
	if time.Now().UTC().After(exp) {
		return "", ErrNotFound
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE password_resets SET consumed=1 WHERE token=?`, token); err != nil {
		return "", err
	}
	return userID, nil
}
