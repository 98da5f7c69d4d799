package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/promptops/prompt-gateway/internal/models"
)

var ErrNotFound = errors.New("not found")

func (db *DB) GetCredentialByKey(ctx context.Context, apiKey string) (*models.Credential, error) {
	query := `
        SELECT id, tenant_id, api_key, revoked, created_at
        FROM api_keys
        WHERE api_key = $1
    `

	var cred models.Credential
	err := db.Pool.QueryRow(ctx, query, apiKey).Scan(
		&cred.ID,
		&cred.TenantID,
		&cred.Key,
		&cred.Revoked,
		&cred.Created,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &cred, nil
}

// GetPromptVersion resolves a version id against the structured table first,
// then the legacy single-column table. Both generations normalize to
// {SystemPrompt, Template}; legacy rows have an empty system prompt.
func (db *DB) GetPromptVersion(ctx context.Context, tenantID int, versionID string) (*models.PromptVersion, error) {
	query := `
        SELECT id, tenant_id, system_prompt, template, published
        FROM prompt_versions
        WHERE id = $1 AND tenant_id = $2 AND published = true
    `

	var v models.PromptVersion
	err := db.Pool.QueryRow(ctx, query, versionID, tenantID).Scan(
		&v.ID,
		&v.TenantID,
		&v.SystemPrompt,
		&v.Template,
		&v.Published,
	)
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Legacy fallback form.
	legacy := `
        SELECT version_id, tenant_id, content
        FROM prompts
        WHERE version_id = $1 AND tenant_id = $2
    `

	v = models.PromptVersion{Published: true}
	err = db.Pool.QueryRow(ctx, legacy, versionID, tenantID).Scan(
		&v.ID,
		&v.TenantID,
		&v.Template,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &v, nil
}

// ListVersionIDs returns up to limit published version ids owned by the
// tenant, newest first. Used for 404 debug hints only.
func (db *DB) ListVersionIDs(ctx context.Context, tenantID, limit int) ([]string, error) {
	query := `
        SELECT id
        FROM prompt_versions
        WHERE tenant_id = $1 AND published = true
        ORDER BY created_at DESC
        LIMIT $2
    `

	rows, err := db.Pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *DB) InsertTelemetry(ctx context.Context, rec *models.TelemetryRecord) error {
	query := `
        INSERT INTO execution_logs
            (version_id, key_id, latency_ms, model_used, cache_hit,
             tokens_input, tokens_output, cost_micro_usd, ab_variant)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	versionID := any(rec.VersionID)
	if rec.VersionID == "" {
		versionID = nil
	}
	abVariant := any(rec.ABVariant)
	if rec.ABVariant == "" {
		abVariant = nil
	}

	_, err := db.Pool.Exec(ctx, query,
		versionID,
		rec.KeyID,
		rec.LatencyMs,
		rec.ModelUsed,
		rec.CacheHit,
		rec.TokensInput,
		rec.TokensOutput,
		rec.CostMicroUSD,
		abVariant,
	)

	return err
}

func (db *DB) GetUsageStats(ctx context.Context, tenantID int, from, to string) (*models.UsageStats, error) {
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE l.cache_hit),
               COALESCE(SUM(l.tokens_input), 0),
               COALESCE(SUM(l.tokens_output), 0),
               COALESCE(SUM(l.cost_micro_usd), 0)
        FROM execution_logs l
        JOIN api_keys k ON k.id = l.key_id
        WHERE k.tenant_id = $1
    `
	args := []any{tenantID}

	if from != "" {
		args = append(args, from)
		query += fmt.Sprintf(" AND l.created_at >= $%d::date", len(args))
	}
	if to != "" {
		args = append(args, to)
		query += fmt.Sprintf(" AND l.created_at < $%d::date + interval '1 day'", len(args))
	}

	stats := &models.UsageStats{TenantID: tenantID}
	err := db.Pool.QueryRow(ctx, query, args...).Scan(
		&stats.Requests,
		&stats.CacheHits,
		&stats.TotalTokensInput,
		&stats.TotalTokensOutput,
		&stats.TotalCostMicroUSD,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (db *DB) GetCacheStats(ctx context.Context) (*models.CacheStats, error) {
	query := `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE cache_hit)
        FROM execution_logs
    `

	var stats models.CacheStats
	if err := db.Pool.QueryRow(ctx, query).Scan(&stats.Requests, &stats.Hits); err != nil {
		return nil, err
	}

	return &stats, nil
}
