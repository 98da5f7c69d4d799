package models

import "time"

// Credential is the resolved form of a caller-supplied API key.
// Revocation is re-checked on every request, never cached.
type Credential struct {
	ID       int       `json:"id"`
	TenantID int       `json:"tenant_id"`
	Key      string    `json:"-"`
	Revoked  bool      `json:"revoked"`
	Created  time.Time `json:"created_at"`
}

// PromptVersion is one immutable, published prompt template. Legacy rows
// carry the whole prompt in Template with an empty SystemPrompt; resolution
// normalizes both storage generations to this shape.
type PromptVersion struct {
	ID           string `json:"id"`
	TenantID     int    `json:"tenant_id"`
	SystemPrompt string `json:"system_prompt"`
	Template     string `json:"template"`
	Published    bool   `json:"published"`
}

// ExecutionRequest is the parsed body of POST /api/v1/execute.
type ExecutionRequest struct {
	VersionID      string            `json:"version_id"`
	ABVersionID    string            `json:"ab_version_id,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
	RequiredSchema map[string]string `json:"required_schema,omitempty"`
}

// RouterResult is the outcome of one successful model execution.
// CostMicroUSD is integer micro-USD (1,000,000 = $1.00) so telemetry
// sums stay exact.
type RouterResult struct {
	Output       string `json:"output"`
	ModelUsed    string `json:"model_used"`
	TokensInput  int64  `json:"tokens_input"`
	TokensOutput int64  `json:"tokens_output"`
	CostMicroUSD int64  `json:"cost_micro_usd"`
}

// TelemetryRecord is one append-only execution row. Writes are best-effort.
type TelemetryRecord struct {
	VersionID    string `json:"version_id,omitempty"`
	KeyID        int    `json:"key_id"`
	LatencyMs    int64  `json:"latency_ms"`
	ModelUsed    string `json:"model_used"`
	CacheHit     bool   `json:"cache_hit"`
	TokensInput  int64  `json:"tokens_input"`
	TokensOutput int64  `json:"tokens_output"`
	CostMicroUSD int64  `json:"cost_micro_usd"`
	ABVariant    string `json:"ab_variant,omitempty"`
}

// UsageStats is the aggregated read side of telemetry for one tenant.
type UsageStats struct {
	TenantID          int   `json:"tenant_id"`
	Requests          int64 `json:"requests"`
	CacheHits         int64 `json:"cache_hits"`
	TotalTokensInput  int64 `json:"total_tokens_input"`
	TotalTokensOutput int64 `json:"total_tokens_output"`
	TotalCostMicroUSD int64 `json:"total_cost_micro_usd"`
}

// CacheStats reports hit/miss totals across all tenants.
type CacheStats struct {
	Requests int64 `json:"requests"`
	Hits     int64 `json:"hits"`
}
