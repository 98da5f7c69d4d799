// Package pipeline composes admission control, caching, routing, and
// telemetry into the single execution path used by both public endpoints.
// Per request the order is fixed: rate limit -> guardrail -> cache ->
// template -> router -> cache store -> telemetry. Each admission check is
// a hard gate; none is skipped based on cache state.
package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/promptops/prompt-gateway/internal/cache"
	"github.com/promptops/prompt-gateway/internal/db"
	"github.com/promptops/prompt-gateway/internal/guardrail"
	"github.com/promptops/prompt-gateway/internal/models"
	"github.com/promptops/prompt-gateway/internal/template"
)

// cliSystemPrompt is the fixed instruction for the raw-prompt endpoint,
// which has no stored template to supply one.
const cliSystemPrompt = "You are a helpful assistant. Answer the user's prompt directly and concisely."

const versionHintLimit = 5

// ScopeExecute and ScopeCLI are the two rate-limit classes; each endpoint
// has its own budget per credential.
const (
	ScopeExecute = "execute"
	ScopeCLI     = "cli"
)

// VersionStore resolves stored prompt versions. db.DB satisfies it.
type VersionStore interface {
	GetPromptVersion(ctx context.Context, tenantID int, versionID string) (*models.PromptVersion, error)
	ListVersionIDs(ctx context.Context, tenantID, limit int) ([]string, error)
}

// Limiter is the admission counter. ratelimit.RateLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, scope string, keyID, limit int, window time.Duration) (bool, error)
}

// Cache coalesces and stores execution results. cache.ResponseCache
// satisfies it.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, produce func() (*models.RouterResult, error)) (*models.RouterResult, bool, error)
}

// ModelRunner executes the routed model call. router.Router satisfies it.
type ModelRunner interface {
	Execute(ctx context.Context, systemPrompt, resolvedPrompt, forced string) (*models.RouterResult, error)
}

// Recorder accepts telemetry rows. telemetry.Logger satisfies it.
type Recorder interface {
	Record(rec *models.TelemetryRecord)
}

// Options are the deployment tunables of one pipeline instance.
type Options struct {
	ExecuteLimit int
	CLILimit     int
	RateWindow   time.Duration
	Timeout      time.Duration
}

type Pipeline struct {
	versions  VersionStore
	limiter   Limiter
	cache     Cache
	router    ModelRunner
	telemetry Recorder
	opts      Options

	// coin decides the A/B split; swapped out in tests.
	coin func() bool
}

func New(versions VersionStore, limiter Limiter, respCache Cache, runner ModelRunner, recorder Recorder, opts Options) *Pipeline {
	return &Pipeline{
		versions:  versions,
		limiter:   limiter,
		cache:     respCache,
		router:    runner,
		telemetry: recorder,
		opts:      opts,
		coin:      func() bool { return rand.IntN(2) == 0 },
	}
}

// Result is the success payload of one execution.
type Result struct {
	Data          string
	Model         string
	Cached        bool
	LatencyMs     int64
	TokensInput   int64
	TokensOutput  int64
	CostMicroUSD  int64
	ServedVersion string
}

// Execute runs the structured-template path.
func (p *Pipeline) Execute(ctx context.Context, cred *models.Credential, req *models.ExecutionRequest) (*Result, *Error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	if err := p.admit(ctx, cred, ScopeExecute, p.opts.ExecuteLimit); err != nil {
		return nil, err
	}

	if verdict := guardrail.Scan(req.Variables); !verdict.Passed {
		return nil, newError(CodeGuardrailBlocked, http.StatusBadRequest, verdict.Reason)
	}

	// The A/B coin is flipped before the cache key is computed so the
	// split decision, not the requested id, determines cache identity
	// and telemetry attribution.
	servedVersion := req.VersionID
	abVariant := ""
	if req.ABVersionID != "" {
		abVariant = "a"
		if p.coin() {
			servedVersion = req.ABVersionID
			abVariant = "b"
		}
	}

	version, lookupErr := p.versions.GetPromptVersion(ctx, cred.TenantID, servedVersion)
	if lookupErr != nil {
		if errors.Is(lookupErr, db.ErrNotFound) {
			hints, _ := p.versions.ListVersionIDs(ctx, cred.TenantID, versionHintLimit)
			return nil, &Error{
				Code:    CodeVersionNotFound,
				Status:  http.StatusNotFound,
				Message: "prompt version not found",
				Debug: map[string]any{
					"requested_version":  servedVersion,
					"tenant_id":          cred.TenantID,
					"available_versions": hints,
				},
			}
		}
		return nil, &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "version lookup failed", Err: lookupErr}
	}

	key := cache.Key(servedVersion, req.Variables)
	result, hit, err := p.cache.GetOrCompute(ctx, key, func() (*models.RouterResult, error) {
		resolved := template.Resolve(version.Template, req.Variables)

		routed, err := p.router.Execute(ctx, version.SystemPrompt, resolved, "")
		if err != nil {
			return nil, &Error{Code: CodeUpstreamError, Status: http.StatusInternalServerError, Message: "all providers failed", Err: err}
		}

		if err := validateSchema(routed.Output, req.RequiredSchema); err != nil {
			return nil, &Error{Code: CodeSchemaValidation, Status: http.StatusUnprocessableEntity, Message: err.Error()}
		}

		return routed, nil
	})
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "cache lookup failed", Err: err}
	}

	res := p.finish(start, result, hit, servedVersion)

	p.telemetry.Record(&models.TelemetryRecord{
		VersionID:    servedVersion,
		KeyID:        cred.ID,
		LatencyMs:    res.LatencyMs,
		ModelUsed:    res.Model,
		CacheHit:     hit,
		TokensInput:  res.TokensInput,
		TokensOutput: res.TokensOutput,
		CostMicroUSD: res.CostMicroUSD,
		ABVariant:    abVariant,
	})

	return res, nil
}

// ExecuteRaw runs the CLI path: no stored template, a fixed system
// instruction, and a separate lower rate-limit budget.
func (p *Pipeline) ExecuteRaw(ctx context.Context, cred *models.Credential, prompt, forcedModel string) (*Result, *Error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	if err := p.admit(ctx, cred, ScopeCLI, p.opts.CLILimit); err != nil {
		return nil, err
	}

	if verdict := guardrail.ScanText(prompt); !verdict.Passed {
		return nil, newError(CodeGuardrailBlocked, http.StatusBadRequest, verdict.Reason)
	}

	key := cache.CLIKey(forcedModel, prompt)
	result, hit, err := p.cache.GetOrCompute(ctx, key, func() (*models.RouterResult, error) {
		routed, err := p.router.Execute(ctx, cliSystemPrompt, prompt, forcedModel)
		if err != nil {
			return nil, &Error{Code: CodeUpstreamError, Status: http.StatusInternalServerError, Message: "all providers failed", Err: err}
		}
		return routed, nil
	})
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "cache lookup failed", Err: err}
	}

	res := p.finish(start, result, hit, "")

	p.telemetry.Record(&models.TelemetryRecord{
		KeyID:        cred.ID,
		LatencyMs:    res.LatencyMs,
		ModelUsed:    res.Model,
		CacheHit:     hit,
		TokensInput:  res.TokensInput,
		TokensOutput: res.TokensOutput,
		CostMicroUSD: res.CostMicroUSD,
	})

	return res, nil
}

// admit enforces the rate limit for one scope. Counter store errors
// reject: ambiguity must bound spend, not extend it.
func (p *Pipeline) admit(ctx context.Context, cred *models.Credential, scope string, limit int) *Error {
	allowed, err := p.limiter.Allow(ctx, scope, cred.ID, limit, p.opts.RateWindow)
	if err != nil || !allowed {
		return newError(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded, retry later")
	}
	return nil
}

// finish assembles the caller-visible result. A cache hit reports zero
// cost: nothing new was spent serving it.
func (p *Pipeline) finish(start time.Time, result *models.RouterResult, hit bool, servedVersion string) *Result {
	res := &Result{
		Data:          result.Output,
		Model:         result.ModelUsed,
		Cached:        hit,
		LatencyMs:     time.Since(start).Milliseconds(),
		TokensInput:   result.TokensInput,
		TokensOutput:  result.TokensOutput,
		CostMicroUSD:  result.CostMicroUSD,
		ServedVersion: servedVersion,
	}
	if hit {
		res.CostMicroUSD = 0
	}
	return res
}
