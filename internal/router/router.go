// Package router chooses a model for each execution and runs it against an
// ordered credential pool with cascading failover.
package router

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/promptops/prompt-gateway/internal/models"
	"github.com/promptops/prompt-gateway/internal/provider"
)

const (
	ModelPro  = "gemini-2.5-pro"
	ModelFast = "gemini-2.5-flash"
	ModelLite = "gemini-2.5-flash-lite"
)

// largePromptChars is the resolved-prompt length above which the pro tier
// is preferred.
const largePromptChars = 4000

var reasoningMarkers = []string{
	"step by step",
	"step-by-step",
	"chain of thought",
	"reason through",
	"think carefully",
}

// Executor is one credential in the pool. provider.Credential implements it.
type Executor interface {
	Name() string
	Generate(ctx context.Context, model, system, prompt string, p Params) (*provider.Response, error)
}

// Params aliases the provider sampling parameters.
type Params = provider.Params

var defaultParams = Params{Temperature: 0.7, TopP: 0.95, TopK: 40}

type Router struct {
	pool    []Executor
	params  Params
	timeout time.Duration
}

// New builds a router over an ordered credential pool. Pool order is the
// failover order; it never changes at runtime.
func New(pool []Executor, callTimeout time.Duration) *Router {
	return &Router{pool: pool, params: defaultParams, timeout: callTimeout}
}

// SelectModel applies the tier heuristic. A forced model always wins; large
// or reasoning-heavy prompts prefer the pro tier, everything else the fast
// tier.
func SelectModel(systemPrompt, resolvedPrompt, forced string) string {
	if forced != "" {
		return forced
	}

	isLarge := len(resolvedPrompt) > largePromptChars
	if isLarge || needsDeepReasoning(systemPrompt, resolvedPrompt) {
		return ModelPro
	}
	return ModelFast
}

func needsDeepReasoning(systemPrompt, resolvedPrompt string) bool {
	sys := strings.ToLower(systemPrompt)
	body := strings.ToLower(resolvedPrompt)
	for _, marker := range reasoningMarkers {
		if strings.Contains(sys, marker) || strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// candidates returns the ordered model list for one credential: the
// selected model first, then the fixed fallback sequence flash,
// flash-lite, pro with the selection deduplicated. A pro selection thus
// degrades through flash before flash-lite.
func candidates(selected string) []string {
	list := []string{selected}
	for _, m := range []string{ModelFast, ModelLite, ModelPro} {
		if m != selected {
			list = append(list, m)
		}
	}
	return list
}

// Execute runs the cascade: for each credential in order, each candidate
// model in order. A credential-level failure (quota/auth/forbidden) skips
// the credential's remaining models; a model-level failure tries the next
// model on the same credential. The loop is strictly sequential so an
// outage never amplifies quota consumption.
func (r *Router) Execute(ctx context.Context, systemPrompt, resolvedPrompt, forced string) (*models.RouterResult, error) {
	selected := SelectModel(systemPrompt, resolvedPrompt, forced)
	modelList := candidates(selected)

	var lastErr error
	for _, cred := range r.pool {
		for _, model := range modelList {
			resp, err := r.tryOnce(ctx, cred, model, systemPrompt, resolvedPrompt)
			if err == nil {
				return &models.RouterResult{
					Output:       resp.Text,
					ModelUsed:    model,
					TokensInput:  resp.TokensInput,
					TokensOutput: resp.TokensOutput,
					CostMicroUSD: Cost(model, resp.TokensInput, resp.TokensOutput),
				}, nil
			}

			lastErr = err
			if provider.Classify(err) == provider.FailCredential {
				log.Printf("router: credential %s exhausted on %s: %v", cred.Name(), model, err)
				break
			}
			log.Printf("router: %s failed on credential %s, trying next model: %v", model, cred.Name(), err)
		}

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("empty credential pool")
	}
	return nil, fmt.Errorf("all provider attempts failed: %w", lastErr)
}

func (r *Router) tryOnce(ctx context.Context, cred Executor, model, system, prompt string) (*provider.Response, error) {
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return cred.Generate(callCtx, model, system, prompt, r.params)
}
