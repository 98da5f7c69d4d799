package router

import (
	"context"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/promptops/prompt-gateway/internal/provider"
)

type attempt struct {
	credential string
	model      string
}

// fakeExecutor scripts per-(credential,model) outcomes and records every
// attempt in order.
type fakeExecutor struct {
	name     string
	fail     map[string]error // model -> error; absent means success
	attempts *[]attempt
}

func (f *fakeExecutor) Name() string { return f.name }

func (f *fakeExecutor) Generate(_ context.Context, model, _, _ string, _ Params) (*provider.Response, error) {
	*f.attempts = append(*f.attempts, attempt{credential: f.name, model: model})
	if err, ok := f.fail[model]; ok {
		return nil, err
	}
	return &provider.Response{Text: "ok from " + model, TokensInput: 100, TokensOutput: 50}, nil
}

func TestSelectModel(t *testing.T) {
	tests := []struct {
		name           string
		systemPrompt   string
		resolvedPrompt string
		forced         string
		want           string
	}{
		{"large prompt routes pro", "", strings.Repeat("a", 5000), "", ModelPro},
		{"small plain prompt routes fast", "", strings.Repeat("a", 200), "", ModelFast},
		{"reasoning marker in system prompt routes pro", "Think step by step.", "short", "", ModelPro},
		{"reasoning marker in body routes pro", "", "explain your chain of thought", "", ModelPro},
		{"forced model wins regardless of length", "", strings.Repeat("a", 5000), "openai/gpt-4o-mini", "openai/gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectModel(tt.systemPrompt, tt.resolvedPrompt, tt.forced)
			if got != tt.want {
				t.Fatalf("SelectModel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecuteQuotaSkipsCredential(t *testing.T) {
	var attempts []attempt
	pool := []Executor{
		&fakeExecutor{
			name: "key-1",
			fail: map[string]error{
				ModelFast: genai.APIError{Code: 429, Message: "quota exceeded"},
				ModelLite: genai.APIError{Code: 429, Message: "quota exceeded"},
				ModelPro:  genai.APIError{Code: 429, Message: "quota exceeded"},
			},
			attempts: &attempts,
		},
		&fakeExecutor{name: "key-2", attempts: &attempts},
	}

	r := New(pool, time.Second)
	result, err := r.Execute(context.Background(), "", "short prompt", "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []attempt{
		{"key-1", ModelFast},
		{"key-2", ModelFast},
	}
	if len(attempts) != len(want) {
		t.Fatalf("attempts = %v, want %v", attempts, want)
	}
	for i := range want {
		if attempts[i] != want[i] {
			t.Fatalf("attempt %d = %v, want %v", i, attempts[i], want[i])
		}
	}

	if result.ModelUsed != ModelFast {
		t.Fatalf("ModelUsed = %q, want %q", result.ModelUsed, ModelFast)
	}
}

func TestExecuteModelFailureTriesSibling(t *testing.T) {
	var attempts []attempt
	pool := []Executor{
		&fakeExecutor{
			name: "key-1",
			fail: map[string]error{
				ModelFast: genai.APIError{Code: 503, Message: "overloaded"},
			},
			attempts: &attempts,
		},
	}

	r := New(pool, time.Second)
	result, err := r.Execute(context.Background(), "", "short prompt", "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(attempts) != 2 || attempts[1].model != ModelLite {
		t.Fatalf("attempts = %v, want fast then lite on the same credential", attempts)
	}
	if result.ModelUsed != ModelLite {
		t.Fatalf("ModelUsed = %q, want %q", result.ModelUsed, ModelLite)
	}
}

func TestExecuteProTierFallbackOrder(t *testing.T) {
	var attempts []attempt
	pool := []Executor{
		&fakeExecutor{
			name: "key-1",
			fail: map[string]error{
				ModelPro: genai.APIError{Code: 503, Message: "overloaded"},
			},
			attempts: &attempts,
		},
	}

	r := New(pool, time.Second)
	result, err := r.Execute(context.Background(), "", strings.Repeat("a", 5000), "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// A failed pro selection degrades to flash before flash-lite.
	want := []attempt{
		{"key-1", ModelPro},
		{"key-1", ModelFast},
	}
	if len(attempts) != len(want) || attempts[0] != want[0] || attempts[1] != want[1] {
		t.Fatalf("attempts = %v, want %v", attempts, want)
	}
	if result.ModelUsed != ModelFast {
		t.Fatalf("ModelUsed = %q, want %q", result.ModelUsed, ModelFast)
	}
}

func TestExecuteExhaustionReturnsLastError(t *testing.T) {
	var attempts []attempt
	pool := []Executor{
		&fakeExecutor{
			name: "key-1",
			fail: map[string]error{
				ModelFast: genai.APIError{Code: 500},
				ModelLite: genai.APIError{Code: 500},
				ModelPro:  genai.APIError{Code: 503, Message: "last failure"},
			},
			attempts: &attempts,
		},
	}

	r := New(pool, time.Second)
	_, err := r.Execute(context.Background(), "", "short prompt", "")
	if err == nil {
		t.Fatal("exhausted pool must return an error")
	}
	if !strings.Contains(err.Error(), "last failure") {
		t.Fatalf("error should wrap the last underlying cause, got %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected all 3 models attempted, got %v", attempts)
	}
}

func TestExecuteForcedModelFirst(t *testing.T) {
	var attempts []attempt
	pool := []Executor{&fakeExecutor{name: "key-1", attempts: &attempts}}

	r := New(pool, time.Second)
	result, err := r.Execute(context.Background(), "", strings.Repeat("a", 5000), "openai/gpt-4o-mini")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if attempts[0].model != "openai/gpt-4o-mini" {
		t.Fatalf("forced model must be tried first, got %v", attempts)
	}
	if result.ModelUsed != "openai/gpt-4o-mini" {
		t.Fatalf("ModelUsed = %q", result.ModelUsed)
	}
}

func TestCostIntegerMicroUSD(t *testing.T) {
	// 100 input + 50 output on the fast tier:
	// (100*300000 + 50*2500000) / 1e6 = 155
	if got := Cost(ModelFast, 100, 50); got != 155 {
		t.Fatalf("Cost(fast, 100, 50) = %d, want 155", got)
	}

	if got := Cost(ModelPro, 0, 0); got != 0 {
		t.Fatalf("Cost with zero tokens = %d, want 0", got)
	}

	// Unknown models are priced at the default (pro) rate.
	if got, want := Cost("mystery-model", 1000, 1000), Cost(ModelPro, 1000, 1000); got != want {
		t.Fatalf("unknown model cost = %d, want %d", got, want)
	}
}
