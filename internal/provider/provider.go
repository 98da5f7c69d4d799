// Package provider wraps the upstream LLM transports behind one Generate
// call per credential. Model names under the "openai/" namespace go to the
// OpenAI-compatible chat-completions API; everything else goes to the
// Gemini API.
package provider

import (
	"errors"
	"strings"
)

// OpenAIPrefix routes a model name to the OpenAI-compatible transport.
const OpenAIPrefix = "openai/"

// Params are the sampling parameters forwarded on every call.
type Params struct {
	Temperature float32
	TopP        float32
	TopK        float32
}

// Response is the normalized provider output.
type Response struct {
	Text         string
	TokensInput  int64
	TokensOutput int64
}

var (
	// ErrEmptyOutput marks a response with no text. Treated as a model
	// failure so the cascade can try a sibling model.
	ErrEmptyOutput = errors.New("provider returned empty output")

	// ErrNoTransport marks a model the credential has no client for.
	ErrNoTransport = errors.New("no transport configured for model")
)

// FailureClass drives the cascade: credential-level failures abandon the
// remaining models for that credential, model-level failures try the next
// model on the same credential.
type FailureClass int

const (
	FailModel FailureClass = iota
	FailCredential
)

// Classify maps a provider error to its failure class. Quota, auth, and
// forbidden responses exhaust the credential; everything else (timeouts,
// 5xx, empty output) is worth one attempt on a sibling model.
func Classify(err error) FailureClass {
	if code, ok := statusCode(err); ok {
		switch code {
		case 401, 403, 429:
			return FailCredential
		}
	}
	return FailModel
}

// IsOpenAIModel reports whether the model name dispatches to the
// OpenAI-compatible transport.
func IsOpenAIModel(model string) bool {
	return strings.HasPrefix(model, OpenAIPrefix)
}
