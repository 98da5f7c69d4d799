package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"gemini quota", genai.APIError{Code: 429, Message: "quota exceeded"}, FailCredential},
		{"gemini auth", genai.APIError{Code: 401, Message: "invalid key"}, FailCredential},
		{"gemini forbidden", genai.APIError{Code: 403, Message: "forbidden"}, FailCredential},
		{"gemini server error", genai.APIError{Code: 500, Message: "internal"}, FailModel},
		{"gemini unavailable", genai.APIError{Code: 503, Message: "overloaded"}, FailModel},
		{"openai quota", &openai.Error{StatusCode: 429}, FailCredential},
		{"openai server error", &openai.Error{StatusCode: 502}, FailModel},
		{"wrapped quota", fmt.Errorf("gemini call: %w", genai.APIError{Code: 429}), FailCredential},
		{"empty output", ErrEmptyOutput, FailModel},
		{"plain error", errors.New("connection reset"), FailModel},
		{"no transport", ErrNoTransport, FailModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsOpenAIModel(t *testing.T) {
	if !IsOpenAIModel("openai/gpt-4o-mini") {
		t.Fatal("openai/ prefix must dispatch to the OpenAI transport")
	}
	if IsOpenAIModel("gemini-2.5-flash") {
		t.Fatal("gemini models must not dispatch to the OpenAI transport")
	}
}
