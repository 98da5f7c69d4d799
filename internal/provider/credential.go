package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/genai"
)

// Credential bundles the provider clients built from one pool entry.
// Clients are constructed once at startup and reused for every request.
type Credential struct {
	name      string
	gemini    *genai.Client
	openai    openai.Client
	hasOpenAI bool
}

// NewCredential builds the clients for one pool position. geminiKey is
// required; openaiKey is optional, models under the openai/ namespace fail
// with ErrNoTransport when it is absent.
func NewCredential(ctx context.Context, name, geminiKey, openaiKey string) (*Credential, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client for %s: %w", name, err)
	}

	cred := &Credential{name: name, gemini: client}
	if openaiKey != "" {
		cred.openai = openai.NewClient(option.WithAPIKey(openaiKey))
		cred.hasOpenAI = true
	}

	return cred, nil
}

func (c *Credential) Name() string {
	return c.name
}

// Generate executes one model call and normalizes the response. An empty
// output text is returned as ErrEmptyOutput, never as a success.
func (c *Credential) Generate(ctx context.Context, model, system, prompt string, p Params) (*Response, error) {
	var resp *Response
	var err error

	if IsOpenAIModel(model) {
		resp, err = c.generateOpenAI(ctx, strings.TrimPrefix(model, OpenAIPrefix), system, prompt, p)
	} else {
		resp, err = c.generateGemini(ctx, model, system, prompt, p)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(resp.Text) == "" {
		return nil, ErrEmptyOutput
	}

	return resp, nil
}

func (c *Credential) generateGemini(ctx context.Context, model, system, prompt string, p Params) (*Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.Temperature),
		TopP:        genai.Ptr(p.TopP),
		TopK:        genai.Ptr(p.TopK),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := c.gemini.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini %s: %w", model, err)
	}

	resp := &Response{Text: result.Text()}
	if result.UsageMetadata != nil {
		resp.TokensInput = int64(result.UsageMetadata.PromptTokenCount)
		resp.TokensOutput = int64(result.UsageMetadata.CandidatesTokenCount)
	}

	return resp, nil
}

func (c *Credential) generateOpenAI(ctx context.Context, model, system, prompt string, p Params) (*Response, error) {
	if !c.hasOpenAI {
		return nil, fmt.Errorf("%w: %s on credential %s", ErrNoTransport, model, c.name)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}
	if system != "" {
		messages = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}, messages...)
	}

	result, err := c.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(float64(p.Temperature)),
		TopP:        openai.Float(float64(p.TopP)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai %s: %w", model, err)
	}

	if len(result.Choices) == 0 {
		return nil, ErrEmptyOutput
	}

	return &Response{
		Text:         result.Choices[0].Message.Content,
		TokensInput:  result.Usage.PromptTokens,
		TokensOutput: result.Usage.CompletionTokens,
	}, nil
}

// statusCode extracts the HTTP status from either transport's error type.
func statusCode(err error) (int, bool) {
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode, true
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code, true
	}

	return 0, false
}
