package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider backs the LLMProvider contract with the Gemini API.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiProvider(ctx context.Context, apiKey, defaultModel string) (LLMProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiProvider{
		client:       client,
		defaultModel: defaultModel,
	}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return p.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, options...)
}

func (p *GeminiProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	opts := p.applyOptions(options)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	var contents []*genai.Content
	for _, msg := range history {
		switch msg.Role {
		case RoleSystem:
			// Gemini takes system prompts out of band.
			config.SystemInstruction = genai.NewContentFromText(msg.Content, "")
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("chat history contains no user or assistant messages")
	}

	resp, err := p.client.Models.GenerateContent(ctx, opts.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned empty response for model %s", opts.Model)
	}

	return text, nil
}

func (p *GeminiProvider) applyOptions(options []Option) *Options {
	opts := &Options{
		Temperature: 0.7,
		Model:       p.defaultModel,
	}
	for _, opt := range options {
		opt(opts)
	}
	if opts.Model == "" {
		opts.Model = p.defaultModel
	}
	return opts
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
