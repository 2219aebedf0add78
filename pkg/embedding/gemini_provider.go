package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider generates embeddings with the Gemini embedding models
// (text-embedding-004 by default).
type GeminiProvider struct {
	client         *genai.Client
	model          string
	dimensionality int32
}

func NewGeminiProvider(ctx context.Context, apiKey, model string, dimensionality int32) (Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiProvider{
		client:         client,
		model:          model,
		dimensionality: dimensionality,
	}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, text string, taskType string) ([]float32, error) {
	config := &genai.EmbedContentConfig{
		TaskType: taskType,
	}
	if p.dimensionality > 0 {
		dim := p.dimensionality
		config.OutputDimensionality = &dim
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, config)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini returned empty embedding for model %s", p.model)
	}

	return resp.Embeddings[0].Values, nil
}
