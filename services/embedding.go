package services

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Embedder turns free text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingService generates article and query embeddings via the OpenAI API.
// The model is fixed: every stored vector must come from the same model or
// nearest-neighbor results are meaningless.
type EmbeddingService struct {
	client *openai.Client
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(apiKey string) *EmbeddingService {
	return &EmbeddingService{
		client: openai.NewClient(apiKey),
	}
}

// Embed generates a 1536-dimension embedding for the given text
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.AdaEmbeddingV2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding API returned no data")
	}

	return resp.Data[0].Embedding, nil
}

// EmbedArticle builds the embedding input for an article. Title and content
// together, the same shape used at query time.
func (s *EmbeddingService) EmbedArticle(ctx context.Context, title, content string) ([]float32, error) {
	return s.Embed(ctx, fmt.Sprintf("%s\n\n%s", title, content))
}
