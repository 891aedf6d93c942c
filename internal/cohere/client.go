package cohere

import (
	"context"
	"errors"
	"fmt"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// MaxBatch is the largest number of texts one embed request accepts.
const MaxBatch = 96

var ErrNoEmbeddings = errors.New("no embeddings returned")

type Config struct {
	APIKey      string
	EmbedModel  string
	RerankModel string
	EmbedDim    int
}

// Client embeds hit text and reranks candidates for local semantic search.
type Client struct {
	client      *cohereclient.Client
	embedModel  string
	rerankModel string
	embedDim    int
}

type RerankResult struct {
	Index int
	Score float64
}

func NewClient(cfg Config) *Client {
	return &Client{
		client:      cohereclient.NewClient(cohereclient.WithToken(cfg.APIKey)),
		embedModel:  cfg.EmbedModel,
		rerankModel: cfg.RerankModel,
		embedDim:    cfg.EmbedDim,
	}
}

func (c *Client) ValidateAPIKey(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx, &cohere.ModelsListRequest{}); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}

// EmbedDocuments embeds up to MaxBatch record texts.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > MaxBatch {
		return nil, fmt.Errorf("embed batch of %d exceeds %d", len(texts), MaxBatch)
	}

	embeddings, err := c.embed(ctx, texts, cohere.EmbedInputTypeSearchDocument)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d texts", len(embeddings), len(texts))
	}
	return embeddings, nil
}

func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := c.embed(ctx, []string{query}, cohere.EmbedInputTypeSearchQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embed query: %w", ErrNoEmbeddings)
	}
	return embeddings[0], nil
}

// Rerank orders documents by relevance to query and keeps the best topN.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	resp, err := c.client.V2.Rerank(ctx, &cohere.V2RerankRequest{
		Model:     c.rerankModel,
		Query:     query,
		Documents: documents,
		TopN:      &topN,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}

	results := make([]RerankResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue
		}
		results = append(results, RerankResult{Index: r.Index, Score: r.RelevanceScore})
	}
	return results, nil
}

func (c *Client) embed(ctx context.Context, texts []string, inputType cohere.EmbedInputType) ([][]float32, error) {
	outputDim := c.embedDim

	resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:           texts,
		Model:           c.embedModel,
		InputType:       inputType,
		EmbeddingTypes:  []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
		OutputDimension: &outputDim,
	})
	if err != nil {
		return nil, err
	}

	if resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, ErrNoEmbeddings
	}

	return toFloat32(resp.Embeddings.Float), nil
}

func toFloat32(in [][]float64) [][]float32 {
	out := make([][]float32, len(in))
	for i, emb := range in {
		v := make([]float32, len(emb))
		for j, f := range emb {
			v[j] = float32(f)
		}
		out[i] = v
	}
	return out
}
