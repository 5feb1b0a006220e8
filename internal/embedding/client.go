// Package embedding wraps an eino embedder with caching and retry so the
// retrieval path can call it synchronously and the capture path can enrich
// messages in the background.
package embedding

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino-ext/components/embedding/dashscope"
	einoopenai "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoembedding "github.com/cloudwego/eino/components/embedding"

	"github.com/raki39/FRONTGraph-sub001/internal/config"
)

const (
	maxAttempts  = 3
	retryBackoff = 200 * time.Millisecond
)

// Client turns text into fixed-length vectors. Results are cached by
// (model, text) with a time-bounded cache and transient provider failures are
// retried before giving up.
type Client struct {
	embedder einoembedding.Embedder
	model    string
	cache    Cache
	ttl      time.Duration
}

// NewClient creates an embedding client over the given eino embedder.
func NewClient(embedder einoembedding.Embedder, model string, cache Cache, ttl time.Duration) *Client {
	return &Client{
		embedder: embedder,
		model:    model,
		cache:    cache,
		ttl:      ttl,
	}
}

// NewProviderEmbedder builds the configured eino embedder. Returns nil when
// the provider is unusable; callers treat a nil embedder as "semantic search
// unavailable" rather than failing startup.
func NewProviderEmbedder(ctx context.Context, cfg *config.Config) einoembedding.Embedder {
	embCfg := cfg.Embedding

	if embCfg.APIKey == "" {
		log.Printf("Warning: embedding api_key is empty")
		return nil
	}

	switch embCfg.Provider {
	case "alibaba", "qwen", "dashscope":
		dsCfg := &dashscope.EmbeddingConfig{
			APIKey: embCfg.APIKey,
			Model:  embCfg.Model,
		}
		if embCfg.Timeout > 0 {
			dsCfg.Timeout = time.Duration(embCfg.Timeout) * time.Second
		}
		if embCfg.Dimensions > 0 {
			dsCfg.Dimensions = &embCfg.Dimensions
		}
		embedder, err := dashscope.NewEmbedder(ctx, dsCfg)
		if err != nil {
			log.Printf("Warning: failed to create dashscope embedder: %v", err)
			return nil
		}
		return embedder
	case "openai", "":
		oaCfg := &einoopenai.EmbeddingConfig{
			APIKey: embCfg.APIKey,
			Model:  embCfg.Model,
		}
		if embCfg.BaseURL != "" {
			oaCfg.BaseURL = embCfg.BaseURL
		}
		if embCfg.Timeout > 0 {
			oaCfg.Timeout = time.Duration(embCfg.Timeout) * time.Second
		}
		if embCfg.Dimensions > 0 {
			oaCfg.Dimensions = &embCfg.Dimensions
		}
		embedder, err := einoopenai.NewEmbedder(ctx, oaCfg)
		if err != nil {
			log.Printf("Warning: failed to create openai embedder: %v", err)
			return nil
		}
		return embedder
	default:
		log.Printf("Warning: unsupported embedding provider: %s", embCfg.Provider)
		return nil
	}
}

// Model returns the configured embedding model tag.
func (c *Client) Model() string {
	return c.model
}

// Embed returns the vector for one text, serving from cache when possible.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds several texts in one provider call. Cache hits are served
// locally and only the misses go to the provider.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("embedding provider not configured")
	}

	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if c.cache != nil {
			if vec, ok := c.cache.Get(ctx, cacheKey(c.model, text)); ok {
				results[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	embedded, err := c.embedWithRetry(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missTexts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(embedded), len(missTexts))
	}

	for j, vec64 := range embedded {
		vec := toFloat32(vec64)
		results[missIdx[j]] = vec
		if c.cache != nil {
			c.cache.Set(ctx, cacheKey(c.model, missTexts[j]), vec, c.ttl)
		}
	}

	return results, nil
}

// embedWithRetry calls the provider up to maxAttempts times with a short
// backoff between attempts.
func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float64, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		vecs, err := c.embedder.EmbedStrings(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxAttempts, lastErr)
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
