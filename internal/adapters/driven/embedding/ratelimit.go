// Package embedding provides decorators shared by the embedding service
// adapters.
package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/recallhq/recall/internal/core/ports/driven"
)

// Ensure RateLimited implements the interface.
var _ driven.EmbeddingService = (*RateLimited)(nil)

// RateLimited wraps an embedding service with a client-side request rate
// limit, keeping bulk ingestion under provider quotas.
type RateLimited struct {
	inner   driven.EmbeddingService
	limiter *rate.Limiter
}

// NewRateLimited wraps service so it issues at most rps requests per second
// with the given burst. A non-positive rps disables limiting.
func NewRateLimited(service driven.EmbeddingService, rps float64, burst int) *RateLimited {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimited{inner: service, limiter: limiter}
}

// Embed waits for a rate token, then delegates.
func (s *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return s.inner.Embed(ctx, text)
}

// EmbedBatch waits for one rate token per batch, then delegates. Batches
// count as a single request against the provider quota.
func (s *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return s.inner.EmbedBatch(ctx, texts)
}

// Dimensions returns the wrapped service's vector size.
func (s *RateLimited) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (s *RateLimited) ModelName() string {
	return s.inner.ModelName()
}

// Ping delegates without consuming a rate token.
func (s *RateLimited) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the wrapped service.
func (s *RateLimited) Close() error {
	return s.inner.Close()
}
