package ai

import (
	"context"

	"recipe-importer/internal/infrastructure/config"
)

// Service wraps the OpenRouter client with response caching. It satisfies
// Completer, so everything downstream only sees the capability.
type Service struct {
	config       *config.Config
	client       *Client
	cacheManager *CacheManager
}

// NewService creates the AI service.
func NewService(cfg *config.Config, cacheManager *CacheManager) *Service {
	return &Service{
		config:       cfg,
		client:       NewClient(cfg),
		cacheManager: cacheManager,
	}
}

// Complete runs one completion, consulting the cache first.
func (s *Service) Complete(ctx context.Context, prompt string, images [][]byte) (string, error) {
	if val, ok := s.cacheManager.Get(prompt, images); ok {
		return val, nil
	}

	content, err := s.client.Complete(ctx, prompt, images)
	if err != nil {
		return "", err
	}

	s.cacheManager.Set(prompt, images, content)

	return content, nil
}

// Close releases the client and cache.
func (s *Service) Close() error {
	_ = s.cacheManager.Close()
	return s.client.Close()
}
