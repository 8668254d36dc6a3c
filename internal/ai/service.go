package ai

import (
	"context"
	"fmt"

	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
)

// Service owns the form describer used by the inspector
type Service struct {
	Provider FormDescriber // Exported for access from server package
	config   *config.OperationAIConfig
	logger   *errors.Logger
}

// NewService creates a new AI service for form inspection
func NewService(ctx context.Context, cfg *config.OperationAIConfig, logger *errors.Logger, opts ...ProviderOption) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"no AI API key configured (set GEMINI_API_KEY, use vault, or store one with 'secret set')", nil)
	}

	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"temperature", *cfg.Temperature,
		"timeout", *cfg.Timeout,
		"max_retries", *cfg.MaxRetries,
		"use_system_prompts", *cfg.UseSystemPrompts)

	var provider FormDescriber
	var err error

	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(ctx, cfg, logger, opts...)
	case "langchain":
		provider, err = NewLangchainProvider(ctx, cfg, logger, opts...)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}

	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed,
			"Failed to create AI provider", err)
	}

	return &Service{
		Provider: provider,
		config:   cfg,
		logger:   logger,
	}, nil
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo() *ModelInfo {
	return s.Provider.GetModelInfo()
}

// Close releases provider resources
func (s *Service) Close() error {
	return s.Provider.Close()
}
