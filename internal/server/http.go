package server

import (
	"context"
	"time"

	"jobapplicator/internal/ai"
	"jobapplicator/internal/common"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/observability"
	"jobapplicator/internal/types"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RunResponse is the JSON answer to POST /run
type RunResponse struct {
	Summary   types.RunSummary           `json:"summary"`
	Outcomes  []types.ApplicationOutcome `json:"outcomes"`
	ExportURL string                     `json:"export_url,omitempty"`
	Message   string                     `json:"message,omitempty"`
}

// Runner executes application runs on behalf of the server.
type Runner interface {
	Run(ctx context.Context, req types.RunRequest) (*common.RunResult, error)
	ModelInfo() *ai.ModelInfo
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// TLS Configuration
	TLSConfig    config.TLSConfig
	CertReloader *CertReloader

	// API Authentication
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RunTimeout   time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Run execution and the results kept for export
	Runner Runner
	Runs   *RunStore

	Observability *observability.ObservabilityManager
	Logger        *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RunTimeout     time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
	KeepRuns       int
}

// ServerConfigFrom maps application configuration onto a ServerConfig.
func ServerConfigFrom(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RunTimeout:     cfg.Server.RunTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, runner Runner, om *observability.ObservabilityManager, logger *errors.Logger) *Server {
	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		RunTimeout:     cfg.RunTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Runner:         runner,
		Runs:           NewRunStore(cfg.KeepRuns),
		Observability:  om,
		Logger:         logger,
	}
}
