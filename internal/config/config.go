package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// Gemini API Key Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config file / JOBAPPLICATOR_AI_APIKEY
// 3. OS keyring (if enabled)
// 4. GEMINI_API_KEY environment variable - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Browser       BrowserConfig       `mapstructure:"browser"`
	Search        SearchConfig        `mapstructure:"search"`
	Tracker       TrackerConfig       `mapstructure:"tracker"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Keyring       KeyringConfig       `mapstructure:"keyring"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig holds AI service configuration
type AIConfig struct {
	// Global/fallback configuration
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	APIKey           string        `mapstructure:"apiKey"`
	MaxRetries       int           `mapstructure:"maxRetries"`
	Temperature      float32       `mapstructure:"temperature"`
	UseSystemPrompts bool          `mapstructure:"useSystemPrompts"`
	CustomPrompts    PromptConfig  `mapstructure:"customPrompts"`

	// Form inspection is the only AI-backed operation
	Inspect OperationAIConfig `mapstructure:"inspect"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI configuration for specific operations
type OperationAIConfig struct {
	Provider         string               `mapstructure:"provider"`
	Model            string               `mapstructure:"model"`
	Timeout          *time.Duration       `mapstructure:"timeout"`
	APIKey           string               `mapstructure:"apiKey"`
	MaxRetries       *int                 `mapstructure:"maxRetries"`
	Temperature      *float32             `mapstructure:"temperature"`
	UseSystemPrompts *bool                `mapstructure:"useSystemPrompts"`
	CustomPrompts    PromptConfig         `mapstructure:"customPrompts"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptConfig holds configuration for customizable prompts
type PromptConfig struct {
	SystemPrompt     string `mapstructure:"systemPrompt"`
	SystemPromptFile string `mapstructure:"systemPromptFile"`
	UserPrompt       string `mapstructure:"userPrompt"`
	UserPromptFile   string `mapstructure:"userPromptFile"`
}

// BrowserConfig controls the automation session shared by inspection and form filling.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	LaunchArgs      []string      `mapstructure:"launchArgs"`
	PageLoadTimeout time.Duration `mapstructure:"pageLoadTimeout"`
	ActionTimeout   time.Duration `mapstructure:"actionTimeout"`
	ListingTimeout  time.Duration `mapstructure:"listingTimeout"` // Upper bound for one listing's inspect or submit step
	RetryBackoff    time.Duration `mapstructure:"retryBackoff"`   // Wait before the single page-load retry
	PageTextLimit   int           `mapstructure:"pageTextLimit"`  // Runes of page text handed to the model
	UserAgent       string        `mapstructure:"userAgent"`
}

// SearchConfig controls listing discovery.
type SearchConfig struct {
	EngineURL         string        `mapstructure:"engineURL"`
	MaxPerDomain      int           `mapstructure:"maxPerDomain"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond"`
	Burst             int           `mapstructure:"burst"`
	RequestTimeout    time.Duration `mapstructure:"requestTimeout"`
	UserAgent         string        `mapstructure:"userAgent"`
	Hydrate           bool          `mapstructure:"hydrate"`
	ParallelDomains   int           `mapstructure:"parallelDomains"`
}

// TrackerConfig controls where and how often outcomes are persisted.
type TrackerConfig struct {
	OutputDir    string        `mapstructure:"outputDir"`
	PersistEvery int           `mapstructure:"persistEvery"`
	FilePrefix   string        `mapstructure:"filePrefix"`
	LockTimeout  time.Duration `mapstructure:"lockTimeout"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
	RunTimeout   time.Duration `mapstructure:"runTimeout"` // Upper bound for a run triggered from the UI

	// TLS Configuration
	TLS TLSConfig `mapstructure:"tls"`

	// API Authentication
	APIKeys []string `mapstructure:"apiKeys"` // Valid API keys for authentication

	// Rate Limiting Configuration
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// TLSConfig holds TLS/mTLS configuration
type TLSConfig struct {
	Mode             string `mapstructure:"mode"`             // TLS mode: "disabled", "server", "mutual"
	CertFile         string `mapstructure:"certFile"`         // Server certificate file (PEM)
	KeyFile          string `mapstructure:"keyFile"`          // Server private key file (PEM)
	CAFile           string `mapstructure:"caFile"`           // CA certificate file for client cert verification (PEM, required for mutual mode)
	MinVersion       string `mapstructure:"minVersion"`       // Minimum TLS version: "1.2", "1.3"
	ClientAuthPolicy string `mapstructure:"clientAuthPolicy"` // Client auth policy for mutual mode: "require", "request", "verify"
	WatchFiles       bool   `mapstructure:"watchFiles"`       // Reload the server key pair when the files change
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int  `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int  `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByAPIKey       bool `mapstructure:"byAPIKey"`       // Enable per-API-key rate limiting
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// KeyringConfig locates the Gemini API key in the OS keyring
type KeyringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Service string `mapstructure:"service"`
	Account string `mapstructure:"account"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	AIOperations   AIOperationsMetricsConfig   `mapstructure:"aiOperations"`
	Pipeline       PipelineMetricsConfig       `mapstructure:"pipeline"`
	Infrastructure InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// AIOperationsMetricsConfig holds AI operation metrics configuration
type AIOperationsMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
	TrackModelInfo  bool `mapstructure:"trackModelInfo"`
}

// PipelineMetricsConfig holds listing/outcome metrics configuration
type PipelineMetricsConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	TrackOutcomes      bool `mapstructure:"trackOutcomes"`
	TrackPersistErrors bool `mapstructure:"trackPersistErrors"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"` // Empty serves the endpoint on the web server
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from environment variables and a config file.
// Secrets are resolved separately by ResolveSecrets once a logger exists.
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()

	// Set default values
	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	// Set up environment variable handling
	v.SetEnvPrefix("JOBAPPLICATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'JOBAPPLICATOR'")

	// Set up config file handling
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/jobapplicator/")
	v.AddConfigPath("$HOME/.jobapplicator")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/jobapplicator/, $HOME/.jobapplicator, .")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	return finishLoading(v, configFileUsed)
}

// LoadConfigFile loads configuration from an explicit YAML file, skipping the search paths.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("JOBAPPLICATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finishLoading(v, v.ConfigFileUsed())
}

func finishLoading(v *viper.Viper, configFileUsed string) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks and environment variable overrides")

	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts from files: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is valid. All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.AI.Timeout <= 0 {
		errs = append(errs, "AI timeout must be positive")
	}
	switch c.AI.Provider {
	case "gemini", "langchain":
	default:
		errs = append(errs, fmt.Sprintf("unsupported AI provider: %q (must be 'gemini' or 'langchain')", c.AI.Provider))
	}

	if c.Server.Port == "" {
		errs = append(errs, "server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		errs = append(errs, fmt.Sprintf("invalid default format: %s", c.App.DefaultFormat))
	}

	if c.Search.EngineURL == "" {
		errs = append(errs, "search engineURL is required")
	}
	if c.Search.MaxPerDomain <= 0 {
		errs = append(errs, "search maxPerDomain must be positive")
	}
	if c.Search.RequestsPerSecond <= 0 {
		errs = append(errs, "search requestsPerSecond must be positive")
	}

	if c.Browser.PageLoadTimeout <= 0 {
		errs = append(errs, "browser pageLoadTimeout must be positive")
	}
	if c.Browser.ListingTimeout <= 0 {
		errs = append(errs, "browser listingTimeout must be positive")
	}
	if c.Browser.PageTextLimit <= 0 {
		errs = append(errs, "browser pageTextLimit must be positive")
	}

	if c.Tracker.OutputDir == "" {
		errs = append(errs, "tracker outputDir is required")
	}
	if c.Tracker.PersistEvery < 1 {
		errs = append(errs, "tracker persistEvery must be at least 1")
	}
	if c.Tracker.FilePrefix == "" {
		errs = append(errs, "tracker filePrefix is required")
	}

	if c.Keyring.Enabled && (c.Keyring.Service == "" || c.Keyring.Account == "") {
		errs = append(errs, "keyring service and account are required when keyring is enabled")
	}

	if err := c.ValidateTLSConfig(); err != nil {
		errs = append(errs, fmt.Sprintf("TLS configuration error: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.AI.Timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		opCfg.MaxRetries = &c.AI.MaxRetries
	}
	if opCfg.Temperature == nil {
		opCfg.Temperature = &c.AI.Temperature
	}
	// UseSystemPrompts: apply global default only if not explicitly set
	if opCfg.UseSystemPrompts == nil {
		opCfg.UseSystemPrompts = &c.AI.UseSystemPrompts
	}
}

// GetInspectConfig returns the AI configuration for form inspection with fallback to global config
func (c *Config) GetInspectConfig() OperationAIConfig {
	config := c.AI.Inspect

	c.applyOperationDefaults(&config)

	if config.CustomPrompts.SystemPrompt == "" {
		config.CustomPrompts.SystemPrompt = c.AI.CustomPrompts.SystemPrompt
	}
	if config.CustomPrompts.UserPrompt == "" {
		config.CustomPrompts.UserPrompt = c.AI.CustomPrompts.UserPrompt
	}
	if config.CustomPrompts.SystemPromptFile == "" {
		config.CustomPrompts.SystemPromptFile = c.AI.CustomPrompts.SystemPromptFile
	}
	if config.CustomPrompts.UserPromptFile == "" {
		config.CustomPrompts.UserPromptFile = c.AI.CustomPrompts.UserPromptFile
	}

	return config
}
