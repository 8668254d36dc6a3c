package config

import (
	"time"

	"github.com/spf13/viper"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 3)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.useSystemPrompts", true)

	// AI Configuration - Inspect operation defaults
	v.SetDefault("ai.inspect.provider", "")
	v.SetDefault("ai.inspect.model", "")
	v.SetDefault("ai.inspect.timeout", 45*time.Second)
	v.SetDefault("ai.inspect.apiKey", "")
	v.SetDefault("ai.inspect.maxRetries", 2)
	v.SetDefault("ai.inspect.temperature", 0.1) // Field extraction should be deterministic
	v.SetDefault("ai.inspect.useSystemPrompts", true)

	v.SetDefault("ai.inspect.circuitBreaker.enabled", true)
	v.SetDefault("ai.inspect.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.inspect.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.inspect.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.inspect.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.inspect.circuitBreaker.failureThreshold", 0.6)

	// Browser Configuration
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.launchArgs", []string{})
	v.SetDefault("browser.pageLoadTimeout", 30*time.Second)
	v.SetDefault("browser.actionTimeout", 5*time.Second)
	v.SetDefault("browser.listingTimeout", 90*time.Second)
	v.SetDefault("browser.retryBackoff", 2*time.Second)
	v.SetDefault("browser.pageTextLimit", 3000)
	v.SetDefault("browser.userAgent", defaultUserAgent)

	// Search Configuration
	v.SetDefault("search.engineURL", "https://www.google.com/search")
	v.SetDefault("search.maxPerDomain", 3)
	v.SetDefault("search.requestsPerSecond", 0.5)
	v.SetDefault("search.burst", 1)
	v.SetDefault("search.requestTimeout", 30*time.Second)
	v.SetDefault("search.userAgent", defaultUserAgent)
	v.SetDefault("search.hydrate", true)
	v.SetDefault("search.parallelDomains", 3)

	// Tracker Configuration
	v.SetDefault("tracker.outputDir", "output")
	v.SetDefault("tracker.persistEvery", 1)
	v.SetDefault("tracker.filePrefix", "successful_applications")
	v.SetDefault("tracker.lockTimeout", 10*time.Second)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Minute) // A run renders after every listing is processed
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.runTimeout", 15*time.Minute)
	// TLS Configuration defaults
	v.SetDefault("server.tls.mode", "disabled") // disabled, server, mutual
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.caFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.clientAuthPolicy", "require") // require, request, verify
	v.SetDefault("server.tls.watchFiles", false)
	// API Authentication defaults
	v.SetDefault("server.apiKeys", []string{})
	// Rate limiting defaults
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 30)
	v.SetDefault("server.rateLimit.burstCapacity", 5)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown", "csv"})
	v.SetDefault("app.maxFileSize", 10*1024*1024) // 10MB, resumes are uploaded through the UI

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")

	// Keyring Configuration
	v.SetDefault("keyring.enabled", false)
	v.SetDefault("keyring.service", KeyringService)
	v.SetDefault("keyring.account", KeyringAccount)

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "jobapplicator")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackModelInfo", true)
	v.SetDefault("observability.customMetrics.pipeline.enabled", true)
	v.SetDefault("observability.customMetrics.pipeline.trackOutcomes", true)
	v.SetDefault("observability.customMetrics.pipeline.trackPersistErrors", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)

	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	v.SetDefault("observability.prometheus.enabled", false)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
