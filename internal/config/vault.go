package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"jobapplicator/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets defines where to find secrets in Vault
type VaultSecrets struct {
	// APIKeys expects a single string with comma-separated values under the "keys" field
	APIKeys   string `mapstructure:"apiKeys"`   // KVv2 path holding server API keys
	GeminiKey string `mapstructure:"geminiKey"` // KVv2 path holding the Gemini key under "api_key"
}

// VaultClient wraps the Vault API client
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient creates a new Vault client from configuration
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	logger.Debug("Initializing Vault client",
		"address", config.Address,
		"namespace", config.Namespace,
		"token_file", config.TokenFile,
		"has_token", config.Token != "")

	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		logger.LogError(err, "Failed to create Vault client")
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config)
	if err != nil {
		logger.LogError(err, "Vault token unavailable")
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		logger.LogError(err, "Failed to connect to Vault", "address", config.Address)
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	logger.Info("Successfully connected to Vault",
		"address", config.Address,
		"version", health.Version,
		"sealed", health.Sealed)

	return &VaultClient{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}

	return token, nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	vc.logger.Debug("Reading secret from Vault", "path", path)

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.NewConfigError(errors.ErrCodeSecretNotFound,
			fmt.Sprintf("secret not found at path: %s", path), nil)
	}

	return decodeKVv2(secret, path)
}

// decodeKVv2 unpacks the data and metadata.version fields of a KVv2 read.
func decodeKVv2(secret *api.Secret, path string) (*VaultSecret, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}

	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	versionRaw, ok := metadata["version"]
	if !ok {
		return nil, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	version, err := parseVersionValue(versionRaw, path)
	if err != nil {
		return nil, err
	}

	return &VaultSecret{Data: data, Version: version}, nil
}

// parseVersionValue parses version value from various types
func parseVersionValue(versionRaw any, path string) (int64, error) {
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		// encoding/json numbers arrive as json.Number from the Vault client
		if s, ok := versionRaw.(fmt.Stringer); ok {
			if version, err := strconv.ParseInt(s.String(), 10, 64); err == nil {
				return version, nil
			}
		}
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
}

// GetStringSecret retrieves a string value from a Vault secret
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}

	vc.logger.Debug("String secret retrieved from Vault",
		"path", path,
		"key", key,
		"masked_value", maskSecret(strValue))

	return strValue, nil
}

// GetStringSliceSecret retrieves a comma-separated string as a slice from Vault
func (vc *VaultClient) GetStringSliceSecret(path, key string) ([]string, error) {
	value, err := vc.GetStringSecret(path, key)
	if err != nil {
		return nil, err
	}
	return splitAndTrim(value), nil
}

func maskSecret(value string) string {
	switch {
	case len(value) > 8:
		return value[:4] + "****" + value[len(value)-4:]
	case len(value) > 0:
		return "****"
	default:
		return ""
	}
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if !config.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret loading")
		return nil
	}

	logger.Info("Loading secrets from Vault",
		"api_keys_path", config.Vault.Secrets.APIKeys,
		"gemini_key_path", config.Vault.Secrets.GeminiKey)

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	if client == nil {
		return nil
	}

	return loadSecretsFromVault(client, config)
}

func loadSecretsFromVault(client *VaultClient, config *Config) error {
	secrets := config.Vault.Secrets

	if secrets.APIKeys != "" {
		apiKeys, err := client.GetStringSliceSecret(secrets.APIKeys, "keys")
		if err != nil {
			client.logger.LogError(err, "Failed to load API keys from Vault", "path", secrets.APIKeys)
			return fmt.Errorf("failed to load API keys from vault: %w", err)
		}
		if len(apiKeys) > 0 {
			config.Server.APIKeys = apiKeys
			client.logger.Info("API keys loaded from Vault", "count", len(apiKeys))
		} else {
			client.logger.Warn("No API keys found in Vault", "path", secrets.APIKeys)
		}
	}

	if secrets.GeminiKey != "" {
		geminiKey, err := client.GetStringSecret(secrets.GeminiKey, "api_key")
		if err != nil {
			client.logger.LogError(err, "Failed to load Gemini API key from Vault", "path", secrets.GeminiKey)
			return fmt.Errorf("failed to load Gemini API key from vault: %w", err)
		}
		if geminiKey != "" {
			applyGeminiKeyToConfig(config, geminiKey)
			client.logger.Info("Gemini API key loaded from Vault")
		} else {
			client.logger.Warn("Empty Gemini API key found in Vault", "path", secrets.GeminiKey)
		}
	}

	return nil
}

// applyGeminiKeyToConfig applies the Gemini API key to the global and inspect AI configuration
func applyGeminiKeyToConfig(config *Config, geminiKey string) {
	config.AI.APIKey = geminiKey
	if config.AI.Inspect.APIKey == "" {
		config.AI.Inspect.APIKey = geminiKey
	}
}
