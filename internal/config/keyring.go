package config

import (
	stderrors "errors"
	"fmt"
	"os"

	"jobapplicator/internal/errors"

	"github.com/zalando/go-keyring"
)

const (
	KeyringService = "jobapplicator"
	KeyringAccount = "gemini"
)

// GetKeyringSecret reads the Gemini key from the OS keyring.
// A missing entry is reported as ("", nil).
func GetKeyringSecret(cfg KeyringConfig) (string, error) {
	secret, err := keyring.Get(cfg.Service, cfg.Account)
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return secret, nil
}

// SetKeyringSecret stores the Gemini key in the OS keyring.
func SetKeyringSecret(cfg KeyringConfig, secret string) error {
	if secret == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "secret must not be empty", nil)
	}
	if err := keyring.Set(cfg.Service, cfg.Account, secret); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// DeleteKeyringSecret removes the Gemini key from the OS keyring. Deleting a missing entry is not an error.
func DeleteKeyringSecret(cfg KeyringConfig) error {
	if err := keyring.Delete(cfg.Service, cfg.Account); err != nil && !stderrors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// ResolveSecrets fills the AI and server secrets that the config file and
// JOBAPPLICATOR_* environment did not provide: Vault first, then the OS
// keyring, then GEMINI_API_KEY.
func ResolveSecrets(cfg *Config, logger *errors.Logger) error {
	if err := ApplyVaultSecrets(cfg, logger); err != nil {
		return err
	}

	if cfg.AI.APIKey == "" && cfg.Keyring.Enabled {
		secret, err := GetKeyringSecret(cfg.Keyring)
		if err != nil {
			// An unreachable keyring daemon should not block runs that can use the env fallback.
			logger.Warn("Keyring lookup failed", "service", cfg.Keyring.Service, "error", err.Error())
		} else if secret != "" {
			applyGeminiKeyToConfig(cfg, secret)
			logger.Info("Gemini API key loaded from OS keyring", "service", cfg.Keyring.Service)
		}
	}

	if cfg.AI.APIKey == "" {
		if envKey := os.Getenv("GEMINI_API_KEY"); envKey != "" {
			applyGeminiKeyToConfig(cfg, envKey)
			logger.Debug("Gemini API key loaded from GEMINI_API_KEY")
		}
	}

	if cfg.AI.APIKey == "" && cfg.AI.Inspect.APIKey == "" {
		logger.Warn("No AI API key configured; form inspection will be unavailable")
	}
	return nil
}
