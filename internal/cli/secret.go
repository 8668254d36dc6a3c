package cli

import (
	"bufio"
	"fmt"
	"strings"

	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"

	"github.com/spf13/cobra"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the Gemini API key stored in the OS keyring",
}

var secretSetCmd = &cobra.Command{
	Use:   "set [api-key]",
	Short: "Store the Gemini API key in the OS keyring",
	Long: `Store the Gemini API key in the OS keyring. When no argument is given the
key is read from the first line of standard input, which keeps it out of the
shell history:

  echo "$GEMINI_API_KEY" | jobapplicator secret set`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSecretSet,
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the Gemini API key from the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		logger := getLoggerFromContext(cmd.Context())

		if err := config.DeleteKeyringSecret(cfg.Keyring); err != nil {
			return err
		}
		logger.Info("Keyring secret deleted", "service", cfg.Keyring.Service, "account", cfg.Keyring.Account)
		fmt.Fprintln(cmd.OutOrStdout(), "API key removed from keyring")
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretDeleteCmd)
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	var secret string
	if len(args) == 1 {
		secret = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest, "No API key given on standard input", err)
		}
		secret = line
	}

	if err := config.SetKeyringSecret(cfg.Keyring, strings.TrimSpace(secret)); err != nil {
		return err
	}
	logger.Info("Keyring secret stored", "service", cfg.Keyring.Service, "account", cfg.Keyring.Account)
	fmt.Fprintln(cmd.OutOrStdout(), "API key stored in keyring")
	return nil
}
