package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shoplane/schat/internal/api"
	"github.com/shoplane/schat/internal/config"
)

// newAuthCmd returns the auth command with subcommands
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication credentials",
		Long:  "Configure and manage Shoplane API credentials stored securely in your OS keychain.",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())

	return cmd
}

// newAuthLoginCmd creates the auth login command
func newAuthLoginCmd() *cobra.Command {
	var (
		url      string
		token    string
		envFile  string
		noVerify bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save API credentials to the keychain",
		Long: strings.TrimSpace(`
Save Shoplane chat credentials securely to your OS keychain.

You'll need:
- Base URL: Your storefront URL (e.g. https://shop.example.com)
- API Token: Generate from Account > Settings > API Access

The credentials are verified against the storefront before saving
unless --no-verify is given.
`),
		Example: strings.TrimSpace(`
  # Login with flags
  schat auth login --url https://shop.example.com --token YOUR_TOKEN

  # Load credentials from a .env file
  schat auth login --env-file .env
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				envVars, err := loadAuthEnvFile(envFile)
				if err != nil {
					return err
				}
				applyAuthEnvFileRuntimeVars(envVars)

				if url == "" {
					url = strings.TrimSpace(envVars["SCHAT_URL"])
				}
				if token == "" {
					token = strings.TrimSpace(envVars["SCHAT_TOKEN"])
				}
			}

			if url == "" {
				return fmt.Errorf("--url is required")
			}
			if token == "" {
				return fmt.Errorf("--token is required")
			}

			url = strings.TrimSuffix(url, "/")

			account := config.Account{
				BaseURL: url,
				Token:   token,
			}

			if !noVerify {
				client := api.New(url, token)
				client.UserAgent = "schat/" + version
				profile, err := client.Profile().Get(cmd.Context())
				if err != nil {
					return fmt.Errorf("credential check failed: %w", err)
				}
				printIfNotQuiet(cmd, "Verified as %s\n", profile.Name)
			}

			if err := config.SaveAccount(account); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Credentials saved successfully!")
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Base URL: %s\n", url)
			return nil
		}),
	}

	cmd.Flags().StringVar(&url, "url", "", "Storefront base URL (e.g. https://shop.example.com)")
	cmd.Flags().StringVar(&token, "token", "", "API access token")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load SCHAT_* values from a .env file")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip the credential check against the storefront")

	return cmd
}

func loadAuthEnvFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--env-file requires a file path")
	}

	envVars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read --env-file %q: %w", path, err)
	}

	return envVars, nil
}

// applyAuthEnvFileRuntimeVars copies keyring/runtime settings from --env-file
// into process environment when they are not already exported.
func applyAuthEnvFileRuntimeVars(envVars map[string]string) {
	keys := []string{
		"SCHAT_KEYRING_BACKEND",
		"SCHAT_KEYRING_PASSWORD",
		"SCHAT_CREDENTIALS_DIR",
	}

	for _, key := range keys {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		value := strings.TrimSpace(envVars[key])
		if value == "" {
			continue
		}
		_ = os.Setenv(key, value)
	}
}

// newAuthStatusCmd creates the auth status command
func newAuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current authentication configuration",
		Long:  "Display the currently saved authentication configuration (API token is masked for security).",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			envURL := strings.TrimSpace(os.Getenv("SCHAT_URL"))
			envToken := strings.TrimSpace(os.Getenv("SCHAT_TOKEN"))
			usingEnv := envURL != "" && envToken != ""

			account, err := config.LoadAccount()
			if err != nil {
				if err == config.ErrNotConfigured {
					if isJSON(cmd) {
						return printJSON(cmd, map[string]any{
							"authenticated": false,
							"message":       "Not authenticated. Run 'schat auth login' to configure credentials.",
						})
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not authenticated.")
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'schat auth login' to configure credentials.")
					return nil
				}
				return fmt.Errorf("failed to load credentials: %w", err)
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"authenticated": true,
					"base_url":      account.BaseURL,
					"token":         maskToken(account.Token),
					"source":        map[bool]string{true: "env", false: "keychain"}[usingEnv],
				})
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Authenticated")
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Base URL: %s\n", account.BaseURL)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Token: %s\n", maskToken(account.Token))
			if usingEnv {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "  Source: env")
			}
			return nil
		}),
	}

	return cmd
}

// newAuthLogoutCmd creates the auth logout command
func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove credentials from keychain",
		Long:  "Delete the stored authentication credentials from your OS keychain.",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if !config.HasAccount() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No credentials found.")
				return nil
			}

			if err := config.DeleteAccount(); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed successfully.")
			return nil
		}),
	}
}

// maskToken masks an API token for display, showing only first and last 4 characters
func maskToken(token string) string {
	if len(token) < 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
