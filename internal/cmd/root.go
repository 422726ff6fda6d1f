package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shoplane/schat/internal/api"
	"github.com/shoplane/schat/internal/debug"
	"github.com/shoplane/schat/internal/outfmt"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output  string
	JSON    bool
	Query   string
	JQ      string
	Compact bool
	Quiet   bool
	Debug   bool
	URL     string
	Token   string
	Timeout time.Duration
}

// flags holds the global command flags. This is package-level mutable state
// that MUST be reset at the start of every Execute() call. Tests depend on
// this reset to get clean state; any code that reads flags outside of a
// command's RunE is reading stale data from the previous Execute() call.
var flags = rootFlags{
	Output:  defaultOutput(),
	Timeout: api.DefaultTimeout,
}

func defaultOutput() string {
	value := strings.TrimSpace(os.Getenv("SCHAT_OUTPUT"))
	if value != "" {
		return normalizeOutputFormat(value)
	}
	return "text"
}

func normalizeOutputFormat(value string) string {
	value = strings.TrimSpace(value)
	if value == "ndjson" {
		return "jsonl"
	}
	return value
}

// loadSchatEnv loads environment variables from ~/.config/schat/.env if the
// file exists. Variables already set in the environment are not overwritten,
// so explicit exports always take precedence.
func loadSchatEnv() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	path := filepath.Join(home, ".config", "schat", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	// Auto-load credentials from ~/.config/schat/.env when present. This runs
	// before the flag-default reset so that SCHAT_OUTPUT and other env-driven
	// defaults pick up the values.
	loadSchatEnv()

	// Reset flags to defaults for each execution. This is critical for test
	// isolation — see the invariant comment on the flags declaration above.
	flags = rootFlags{
		Output:  defaultOutput(),
		Timeout: api.DefaultTimeout,
	}

	root := &cobra.Command{
		Use:                "schat",
		Short:              "Shoplane support chat for your terminal",
		Long:               "schat keeps one support conversation in sync across live push and polling,\nso you can talk to the Shoplane team without leaving your shell.",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true, // We provide our own did-you-mean via enhanceUnknownError
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			flags.Output = normalizeOutputFormat(flags.Output)

			// Ensure JSON output when requested or required
			if flags.JSON {
				if cmd.Flags().Changed("output") && flags.Output != "json" {
					return fmt.Errorf("--json conflicts with --output %s", flags.Output)
				}
				flags.Output = "json"
			}
			query := flags.JQ
			if query == "" {
				query = flags.Query
			}
			if query != "" && flags.Output != "json" && flags.Output != "jsonl" {
				if cmd.Flags().Changed("output") {
					return fmt.Errorf("--query/--jq require --output json or jsonl (or --json)")
				}
				flags.Output = "json"
			}

			mode, err := outfmt.Parse(flags.Output)
			if err != nil {
				return err
			}
			ctx = outfmt.WithMode(ctx, mode)
			ctx = outfmt.WithCompact(ctx, flags.Compact)
			if query != "" {
				ctx = outfmt.WithQuery(ctx, query)
			}

			debug.SetupLogger(flags.Debug)
			ctx = debug.WithDebug(ctx, flags.Debug)

			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)

	root.PersistentFlags().StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl|ndjson (env SCHAT_OUTPUT)")
	root.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Shorthand for --output json")
	root.PersistentFlags().StringVarP(&flags.Query, "query", "q", "", "JQ expression to filter JSON output")
	root.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Alias for --query")
	root.PersistentFlags().BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	root.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "Q", false, "Suppress non-essential output")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flags.URL, "url", "", "Storefront base URL (overrides stored account)")
	root.PersistentFlags().StringVar(&flags.Token, "token", "", "API token (overrides stored account)")
	root.PersistentFlags().DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newWidgetCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			enhanced := enhanceUnknownError(err, root, targetCmd)
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanced)
		}
		return err
	}
	return nil
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command/flag errors.
// targetCmd is the command Cobra resolved before the error (may be root itself).
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	// Unknown command: `unknown command "foo" for "schat"`
	if strings.Contains(msg, "unknown command") {
		unknown := extractQuoted(msg)
		if unknown != "" {
			var names []string
			for _, c := range root.Commands() {
				if c.IsAvailableCommand() || c.Name() == "help" {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestion := suggestCommand(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
			}
		}
	}

	// Unknown flag: "--foo", shorthand "-f", or similarly malformed flag usage.
	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "flag provided but not defined") || strings.Contains(msg, "unknown shorthand flag") {
		unknown := extractFlag(msg)
		if unknown != "" {
			seen := make(map[string]bool)
			var flagNames []string
			addFlags := func(fs *pflag.FlagSet) {
				fs.VisitAll(func(f *pflag.Flag) {
					name := "--" + f.Name
					if !seen[name] {
						seen[name] = true
						flagNames = append(flagNames, name)
					}
					if f.Shorthand != "" {
						short := "-" + f.Shorthand
						if !seen[short] {
							seen[short] = true
							flagNames = append(flagNames, short)
						}
					}
				})
			}
			if targetCmd != nil {
				addFlags(targetCmd.Flags())
				addFlags(targetCmd.InheritedFlags())
			} else {
				addFlags(root.Flags())
				addFlags(root.PersistentFlags())
			}
			helpCmd := "schat --help"
			if targetCmd != nil {
				if commandPath := strings.TrimSpace(targetCmd.CommandPath()); commandPath != "" {
					helpCmd = commandPath + " --help"
				}
			}
			if suggestion := suggestFlag(unknown, flagNames); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
			}
			return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
		}
	}

	return msg
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name (e.g., "--foo") from an error message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		// Fallback for shorthand errors like:
		// "unknown shorthand flag: 'a' in -a"
		idx = strings.LastIndex(s, " -")
		if idx < 0 {
			return ""
		}
		rest := strings.TrimSpace(s[idx+1:])
		end := strings.IndexByte(rest, ' ')
		if end >= 0 {
			rest = rest[:end]
		}
		rest = strings.TrimRight(rest, ".,;:!?\"'")
		if strings.HasPrefix(rest, "-") && len(rest) > 1 {
			return rest
		}
		return ""
	}
	rest := s[idx:]
	end := strings.IndexByte(rest, ' ')
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimRight(rest[:end], ".,;:!?\"'")
}
