package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shoplane/schat/internal/api"
	"github.com/shoplane/schat/internal/cache"
	"github.com/shoplane/schat/internal/config"
	"github.com/shoplane/schat/internal/outfmt"
)

// getClient creates an API client from stored credentials, applying
// global flag overrides.
func getClient() (*api.Client, error) {
	cfg, err := config.ResolveClientConfig(flags.URL, flags.Token)
	if err != nil {
		return nil, err
	}
	client := api.New(cfg.BaseURL, cfg.Token)
	client.UserAgent = "schat/" + version
	if flags.Timeout > 0 {
		client.HTTP.Timeout = flags.Timeout
	}
	return client, nil
}

// newTabWriter creates a tabwriter for text output
func newTabWriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

// printJSON outputs data as JSON with optional jq filtering
func printJSON(cmd *cobra.Command, v any) error {
	query := outfmt.GetQuery(cmd.Context())
	compact := outfmt.IsCompact(cmd.Context())
	return outfmt.WriteJSONFiltered(cmd.OutOrStdout(), v, query, compact)
}

// isJSON checks if the command context wants JSON output
func isJSON(cmd *cobra.Command) bool {
	return outfmt.IsJSON(cmd.Context())
}

// printIfNotQuiet prints to stdout only if not in quiet mode
func printIfNotQuiet(cmd *cobra.Command, format string, args ...any) {
	if !flags.Quiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

func resolveCacheDir() string {
	if dir := os.Getenv("SCHAT_CACHE_DIR"); dir != "" {
		return dir
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		return ""
	}
	return dir
}

const timeLayoutShort = "2006-01-02 15:04"

func formatTimestamp(t time.Time) string {
	return t.Local().Format(timeLayoutShort)
}

// errAlreadyHandled is a sentinel error indicating the error was already printed to stderr.
// Commands using RunE return this to signal Cobra that an error occurred (for exit code)
// without Cobra printing it again (since SilenceErrors is true on root command).
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() error {
	return errAlreadyHandled
}

func (e *handledError) ExitCode() int {
	return e.exitCode
}

// RunE wraps a command function with enhanced error handling
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err != nil {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
			// Return a handled error so tests can still inspect the original message.
			return &handledError{err: err, exitCode: ExitCode(err)}
		}
		return nil
	}
}
