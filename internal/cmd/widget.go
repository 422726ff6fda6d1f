package cmd

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/shoplane/schat/internal/api"
	"github.com/shoplane/schat/internal/cache"
	"github.com/shoplane/schat/internal/widget"
)

// newWidgetCmd returns the widget command with subcommands
func newWidgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "widget",
		Aliases: []string{"w", "chat"},
		Short:   "Talk to Shoplane support",
		Long:    "Open the live chat widget, review your conversation, or fire off a single message.",
	}

	cmd.AddCommand(newWidgetOpenCmd())
	cmd.AddCommand(newWidgetHistoryCmd())
	cmd.AddCommand(newWidgetSendCmd())

	return cmd
}

// newWidgetOpenCmd creates the interactive widget session command
func newWidgetOpenCmd() *cobra.Command {
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open an interactive chat session",
		Long: strings.TrimSpace(`
Open a live chat session with Shoplane support.

Messages you type are sent over the push channel when it is up, falling
back to the REST API when it is not. Replies appear as they arrive; a
background poll catches anything the live connection missed.

Type /quit (or press Ctrl+D) to leave. The transcript survives on the
server; reopening the widget picks up where you left off.
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			var lastStatus string
			sess := widget.NewSession(client, widget.Options{
				PollInterval: pollInterval,
				OnMessage: func(m api.Message) {
					_, _ = fmt.Fprintln(out, formatMessage(m))
				},
				OnStatus: func(status string) {
					if status != "" && status != lastStatus {
						_, _ = fmt.Fprintf(errOut, "! %s\n", status)
					}
					lastStatus = status
				},
			})

			if err := sess.Open(cmd.Context()); err != nil {
				return err
			}
			defer func() {
				cacheTranscript(client.BaseURL, sess.Messages())
				sess.Close()
			}()

			if profile := sess.Profile(); profile != nil {
				printIfNotQuiet(cmd, "Connected as %s. Type a message and press Enter; /quit to leave.\n", profile.Name)
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "/quit" || line == "/exit" {
					break
				}
				if err := sess.Send(cmd.Context(), line); err != nil {
					_, _ = fmt.Fprint(errOut, HandleError(err))
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			printIfNotQuiet(cmd, "Bye.\n")
			return nil
		}),
	}

	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Background refresh interval (default 15s)")

	return cmd
}

// newWidgetHistoryCmd creates the conversation history command
func newWidgetHistoryCmd() *cobra.Command {
	var (
		limit   int
		refresh bool
		find    string
	)

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"log"},
		Short:   "Show your conversation history",
		Long:    "Fetch the conversation transcript over REST. Results are cached briefly; use --refresh to force a fetch.",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			store := transcriptStore(client.BaseURL)
			var messages []api.Message
			fromCache := false
			if store != nil && !refresh {
				fromCache = store.Get(&messages)
			}

			if !fromCache {
				chat, err := client.Chats().GetMine(cmd.Context())
				if err != nil {
					if api.IsNotFoundError(err) {
						printIfNotQuiet(cmd, "No conversation yet. Send a message to start one.\n")
						if isJSON(cmd) {
							return printJSON(cmd, []api.Message{})
						}
						return nil
					}
					return err
				}
				messages, err = client.Messages().List(cmd.Context(), chat.ID)
				if err != nil {
					return err
				}
				if store != nil {
					store.Put(messages)
				}
			}

			if find != "" {
				messages = fuzzyFilterMessages(find, messages)
			}
			if limit > 0 && len(messages) > limit {
				messages = messages[len(messages)-limit:]
			}

			if isJSON(cmd) {
				return printJSON(cmd, messages)
			}

			if len(messages) == 0 {
				printIfNotQuiet(cmd, "No messages yet.\n")
				return nil
			}
			tw := newTabWriter(cmd.OutOrStdout())
			for i := range messages {
				m := &messages[i]
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", formatTimestamp(m.CreatedAtTime()), senderLabel(m), m.Content)
			}
			return tw.Flush()
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the last N messages")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the local cache")
	cmd.Flags().StringVar(&find, "find", "", "Fuzzy-filter messages by content")

	return cmd
}

// newWidgetSendCmd creates the one-shot send command
func newWidgetSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send a single message",
		Long:  "Send one message to support without opening an interactive session. Creates the conversation on first contact.",
		Example: strings.TrimSpace(`
  # Ask a question
  schat widget send "Where is my order #1042?"
`),
		Args: cobra.MinimumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				return fmt.Errorf("message cannot be empty")
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			chat, err := client.Chats().EnsureMine(cmd.Context())
			if err != nil {
				return err
			}
			sent, err := client.Messages().Create(cmd.Context(), chat.ID, content)
			if err != nil {
				return err
			}

			// The cached transcript is now stale.
			if store := transcriptStore(client.BaseURL); store != nil {
				store.Clear()
			}

			if isJSON(cmd) {
				return printJSON(cmd, sent)
			}
			printIfNotQuiet(cmd, "Sent.\n")
			return nil
		}),
	}

	return cmd
}

func transcriptStore(baseURL string) *cache.Store {
	dir := resolveCacheDir()
	if dir == "" {
		return nil
	}
	return cache.NewStore(dir, "transcript", baseURL)
}

func cacheTranscript(baseURL string, messages []api.Message) {
	if len(messages) == 0 {
		return
	}
	if store := transcriptStore(baseURL); store != nil {
		store.Put(messages)
	}
}

// messageContents adapts a message slice to fuzzy.Source.
type messageContents []api.Message

func (m messageContents) String(i int) string { return m[i].Content }
func (m messageContents) Len() int            { return len(m) }

// fuzzyFilterMessages keeps messages whose content fuzzy-matches the
// pattern, preserving conversation order.
func fuzzyFilterMessages(pattern string, messages []api.Message) []api.Message {
	matches := fuzzy.FindFrom(pattern, messageContents(messages))
	keep := make(map[int]bool, len(matches))
	for _, match := range matches {
		keep[match.Index] = true
	}
	filtered := make([]api.Message, 0, len(matches))
	for i := range messages {
		if keep[i] {
			filtered = append(filtered, messages[i])
		}
	}
	return filtered
}

func senderLabel(m *api.Message) string {
	if m.FromCustomer() {
		return "you"
	}
	return "support"
}

// formatMessage renders one transcript line for the interactive session.
func formatMessage(m api.Message) string {
	return fmt.Sprintf("[%s] %s: %s", formatTimestamp(m.CreatedAtTime()), senderLabel(&m), m.Content)
}
