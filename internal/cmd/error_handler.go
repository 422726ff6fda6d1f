package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shoplane/schat/internal/api"
	"github.com/shoplane/schat/internal/config"
	"github.com/shoplane/schat/internal/widget"
)

// HandleError processes an error and returns a user-friendly message with suggestions
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var apiErr *api.APIError
	var rateLimitErr *api.RateLimitError
	var authErr *api.AuthError

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		msg.WriteString("Not logged in.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: schat auth login\n")
		msg.WriteString("  - Or set SCHAT_URL and SCHAT_TOKEN\n")

	case errors.Is(err, widget.ErrAdminAccount):
		msg.WriteString("This account is a support agent.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - The chat widget is for customers only\n")
		msg.WriteString("  - Use the admin dashboard to answer chats\n")

	case errors.As(err, &rateLimitErr):
		msg.WriteString("Rate limit exceeded.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Wait a few seconds and retry\n")
		msg.WriteString("  - Reduce request frequency\n")

	case errors.As(err, &authErr):
		fmt.Fprintf(&msg, "Authentication failed: %s\n\n", authErr.Reason)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: schat auth login\n")
		msg.WriteString("  - Verify your token is valid\n")

	case errors.As(err, &apiErr):
		fmt.Fprintf(&msg, "API error (HTTP %d): %s\n\n", apiErr.StatusCode, apiErr.Body)
		msg.WriteString(suggestionsForStatusCode(apiErr.StatusCode))
		if apiErr.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", apiErr.RequestID)
		}

	case strings.Contains(err.Error(), "connection refused"):
		msg.WriteString("Connection refused.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check if the storefront is reachable\n")
		msg.WriteString("  - Verify the URL: schat auth status\n")
		msg.WriteString("  - Check your network connection\n")

	case strings.Contains(err.Error(), "no such host"):
		msg.WriteString("DNS resolution failed.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the storefront URL spelling\n")
		msg.WriteString("  - Verify your DNS settings\n")

	case strings.Contains(err.Error(), "certificate"):
		msg.WriteString("TLS certificate error.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Verify the server's SSL certificate\n")
		msg.WriteString("  - Ensure you're using https:// correctly\n")

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func suggestionsForStatusCode(code int) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch code {
	case 400, 422:
		suggestions.WriteString("  - Check your input values\n")
		suggestions.WriteString("  - Use --debug to see the full request\n")

	case 401:
		suggestions.WriteString("  - Your token may be invalid or expired\n")
		suggestions.WriteString("  - Run: schat auth login\n")

	case 403:
		suggestions.WriteString("  - You don't have permission for this action\n")
		suggestions.WriteString("  - Check which account you are logged in as\n")

	case 404:
		suggestions.WriteString("  - The resource doesn't exist\n")
		suggestions.WriteString("  - Your chat is created on first contact; try sending a message\n")

	case 429:
		suggestions.WriteString("  - Too many requests\n")
		suggestions.WriteString("  - Wait and retry in a few seconds\n")

	case 500, 502, 503, 504:
		suggestions.WriteString("  - Server error - not your fault\n")
		suggestions.WriteString("  - Wait and retry\n")

	default:
		suggestions.WriteString("  - Use --debug for more details\n")
	}

	return suggestions.String()
}

// ExitWithError prints error with suggestions and exits
func ExitWithError(err error) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprint(os.Stderr, HandleError(err))
	os.Exit(ExitCode(err))
}
