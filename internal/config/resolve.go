package config

import (
	"fmt"
	"strings"
)

// ClientConfig contains resolved API client settings.
type ClientConfig struct {
	BaseURL string
	Token   string
}

// ResolveClientConfig resolves client settings from the stored account,
// environment, and command-line overrides, in increasing precedence.
func ResolveClientConfig(baseURLOverride, tokenOverride string) (ClientConfig, error) {
	var cfg ClientConfig

	account, err := LoadAccount()
	if err == nil {
		cfg.BaseURL = account.BaseURL
		cfg.Token = account.Token
	}

	if baseURLOverride != "" {
		cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(baseURLOverride), "/")
	}
	if tokenOverride != "" {
		cfg.Token = strings.TrimSpace(tokenOverride)
	}

	if cfg.BaseURL == "" || cfg.Token == "" {
		if err != nil {
			return ClientConfig{}, err
		}
		return ClientConfig{}, fmt.Errorf("storefront not configured (set %s and %s, run 'schat auth login', or pass --url and --token)", envBaseURL, envToken)
	}

	return cfg, nil
}
