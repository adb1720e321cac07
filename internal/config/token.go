package config

import (
	"fmt"

	"github.com/google/uuid"
)

const tokenKey = "server.api_token"

// EnsureAPIToken returns the bearer token used by the admin endpoints,
// generating and persisting one on first use.
func EnsureAPIToken(b ConfigBackend) (string, error) {
	tok, ok, err := b.GetString(tokenKey)
	if err != nil {
		return "", fmt.Errorf("reading API token: %w", err)
	}
	if ok && tok != "" {
		return tok, nil
	}

	tok = uuid.New().String()
	if err := b.SetString(tokenKey, tok); err != nil {
		return "", fmt.Errorf("persisting API token: %w", err)
	}
	return tok, nil
}
