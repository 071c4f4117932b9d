package remote

import (
	"context"
	"os"
	"strings"

	"github.com/palmscan/palmscan/internal/config"
	"github.com/palmscan/palmscan/internal/errors"
)

// TokenSource supplies the bearer token of the signed-in user.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", errors.NewUnauthenticated("no bearer token configured")
	}
	return strings.TrimSpace(string(t)), nil
}

// EnvToken reads the bearer token from the named environment variable on every call,
// so a refreshed token is picked up without a restart.
type EnvToken string

// Token implements TokenSource.
func (e EnvToken) Token(context.Context) (string, error) {
	tok := strings.TrimSpace(os.Getenv(string(e)))
	if tok == "" {
		return "", errors.NewUnauthenticated("sign in first: $" + string(e) + " is empty")
	}
	return tok, nil
}

// TokenFromConfig prefers a static token and falls back to the configured
// environment variable.
func TokenFromConfig(cfg config.ServiceConfig) TokenSource {
	if strings.TrimSpace(cfg.Token) != "" {
		return StaticToken(cfg.Token)
	}
	return EnvToken(cfg.TokenEnv)
}
