package httpapi

import (
	"context"
	"errors"

	"github.com/parleyhq/parley/remote"
)

var _ remote.CredentialProvider = StaticTokenCredential("")

// StaticTokenCredential supplies a fixed bearer token, typically read from
// the environment at startup. The token is treated as opaque.
type StaticTokenCredential string

// Token returns the configured token.
func (c StaticTokenCredential) Token(ctx context.Context) (string, error) {
	if c == "" {
		return "", errors.New("no credential configured")
	}
	return string(c), nil
}
