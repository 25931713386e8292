// Package auth exposes the narrow surface the client needs from the
// external auth gateway: a bearer token. Token acquisition and refresh
// live outside this subsystem.
package auth

import (
	"context"
	"errors"
	"os"
)

// ErrNoToken means no bearer token is available. This is fatal for the
// subsystem: no session can be created or restored without one, and the
// caller is expected to redirect the user to re-authenticate.
var ErrNoToken = errors.New("auth: no bearer token available")

// ErrUnauthorized means the remote rejected the token. Like ErrNoToken it
// is fatal to the subsystem until the user re-authenticates.
var ErrUnauthorized = errors.New("auth: token rejected by remote")

// TokenSource supplies the bearer token attached to every remote call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed-token source.
type Static string

func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// EnvSource reads the token from an environment variable on every call,
// so an external refresher can rotate it without restarting the client.
type EnvSource string

func (e EnvSource) Token(ctx context.Context) (string, error) {
	token := os.Getenv(string(e))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
