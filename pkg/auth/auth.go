// Package auth builds authenticated T3 API clients from Metrc credentials,
// API keys or pre-issued JWTs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/classvsoftware/t3api-utils/pkg/client"
)

// ErrTokenExpired is returned by NewJWTClient for an expired token.
var ErrTokenExpired = errors.New("token is expired")

// AuthenticationError is returned when a client cannot be authenticated.
type AuthenticationError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NewCredentialsClient authenticates with Metrc credentials and returns the
// authenticated client.
func NewCredentialsClient(ctx context.Context, cfg client.Config, creds Credentials) (*client.Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	c, err := client.New(cfg)
	if err != nil {
		return nil, &AuthenticationError{Reason: "client configuration", Err: err}
	}

	_, err = c.AuthenticateWithCredentials(ctx, client.CredentialsRequest{
		Hostname: creds.Hostname,
		Username: creds.Username,
		Password: creds.Password,
		OTP:      creds.OTP,
		Email:    creds.Email,
	})
	if err != nil {
		c.Close()
		return nil, &AuthenticationError{Reason: "T3 API credentials authentication", Err: err}
	}

	log.Info().
		Str("hostname", creds.Hostname).
		Str("username", creds.Username).
		Msg("Authenticated with credentials")
	return c, nil
}

// NewAPIKeyClient authenticates with an API key and returns the
// authenticated client. stateCode may be empty.
func NewAPIKeyClient(ctx context.Context, cfg client.Config, apiKey, stateCode string) (*client.Client, error) {
	if apiKey == "" {
		return nil, &AuthenticationError{Reason: "api key is required"}
	}

	c, err := client.New(cfg)
	if err != nil {
		return nil, &AuthenticationError{Reason: "client configuration", Err: err}
	}

	if _, err := c.AuthenticateWithAPIKey(ctx, client.APIKeyRequest{APIKey: apiKey, StateCode: stateCode}); err != nil {
		c.Close()
		return nil, &AuthenticationError{Reason: "T3 API key authentication", Err: err}
	}

	log.Info().Str("state_code", stateCode).Msg("Authenticated with API key")
	return c, nil
}

// NewJWTClient returns a client that uses a pre-issued JWT. The token is
// parsed without verifying its signature; the API remains the authority.
// Malformed and expired tokens are rejected.
func NewJWTClient(cfg client.Config, token string) (*client.Client, error) {
	if token == "" {
		return nil, &AuthenticationError{Reason: "JWT token is required"}
	}

	expires, err := TokenExpiry(token)
	if err != nil {
		return nil, &AuthenticationError{Reason: "invalid JWT", Err: err}
	}
	if !expires.IsZero() && time.Now().After(expires) {
		return nil, &AuthenticationError{
			Reason: fmt.Sprintf("JWT expired at %s", expires.UTC().Format(time.RFC3339)),
			Err:    ErrTokenExpired,
		}
	}

	c, err := client.New(cfg)
	if err != nil {
		return nil, &AuthenticationError{Reason: "client configuration", Err: err}
	}
	c.SetAccessToken(token)

	log.Debug().Time("expires", expires).Msg("Using pre-issued JWT")
	return c, nil
}

// TokenExpiry returns the exp claim of token, zero when it has none.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
