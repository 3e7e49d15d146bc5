package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoAccessToken is returned when authentication succeeds without a token.
var ErrNoAccessToken = errors.New("authentication response did not include an access token")

// AuthenticateWithCredentials exchanges Metrc credentials for a bearer token
// and stores it on the client.
func (c *Client) AuthenticateWithCredentials(ctx context.Context, creds CredentialsRequest) (*AuthResponse, error) {
	if err := validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	return c.authenticate(ctx, "/v2/auth/credentials", creds)
}

// AuthenticateWithAPIKey exchanges an API key for a bearer token and stores
// it on the client.
func (c *Client) AuthenticateWithAPIKey(ctx context.Context, req APIKeyRequest) (*AuthResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid api key request: %w", err)
	}
	return c.authenticate(ctx, "/v2/auth/apikey", req)
}

func (c *Client) authenticate(ctx context.Context, endpoint string, body any) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.GetData(ctx, endpoint, RequestOptions{
		Method:         http.MethodPost,
		Body:           body,
		ExpectedStatus: []int{http.StatusOK},
		Public:         true,
		NoCache:        true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	c.SetAccessToken(resp.AccessToken)
	c.logger.Info().Str("endpoint", endpoint).Msg("Authenticated")
	return &resp, nil
}
