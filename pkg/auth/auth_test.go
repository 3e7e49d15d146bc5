package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/classvsoftware/t3api-utils/internal/testutil"
	"github.com/classvsoftware/t3api-utils/pkg/client"
)

func testConfig(mock *testutil.MockT3) client.Config {
	cfg := client.DefaultConfig()
	cfg.Host = mock.URL()
	cfg.Retry.BackoffFactor = time.Millisecond
	return cfg
}

func signedToken(t *testing.T, expires time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{Subject: "user-1"}
	if !expires.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expires)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestNewCredentialsClient(t *testing.T) {
	mock := testutil.NewMockT3()
	defer mock.Close()

	c, err := NewCredentialsClient(context.Background(), testConfig(mock), Credentials{
		Hostname: "ca.metrc.com",
		Username: testutil.TestUsername,
		Password: testutil.TestPassword,
	})
	if err != nil {
		t.Fatalf("NewCredentialsClient() error = %v", err)
	}
	defer c.Close()

	if c.AccessToken() != testutil.TestToken {
		t.Errorf("AccessToken() = %q", c.AccessToken())
	}
}

func TestNewCredentialsClient_Failures(t *testing.T) {
	mock := testutil.NewMockT3()
	defer mock.Close()

	tests := []struct {
		name         string
		creds        Credentials
		wantRequests int
	}{
		{
			name:         "incomplete credentials",
			creds:        Credentials{Hostname: "ca.metrc.com", Username: testutil.TestUsername},
			wantRequests: 0,
		},
		{
			name:         "rejected by server",
			creds:        Credentials{Hostname: "ca.metrc.com", Username: testutil.TestUsername, Password: "nope"},
			wantRequests: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.Reset()

			_, err := NewCredentialsClient(context.Background(), testConfig(mock), tt.creds)

			var authErr *AuthenticationError
			if !errors.As(err, &authErr) {
				t.Fatalf("error = %v, want *AuthenticationError", err)
			}
			if mock.AuthRequests() != tt.wantRequests {
				t.Errorf("AuthRequests = %d, want %d", mock.AuthRequests(), tt.wantRequests)
			}
		})
	}
}

func TestNewAPIKeyClient(t *testing.T) {
	mock := testutil.NewMockT3()
	defer mock.Close()

	c, err := NewAPIKeyClient(context.Background(), testConfig(mock), testutil.TestAPIKey, "CA")
	if err != nil {
		t.Fatalf("NewAPIKeyClient() error = %v", err)
	}
	defer c.Close()

	if !c.IsAuthenticated() {
		t.Error("client should be authenticated")
	}

	if _, err := NewAPIKeyClient(context.Background(), testConfig(mock), "wrong", ""); err == nil {
		t.Error("expected error for a rejected api key")
	}
	if _, err := NewAPIKeyClient(context.Background(), testConfig(mock), "", ""); err == nil {
		t.Error("expected error for an empty api key")
	}
}

func TestNewJWTClient(t *testing.T) {
	mock := testutil.NewMockT3()
	defer mock.Close()

	tests := []struct {
		name      string
		token     string
		wantErr   bool
		isExpired bool
	}{
		{name: "valid", token: signedToken(t, time.Now().Add(time.Hour))},
		{name: "no expiry", token: signedToken(t, time.Time{})},
		{name: "expired", token: signedToken(t, time.Now().Add(-time.Minute)), wantErr: true, isExpired: true},
		{name: "malformed", token: "not.a.jwt", wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewJWTClient(testConfig(mock), tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewJWTClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.isExpired && !errors.Is(err, ErrTokenExpired) {
				t.Errorf("error = %v, want ErrTokenExpired", err)
			}
			if err == nil && c.AccessToken() != tt.token {
				t.Error("token not attached to client")
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)

	got, err := TokenExpiry(signedToken(t, exp))
	if err != nil {
		t.Fatalf("TokenExpiry() error = %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}
}

func TestAuthenticationError(t *testing.T) {
	inner := errors.New("401")
	err := &AuthenticationError{Reason: "T3 API credentials authentication", Err: inner}

	if got, want := err.Error(), "authentication failed: T3 API credentials authentication: 401"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}
