package webex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthConfig_AuthCodeURL(t *testing.T) {
	config := OAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/callback",
	}

	authURL := config.AuthCodeURL("test-state")
	parsedURL, err := url.Parse(authURL)
	require.NoError(t, err)

	assert.Equal(t, "/v1/authorize", parsedURL.Path)
	query := parsedURL.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "test-client-id", query.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/callback", query.Get("redirect_uri"))
	assert.Equal(t, "test-state", query.Get("state"))
	assert.Contains(t, query.Get("scope"), "meeting:schedules_write")
}

func TestOAuthConfig_Exchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/access_token", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "test-code", r.Form.Get("code"))
		assert.Equal(t, "test-client-id", r.Form.Get("client_id"))
		assert.Equal(t, "test-client-secret", r.Form.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "test-access-token",
			"refresh_token": "test-refresh-token",
			"expires_in":    1209599,
		})
	}))
	defer server.Close()

	config := OAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/callback",
		BaseURL:      server.URL,
	}

	token, err := config.Exchange(context.Background(), "test-code")
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", token.AccessToken)
	assert.Equal(t, "test-refresh-token", token.RefreshToken)
	assert.Equal(t, 1209599, token.ExpiresIn)
}

func TestOAuthConfig_RefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh-token", r.Form.Get("refresh_token"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access-token",
			"refresh_token": "new-refresh-token",
		})
	}))
	defer server.Close()

	config := OAuthConfig{ClientID: "id", ClientSecret: "secret", BaseURL: server.URL}

	token, err := config.RefreshToken(context.Background(), "old-refresh-token")
	require.NoError(t, err)
	assert.Equal(t, "new-access-token", token.AccessToken)
	assert.Equal(t, "new-refresh-token", token.RefreshToken)
}

func TestOAuthConfig_RefreshTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid refresh token","errors":[{"description":"refresh token expired"}]}`))
	}))
	defer server.Close()

	config := OAuthConfig{ClientID: "id", ClientSecret: "secret", BaseURL: server.URL}

	_, err := config.RefreshToken(context.Background(), "stale")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token refresh failed")
	assert.Equal(t, []string{"refresh token expired"}, ErrorDetails(err))
}
