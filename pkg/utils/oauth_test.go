package utils

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jakechorley/volunteer-hours/internal/config"
)

func testOAuthClient() *config.OAuthClientConfig {
	return &config.OAuthClientConfig{
		Installed: config.OAuthInstalled{
			ClientID:                "volunteer-hours.apps.googleusercontent.com",
			ProjectID:               "volunteer-hours",
			AuthURI:                 "https://accounts.google.com/o/oauth2/auth",
			TokenURI:                "https://oauth2.googleapis.com/token",
			AuthProviderX509CertURL: "https://www.googleapis.com/oauth2/v1/certs",
			ClientSecret:            "test-secret",
			RedirectURIs:            []string{"http://localhost"},
		},
	}
}

func TestGetOAuthConfig(t *testing.T) {
	cfg, err := GetOAuthConfig(testOAuthClient())
	require.NoError(t, err)

	assert.Equal(t, "volunteer-hours.apps.googleusercontent.com", cfg.ClientID)
	assert.Equal(t, []string{ScopeGmailSend}, cfg.Scopes)
	assert.Equal(t, "http://localhost:3000/oauth/callback", cfg.RedirectURL)
}

func TestTokenFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(TokenDirEnv, dir)

	missing, err := LoadTokenFromFile("test")
	require.NoError(t, err)
	assert.Nil(t, missing)

	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour).Round(time.Second)}
	require.NoError(t, SaveTokenToFile("test", token))

	path, err := TokenFilePath("test")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "token-test.json"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(tokenFilePerms), info.Mode().Perm())

	loaded, err := LoadTokenFromFile("test")
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)
	assert.Equal(t, "refresh", loaded.RefreshToken)

	require.NoError(t, DeleteTokenFile("test"))
	require.NoError(t, DeleteTokenFile("test"))
	gone, err := LoadTokenFromFile("test")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestLoadTokenFromFile_Corrupt(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(TokenDirEnv, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "token-test.json"), []byte("{not json"), 0600))

	_, err := LoadTokenFromFile("test")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse token file")
}

func TestLoadToken(t *testing.T) {
	oauthCfg, err := GetOAuthConfig(testOAuthClient())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("no stored token", func(t *testing.T) {
		t.Setenv(TokenDirEnv, t.TempDir())

		_, err := LoadToken(ctx, oauthCfg, "test", zap.NewNop())
		assert.True(t, errors.Is(err, ErrNoToken))
	})

	t.Run("valid stored token", func(t *testing.T) {
		t.Setenv(TokenDirEnv, t.TempDir())
		require.NoError(t, SaveTokenToFile("test", &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)}))

		token, err := LoadToken(ctx, oauthCfg, "test", zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "access", token.AccessToken)
	})

	t.Run("expired without refresh token", func(t *testing.T) {
		t.Setenv(TokenDirEnv, t.TempDir())
		require.NoError(t, SaveTokenToFile("test", &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(-time.Hour)}))

		_, err := LoadToken(ctx, oauthCfg, "test", zap.NewNop())
		assert.ErrorIs(t, err, ErrNoToken)
	})
}

func TestMissingScopes(t *testing.T) {
	assert.Empty(t, missingScopes("openid "+ScopeGmailSend))
	assert.Equal(t, []string{ScopeGmailSend}, missingScopes("https://www.googleapis.com/auth/spreadsheets"))
	assert.Equal(t, []string{ScopeGmailSend}, missingScopes(""))
}
