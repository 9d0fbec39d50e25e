package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/pkg/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeAccounts struct {
	account *models.SocialAccount
	stored  *models.SocialAccount
}

func (f *fakeAccounts) GetByPlatform(_ context.Context, userID, tenantID int64, platform string) (*models.SocialAccount, error) {
	if f.account == nil || f.account.UserID != userID || f.account.TenantID != tenantID || f.account.Platform != platform {
		return nil, nil
	}
	c := *f.account
	return &c, nil
}

func (f *fakeAccounts) SetToken(_ context.Context, _ int64, _ string, sa *models.SocialAccount) error {
	f.stored = sa
	return nil
}

func encrypted(t *testing.T, s string) string {
	t.Helper()
	out, err := utils.Encrypt([]byte(s), []byte(testSecret))
	require.NoError(t, err)
	return out
}

func youtubeAccount(t *testing.T, expires time.Time) *models.SocialAccount {
	return &models.SocialAccount{
		ID:              5,
		UserID:          testUser,
		TenantID:        testTenant,
		Platform:        "youtube",
		AccountID:       "UC123",
		AccountUsername: "channel",
		AccessToken:     encrypted(t, "old-access"),
		RefreshToken:    encrypted(t, "refresh-1"),
		TokenExpiresAt:  expires,
	}
}

func tokenServer(t *testing.T, status int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func refreshers(url string) map[string]*oauth2.Config {
	return map[string]*oauth2.Config{
		"youtube": {ClientID: "id", ClientSecret: "secret", Endpoint: oauth2.Endpoint{TokenURL: url}},
	}
}

func TestGetAccessToken(t *testing.T) {
	ctx := context.Background()
	ref := models.CredentialRef{UserID: testUser, TenantID: testTenant, Platform: "youtube"}

	t.Run("valid token", func(t *testing.T) {
		accounts := &fakeAccounts{account: youtubeAccount(t, time.Now().Add(time.Hour))}
		cred, err := NewCredentialService(accounts, testSecret, nil).GetAccessToken(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "old-access", cred.AccessToken)
		assert.Equal(t, "UC123", cred.Account.ID)
		assert.Equal(t, "channel", cred.Account.Username)
	})

	t.Run("non-expiring token", func(t *testing.T) {
		accounts := &fakeAccounts{account: youtubeAccount(t, time.Time{})}
		cred, err := NewCredentialService(accounts, testSecret, nil).GetAccessToken(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "old-access", cred.AccessToken)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := NewCredentialService(&fakeAccounts{}, testSecret, nil).GetAccessToken(ctx, ref)
		var credErr *models.CredentialError
		require.ErrorAs(t, err, &credErr)
		assert.Equal(t, "youtube", credErr.Platform)
		assert.ErrorIs(t, err, models.ErrNoCredential)
	})

	t.Run("expired without refresher", func(t *testing.T) {
		accounts := &fakeAccounts{account: youtubeAccount(t, time.Now().Add(-time.Hour))}
		_, err := NewCredentialService(accounts, testSecret, nil).GetAccessToken(ctx, ref)
		assert.ErrorIs(t, err, models.ErrExpiredCredential)
	})

	t.Run("expired and refreshed", func(t *testing.T) {
		srv := tokenServer(t, http.StatusOK)
		accounts := &fakeAccounts{account: youtubeAccount(t, time.Now().Add(30*time.Second))}

		cred, err := NewCredentialService(accounts, testSecret, refreshers(srv.URL)).GetAccessToken(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "new-access", cred.AccessToken)
		assert.True(t, cred.ExpiresAt.After(time.Now()))

		require.NotNil(t, accounts.stored)
		stored, err := utils.Decrypt(accounts.stored.AccessToken, []byte(testSecret))
		require.NoError(t, err)
		assert.Equal(t, "new-access", stored)
		assert.Empty(t, accounts.stored.RefreshToken, "unchanged refresh token is not rewritten")
	})

	t.Run("refresh rejected", func(t *testing.T) {
		srv := tokenServer(t, http.StatusBadRequest)
		accounts := &fakeAccounts{account: youtubeAccount(t, time.Now().Add(-time.Minute))}

		_, err := NewCredentialService(accounts, testSecret, refreshers(srv.URL)).GetAccessToken(ctx, ref)
		assert.ErrorIs(t, err, models.ErrExpiredCredential)
		assert.Nil(t, accounts.stored)
	})
}
