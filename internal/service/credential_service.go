package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/maheshrc27/postflow/internal/gateway"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/pkg/utils"
)

// expirySkew treats tokens that expire within this window as already expired.
const expirySkew = time.Minute

type Credential struct {
	AccessToken string
	Account     gateway.Account
	ExpiresAt   time.Time
}

type CredentialService interface {
	GetAccessToken(ctx context.Context, ref models.CredentialRef) (*Credential, error)
}

type credentialService struct {
	sa         repository.SocialAccountRepository
	secretKey  []byte
	refreshers map[string]*oauth2.Config
	now        func() time.Time
}

// NewCredentialService resolves stored platform tokens. Platforms with an entry
// in refreshers get expired tokens renewed through their OAuth2 token endpoint.
func NewCredentialService(sa repository.SocialAccountRepository, secretKey string, refreshers map[string]*oauth2.Config) CredentialService {
	return &credentialService{
		sa:         sa,
		secretKey:  []byte(secretKey),
		refreshers: refreshers,
		now:        time.Now,
	}
}

func (s *credentialService) GetAccessToken(ctx context.Context, ref models.CredentialRef) (*Credential, error) {
	acc, err := s.sa.GetByPlatform(ctx, ref.UserID, ref.TenantID, ref.Platform)
	if err != nil {
		return nil, fmt.Errorf("loading %s account: %w", ref.Platform, err)
	}
	if acc == nil {
		return nil, &models.CredentialError{Platform: ref.Platform, Err: models.ErrNoCredential}
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, s.secretKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s token: %w", ref.Platform, err)
	}

	cred := &Credential{
		AccessToken: accessToken,
		ExpiresAt:   acc.TokenExpiresAt,
		Account: gateway.Account{
			ID:       acc.AccountID,
			Username: acc.AccountUsername,
			Name:     acc.AccountName,
		},
	}

	// A zero expiry means the platform issued a non-expiring token.
	if acc.TokenExpiresAt.IsZero() || acc.TokenExpiresAt.After(s.now().Add(expirySkew)) {
		return cred, nil
	}

	conf, ok := s.refreshers[ref.Platform]
	if !ok || acc.RefreshToken == "" {
		return nil, &models.CredentialError{Platform: ref.Platform, Err: models.ErrExpiredCredential}
	}

	token, err := s.refresh(ctx, conf, acc)
	if err != nil {
		log.Warn().Err(err).Str("platform", ref.Platform).Int64("user_id", ref.UserID).Msg("token refresh failed")
		return nil, &models.CredentialError{Platform: ref.Platform, Err: errors.Join(models.ErrExpiredCredential, err)}
	}

	cred.AccessToken = token.AccessToken
	cred.ExpiresAt = token.Expiry
	return cred, nil
}

func (s *credentialService) refresh(ctx context.Context, conf *oauth2.Config, acc *models.SocialAccount) (*oauth2.Token, error) {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, s.secretKey)
	if err != nil {
		return nil, err
	}

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, err
	}

	encryptedAccess, err := utils.Encrypt([]byte(token.AccessToken), s.secretKey)
	if err != nil {
		return nil, err
	}
	updated := &models.SocialAccount{AccessToken: encryptedAccess, TokenExpiresAt: token.Expiry}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		if updated.RefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), s.secretKey); err != nil {
			return nil, err
		}
	}

	if err := s.sa.SetToken(ctx, acc.ID, acc.AccessToken, updated); err != nil {
		// Another worker may have refreshed first; the new token is still valid.
		log.Debug().Err(err).Int64("account_id", acc.ID).Msg("refreshed token not stored")
	}
	return token, nil
}
