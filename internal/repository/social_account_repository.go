package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/internal/models"
)

type SocialAccountRepository interface {
	GetByPlatform(ctx context.Context, userID, tenantID int64, platform string) (*models.SocialAccount, error)
	SetToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error
}

type socialAccountRepository struct {
	db *sqlx.DB
}

func NewSocialAccountRepository(db *sqlx.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

// GetByPlatform returns the active account a user connected for platform within a tenant.
func (r *socialAccountRepository) GetByPlatform(ctx context.Context, userID, tenantID int64, platform string) (*models.SocialAccount, error) {
	query := `
		SELECT id, user_id, tenant_id, platform, account_id, account_name, account_username,
			profile_picture_url, access_token, refresh_token, token_expires_at, account_status,
			created_at, updated_at
		FROM social_accounts
		WHERE user_id = $1 AND tenant_id = $2 AND platform = $3 AND account_status = 'active'
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var sa models.SocialAccount
	if err := r.db.GetContext(ctx, &sa, query, userID, tenantID, platform); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		log.Error().Err(err).Int64("user_id", userID).Str("platform", platform).Msg("get social account")
		return nil, err
	}
	return &sa, nil
}

// SetToken swaps in refreshed tokens, guarded by the token being replaced so two
// concurrent refreshes cannot clobber each other.
func (r *socialAccountRepository) SetToken(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Error().Err(err).Msg("begin token update")
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE social_accounts
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = COALESCE($5, token_expires_at),
			updated_at = $6
		WHERE id = $1 AND access_token = $2
	`
	result, err := tx.ExecContext(ctx, query, id, oldAccessToken, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt, time.Now())
	if err != nil {
		log.Error().Err(err).Int64("account_id", id).Msg("update token")
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return errors.New("no rows affected; token was already replaced")
	}

	return tx.Commit()
}
