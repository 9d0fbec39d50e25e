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

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByUserID(ctx context.Context, userID, tenantID int64) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID, tenantID int64) (bool, error)
	UpdatePostStatus(ctx context.Context, status string, postID int64) error
	UpdateOutcome(ctx context.Context, postID int64, status string, failures models.StringMap) error
	UpdateSchedule(ctx context.Context, postID int64, scheduledTime *time.Time, status string) error
	SetPlatformFailure(ctx context.Context, postID int64, platform, reason string) error
	ClearPlatformFailure(ctx context.Context, postID int64, platform string) error
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, tenant_id, title, caption, media, platforms, status, scheduled_time,
	failure_reasons, platform_overrides, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, tenant_id, title, caption, media, platforms, status, scheduled_time, failure_reasons, platform_overrides)
		VALUES (:user_id, :tenant_id, :title, :caption, :media, :platforms, :status, :scheduled_time, :failure_reasons, :platform_overrides)
		RETURNING id
	`
	rows, err := r.db.NamedQueryContext(ctx, query, post)
	if err != nil {
		log.Error().Err(err).Msg("insert post")
		return 0, err
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, rows.Err()
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	err := r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		log.Error().Err(err).Int64("post_id", id).Msg("get post")
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID, tenantID int64) ([]*models.Post, error) {
	var posts []*models.Post
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 AND tenant_id = $2 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &posts, query, userID, tenantID); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("list posts")
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID, tenantID int64) (bool, error) {
	var result int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2 AND tenant_id = $3", postID, userID, tenantID).Scan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		log.Error().Err(err).Msg("check post owner")
		return false, err
	}
	return result == 1, nil
}

func (r *postRepository) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		log.Error().Err(err).Int64("post_id", postID).Msg("update post status")
		return err
	}
	return nil
}

// UpdateOutcome stores the aggregate result of a publish run.
func (r *postRepository) UpdateOutcome(ctx context.Context, postID int64, status string, failures models.StringMap) error {
	if failures == nil {
		failures = models.StringMap{}
	}
	query := `
		UPDATE posts
		SET status = $1,
			failure_reasons = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, failures, time.Now(), postID)
	if err != nil {
		log.Error().Err(err).Int64("post_id", postID).Msg("update post outcome")
		return err
	}
	return nil
}

func (r *postRepository) UpdateSchedule(ctx context.Context, postID int64, scheduledTime *time.Time, status string) error {
	query := `
		UPDATE posts
		SET scheduled_time = $1,
			status = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, scheduledTime, status, time.Now(), postID)
	if err != nil {
		log.Error().Err(err).Int64("post_id", postID).Msg("update post schedule")
		return err
	}
	return nil
}

// SetPlatformFailure adds or replaces one entry of the failure map in place.
func (r *postRepository) SetPlatformFailure(ctx context.Context, postID int64, platform, reason string) error {
	query := `
		UPDATE posts
		SET failure_reasons = COALESCE(failure_reasons, '{}'::jsonb) || jsonb_build_object($1::text, $2::text),
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, platform, reason, time.Now(), postID)
	if err != nil {
		log.Error().Err(err).Int64("post_id", postID).Msg("set platform failure")
		return err
	}
	return nil
}

func (r *postRepository) ClearPlatformFailure(ctx context.Context, postID int64, platform string) error {
	query := `
		UPDATE posts
		SET failure_reasons = COALESCE(failure_reasons, '{}'::jsonb) - $1::text,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, platform, time.Now(), postID)
	if err != nil {
		log.Error().Err(err).Int64("post_id", postID).Msg("clear platform failure")
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		log.Error().Err(err).Int64("post_id", id).Msg("remove post")
		return err
	}
	return nil
}
