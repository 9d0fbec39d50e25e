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

type PublishRecordRepository interface {
	Upsert(ctx context.Context, rec *models.PublishRecord) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PublishRecord, error)
	GetByPostAndPlatform(ctx context.Context, postID int64, platform string) (*models.PublishRecord, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PublishRecord, error)
	SucceededPlatforms(ctx context.Context, postID int64) ([]string, error)
	UpdatePollingStatus(ctx context.Context, id int64, pendingID, label string) error
	Finalize(ctx context.Context, id int64, pendingID string, fin Finalization) (bool, error)
	MarkFailed(ctx context.Context, id int64, pendingID, label, reason string) (bool, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.PublishRecord, error)
}

// Finalization carries the terminal fields written when a pending publish completes.
type Finalization struct {
	PlatformPostID  string
	PlatformPostURL string
	PollingStatus   string
	PublishedAt     time.Time
}

type publishRecordRepository struct {
	db *sqlx.DB
}

func NewPublishRecordRepository(db *sqlx.DB) PublishRecordRepository {
	return &publishRecordRepository{db: db}
}

const recordColumns = `id, post_id, platform, platform_post_id, platform_post_url, metadata, pending_operation_id,
	polling_status, status, error_message, published_at, created_at, updated_at`

// Upsert writes the record for (post_id, platform), replacing any earlier attempt.
func (r *publishRecordRepository) Upsert(ctx context.Context, rec *models.PublishRecord) (int64, error) {
	if rec.Metadata == nil {
		rec.Metadata = models.JSONMap{}
	}
	query := `
		INSERT INTO publish_records (post_id, platform, platform_post_id, platform_post_url, metadata,
			pending_operation_id, polling_status, status, error_message, published_at)
		VALUES (:post_id, :platform, :platform_post_id, :platform_post_url, :metadata,
			:pending_operation_id, :polling_status, :status, :error_message, :published_at)
		ON CONFLICT (post_id, platform) DO UPDATE SET
			platform_post_id = EXCLUDED.platform_post_id,
			platform_post_url = EXCLUDED.platform_post_url,
			metadata = EXCLUDED.metadata,
			pending_operation_id = EXCLUDED.pending_operation_id,
			polling_status = EXCLUDED.polling_status,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			published_at = EXCLUDED.published_at,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`
	rows, err := r.db.NamedQueryContext(ctx, query, rec)
	if err != nil {
		log.Error().Err(err).Int64("post_id", rec.PostID).Str("platform", rec.Platform).Msg("upsert publish record")
		return 0, err
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

func (r *publishRecordRepository) GetByID(ctx context.Context, id int64) (*models.PublishRecord, error) {
	var rec models.PublishRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+recordColumns+` FROM publish_records WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		log.Error().Err(err).Int64("record_id", id).Msg("get publish record")
		return nil, err
	}
	return &rec, nil
}

func (r *publishRecordRepository) GetByPostAndPlatform(ctx context.Context, postID int64, platform string) (*models.PublishRecord, error) {
	var rec models.PublishRecord
	query := `SELECT ` + recordColumns + ` FROM publish_records WHERE post_id = $1 AND platform = $2`
	if err := r.db.GetContext(ctx, &rec, query, postID, platform); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		log.Error().Err(err).Int64("post_id", postID).Msg("get publish record by platform")
		return nil, err
	}
	return &rec, nil
}

func (r *publishRecordRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishRecord, error) {
	var records []*models.PublishRecord
	query := `SELECT ` + recordColumns + ` FROM publish_records WHERE post_id = $1 ORDER BY platform`
	if err := r.db.SelectContext(ctx, &records, query, postID); err != nil {
		log.Error().Err(err).Int64("post_id", postID).Msg("list publish records")
		return nil, err
	}
	return records, nil
}

// SucceededPlatforms lists platforms whose record reached the published outcome.
func (r *publishRecordRepository) SucceededPlatforms(ctx context.Context, postID int64) ([]string, error) {
	var platforms []string
	query := `SELECT platform FROM publish_records WHERE post_id = $1 AND status = $2 ORDER BY platform`
	if err := r.db.SelectContext(ctx, &platforms, query, postID, models.RecordStatusPublished); err != nil {
		log.Error().Err(err).Int64("post_id", postID).Msg("list succeeded platforms")
		return nil, err
	}
	return platforms, nil
}

func (r *publishRecordRepository) UpdatePollingStatus(ctx context.Context, id int64, pendingID, label string) error {
	query := `
		UPDATE publish_records
		SET polling_status = $1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND pending_operation_id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, label, id, pendingID); err != nil {
		log.Error().Err(err).Int64("record_id", id).Msg("update polling status")
		return err
	}
	return nil
}

// Finalize completes a pending record. It reports false when the pending id was
// already cleared, so a duplicate completion changes nothing.
func (r *publishRecordRepository) Finalize(ctx context.Context, id int64, pendingID string, fin Finalization) (bool, error) {
	query := `
		UPDATE publish_records
		SET platform_post_id = $1,
			platform_post_url = $2,
			polling_status = $3,
			status = $4,
			published_at = $5,
			error_message = '',
			pending_operation_id = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND pending_operation_id = $7
	`
	res, err := r.db.ExecContext(ctx, query, fin.PlatformPostID, fin.PlatformPostURL, fin.PollingStatus,
		models.RecordStatusPublished, fin.PublishedAt, id, pendingID)
	if err != nil {
		log.Error().Err(err).Int64("record_id", id).Msg("finalize publish record")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *publishRecordRepository) MarkFailed(ctx context.Context, id int64, pendingID, label, reason string) (bool, error) {
	query := `
		UPDATE publish_records
		SET polling_status = $1,
			status = $2,
			error_message = $3,
			pending_operation_id = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $4 AND pending_operation_id = $5
	`
	res, err := r.db.ExecContext(ctx, query, label, models.RecordStatusFailed, reason, id, pendingID)
	if err != nil {
		log.Error().Err(err).Int64("record_id", id).Msg("mark publish record failed")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListStalePending returns records still waiting on a platform that were last touched before the cutoff.
func (r *publishRecordRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.PublishRecord, error) {
	var records []*models.PublishRecord
	query := `SELECT ` + recordColumns + ` FROM publish_records
		WHERE pending_operation_id IS NOT NULL AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &records, query, before, limit); err != nil {
		log.Error().Err(err).Msg("list stale pending records")
		return nil, err
	}
	return records, nil
}
