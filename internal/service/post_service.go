package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/internal/gateway"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, userID, tenantID int64, pc *transfer.PostCreation) (*models.Post, error)
	List(ctx context.Context, userID, tenantID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID, tenantID int64) (*transfer.PostDetails, error)
	UpdateSchedule(ctx context.Context, postID, userID, tenantID int64, scheduledTime *time.Time) (*models.Post, error)
	Remove(ctx context.Context, postID, userID, tenantID int64) error
}

type postService struct {
	pr       repository.PostRepository
	rr       repository.PublishRecordRepository
	gateways *gateway.Registry
	ps       PublishService
	tasks    TaskScheduler
	now      func() time.Time
}

func NewPostService(
	pr repository.PostRepository,
	rr repository.PublishRecordRepository,
	gateways *gateway.Registry,
	ps PublishService,
	tasks TaskScheduler) PostService {
	return &postService{
		pr:       pr,
		rr:       rr,
		gateways: gateways,
		ps:       ps,
		tasks:    tasks,
		now:      time.Now,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID, tenantID int64, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil {
		return nil, fmt.Errorf("%w: post creation data is nil", models.ErrValidation)
	}
	if strings.TrimSpace(pc.Caption) == "" && len(pc.Media) == 0 {
		return nil, fmt.Errorf("%w: a post needs a caption or media", models.ErrValidation)
	}
	if len(pc.Platforms) == 0 {
		return nil, models.ErrNoPlatforms
	}

	seen := make(map[string]bool, len(pc.Platforms))
	platforms := make([]string, 0, len(pc.Platforms))
	for _, p := range pc.Platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if seen[p] {
			continue
		}
		if _, err := s.gateways.Resolve(p); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		seen[p] = true
		platforms = append(platforms, p)
	}
	for p := range pc.Overrides {
		if !seen[p] {
			return nil, fmt.Errorf("%w: override for %s which is not a target platform", models.ErrValidation, p)
		}
	}

	post := &models.Post{
		UserID:         userID,
		TenantID:       tenantID,
		Title:          pc.Title,
		Caption:        pc.Caption,
		Media:          pc.Media,
		Platforms:      platforms,
		Status:         models.PostStatusDraft,
		FailureReasons: models.StringMap{},
		Overrides:      models.PlatformOverrides(pc.Overrides),
	}
	if pc.ScheduledTime != nil && pc.ScheduledTime.After(s.now()) {
		post.ScheduledTime = pc.ScheduledTime
		post.Status = models.PostStatusScheduled
	}

	id, err := s.pr.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	post.ID = id

	if post.Status == models.PostStatusScheduled {
		if err := s.ps.Schedule(ctx, post); err != nil {
			return nil, err
		}
	}
	return post, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID, tenantID int64) (*transfer.PostDetails, error) {
	post, err := ownedPost(ctx, s.pr, postID, userID, tenantID)
	if err != nil {
		return nil, err
	}
	records, err := s.rr.ListByPostID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting publish records: %w", err)
	}
	return &transfer.PostDetails{Post: post, Records: records}, nil
}

func (s *postService) List(ctx context.Context, userID, tenantID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

// UpdateSchedule sets, moves or clears the publish time of a post.
func (s *postService) UpdateSchedule(ctx context.Context, postID, userID, tenantID int64, scheduledTime *time.Time) (*models.Post, error) {
	post, err := ownedPost(ctx, s.pr, postID, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusPublished {
		return nil, models.ErrAlreadyPublished
	}
	if scheduledTime != nil && !scheduledTime.After(s.now()) {
		return nil, fmt.Errorf("%w: scheduled time must be in the future", models.ErrValidation)
	}

	status := models.PostStatusDraft
	if scheduledTime != nil {
		status = models.PostStatusScheduled
	} else if post.Status == models.PostStatusFailed {
		status = models.PostStatusFailed
	}

	if err := s.pr.UpdateSchedule(ctx, post.ID, scheduledTime, status); err != nil {
		return nil, fmt.Errorf("error updating schedule: %w", err)
	}
	post.ScheduledTime = scheduledTime
	post.Status = status

	if err := s.ps.Schedule(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Remove deletes a post and cancels its scheduled publish. Records go with the
// post through the foreign key.
func (s *postService) Remove(ctx context.Context, postID, userID, tenantID int64) error {
	post, err := ownedPost(ctx, s.pr, postID, userID, tenantID)
	if err != nil {
		return err
	}

	if err := s.tasks.UnschedulePost(ctx, post.ID); err != nil {
		log.Warn().Err(err).Int64("post_id", post.ID).Msg("scheduled task not removed")
	}

	if err := s.pr.Remove(ctx, post.ID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	return nil
}
