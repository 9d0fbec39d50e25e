package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/internal/gateway"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

// PollingStatusSubmitted labels a pending record before its first status check.
const PollingStatusSubmitted = "submitted"

type PublishService interface {
	Publish(ctx context.Context, postID, userID, tenantID int64) (*models.Post, error)
	RetryFailed(ctx context.Context, postID, userID, tenantID int64) (*models.Post, error)
	Schedule(ctx context.Context, post *models.Post) error
}

type publishService struct {
	posts    repository.PostRepository
	records  repository.PublishRecordRepository
	gateways *gateway.Registry
	creds    CredentialService
	media    MediaService
	polls    PollEnqueuer
	tasks    TaskScheduler
	progress ProgressReporter
	emit     emitter
	now      func() time.Time
}

func NewPublishService(
	posts repository.PostRepository,
	records repository.PublishRecordRepository,
	gateways *gateway.Registry,
	creds CredentialService,
	media MediaService,
	polls PollEnqueuer,
	tasks TaskScheduler,
	live LiveUpdates,
	progress ProgressReporter,
	liveTimeout time.Duration) PublishService {
	if live == nil {
		live = noLiveUpdates{}
	}
	if progress == nil {
		progress = noProgress{}
	}
	return &publishService{
		posts:    posts,
		records:  records,
		gateways: gateways,
		creds:    creds,
		media:    media,
		polls:    polls,
		tasks:    tasks,
		progress: progress,
		emit:     emitter{live: live, timeout: liveTimeout},
		now:      time.Now,
	}
}

// branch is the result of publishing a post to one platform.
type branch struct {
	platform string
	gw       gateway.Gateway
	record   *models.PublishRecord
	outcome  *gateway.PublishOutcome
	cred     *Credential
	err      error
}

func (b branch) succeeded() bool { return b.err == nil }

func (b branch) pending() bool { return b.err == nil && b.outcome.IsPending() }

func (s *publishService) Publish(ctx context.Context, postID, userID, tenantID int64) (*models.Post, error) {
	post, err := ownedPost(ctx, s.posts, postID, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusPublished {
		return nil, models.ErrAlreadyPublished
	}
	return s.publish(ctx, post, post.Platforms, false)
}

// RetryFailed re-publishes a failed post to every platform that has no
// successful record yet.
func (s *publishService) RetryFailed(ctx context.Context, postID, userID, tenantID int64) (*models.Post, error) {
	post, err := ownedPost(ctx, s.posts, postID, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusFailed {
		return nil, models.ErrPostNotFailed
	}

	succeeded, err := s.records.SucceededPlatforms(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("loading publish records: %w", err)
	}
	done := make(map[string]bool, len(succeeded))
	for _, p := range succeeded {
		done[p] = true
	}
	remaining := make([]string, 0, len(post.Platforms))
	for _, p := range post.Platforms {
		if !done[p] {
			remaining = append(remaining, p)
		}
	}

	if err := s.posts.UpdatePostStatus(ctx, models.PostStatusDraft, post.ID); err != nil {
		return nil, fmt.Errorf("resetting post status: %w", err)
	}
	post.Status = models.PostStatusDraft

	return s.publish(ctx, post, remaining, len(succeeded) > 0)
}

// publish fans post out to platforms and stores the aggregate outcome.
// keepPublished reports that the post already has a successful record from an
// earlier run.
func (s *publishService) publish(ctx context.Context, post *models.Post, platforms []string, keepPublished bool) (*models.Post, error) {
	if len(platforms) == 0 && !keepPublished {
		return nil, models.ErrNoPlatforms
	}
	s.progress.Report(ctx, 5)

	media, mediaErr := s.media.Resolve(ctx, post.Media)
	if mediaErr != nil {
		log.Warn().Err(mediaErr).Int64("post_id", post.ID).Msg("media could not be resolved")
	}

	branches := make([]branch, len(platforms))
	var (
		wg       sync.WaitGroup
		finished atomic.Int32
	)
	for i, platform := range platforms {
		wg.Add(1)
		go func(i int, platform string) {
			defer wg.Done()
			branches[i] = s.publishTo(ctx, post, platform, media, mediaErr)
			s.progress.Report(ctx, 10+int(finished.Add(1))*80/len(platforms))
		}(i, platform)
	}
	wg.Wait()

	failures := models.StringMap{}
	succeeded := 0
	for _, b := range branches {
		if b.succeeded() {
			succeeded++
			continue
		}
		failures[b.platform] = b.err.Error()
		log.Warn().Err(b.err).Int64("post_id", post.ID).Str("platform", b.platform).Msg("publish branch failed")
		if b.gw != nil {
			gw, reason := b.gw, b.err.Error()
			safely(b.platform, "failed", func() { gw.NotifyFailed(ctx, post, reason) })
		}
	}

	status := models.PostStatusFailed
	if succeeded > 0 || keepPublished {
		status = models.PostStatusPublished
	}
	if err := s.posts.UpdateOutcome(ctx, post.ID, status, failures); err != nil {
		return nil, fmt.Errorf("storing publish outcome: %w", err)
	}

	for _, b := range branches {
		if b.pending() {
			s.enqueuePoll(ctx, b)
		}
	}

	updated, err := s.posts.GetByID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading post: %w", err)
	}
	if updated == nil {
		return nil, models.ErrPostNotFound
	}

	log.Info().
		Int64("post_id", post.ID).
		Str("status", status).
		Int("succeeded", succeeded).
		Int("failed", len(failures)).
		Msg("post published")

	s.emit.postUpdated(ctx, updated, "")
	s.progress.Report(ctx, 100)
	return updated, nil
}

func (s *publishService) publishTo(ctx context.Context, post *models.Post, platform string, media []string, mediaErr error) branch {
	b := branch{platform: platform}

	gw, err := s.gateways.Resolve(platform)
	if err != nil {
		b.err = err
		return b
	}
	b.gw = gw

	if mediaErr != nil {
		b.err = fmt.Errorf("resolving media: %w", mediaErr)
		return b
	}

	cred, err := s.creds.GetAccessToken(ctx, models.CredentialRef{UserID: post.UserID, TenantID: post.TenantID, Platform: platform})
	if err != nil {
		b.err = err
		return b
	}
	b.cred = cred

	outcome, err := gw.CreatePost(ctx, cred.Account, post.ContentFor(platform), cred.AccessToken, media, gateway.Options(post.SettingsFor(platform)))
	if err != nil {
		b.err = err
		return b
	}
	if outcome == nil {
		b.err = errors.New("platform returned no result")
		return b
	}
	if _, async := gateway.AsAsync(gw); outcome.IsPending() && !async {
		b.err = errors.New("platform accepted the post but cannot report its completion")
		return b
	}
	b.outcome = outcome

	record := recordFor(post.ID, platform, outcome, s.now())
	if _, err := s.records.Upsert(ctx, record); err != nil {
		b.err = fmt.Errorf("storing publish record: %w", err)
		return b
	}
	b.record = record

	if !outcome.IsPending() {
		safely(platform, "published", func() { gw.NotifyPublished(ctx, post, record) })
	}
	return b
}

func (s *publishService) enqueuePoll(ctx context.Context, b branch) {
	ag, _ := gateway.AsAsync(b.gw)
	task := ag.BuildPollingTask(b.record, b.outcome, b.cred.AccessToken, AccountMetadata(b.cred.Account))
	if task == nil {
		return
	}
	id, err := s.polls.EnqueuePoll(ctx, task)
	if errors.Is(err, models.ErrTaskQueued) {
		log.Debug().Str("task_id", id).Str("platform", b.platform).Msg("poll task already queued")
		return
	}
	if err != nil {
		// The pending reconciler picks the record up again later.
		log.Error().Err(err).Int64("record_id", b.record.ID).Str("platform", b.platform).Msg("enqueue poll task")
		return
	}
	log.Debug().Str("task_id", id).Str("platform", b.platform).Msg("poll task enqueued")
}

// Schedule queues the post to be published at its scheduled time. A missing
// or past time only removes an existing schedule.
func (s *publishService) Schedule(ctx context.Context, post *models.Post) error {
	if post.ScheduledTime == nil {
		return s.tasks.UnschedulePost(ctx, post.ID)
	}
	delay := post.ScheduledTime.Sub(s.now())
	if delay <= 0 {
		return s.tasks.UnschedulePost(ctx, post.ID)
	}

	_, err := s.tasks.SchedulePost(ctx, models.ScheduledTask{
		PostID:   post.ID,
		UserID:   post.UserID,
		TenantID: post.TenantID,
	}, delay)
	if err != nil {
		return fmt.Errorf("scheduling post %d: %w", post.ID, err)
	}

	for _, platform := range post.Platforms {
		gw, err := s.gateways.Resolve(platform)
		if err != nil {
			continue
		}
		safely(platform, "scheduled", func() { gw.NotifyScheduled(ctx, post) })
	}
	return nil
}

func recordFor(postID int64, platform string, outcome *gateway.PublishOutcome, now time.Time) *models.PublishRecord {
	rec := &models.PublishRecord{
		PostID:          postID,
		Platform:        platform,
		PlatformPostID:  outcome.PlatformPostID,
		PlatformPostURL: outcome.PlatformPostURL,
		Metadata:        models.JSONMap(outcome.Metadata),
	}
	if outcome.IsPending() {
		pendingID := outcome.PendingOperationID
		rec.PendingOperationID = &pendingID
		rec.PlatformPostURL = models.PendingURL
		rec.PollingStatus = PollingStatusSubmitted
		rec.Status = models.RecordStatusPending
		return rec
	}
	rec.Status = models.RecordStatusPublished
	rec.PublishedAt = &now
	return rec
}

// AccountMetadata is the polling metadata gateways need about the publishing account.
func AccountMetadata(acc gateway.Account) map[string]string {
	md := map[string]string{}
	if acc.ID != "" {
		md[gateway.MetaAccountID] = acc.ID
	}
	if acc.Username != "" {
		md[gateway.MetaUsername] = acc.Username
	}
	return md
}

// ownedPost loads a post and hides it from anyone but its owner.
func ownedPost(ctx context.Context, posts repository.PostRepository, postID, userID, tenantID int64) (*models.Post, error) {
	post, err := posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("loading post %d: %w", postID, err)
	}
	if post == nil || post.UserID != userID || post.TenantID != tenantID {
		return nil, models.ErrPostNotFound
	}
	return post, nil
}
