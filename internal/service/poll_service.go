package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/internal/gateway"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

// Outcome tells the queue what to do with a polling task after one run.
type Outcome int

const (
	// OutcomeDone ends the task.
	OutcomeDone Outcome = iota
	// OutcomeRetry runs the task again after the queue's backoff.
	OutcomeRetry
	// OutcomeFatal ends the task as failed without further attempts.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeRetry:
		return "retry"
	case OutcomeFatal:
		return "fatal"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// PollingStatusTimedOut labels records given up on after the last attempt.
const PollingStatusTimedOut = "timed_out"

type PollService interface {
	Poll(ctx context.Context, task *models.PollTask) (Outcome, error)
	// Expire fails a record whose polling attempts are exhausted.
	Expire(ctx context.Context, task *models.PollTask, reason string) error
}

type pollService struct {
	posts    repository.PostRepository
	records  repository.PublishRecordRepository
	gateways *gateway.Registry
	progress ProgressReporter
	emit     emitter
	now      func() time.Time
}

func NewPollService(
	posts repository.PostRepository,
	records repository.PublishRecordRepository,
	gateways *gateway.Registry,
	live LiveUpdates,
	progress ProgressReporter,
	liveTimeout time.Duration) PollService {
	if live == nil {
		live = noLiveUpdates{}
	}
	if progress == nil {
		progress = noProgress{}
	}
	return &pollService{
		posts:    posts,
		records:  records,
		gateways: gateways,
		progress: progress,
		emit:     emitter{live: live, timeout: liveTimeout},
		now:      time.Now,
	}
}

func (s *pollService) Poll(ctx context.Context, task *models.PollTask) (Outcome, error) {
	logger := log.With().
		Int64("record_id", task.RecordID).
		Str("platform", task.Platform).
		Str("pending_id", task.PendingOperationID).
		Logger()

	record, ok, err := s.pendingRecord(ctx, task)
	if err != nil {
		return OutcomeRetry, err
	}
	if !ok {
		logger.Debug().Msg("record no longer pending, skipping poll")
		return OutcomeDone, nil
	}

	gw, err := s.gateways.Resolve(task.Platform)
	if err != nil {
		return OutcomeFatal, err
	}
	ag, ok := gateway.AsAsync(gw)
	if !ok {
		return OutcomeFatal, fmt.Errorf("%s does not support status polling", task.Platform)
	}

	s.progress.Report(ctx, 20)
	status, err := ag.CheckStatus(ctx, task.PendingOperationID, task.AccessToken, task.Metadata)
	if err != nil {
		logger.Warn().Err(err).Msg("status check failed")
		return OutcomeRetry, fmt.Errorf("checking %s status: %w", task.Platform, err)
	}

	switch status.State {
	case gateway.StateComplete:
		return OutcomeDone, s.complete(ctx, ag, task, record, status)
	case gateway.StateFailed:
		return OutcomeDone, s.fail(ctx, gw, task, status.Label, status.FailReason)
	default:
		if err := s.records.UpdatePollingStatus(ctx, record.ID, task.PendingOperationID, status.Label); err != nil {
			return OutcomeRetry, err
		}
		s.progress.Report(ctx, 50)
		logger.Debug().Str("label", status.Label).Msg("still processing")
		return OutcomeRetry, nil
	}
}

func (s *pollService) Expire(ctx context.Context, task *models.PollTask, reason string) error {
	_, ok, err := s.pendingRecord(ctx, task)
	if err != nil || !ok {
		return err
	}
	gw, err := s.gateways.Resolve(task.Platform)
	if err != nil {
		return err
	}
	return s.fail(ctx, gw, task, PollingStatusTimedOut, reason)
}

// pendingRecord loads the record a task polls for and reports whether it is
// still waiting on that same pending operation.
func (s *pollService) pendingRecord(ctx context.Context, task *models.PollTask) (*models.PublishRecord, bool, error) {
	record, err := s.records.GetByID(ctx, task.RecordID)
	if err != nil {
		return nil, false, fmt.Errorf("loading record %d: %w", task.RecordID, err)
	}
	if record == nil || !record.IsPending() || *record.PendingOperationID != task.PendingOperationID {
		return record, false, nil
	}
	return record, true, nil
}

// complete finalizes a pending record. The post is promoted before the record
// leaves pending, so a run that stops halfway is redone in full by the retry.
func (s *pollService) complete(ctx context.Context, ag gateway.AsyncGateway, task *models.PollTask, record *models.PublishRecord, status *gateway.StatusResult) error {
	completion, err := ag.CompletePublish(ctx, task.PendingOperationID, task.AccessToken, task.Metadata)
	if err != nil {
		log.Warn().Err(err).Int64("record_id", record.ID).Str("platform", task.Platform).Msg("completion step failed")
	}

	post, err := s.posts.GetByID(ctx, task.PostID)
	if err != nil {
		return fmt.Errorf("loading post %d: %w", task.PostID, err)
	}
	if post != nil {
		if post.Status != models.PostStatusPublished {
			if err := s.posts.UpdatePostStatus(ctx, models.PostStatusPublished, post.ID); err != nil {
				return err
			}
			post.Status = models.PostStatusPublished
		}
		if _, failed := post.FailureReasons[task.Platform]; failed {
			if err := s.posts.ClearPlatformFailure(ctx, post.ID, task.Platform); err != nil {
				return err
			}
			delete(post.FailureReasons, task.Platform)
		}
	}

	finalID, finalURL := mergeFinal(ag, task, record, status, completion)
	fin := repository.Finalization{
		PlatformPostID:  finalID,
		PlatformPostURL: finalURL,
		PollingStatus:   status.Label,
		PublishedAt:     s.now(),
	}
	updated, err := s.records.Finalize(ctx, record.ID, task.PendingOperationID, fin)
	if err != nil {
		return fmt.Errorf("finalizing record %d: %w", record.ID, err)
	}
	if !updated || post == nil {
		return nil
	}

	record.PlatformPostID = finalID
	record.PlatformPostURL = finalURL
	record.PendingOperationID = nil
	record.Status = models.RecordStatusPublished
	record.PollingStatus = status.Label
	safely(task.Platform, "published", func() { ag.NotifyPublished(ctx, post, record) })

	log.Info().Int64("post_id", post.ID).Str("platform", task.Platform).Str("url", finalURL).Msg("pending publish completed")
	s.emit.postUpdated(ctx, post, task.Platform)
	s.progress.Report(ctx, 100)
	return nil
}

// fail records a terminal platform failure. It is not returned as an error:
// the outcome is stored and retrying cannot change it. The post side is
// written first so the record only leaves pending once the post reflects it.
func (s *pollService) fail(ctx context.Context, gw gateway.Gateway, task *models.PollTask, label, reason string) error {
	if reason == "" {
		reason = "platform reported the publish as failed"
	}

	if err := s.posts.SetPlatformFailure(ctx, task.PostID, task.Platform, reason); err != nil {
		return err
	}
	post, err := s.posts.GetByID(ctx, task.PostID)
	if err != nil {
		return fmt.Errorf("loading post %d: %w", task.PostID, err)
	}
	if post != nil {
		alive, err := s.othersAlive(ctx, task)
		if err != nil {
			return err
		}
		if !alive && post.Status != models.PostStatusFailed {
			if err := s.posts.UpdatePostStatus(ctx, models.PostStatusFailed, post.ID); err != nil {
				return err
			}
			post.Status = models.PostStatusFailed
		}
	}

	updated, err := s.records.MarkFailed(ctx, task.RecordID, task.PendingOperationID, label, reason)
	if err != nil {
		return fmt.Errorf("marking record %d failed: %w", task.RecordID, err)
	}
	if !updated || post == nil {
		return nil
	}

	safely(task.Platform, "failed", func() { gw.NotifyFailed(ctx, post, reason) })
	log.Warn().Int64("post_id", post.ID).Str("platform", task.Platform).Str("reason", reason).Msg("pending publish failed")
	s.emit.postUpdated(ctx, post, task.Platform)
	s.progress.Report(ctx, 100)
	return nil
}

// othersAlive reports whether another platform of the post has published or
// is still pending.
func (s *pollService) othersAlive(ctx context.Context, task *models.PollTask) (bool, error) {
	records, err := s.records.ListByPostID(ctx, task.PostID)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Platform == task.Platform {
			continue
		}
		if r.Succeeded() || r.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

// mergeFinal picks the final id and URL. Values already on the record win,
// then the status check, then the completion step, then the URL template
// built from a final id.
func mergeFinal(ag gateway.AsyncGateway, task *models.PollTask, record *models.PublishRecord, status *gateway.StatusResult, completion *gateway.CompletionResult) (string, string) {
	var id, url string
	// The record carries the pending id as a provisional post id.
	if record.PlatformPostID != "" && record.PlatformPostID != task.PendingOperationID {
		id = record.PlatformPostID
	}
	if record.PlatformPostURL != "" && record.PlatformPostURL != models.PendingURL {
		url = record.PlatformPostURL
	}

	if id == "" {
		id = status.FinalID
	}
	if url == "" {
		url = status.FinalURL
	}
	if completion != nil {
		if id == "" {
			id = completion.FinalID
		}
		if url == "" {
			url = completion.FinalURL
		}
	}
	// Without a final id the platform has no public post to link to, e.g. a
	// private TikTok video.
	if url == "" && id != "" {
		url = ag.PostURL(id, task.Metadata)
	}
	return id, url
}
