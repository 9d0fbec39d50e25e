package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/internal/gateway"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

const reconcileBatch = 200

// PollQueue is the part of the queue client the reconciler works with.
type PollQueue interface {
	service.PollEnqueuer
	PollTaskInfo(ctx context.Context, task *models.PollTask) (*asynq.TaskInfo, error)
	RemovePoll(ctx context.Context, task *models.PollTask) error
}

// Expirer gives up on a pending record.
type Expirer interface {
	Expire(ctx context.Context, task *models.PollTask, reason string) error
}

// ReconcileStats counts what one reconcile run did.
type ReconcileStats struct {
	Enqueued int
	Expired  int
}

type reconcileAction int

const (
	actionNone reconcileAction = iota
	actionEnqueued
	actionExpired
)

// PendingReconciler re-enqueues polling for records left pending without a
// live polling task, e.g. when the process died between writing the record
// and enqueuing the task. A record whose polling task was archived is expired.
type PendingReconciler struct {
	records    repository.PublishRecordRepository
	posts      repository.PostRepository
	gateways   *gateway.Registry
	creds      service.CredentialService
	polls      PollQueue
	expirer    Expirer
	staleAfter time.Duration
	now        func() time.Time
}

func NewPendingReconciler(
	records repository.PublishRecordRepository,
	posts repository.PostRepository,
	gateways *gateway.Registry,
	creds service.CredentialService,
	polls PollQueue,
	expirer Expirer,
	staleAfter time.Duration) *PendingReconciler {
	return &PendingReconciler{
		records:    records,
		posts:      posts,
		gateways:   gateways,
		creds:      creds,
		polls:      polls,
		expirer:    expirer,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Reconcile is the cron entry point.
func (c *PendingReconciler) Reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stats, err := c.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("pending reconcile failed")
		return
	}
	if stats.Enqueued > 0 || stats.Expired > 0 {
		log.Info().Int("enqueued", stats.Enqueued).Int("expired", stats.Expired).Msg("pending records reconciled")
	}
}

// Run enqueues a polling task for every stale pending record that has none.
func (c *PendingReconciler) Run(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	records, err := c.records.ListStalePending(ctx, c.now().Add(-c.staleAfter), reconcileBatch)
	if err != nil {
		return stats, err
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	semaphore := make(chan struct{}, 10)

	for _, rec := range records {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(rec *models.PublishRecord) {
			defer wg.Done()
			defer func() { <-semaphore }()

			action := c.requeue(ctx, rec)
			mu.Lock()
			defer mu.Unlock()
			switch action {
			case actionEnqueued:
				stats.Enqueued++
			case actionExpired:
				stats.Expired++
			}
		}(rec)
	}
	wg.Wait()

	return stats, nil
}

func (c *PendingReconciler) requeue(ctx context.Context, rec *models.PublishRecord) reconcileAction {
	if !rec.IsPending() {
		return actionNone
	}
	logger := log.With().Int64("record_id", rec.ID).Str("platform", rec.Platform).Logger()

	post, err := c.posts.GetByID(ctx, rec.PostID)
	if err != nil || post == nil {
		return actionNone
	}

	gw, err := c.gateways.Resolve(rec.Platform)
	if err != nil {
		logger.Warn().Err(err).Msg("no gateway for pending record")
		return actionNone
	}
	ag, ok := gateway.AsAsync(gw)
	if !ok {
		return actionNone
	}

	cred, err := c.creds.GetAccessToken(ctx, models.CredentialRef{UserID: post.UserID, TenantID: post.TenantID, Platform: rec.Platform})
	if err != nil {
		logger.Warn().Err(err).Msg("no credential for pending record")
		return actionNone
	}

	outcome := &gateway.PublishOutcome{PendingOperationID: *rec.PendingOperationID}
	task := ag.BuildPollingTask(rec, outcome, cred.AccessToken, service.AccountMetadata(cred.Account))
	if task == nil {
		return actionNone
	}
	_, err = c.polls.EnqueuePoll(ctx, task)
	if errors.Is(err, models.ErrTaskQueued) {
		return c.resolveQueued(ctx, task, logger)
	}
	if err != nil {
		logger.Error().Err(err).Msg("re-enqueue poll task")
		return actionNone
	}
	return actionEnqueued
}

// resolveQueued handles a pending record whose polling task id is taken. A
// live task is left alone. An archived task gave up, so the record expires.
// A completed task ended without settling the record and is enqueued again.
func (c *PendingReconciler) resolveQueued(ctx context.Context, task *models.PollTask, logger zerolog.Logger) reconcileAction {
	info, err := c.polls.PollTaskInfo(ctx, task)
	if err != nil {
		logger.Error().Err(err).Msg("inspect poll task")
		return actionNone
	}
	if info == nil {
		return actionNone
	}

	switch info.State {
	case asynq.TaskStateArchived:
		reason := "polling stopped before the platform finished"
		if info.LastErr != "" {
			reason = fmt.Sprintf("polling stopped: %s", info.LastErr)
		}
		if err := c.expirer.Expire(ctx, task, reason); err != nil {
			logger.Error().Err(err).Msg("expire pending record")
			return actionNone
		}
		logger.Warn().Str("reason", reason).Msg("pending record expired")
		return actionExpired

	case asynq.TaskStateCompleted:
		if err := c.polls.RemovePoll(ctx, task); err != nil {
			logger.Error().Err(err).Msg("remove finished poll task")
			return actionNone
		}
		if _, err := c.polls.EnqueuePoll(ctx, task); err != nil {
			logger.Error().Err(err).Msg("re-enqueue poll task")
			return actionNone
		}
		return actionEnqueued
	}
	return actionNone
}
