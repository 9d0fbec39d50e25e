package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/maheshrc27/postflow/internal/models"
)

type inspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	RunTask(queue, id string) error
}

type progressReader interface {
	Get(ctx context.Context, taskID string) (int, error)
}

type StatusService interface {
	GetStatus(ctx context.Context, taskID string) (*models.JobStatus, error)
	Retry(ctx context.Context, taskID string) error
}

type statusService struct {
	inspector inspector
	progress  progressReader
	queues    []string
}

// NewStatusService looks tasks up across queues, in order.
func NewStatusService(inspector inspector, progress progressReader, queues []string) StatusService {
	return &statusService{inspector: inspector, progress: progress, queues: queues}
}

func (s *statusService) GetStatus(ctx context.Context, taskID string) (*models.JobStatus, error) {
	info, err := s.find(taskID)
	if err != nil {
		return nil, err
	}

	status := &models.JobStatus{
		ID:          info.ID,
		Queue:       info.Queue,
		Type:        info.Type,
		State:       State(info.State),
		Result:      info.Result,
		Error:       info.LastErr,
		Attempts:    info.Retried,
		MaxAttempts: info.MaxRetry + 1,
	}
	if info.State == asynq.TaskStateActive || info.State == asynq.TaskStateCompleted {
		status.Attempts++
	}

	if s.progress != nil {
		if p, err := s.progress.Get(ctx, taskID); err == nil {
			status.Progress = p
		}
	}
	if status.State == models.JobStateCompleted {
		status.Progress = 100
	}
	return status, nil
}

// Retry runs a failed task again right away.
func (s *statusService) Retry(_ context.Context, taskID string) error {
	info, err := s.find(taskID)
	if err != nil {
		return err
	}
	if info.State != asynq.TaskStateArchived {
		return models.ErrTaskNotFailed
	}
	if err := s.inspector.RunTask(info.Queue, info.ID); err != nil {
		return fmt.Errorf("requeue task %s: %w", taskID, err)
	}
	return nil
}

func (s *statusService) find(taskID string) (*asynq.TaskInfo, error) {
	for _, q := range s.queues {
		info, err := s.inspector.GetTaskInfo(q, taskID)
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("inspect task %s: %w", taskID, err)
		}
		return info, nil
	}
	return nil, models.ErrTaskNotFound
}

// State maps an asynq task state onto the job states exposed to clients.
func State(st asynq.TaskState) string {
	switch st {
	case asynq.TaskStateActive:
		return models.JobStateActive
	case asynq.TaskStateCompleted:
		return models.JobStateCompleted
	case asynq.TaskStateArchived:
		return models.JobStateFailed
	case asynq.TaskStateScheduled, asynq.TaskStateRetry:
		return models.JobStateDelayed
	default:
		// pending and aggregating
		return models.JobStateWaiting
	}
}
