package models

// PollTask is the payload of a publish polling task.
type PollTask struct {
	RecordID           int64             `json:"record_id"`
	PostID             int64             `json:"post_id"`
	PendingOperationID string            `json:"pending_operation_id"`
	AccessToken        string            `json:"access_token"`
	Platform           string            `json:"platform"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// ScheduledTask is the payload of a scheduled publish task.
type ScheduledTask struct {
	PostID   int64 `json:"post_id"`
	UserID   int64 `json:"user_id"`
	TenantID int64 `json:"tenant_id"`
}

const (
	JobStateWaiting   = "waiting"
	JobStateActive    = "active"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
	JobStateDelayed   = "delayed"
)

// JobStatus is the uniform view of a queued task.
type JobStatus struct {
	ID          string `json:"id"`
	Queue       string `json:"queue"`
	Type        string `json:"type"`
	State       string `json:"state"`
	Progress    int    `json:"progress"`
	Result      []byte `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
}
