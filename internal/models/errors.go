package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

// ErrTaskQueued reports that a task with the same id is already in the queue.
var ErrTaskQueued = errors.New("task already queued")

var (
	ErrAlreadyPublished = fmt.Errorf("%w: post is already published", ErrValidation)
	ErrPostNotFailed    = fmt.Errorf("%w: only failed posts can be retried", ErrValidation)
	ErrNoPlatforms      = fmt.Errorf("%w: post has no target platforms", ErrValidation)
	ErrTaskNotFailed    = fmt.Errorf("%w: only failed tasks can be retried", ErrValidation)

	ErrPostNotFound   = fmt.Errorf("post %w", ErrNotFound)
	ErrRecordNotFound = fmt.Errorf("publish record %w", ErrNotFound)
	ErrTaskNotFound   = fmt.Errorf("task %w", ErrNotFound)
)

// CredentialError reports a missing or expired platform credential.
type CredentialError struct {
	Platform string
	Err      error
}

var (
	ErrNoCredential      = errors.New("no credential")
	ErrExpiredCredential = errors.New("expired credential")
)

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %v", e.Platform, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }
