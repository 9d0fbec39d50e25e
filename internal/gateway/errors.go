package gateway

import (
	"errors"
	"fmt"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

type RejectionKind string

const (
	RejectAuth    RejectionKind = "auth"
	RejectQuota   RejectionKind = "quota"
	RejectPolicy  RejectionKind = "policy"
	RejectInvalid RejectionKind = "invalid"
)

// RejectionError is returned when a platform refuses a request.
type RejectionError struct {
	Platform   string
	Kind       RejectionKind
	Code       string
	Message    string
	StatusCode int
}

func (e *RejectionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected the request (%s, %s): %s", e.Platform, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s rejected the request (%s): %s", e.Platform, e.Kind, e.Message)
}

func reject(platform string, kind RejectionKind, format string, args ...any) *RejectionError {
	return &RejectionError{Platform: platform, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a platform rejection of the given kind.
// An empty kind matches any rejection.
func IsRejection(err error, kind RejectionKind) bool {
	var re *RejectionError
	if !errors.As(err, &re) {
		return false
	}
	return kind == "" || re.Kind == kind
}
