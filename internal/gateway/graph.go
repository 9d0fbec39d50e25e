package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/maheshrc27/postflow/internal/transfer"
)

// decodeGraphError handles the error envelope shared by the Instagram and Facebook Graph APIs.
func decodeGraphError(platform string, status int, body []byte) error {
	var ge transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &ge); err != nil || ge.Error.Message == "" {
		if kind := kindForStatus(status); kind != "" {
			return &RejectionError{Platform: platform, Kind: kind, StatusCode: status, Message: string(body)}
		}
		return fmt.Errorf("unexpected status code from %s: %d", platform, status)
	}

	msg := ge.Error.Message
	if ge.Error.ErrorUserMsg != "" {
		msg = ge.Error.ErrorUserMsg
	}
	kind := graphKind(ge.Error.Code)
	if kind == "" {
		if ge.Error.IsTransient || status >= 500 {
			return fmt.Errorf("%s transient error %d: %s", platform, ge.Error.Code, msg)
		}
		kind = RejectPolicy
	}
	return &RejectionError{
		Platform:   platform,
		Kind:       kind,
		Code:       strconv.Itoa(ge.Error.Code),
		Message:    msg,
		StatusCode: status,
	}
}

func graphKind(code int) RejectionKind {
	switch {
	case code == 190 || code == 102 || code == 10 || (code >= 200 && code < 300):
		return RejectAuth
	case code == 4 || code == 17 || code == 32 || code == 613 || code == 9 || (code >= 80001 && code <= 80014):
		return RejectQuota
	case code == 100:
		return RejectInvalid
	case code == 368:
		return RejectPolicy
	}
	return ""
}
