package client

import (
	"errors"
	"fmt"
)

// Sentinel reasons for a terminal OtaError (§7). Compare with errors.Is.
var (
	ErrProfileIncomplete    = errors.New("client: required characteristic not resolved")
	ErrStartTimeout         = errors.New("client: no start ack within timeout")
	ErrProgressStall        = errors.New("client: progress did not advance within timeout")
	ErrFinalProgressTimeout = errors.New("client: progress never reached 100")
	ErrSubscriptionError    = errors.New("client: a GATT subscription failed")
	ErrDisconnected         = errors.New("client: link disconnected mid-session")
	ErrBusy                 = errors.New("client: a session is already in progress")
)

// OtaError wraps one of the sentinel reasons above with session-specific
// detail. It is always terminal for the session that produced it (§7).
type OtaError struct {
	Reason error
	Detail string
}

func (e *OtaError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *OtaError) Unwrap() error {
	return e.Reason
}
