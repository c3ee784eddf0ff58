package channel

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed send. Transient kinds are safe to retry
// manually from the admin console; permanent kinds are not.
type ErrorKind string

const (
	RateLimited      ErrorKind = "rate_limited"
	Blocked          ErrorKind = "blocked"
	InvalidRecipient ErrorKind = "invalid_recipient"
	Network          ErrorKind = "network"
)

// SendError is a classified failure from a connector's Send.
type SendError struct {
	Channel Channel
	Kind    ErrorKind
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send failed (%s): %v", e.Channel, e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Transient reports whether a manual retry could plausibly succeed.
func (e *SendError) Transient() bool {
	return e.Kind == RateLimited || e.Kind == Network
}

// classifySendError wraps an HTTP-level failure into a SendError. A nil err
// with a 2xx status returns nil.
func classifySendError(ch Channel, status int, err error) error {
	if err != nil {
		// Dial failures, resets and deadline hits all land here; a timed-out
		// send is never reported as success.
		return &SendError{Channel: ch, Kind: Network, Err: err}
	}
	switch {
	case status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return &SendError{Channel: ch, Kind: RateLimited, Err: fmt.Errorf("status %d", status)}
	case status == http.StatusForbidden:
		return &SendError{Channel: ch, Kind: Blocked, Err: fmt.Errorf("status %d", status)}
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return &SendError{Channel: ch, Kind: InvalidRecipient, Err: fmt.Errorf("status %d", status)}
	default:
		return &SendError{Channel: ch, Kind: Network, Err: fmt.Errorf("status %d", status)}
	}
}
