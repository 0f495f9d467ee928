package scanning

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrProviderUnavailable means the provider could not be reached
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrMalformedResponse means the provider answered with something we cannot decode
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrTimeout means the provider did not answer before the deadline
	ErrTimeout = errors.New("provider timeout")
)

// RejectedError is returned when the provider answers with a failure status
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider rejected request (status %d): %s", e.Status, e.Body)
}

// classifyTransportError maps errors from sending a request or waiting on a
// context onto the provider error taxonomy
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
}

func malformed(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
}
