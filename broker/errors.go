package broker

import (
	"errors"
	"fmt"
)

// DataUnavailableError means no usable price series could be fetched.
// The cycle is skipped and retried on the next schedule tick.
type DataUnavailableError struct {
	Epic string
	Err  error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable for %s: %v", e.Epic, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// TransportError is a network-level failure (timeout, connection reset).
// The execution state machine retries these with backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is a business-rule rejection from the venue (market
// closed, insufficient margin). Terminal; never retried.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

func IsDataUnavailable(err error) bool {
	var e *DataUnavailableError
	return errors.As(err, &e)
}

func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

func IsRejected(err error) bool {
	var e *RejectedError
	return errors.As(err, &e)
}
