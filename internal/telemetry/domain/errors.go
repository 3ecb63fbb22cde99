package telemetry

import "errors"

var (
	// ErrDecode marks a malformed inbound payload. Terminal for that message.
	ErrDecode = errors.New("telemetry: decode error")

	// ErrValidation marks an out-of-range or empty field. Terminal for that
	// message.
	ErrValidation = errors.New("telemetry: validation error")

	// ErrTransientStore marks a store failure that is expected to clear, such
	// as a lost connection or an exhausted pool. Writes failing with it are
	// retried with backoff; anything else is fatal for the batch.
	ErrTransientStore = errors.New("telemetry: transient store error")
)
