package hub

import "errors"

var (
	// ErrUnknownCommand indicates a frame type with no command behind it.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidPayload indicates a command payload of the wrong shape.
	ErrInvalidPayload = errors.New("invalid command payload")
	// ErrStopped indicates the hub loop is no longer running.
	ErrStopped = errors.New("hub stopped")
	// ErrInvalidInput indicates an administrative request that cannot be applied.
	ErrInvalidInput = errors.New("invalid input")
)
