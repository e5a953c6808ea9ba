package render

import "errors"

var (
	// ErrDisposed is returned by every method called after Dispose.
	ErrDisposed = errors.New("renderer is disposed")

	// ErrNoBackend is returned by New when Options.Backend is nil.
	ErrNoBackend = errors.New("render backend is required")

	// ErrNilMessage is returned by the Add*Message methods on a nil message.
	ErrNilMessage = errors.New("nil message")
)
