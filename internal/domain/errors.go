package domain

import "errors"

var (
	// ErrConnectionFailed reports a connect attempt that errored before the
	// connection reached the open state.
	ErrConnectionFailed = errors.New("connection attempt failed")

	// ErrNotConnected reports an operation that requires an open connection.
	ErrNotConnected = errors.New("not connected")

	// ErrDeviceUnavailable reports a missing or permission-denied capture device.
	ErrDeviceUnavailable = errors.New("audio capture device unavailable")

	// ErrParse reports a malformed inbound message.
	ErrParse = errors.New("malformed inbound message")

	// ErrPlayback reports a failed decode or playback of response audio.
	ErrPlayback = errors.New("audio playback failed")
)
