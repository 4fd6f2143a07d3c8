package ports

import (
	"context"

	"echodesk/internal/domain"
)

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

// Transport is a persistent bidirectional connection to the assistant service.
type Transport interface {
	// Connect opens the connection. It is idempotent: while the connection is
	// open or an attempt is in flight it returns immediately.
	Connect(ctx context.Context) error
	// Send writes one raw payload. It fails with domain.ErrNotConnected
	// unless the connection is open; payloads are never queued.
	Send(payload []byte) error
	// Disconnect requests a clean close and cancels any scheduled reconnect.
	Disconnect() error
	State() domain.ConnState

	OnMessage(handler func(raw []byte)) Unsubscribe
	OnError(handler func(err error)) Unsubscribe
	OnClose(handler func(code int, reason string)) Unsubscribe
}

// TextSender is a one-shot request/response path for text messages, used
// when the persistent connection is unavailable. It has no event streams.
type TextSender interface {
	Probe(ctx context.Context) error
	SendText(ctx context.Context, text string) ([]byte, error)
}

// AudioCapture owns the microphone and playback of response audio.
type AudioCapture interface {
	// Initialize acquires the capture device. Re-initializing while already
	// initialized is a no-op.
	Initialize(ctx context.Context) error
	// StartRecording begins continuous capture. No-op while recording.
	// Auto-initializes when Initialize was never called.
	StartRecording(ctx context.Context) error
	// StopRecording finalizes the buffered segment into one AudioFrame and
	// delivers it to all registered handlers in registration order.
	StopRecording() error
	OnAudioData(handler func(frame domain.AudioFrame)) Unsubscribe
	// PlayAudio decodes and plays a received audio payload. Independent of
	// the recording state.
	PlayAudio(ctx context.Context, frame domain.AudioFrame) error
	// Cleanup releases the device. Safe to call multiple times.
	Cleanup() error
}

// EventSink emits backend state and events to the UI.
type EventSink interface {
	ActivityChanged(activity domain.Activity)
	ConnectionChanged(connected bool)
	ResponseReceived(entry domain.HistoryEntry)
	SessionError(code domain.ErrorCode, detail string)
}
