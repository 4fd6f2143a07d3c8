package domain

import "time"

// Activity models the mutually exclusive session activity states.
type Activity string

const (
	ActivityIdle       Activity = "idle"
	ActivityListening  Activity = "listening"
	ActivityProcessing Activity = "processing"
)

// ConnState models the transport connection lifecycle.
type ConnState string

const (
	ConnClosed     ConnState = "closed"
	ConnConnecting ConnState = "connecting"
	ConnOpen       ConnState = "open"
	ConnClosing    ConnState = "closing"
)

// Session is one logical conversation with the assistant service. The
// identifier stays empty until the service assigns one and may be reassigned
// across reconnects.
type Session struct {
	ID           string   `json:"sessionId,omitempty"`
	Activity     Activity `json:"activity"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// AudioFrame is one encoded audio segment produced by the capture adapter.
type AudioFrame struct {
	Data       []byte
	SampleRate int
}

// HistoryEntry is an immutable record of one completed interaction.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
}

// ErrorCode identifies non-fatal and fatal backend errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodeConnection ErrorCode = "connection"
	ErrorCodeSend       ErrorCode = "send"
	ErrorCodeAudioStart ErrorCode = "audio_start"
	ErrorCodeAudioStop  ErrorCode = "audio_stop"
	ErrorCodeAssistant  ErrorCode = "assistant"
	ErrorCodeParse      ErrorCode = "parse"
	ErrorCodePlayback   ErrorCode = "playback"
)

// Status summarizes the current session for the UI.
type Status struct {
	Connected bool     `json:"connected"`
	Activity  Activity `json:"activity"`
	SessionID string   `json:"sessionId,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// CanStartListening reports whether a start-listening request would be
// accepted right now.
func (s Status) CanStartListening() bool {
	return s.Connected && s.Activity == ActivityIdle
}
