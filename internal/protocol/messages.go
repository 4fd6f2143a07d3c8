package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"echodesk/internal/domain"
)

// Message type discriminators used on the wire.
const (
	TypeText     = "text"
	TypeAudio    = "audio"
	TypeResponse = "response"
	TypeError    = "error"
)

// TextMessage is the outbound text request.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AudioMessage is the outbound captured-audio request. SessionID marshals to
// null until the service has assigned an identifier.
type AudioMessage struct {
	Type       string  `json:"type"`
	AudioData  string  `json:"audio_data"`
	SampleRate int     `json:"sample_rate"`
	SessionID  *string `json:"session_id"`
}

// Response is the inbound assistant reply. AudioResponse, when present, is a
// hex-digit-pair encoded byte string.
type Response struct {
	Message       string `json:"message"`
	Success       bool   `json:"success"`
	Data          any    `json:"data"`
	AudioResponse string `json:"audio_response,omitempty"`
}

// ErrorNotice is the inbound assistant-side failure notice.
type ErrorNotice struct {
	ErrorMessage string `json:"error_message"`
}

// EncodeText marshals an outbound text message.
func EncodeText(text string) ([]byte, error) {
	return json.Marshal(TextMessage{Type: TypeText, Text: text})
}

// EncodeAudio marshals an outbound audio message. An empty sessionID is sent
// as JSON null so the service can assign one.
func EncodeAudio(frame domain.AudioFrame, sessionID string) ([]byte, error) {
	msg := AudioMessage{
		Type:       TypeAudio,
		AudioData:  EncodeAudioBytes(frame.Data),
		SampleRate: frame.SampleRate,
	}
	if sessionID != "" {
		msg.SessionID = &sessionID
	}
	return json.Marshal(msg)
}

// EncodeAudioBytes encodes raw audio bytes as lowercase hex digit pairs.
func EncodeAudioBytes(data []byte) string {
	return hex.EncodeToString(data)
}

// DecodeAudioBytes decodes a hex digit-pair string back into raw bytes.
func DecodeAudioBytes(encoded string) ([]byte, error) {
	data, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return data, nil
}
