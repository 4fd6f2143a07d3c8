package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"echodesk/internal/domain"
	"echodesk/internal/history"
	"echodesk/internal/ports"
	"echodesk/internal/protocol"
)

var ErrEmptyText = errors.New("text message is empty")

// SessionController coordinates the transport, the capture adapter and the
// history log. It is the only writer of the session's activity state.
type SessionController struct {
	transport ports.Transport
	fallback  ports.TextSender
	audio     ports.AudioCapture
	history   *history.Log
	events    ports.EventSink
	logger    *zap.Logger

	dispatcher *protocol.Dispatcher

	mu            sync.Mutex
	sess          domain.Session
	fallbackReady bool
	lastInput     string

	unsubs []ports.Unsubscribe
}

// NewSessionController wires the controller into the transport and capture
// event streams. fallback may be nil when no request/response path exists.
func NewSessionController(
	transport ports.Transport,
	fallback ports.TextSender,
	audio ports.AudioCapture,
	log *history.Log,
	events ports.EventSink,
	logger *zap.Logger,
) *SessionController {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &SessionController{
		transport: transport,
		fallback:  fallback,
		audio:     audio,
		history:   log,
		events:    events,
		logger:    logger,
		sess:      domain.Session{Activity: domain.ActivityIdle},
	}
	c.dispatcher = protocol.NewDispatcher(c, c.handleParseError, logger)

	c.unsubs = append(c.unsubs,
		transport.OnMessage(c.dispatcher.Dispatch),
		transport.OnError(c.handleTransportError),
		transport.OnClose(c.handleTransportClose),
		audio.OnAudioData(c.handleAudioFrame),
	)
	return c
}

// Connect establishes connectivity: the persistent connection first, the
// request/response fallback when the socket cannot be opened.
func (c *SessionController) Connect(ctx context.Context) error {
	wsErr := c.transport.Connect(ctx)
	if wsErr == nil {
		c.mu.Lock()
		c.sess.ErrorMessage = ""
		c.mu.Unlock()
		c.events.ConnectionChanged(true)
		return nil
	}

	if c.fallback != nil {
		if probeErr := c.fallback.Probe(ctx); probeErr == nil {
			c.mu.Lock()
			c.fallbackReady = true
			c.sess.ErrorMessage = ""
			c.mu.Unlock()
			c.logger.Info("persistent connection unavailable, using fallback transport", zap.Error(wsErr))
			c.events.ConnectionChanged(true)
			return nil
		}
	}

	c.mu.Lock()
	c.sess.ErrorMessage = wsErr.Error()
	c.mu.Unlock()
	c.events.SessionError(domain.ErrorCodeConnection, wsErr.Error())
	return wsErr
}

// Disconnect closes the transport cleanly and resets the session.
func (c *SessionController) Disconnect() error {
	err := c.transport.Disconnect()

	c.mu.Lock()
	c.fallbackReady = false
	c.sess.ID = ""
	wasListening := c.sess.Activity == domain.ActivityListening
	c.sess.Activity = domain.ActivityIdle
	c.mu.Unlock()

	if wasListening {
		_ = c.audio.StopRecording()
	}
	c.events.ConnectionChanged(false)
	c.events.ActivityChanged(domain.ActivityIdle)
	return err
}

// StartListening begins audio capture. Permitted only while connected and
// idle.
func (c *SessionController) StartListening(ctx context.Context) error {
	c.mu.Lock()
	if !c.connectedLocked() {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	if c.sess.Activity != domain.ActivityIdle {
		c.mu.Unlock()
		return nil
	}
	c.sess.Activity = domain.ActivityListening
	c.sess.ErrorMessage = ""
	c.mu.Unlock()
	c.events.ActivityChanged(domain.ActivityListening)

	if err := c.audio.StartRecording(ctx); err != nil {
		c.mu.Lock()
		c.sess.Activity = domain.ActivityIdle
		c.sess.ErrorMessage = err.Error()
		c.mu.Unlock()
		c.events.ActivityChanged(domain.ActivityIdle)
		c.events.SessionError(domain.ErrorCodeAudioStart, err.Error())
		return err
	}
	return nil
}

// StopListening ends capture. The finalized segment is still delivered and
// forwarded once complete.
func (c *SessionController) StopListening() error {
	c.mu.Lock()
	if c.sess.Activity != domain.ActivityListening {
		c.mu.Unlock()
		return nil
	}
	c.sess.Activity = domain.ActivityIdle
	c.mu.Unlock()
	c.events.ActivityChanged(domain.ActivityIdle)

	if err := c.audio.StopRecording(); err != nil {
		c.events.SessionError(domain.ErrorCodeAudioStop, err.Error())
		return err
	}
	return nil
}

// SendText submits one text message. Fails with domain.ErrNotConnected when
// no path is available; the activity state is left unchanged on failure.
func (c *SessionController) SendText(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyText
	}

	c.mu.Lock()
	if !c.connectedLocked() {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	useSocket := c.transport.State() == domain.ConnOpen
	c.sess.Activity = domain.ActivityProcessing
	c.sess.ErrorMessage = ""
	c.lastInput = trimmed
	c.mu.Unlock()
	c.events.ActivityChanged(domain.ActivityProcessing)

	if useSocket {
		payload, err := protocol.EncodeText(trimmed)
		if err == nil {
			err = c.transport.Send(payload)
		}
		if err != nil {
			c.failSend(err)
			return err
		}
		return nil
	}

	raw, err := c.fallback.SendText(ctx, trimmed)
	if err != nil {
		c.failSend(err)
		return err
	}
	// The fallback has no event stream; its one-shot response goes through
	// the same dispatch path as socket messages.
	c.dispatcher.Dispatch(raw)
	return nil
}

func (c *SessionController) failSend(err error) {
	c.mu.Lock()
	c.sess.Activity = domain.ActivityIdle
	c.sess.ErrorMessage = err.Error()
	c.mu.Unlock()
	c.events.ActivityChanged(domain.ActivityIdle)
	c.events.SessionError(domain.ErrorCodeSend, err.Error())
}

// HandleResponse implements protocol.Handler. A response ends processing and
// any in-flight listening expectation together.
func (c *SessionController) HandleResponse(resp protocol.Response) {
	c.mu.Lock()
	wasListening := c.sess.Activity == domain.ActivityListening
	c.sess.Activity = domain.ActivityIdle
	input := c.lastInput
	c.lastInput = ""
	c.mu.Unlock()

	entry := domain.HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Input:     input,
		Output:    resp.Message,
		Success:   resp.Success,
		Data:      resp.Data,
	}
	c.history.Append(entry)

	if wasListening {
		go func() { _ = c.audio.StopRecording() }()
	}
	c.events.ActivityChanged(domain.ActivityIdle)
	c.events.ResponseReceived(entry)

	if resp.AudioResponse != "" {
		c.playResponseAudio(resp.AudioResponse)
	}
}

// HandleErrorNotice implements protocol.Handler. No history entry is created.
func (c *SessionController) HandleErrorNotice(notice protocol.ErrorNotice) {
	c.mu.Lock()
	wasListening := c.sess.Activity == domain.ActivityListening
	c.sess.Activity = domain.ActivityIdle
	c.sess.ErrorMessage = notice.ErrorMessage
	c.lastInput = ""
	c.mu.Unlock()

	if wasListening {
		go func() { _ = c.audio.StopRecording() }()
	}
	c.events.ActivityChanged(domain.ActivityIdle)
	c.events.SessionError(domain.ErrorCodeAssistant, notice.ErrorMessage)
}

func (c *SessionController) playResponseAudio(encoded string) {
	data, err := protocol.DecodeAudioBytes(encoded)
	if err != nil {
		c.logger.Warn("response audio decode failed", zap.Error(err))
		c.events.SessionError(domain.ErrorCodePlayback, err.Error())
		return
	}
	go func() {
		frame := domain.AudioFrame{Data: data}
		if err := c.audio.PlayAudio(context.Background(), frame); err != nil {
			c.logger.Warn("response audio playback failed", zap.Error(err))
			c.events.SessionError(domain.ErrorCodePlayback, err.Error())
		}
	}()
}

// handleAudioFrame forwards a finalized capture segment over the persistent
// connection, tagged with the current session identifier. Frames arriving
// while the socket is down are dropped; the caller owns loss policy.
func (c *SessionController) handleAudioFrame(frame domain.AudioFrame) {
	c.mu.Lock()
	sessionID := c.sess.ID
	c.mu.Unlock()

	if c.transport.State() != domain.ConnOpen {
		c.logger.Debug("dropping audio frame while disconnected", zap.Int("bytes", len(frame.Data)))
		return
	}

	payload, err := protocol.EncodeAudio(frame, sessionID)
	if err == nil {
		err = c.transport.Send(payload)
	}
	if err != nil {
		c.mu.Lock()
		c.sess.ErrorMessage = err.Error()
		c.mu.Unlock()
		c.events.SessionError(domain.ErrorCodeSend, err.Error())
	}
}

func (c *SessionController) handleParseError(err error) {
	c.events.SessionError(domain.ErrorCodeParse, err.Error())
}

func (c *SessionController) handleTransportError(err error) {
	c.mu.Lock()
	c.sess.ErrorMessage = err.Error()
	c.mu.Unlock()
	c.logger.Warn("transport error", zap.Error(err))
	c.events.SessionError(domain.ErrorCodeConnection, err.Error())
}

// handleTransportClose forces the session idle. The error field is set for
// abnormal closes only; a clean close is not an error.
func (c *SessionController) handleTransportClose(code int, reason string) {
	const normalClosure = 1000

	c.mu.Lock()
	wasListening := c.sess.Activity == domain.ActivityListening
	c.sess.Activity = domain.ActivityIdle
	c.fallbackReady = false
	if code != normalClosure {
		c.sess.ErrorMessage = fmt.Sprintf("connection closed (%d): %s", code, reason)
	}
	c.mu.Unlock()

	if wasListening {
		_ = c.audio.StopRecording()
	}
	c.events.ConnectionChanged(false)
	c.events.ActivityChanged(domain.ActivityIdle)
}

// Status returns a snapshot for the UI.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := domain.Status{
		Connected: c.connectedLocked(),
		Activity:  c.sess.Activity,
		SessionID: c.sess.ID,
		Message:   c.sess.ErrorMessage,
	}
	if status.Message == "" {
		status.Message = statusText(status)
	}
	return status
}

// History returns the most-recent-first interaction log.
func (c *SessionController) History() []domain.HistoryEntry {
	return c.history.Entries()
}

func (c *SessionController) ClearHistory() {
	c.history.Clear()
}

func (c *SessionController) ClearError() {
	c.mu.Lock()
	c.sess.ErrorMessage = ""
	c.mu.Unlock()
}

// Close unsubscribes from all event streams and releases the capture device.
func (c *SessionController) Close() error {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	_ = c.transport.Disconnect()
	return c.audio.Cleanup()
}

func (c *SessionController) connectedLocked() bool {
	return c.transport.State() == domain.ConnOpen || c.fallbackReady
}

func statusText(status domain.Status) string {
	switch {
	case status.Activity == domain.ActivityProcessing:
		return "Processing..."
	case status.Activity == domain.ActivityListening:
		return "Listening..."
	case status.Connected:
		return "Connected"
	default:
		return "Disconnected"
	}
}
