package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"echodesk/internal/domain"
	"echodesk/internal/protocol"
)

// Fallback is the one-shot request/response text path used when the
// persistent connection is unavailable. It supports no server-initiated
// messages; callers get exactly one response per request.
type Fallback struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewFallback(baseURL string, timeout time.Duration, logger *zap.Logger) *Fallback {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Probe checks service reachability via the health endpoint.
func (f *Fallback) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d", domain.ErrConnectionFailed, resp.StatusCode)
	}
	return nil
}

// SendText posts one text message and returns the raw response payload,
// which carries the same response/error shape as the persistent connection.
func (f *Fallback) SendText(ctx context.Context, text string) ([]byte, error) {
	payload, err := protocol.EncodeText(text)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fallback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fallback request returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback response: %w", err)
	}
	f.logger.Debug("fallback response received", zap.Int("bytes", len(body)))
	return body, nil
}
