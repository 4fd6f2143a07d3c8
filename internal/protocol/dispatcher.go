package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"echodesk/internal/domain"
)

// Handler receives exactly one call per valid inbound message.
type Handler interface {
	HandleResponse(resp Response)
	HandleErrorNotice(notice ErrorNotice)
}

// Dispatcher decodes raw inbound payloads into typed events and routes them
// synchronously to a single handler. Malformed or unknown messages are
// reported to the error sink and otherwise ignored.
type Dispatcher struct {
	handler Handler
	onError func(err error)
	logger  *zap.Logger
}

func NewDispatcher(handler Handler, onError func(err error), logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Dispatcher{handler: handler, onError: onError, logger: logger}
}

// Dispatch parses one raw message by its type discriminator.
func (d *Dispatcher) Dispatch(raw []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		d.fail(fmt.Errorf("%w: %v", domain.ErrParse, err))
		return
	}

	switch strings.ToLower(envelope.Type) {
	case TypeResponse:
		var resp Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			d.fail(fmt.Errorf("%w: invalid response payload: %v", domain.ErrParse, err))
			return
		}
		d.handler.HandleResponse(resp)
	case TypeError:
		var notice ErrorNotice
		if err := json.Unmarshal(raw, &notice); err != nil {
			d.fail(fmt.Errorf("%w: invalid error payload: %v", domain.ErrParse, err))
			return
		}
		d.handler.HandleErrorNotice(notice)
	default:
		d.fail(fmt.Errorf("%w: unknown message type %q", domain.ErrParse, envelope.Type))
	}
}

func (d *Dispatcher) fail(err error) {
	d.logger.Warn("dropping inbound message", zap.Error(err))
	d.onError(err)
}
