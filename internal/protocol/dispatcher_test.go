package protocol

import (
	"errors"
	"testing"

	"echodesk/internal/domain"
)

type recordingHandler struct {
	responses []Response
	notices   []ErrorNotice
}

func (h *recordingHandler) HandleResponse(resp Response) {
	h.responses = append(h.responses, resp)
}

func (h *recordingHandler) HandleErrorNotice(notice ErrorNotice) {
	h.notices = append(h.notices, notice)
}

func TestDispatcherRoutesResponse(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	d := NewDispatcher(handler, nil, nil)

	d.Dispatch([]byte(`{"type":"response","message":"ok","success":true,"data":{"k":"v"},"audio_response":"0a0b"}`))

	if len(handler.responses) != 1 {
		t.Fatalf("expected one response, got %d", len(handler.responses))
	}
	resp := handler.responses[0]
	if resp.Message != "ok" || !resp.Success {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.AudioResponse != "0a0b" {
		t.Fatalf("unexpected audio response: %q", resp.AudioResponse)
	}
}

func TestDispatcherRoutesErrorNotice(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	d := NewDispatcher(handler, nil, nil)

	d.Dispatch([]byte(`{"type":"error","error_message":"boom"}`))

	if len(handler.notices) != 1 || handler.notices[0].ErrorMessage != "boom" {
		t.Fatalf("unexpected notices: %+v", handler.notices)
	}
	if len(handler.responses) != 0 {
		t.Fatalf("error notice must not produce a response event")
	}
}

func TestDispatcherReportsMalformedInput(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	var failures []error
	d := NewDispatcher(handler, func(err error) { failures = append(failures, err) }, nil)

	d.Dispatch([]byte(`not json`))
	d.Dispatch([]byte(`{"type":"mystery"}`))
	d.Dispatch([]byte(`{"type":"response","success":"not-a-bool"}`))

	if len(failures) != 3 {
		t.Fatalf("expected 3 parse failures, got %d", len(failures))
	}
	for _, err := range failures {
		if !errors.Is(err, domain.ErrParse) {
			t.Fatalf("expected ErrParse, got %v", err)
		}
	}
	if len(handler.responses) != 0 || len(handler.notices) != 0 {
		t.Fatalf("malformed input must not reach the handler")
	}
}

func TestDispatcherOneEventPerMessage(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	d := NewDispatcher(handler, nil, nil)

	for i := 0; i < 5; i++ {
		d.Dispatch([]byte(`{"type":"response","message":"m","success":false}`))
	}
	if len(handler.responses) != 5 {
		t.Fatalf("expected exactly one event per message, got %d", len(handler.responses))
	}
}
