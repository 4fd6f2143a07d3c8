package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"echodesk/internal/domain"
)

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestRecorderInitializeMissingCommand(t *testing.T) {
	t.Parallel()

	r := NewRecorder(Config{Command: "definitely-not-a-real-binary"}, nil)
	err := r.Initialize(context.Background())
	if !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestRecorderInitializeIdempotent(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nsleep 2\n")
	r := NewRecorder(Config{Command: script}, nil)
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("re-initialize failed: %v", err)
	}
}

func TestRecorderStartStopDeliversOneFrame(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'pcmbytes'\nsleep 2\n")
	r := NewRecorder(Config{Command: script, SampleRate: 16000, Channels: 1}, nil)

	var mu sync.Mutex
	var frames []domain.AudioFrame
	var order []string
	r.OnAudioData(func(frame domain.AudioFrame) {
		mu.Lock()
		frames = append(frames, frame)
		order = append(order, "first")
		mu.Unlock()
	})
	r.OnAudioData(func(frame domain.AudioFrame) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})

	if err := r.StartRecording(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	// Let the reader pick up the produced bytes.
	time.Sleep(150 * time.Millisecond)
	if err := r.StopRecording(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 1 {
		t.Fatalf("expected exactly one frame, got %d", len(frames))
	}
	if frames[0].SampleRate != 16000 {
		t.Fatalf("unexpected sample rate: %d", frames[0].SampleRate)
	}
	pcm, _, _, err := DecodeWAV(frames[0].Data)
	if err != nil {
		t.Fatalf("frame is not a wav container: %v", err)
	}
	if !bytes.Equal(pcm, []byte("pcmbytes")) {
		t.Fatalf("unexpected pcm payload: %q", pcm)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("handlers not invoked in registration order: %v", order)
	}
}

func TestRecorderStartIsNoOpWhileRecording(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nsleep 2\n")
	r := NewRecorder(Config{Command: script}, nil)

	var frames int
	var mu sync.Mutex
	r.OnAudioData(func(domain.AudioFrame) {
		mu.Lock()
		frames++
		mu.Unlock()
	})

	if err := r.StartRecording(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := r.StartRecording(context.Background()); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if err := r.StopRecording(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if frames != 1 {
		t.Fatalf("expected one frame from one logical recording, got %d", frames)
	}
}

func TestRecorderStopWithoutRecordingIsNoOp(t *testing.T) {
	t.Parallel()

	r := NewRecorder(Config{Command: "ignored"}, nil)
	if err := r.StopRecording(); err != nil {
		t.Fatalf("expected no-op stop, got %v", err)
	}
}

func TestRecorderStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no device' 1>&2\nexit 1\n")
	r := NewRecorder(Config{Command: script}, nil)

	err := r.StartRecording(context.Background())
	if !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestRecorderCleanupDiscardsWithoutFrame(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'data'\nsleep 2\n")
	r := NewRecorder(Config{Command: script}, nil)

	var frames int
	var mu sync.Mutex
	r.OnAudioData(func(domain.AudioFrame) {
		mu.Lock()
		frames++
		mu.Unlock()
	})

	if err := r.StartRecording(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := r.Cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if err := r.Cleanup(); err != nil {
		t.Fatalf("second cleanup failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if frames != 0 {
		t.Fatalf("cleanup must not emit frames, got %d", frames)
	}
}

func TestRecorderUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nsleep 2\n")
	r := NewRecorder(Config{Command: script}, nil)

	var removed int
	var kept int
	var mu sync.Mutex
	unsub := r.OnAudioData(func(domain.AudioFrame) {
		mu.Lock()
		removed++
		mu.Unlock()
	})
	r.OnAudioData(func(domain.AudioFrame) {
		mu.Lock()
		kept++
		mu.Unlock()
	})
	unsub()

	if err := r.StartRecording(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := r.StopRecording(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if removed != 0 {
		t.Fatalf("unsubscribed handler was invoked")
	}
	if kept != 1 {
		t.Fatalf("expected remaining handler to receive the frame, got %d", kept)
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}
