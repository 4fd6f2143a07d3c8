package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"echodesk/internal/domain"
	"echodesk/internal/observer"
	"echodesk/internal/ports"
)

// Config controls microphone capture and playback.
type Config struct {
	Command       string // capture binary, ffmpeg by default
	PlayerCommand string // playback binary, ffplay by default
	InputFormat   string
	InputDevice   string
	SampleRate    int
	Channels      int
	ChunkInterval time.Duration
}

// Recorder captures microphone PCM through an ffmpeg pipe and finalizes each
// recording segment into one WAV-encoded AudioFrame. StartRecording
// auto-initializes when Initialize was never called.
type Recorder struct {
	cfg    Config
	logger *zap.Logger

	handlers observer.Registry[func(domain.AudioFrame)]

	mu          sync.Mutex
	initialized bool
	session     *captureSession
}

func NewRecorder(cfg Config, logger *zap.Logger) *Recorder {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.PlayerCommand == "" {
		cfg.PlayerCommand = "ffplay"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{cfg: cfg, logger: logger}
}

// Initialize verifies the capture command resolves. Idempotent; re-running
// after a failure is allowed.
func (r *Recorder) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}
	if _, err := exec.LookPath(r.cfg.Command); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}
	r.initialized = true
	return nil
}

// StartRecording launches continuous capture. No-op while already recording.
func (r *Recorder) StartRecording(ctx context.Context) error {
	r.mu.Lock()
	if r.session != nil {
		r.mu.Unlock()
		return nil
	}
	if !r.initialized {
		r.mu.Unlock()
		if err := r.Initialize(ctx); err != nil {
			return err
		}
		r.mu.Lock()
	}
	r.mu.Unlock()

	session, err := r.startSession(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.session != nil {
		// Lost the race with a concurrent start; keep the first session.
		r.mu.Unlock()
		session.terminate()
		return nil
	}
	r.session = session
	r.mu.Unlock()

	r.logger.Debug("recording started",
		zap.Int("sampleRate", r.cfg.SampleRate),
		zap.Int("channels", r.cfg.Channels),
	)
	return nil
}

// StopRecording ends capture and delivers the finalized segment as one WAV
// AudioFrame to all registered handlers in registration order. No-op when
// not recording. Finalization, once started, always completes.
func (r *Recorder) StopRecording() error {
	r.mu.Lock()
	session := r.session
	r.session = nil
	r.mu.Unlock()
	if session == nil {
		return nil
	}

	stopErr := session.stop()
	pcm := session.takeSegment()

	frame := domain.AudioFrame{
		Data:       EncodeWAV(pcm, r.cfg.SampleRate, r.cfg.Channels),
		SampleRate: r.cfg.SampleRate,
	}
	for _, handler := range r.handlers.Snapshot() {
		handler(frame)
	}

	r.logger.Debug("recording finalized", zap.Int("pcmBytes", len(pcm)))
	return stopErr
}

// OnAudioData registers a segment handler and returns its unsubscribe handle.
func (r *Recorder) OnAudioData(handler func(frame domain.AudioFrame)) ports.Unsubscribe {
	return r.handlers.Add(handler)
}

// Cleanup releases the capture process without emitting a frame. Safe to
// call multiple times.
func (r *Recorder) Cleanup() error {
	r.mu.Lock()
	session := r.session
	r.session = nil
	r.initialized = false
	r.mu.Unlock()
	if session != nil {
		session.terminate()
	}
	return nil
}

func (r *Recorder) startSession(ctx context.Context) (*captureSession, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", r.cfg.InputFormat,
		"-i", r.cfg.InputDevice,
		"-ac", strconv.Itoa(r.cfg.Channels),
		"-ar", strconv.Itoa(r.cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create capture pipe: %v", domain.ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start capture: %v", domain.ErrDeviceUnavailable, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Give the process a moment to fail on device acquisition problems.
	select {
	case err := <-waitErr:
		detail := bytes.TrimSpace(stderr.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%w: capture exited before starting: %v: %s", domain.ErrDeviceUnavailable, err, detail)
		}
		return nil, fmt.Errorf("%w: capture exited before starting: %s", domain.ErrDeviceUnavailable, detail)
	case <-time.After(250 * time.Millisecond):
	}

	chunkSize := r.cfg.SampleRate * r.cfg.Channels * 2 * int(r.cfg.ChunkInterval) / int(time.Second)
	if chunkSize < 256 {
		chunkSize = 256
	}

	session := &captureSession{
		stdout:     stdout,
		stderr:     &stderr,
		process:    cmd.Process,
		waitErr:    waitErr,
		readerDone: make(chan struct{}),
	}
	go session.readLoop(chunkSize)
	return session, nil
}

type captureSession struct {
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	segment    bytes.Buffer
	readerDone chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// readLoop is the sole writer of segment until readerDone closes.
func (s *captureSession) readLoop(chunkSize int) {
	defer close(s.readerDone)
	buf := make([]byte, chunkSize)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			s.segment.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (s *captureSession) stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		<-s.readerDone
		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, bytes.TrimSpace(s.stderr.Bytes()))
		}
	})
	return s.stopErr
}

// terminate stops the process and discards the buffered segment.
func (s *captureSession) terminate() {
	_ = s.stop()
	s.segment.Reset()
}

func (s *captureSession) takeSegment() []byte {
	<-s.readerDone
	return s.segment.Bytes()
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
