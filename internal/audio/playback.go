package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"echodesk/internal/domain"
)

// PlayAudio decodes and plays a received audio payload through the player
// process. Independent of the recording state; failures are reported as
// domain.ErrPlayback and never affect capture.
func (r *Recorder) PlayAudio(ctx context.Context, frame domain.AudioFrame) error {
	if len(frame.Data) == 0 {
		return nil
	}
	if _, err := exec.LookPath(r.cfg.PlayerCommand); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPlayback, err)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-autoexit",
		"-nodisp",
		"-i", "-",
	}
	cmd := exec.CommandContext(ctx, r.cfg.PlayerCommand, args...)
	cmd.Stdin = bytes.NewReader(frame.Data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := bytes.TrimSpace(stderr.Bytes())
		return fmt.Errorf("%w: %v: %s", domain.ErrPlayback, err, detail)
	}
	r.logger.Debug("response audio played", zap.Int("bytes", len(frame.Data)))
	return nil
}
