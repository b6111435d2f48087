package encoder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// Process is a running FFmpeg instance with both pipes attached. The stdin
// pipe receives raw frames; the stdout pipe delivers the FLV stream to the
// demuxer. The two directions have independent backpressure, each with
// exactly one writer and one reader, so no locking is needed around them.
type Process struct {
	log    *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

// Start launches FFmpeg with the arguments from cfg. The binary is resolved
// from PATH; stderr passes through to the parent's stderr so encoder
// diagnostics stay visible. If log is nil, slog.Default() is used.
func Start(ctx context.Context, cfg Config, log *slog.Logger) (*Process, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", cfg.Args()...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("encoder: start ffmpeg: %w", err)
	}

	log.Info("encoder started",
		"pid", cmd.Process.Pid,
		"profile", string(cfg.Profile),
		"geometry", fmt.Sprintf("%dx%d@%d", cfg.Width, cfg.Height, cfg.FPS),
		"zero_latency", cfg.ZeroLatency,
	)

	return &Process{
		log:    log.With("component", "encoder"),
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
	}, nil
}

// Stdin returns the pipe carrying raw frames into the encoder.
func (p *Process) Stdin() io.Writer {
	return p.stdin
}

// Stdout returns the pipe carrying the FLV stream out of the encoder.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// CloseInput closes the encoder's stdin. FFmpeg responds by flushing every
// buffered frame to stdout and exiting, which is how the tail of the stream
// is drained.
func (p *Process) CloseInput() error {
	return p.stdin.Close()
}

// Wait reaps the encoder process after its output has been drained.
func (p *Process) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder: ffmpeg exited: %w", err)
	}
	p.log.Debug("encoder exited cleanly")
	return nil
}
