// Package pipeline couples the raw-frame producer and the demux consumer
// around the encoder process. The two run as independent tasks connected
// only by the encoder's pipes: the writer feeds frames into stdin while the
// reader demuxes access units off stdout, so the pipe's own blocking
// semantics provide backpressure. No fixed read-start delay is needed even
// when the encoder buffers many frames before emitting its first tag.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/espipe/internal/avc"
	"github.com/zsiec/espipe/internal/flv"
)

// FrameSource supplies raw frames for the encoder's stdin. NextFrame
// returns io.EOF when the input is exhausted; the returned buffer is only
// valid until the next call.
type FrameSource interface {
	NextFrame() ([]byte, error)
}

// Sink consumes finished Annex B access units, one call per unit, in
// stream order.
type Sink interface {
	WriteAccessUnit(au []byte) error
}

// Encoder is the subset of the encoder process the pipeline drives:
// the two pipes plus the stdin close that triggers the final flush.
type Encoder interface {
	Stdin() io.Writer
	Stdout() io.Reader
	CloseInput() error
}

// Counters receives pipeline telemetry; the metrics package implements it.
type Counters interface {
	RecordFrameWritten(bytes int)
	SetRunning(running bool)
}

// Pipeline drives one encode run: frames in, access units out.
type Pipeline struct {
	log      *slog.Logger
	source   FrameSource
	enc      Encoder
	sink     Sink
	profile  avc.Profile
	counters Counters
	demStats flv.StatsRecorder

	framesIn atomic.Int64
	unitsOut atomic.Int64
}

// New creates a Pipeline. If log is nil, slog.Default() is used.
func New(source FrameSource, enc Encoder, sink Sink, profile avc.Profile, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		log:     log.With("component", "pipeline"),
		source:  source,
		enc:     enc,
		sink:    sink,
		profile: profile,
	}
}

// SetCounters attaches pipeline-level telemetry.
func (p *Pipeline) SetCounters(c Counters) {
	p.counters = c
}

// SetDemuxStats attaches demux-level telemetry, forwarded to the demuxer.
func (p *Pipeline) SetDemuxStats(s flv.StatsRecorder) {
	p.demStats = s
}

// FramesIn returns the number of raw frames written to the encoder so far.
func (p *Pipeline) FramesIn() int64 {
	return p.framesIn.Load()
}

// UnitsOut returns the number of access units delivered to the sink so far.
func (p *Pipeline) UnitsOut() int64 {
	return p.unitsOut.Load()
}

// Run executes the writer and reader tasks and blocks until the stream is
// fully drained, a task fails, or the context is cancelled. On success the
// encoder's stdin is closed and its stdout has been read to EOF.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.counters != nil {
		p.counters.SetRunning(true)
		defer p.counters.SetRunning(false)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.writeFrames(ctx) })
	g.Go(func() error { return p.readAccessUnits(ctx) })
	err := g.Wait()

	p.log.Info("pipeline finished",
		"frames_in", p.framesIn.Load(),
		"units_out", p.unitsOut.Load(),
		"error", err,
	)
	return err
}

// writeFrames feeds every source frame into the encoder, then closes stdin
// so the encoder flushes its buffered frames to stdout. Stdin is closed on
// every exit path; without that the reader would wait forever for the tail
// of the stream.
func (p *Pipeline) writeFrames(ctx context.Context) error {
	defer p.enc.CloseInput()

	stdin := p.enc.Stdin()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		frame, err := p.source.NextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Debug("frame source exhausted", "frames", p.framesIn.Load())
				return nil
			}
			return fmt.Errorf("pipeline: read frame: %w", err)
		}

		if _, err := stdin.Write(frame); err != nil {
			return fmt.Errorf("pipeline: write frame %d: %w", p.framesIn.Load()+1, err)
		}
		p.framesIn.Add(1)
		if p.counters != nil {
			p.counters.RecordFrameWritten(len(frame))
		}
	}
}

// readAccessUnits demuxes the encoder output until clean end of stream,
// handing each access unit to the sink before requesting the next.
func (p *Pipeline) readAccessUnits(ctx context.Context) error {
	d := flv.NewDemuxer(p.enc.Stdout(), p.profile, p.log)
	if p.demStats != nil {
		d.SetStats(p.demStats)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		au, err := d.NextAccessUnit()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Debug("stream drained", "units", p.unitsOut.Load())
				return nil
			}
			return fmt.Errorf("pipeline: demux: %w", err)
		}

		if err := p.sink.WriteAccessUnit(au); err != nil {
			return fmt.Errorf("pipeline: sink: %w", err)
		}
		p.unitsOut.Add(1)
	}
}
