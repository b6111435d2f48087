package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/espipe/internal/certs"
	"github.com/zsiec/espipe/internal/config"
	"github.com/zsiec/espipe/internal/distribution"
	"github.com/zsiec/espipe/internal/encoder"
	"github.com/zsiec/espipe/internal/metrics"
	"github.com/zsiec/espipe/internal/pipeline"
	"github.com/zsiec/espipe/internal/sink"
	"github.com/zsiec/espipe/internal/testsrc"
)

var version = "dev"

func main() {
	configPath := flag.String("config", envOr("ESPIPE_CONFIG", ""), "YAML config file; empty uses built-in defaults")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "espipe: %v\n", err)
		os.Exit(1)
	}

	level := logLevel(cfg.LogLevel)
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		slog.Error("espipe failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("espipe starting",
		"version", version,
		"profile", cfg.Encoder.Profile,
		"size", fmt.Sprintf("%dx%d@%d", cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS),
		"zero_latency", cfg.Encoder.ZeroLatency,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	encCfg := encoder.Config{
		Width:         cfg.Video.Width,
		Height:        cfg.Video.Height,
		FPS:           cfg.Video.FPS,
		Profile:       cfg.Profile(),
		ZeroLatency:   cfg.Encoder.ZeroLatency,
		LatencyFrames: cfg.Encoder.LatencyFrames,
		GOP:           cfg.Encoder.GOP,
		BFrames:       cfg.Encoder.BFrames,
		Bitrate:       cfg.Encoder.Bitrate,
		CRF:           cfg.Encoder.CRF,
	}

	var source pipeline.FrameSource
	if cfg.Video.Frames > 0 {
		source = testsrc.New(cfg.Video.Width, cfg.Video.Height, cfg.Video.Frames)
	} else {
		slog.Info("reading raw bgr24 frames from stdin", "frame_size", encCfg.FrameSize())
		source = &stdinSource{r: os.Stdin, size: encCfg.FrameSize()}
	}

	m := metrics.New()

	var sinks sink.Multi
	var fileSink *sink.File
	if cfg.Output.Path != "" {
		fs, err := sink.NewFile(cfg.Output.Path)
		if err != nil {
			return err
		}
		fileSink = fs
		sinks = append(sinks, fs)
		slog.Info("writing elementary stream", "path", cfg.Output.Path)
	}

	var relay *distribution.Relay
	var distSrv *distribution.Server
	if cfg.Output.ServeAddr != "" {
		cert, err := certs.Generate(14 * 24 * time.Hour)
		if err != nil {
			return fmt.Errorf("generate cert: %w", err)
		}
		slog.Info("certificate generated",
			"fingerprint", cert.FingerprintBase64(),
			"expires", cert.NotAfter.Format(time.RFC3339),
		)
		relay = distribution.NewRelay(nil)
		distSrv = distribution.NewServer(cfg.Output.ServeAddr, cert, relay, nil)
		sinks = append(sinks, relay)
	}

	var out sink.Sink = sinks
	if len(sinks) == 0 {
		slog.Warn("no outputs configured, discarding access units")
		out = sink.Discard
	}

	proc, err := encoder.Start(ctx, encCfg, nil)
	if err != nil {
		return err
	}

	pl := pipeline.New(source, proc, out, cfg.Profile(), nil)
	pl.SetCounters(m)
	pl.SetDemuxStats(m)

	g, ctx := errgroup.WithContext(ctx)

	if distSrv != nil {
		g.Go(func() error {
			return distSrv.Start(ctx)
		})
	}

	if cfg.Output.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv := &http.Server{Addr: cfg.Output.MetricsAddr, Handler: mux}

		g.Go(func() error {
			slog.Info("metrics server listening", "addr", cfg.Output.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// Once the stream drains the servers have nothing left to serve.
		defer cancel()

		if err := pl.Run(ctx); err != nil {
			proc.Wait()
			return err
		}
		if err := proc.Wait(); err != nil {
			return fmt.Errorf("encoder exit: %w", err)
		}
		return nil
	})

	err = g.Wait()

	if relay != nil {
		relay.Close()
	}
	if fileSink != nil {
		if closeErr := fileSink.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	if err == nil {
		slog.Info("espipe finished",
			"frames_in", pl.FramesIn(),
			"units_out", pl.UnitsOut(),
		)
	}
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// stdinSource reads fixed-size raw frames from a reader. A short final
// frame is an error; a clean boundary is io.EOF.
type stdinSource struct {
	r    io.Reader
	size int
	buf  []byte
}

func (s *stdinSource) NextFrame() ([]byte, error) {
	if s.buf == nil {
		s.buf = make([]byte, s.size)
	}
	_, err := io.ReadFull(s.r, s.buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("stdin ended mid-frame: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return s.buf, nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
