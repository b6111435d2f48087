// Package metrics exposes pipeline telemetry as Prometheus collectors:
// raw frames fed to the encoder, access units and NAL units demuxed, byte
// volumes in both framings, and demux failures.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one pipeline run. It implements the flv
// package's StatsRecorder and the pipeline's frame counter.
type Metrics struct {
	registry *prometheus.Registry

	framesWritten prometheus.Counter
	bytesIn       prometheus.Counter
	accessUnits   prometheus.Counter
	nalUnits      prometheus.Counter
	bytesOut      prometheus.Counter
	demuxErrors   prometheus.Counter
	running       prometheus.Gauge
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espipe_frames_written_total",
			Help: "Raw frames written to the encoder's stdin.",
		}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espipe_bytes_in_total",
			Help: "Raw frame bytes written to the encoder.",
		}),
		accessUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espipe_access_units_total",
			Help: "Encoded access units demuxed from the encoder output.",
		}),
		nalUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espipe_nal_units_total",
			Help: "NAL units reframed from AVCC to Annex B.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espipe_bytes_out_total",
			Help: "Annex B bytes produced, start codes included.",
		}),
		demuxErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "espipe_demux_errors_total",
			Help: "Fatal demux failures (format violations and truncation).",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "espipe_pipeline_running",
			Help: "1 while the pipeline is running.",
		}),
	}

	m.registry.MustRegister(
		m.framesWritten, m.bytesIn,
		m.accessUnits, m.nalUnits, m.bytesOut,
		m.demuxErrors, m.running,
	)
	return m
}

// Handler returns the HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFrameWritten counts one raw frame fed to the encoder.
func (m *Metrics) RecordFrameWritten(bytes int) {
	m.framesWritten.Inc()
	m.bytesIn.Add(float64(bytes))
}

// RecordAccessUnit counts one demuxed access unit and its NAL units.
func (m *Metrics) RecordAccessUnit(bytes, nalUnits int) {
	m.accessUnits.Inc()
	m.nalUnits.Add(float64(nalUnits))
	m.bytesOut.Add(float64(bytes))
}

// RecordDemuxError counts one fatal demux failure.
func (m *Metrics) RecordDemuxError() {
	m.demuxErrors.Inc()
}

// SetRunning flips the pipeline liveness gauge.
func (m *Metrics) SetRunning(running bool) {
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}
