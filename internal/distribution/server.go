package distribution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/quicvarint"

	"github.com/zsiec/espipe/internal/certs"
)

// Server accepts QUIC subscriber connections and streams relay output to
// each one over a single unidirectional stream, each access unit prefixed
// with its varint length.
type Server struct {
	log   *slog.Logger
	addr  string
	cert  *certs.CertInfo
	relay *Relay
	ln    *quic.Listener
	ready chan struct{} // closed once the listener is bound
}

// NewServer creates a Server that will listen on addr once started.
func NewServer(addr string, cert *certs.CertInfo, relay *Relay, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:   log.With("component", "distribution"),
		addr:  addr,
		cert:  cert,
		relay: relay,
		ready: make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the listener is bound and
// Addr reports the final address.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Start listens and serves subscribers until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := quic.ListenAddr(s.addr, s.cert.TLSConfig(), &quic.Config{})
	if err != nil {
		return fmt.Errorf("distribution: listen %s: %w", s.addr, err)
	}
	s.ln = ln
	close(s.ready)
	defer ln.Close()
	s.log.Info("distribution listening",
		"addr", ln.Addr().String(),
		"cert_hash", s.cert.FingerprintBase64(),
	)

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("distribution: accept: %w", err)
		}
		go s.serveConn(ctx, conn)
	}
}

// Addr returns the bound listener address, valid after Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) serveConn(ctx context.Context, conn quic.Connection) {
	remote := conn.RemoteAddr().String()
	s.log.Info("subscriber connected", "remote", remote)

	v := s.relay.AddViewer()
	defer s.relay.RemoveViewer(v)

	err := s.deliver(ctx, conn, v)
	sent, dropped := v.Stats()
	s.log.Info("subscriber disconnected",
		"remote", remote,
		"sent", sent,
		"dropped", dropped,
		"error", err,
	)
	conn.CloseWithError(0, "stream ended")
}

func (s *Server) deliver(ctx context.Context, conn quic.Connection, v *Viewer) error {
	stream, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	var prefix []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case au, ok := <-v.Units():
			if !ok {
				return nil // relay closed, all units delivered
			}
			prefix = quicvarint.Append(prefix[:0], uint64(len(au)))
			if _, err := stream.Write(prefix); err != nil {
				return fmt.Errorf("write length: %w", err)
			}
			if _, err := stream.Write(au); err != nil {
				return fmt.Errorf("write unit: %w", err)
			}
		}
	}
}
