// Package sink delivers finished Annex B access units to their
// destinations. Sinks receive each unit exactly once, in stream order, and
// must not retain the buffer past the call.
package sink

import (
	"fmt"
	"os"
)

// Sink consumes one encoded access unit per call.
type Sink interface {
	WriteAccessUnit(au []byte) error
}

// Func adapts a function to the Sink interface.
type Func func(au []byte) error

// WriteAccessUnit calls f.
func (f Func) WriteAccessUnit(au []byte) error {
	return f(au)
}

// Discard drops every access unit. Useful for latency measurements.
var Discard = Func(func([]byte) error { return nil })

// File appends access units to a single elementary-stream file.
type File struct {
	f *os.File
}

// NewFile creates (or truncates) the output file at path.
func NewFile(path string) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", path, err)
	}
	return &File{f: f}, nil
}

// WriteAccessUnit appends the unit's bytes to the file.
func (s *File) WriteAccessUnit(au []byte) error {
	if _, err := s.f.Write(au); err != nil {
		return fmt.Errorf("sink: write %s: %w", s.f.Name(), err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *File) Close() error {
	return s.f.Close()
}

// Multi fans one access unit out to several sinks, stopping at the first
// error.
type Multi []Sink

// WriteAccessUnit delivers au to each sink in order.
func (m Multi) WriteAccessUnit(au []byte) error {
	for _, s := range m {
		if err := s.WriteAccessUnit(au); err != nil {
			return err
		}
	}
	return nil
}
