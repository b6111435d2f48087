package flv

import (
	"errors"
	"fmt"
)

// ErrTruncated indicates the source closed mid-structure anywhere other
// than a tag-header boundary (mid-prefix, mid-NAL-unit). It means the peer
// process terminated unexpectedly or the pipe broke. Clean end of stream is
// reported as io.EOF instead, and only by an incomplete tag-header read.
var ErrTruncated = errors.New("flv: truncated stream")

// FormatError indicates the byte stream violates the FLV/AVC framing this
// demuxer requires: a bad signature, version, or flags byte, a non-AVC
// codec id, an unexpected packet type, or payload-length accounting that
// disagrees with the contained NAL units. It is fatal; the stream position
// is undefined afterward and the stream must not be read further.
type FormatError struct {
	Field string // the header field or structure that failed validation
	Msg   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("flv: %s: %s", e.Field, e.Msg)
}

func formatErrorf(field, format string, args ...any) *FormatError {
	return &FormatError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func truncatedf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrTruncated)...)
}
