package flv

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"

	"github.com/zsiec/espipe/internal/avc"
)

const (
	streamHeaderSize  = 9  // signature(3) + version(1) + flags(1) + header size(4)
	tagHeaderSize     = 15 // prev tag size(4) + type(1) + payload len(3) + ts(3) + ts ext(1) + stream id(3)
	payloadPrefixSize = 5  // frame type/codec id(1) + packet type(1) + composition time(3)

	flvVersion    = 1
	flagsVideo    = 0x01 // flags bit 0: video present; bit 2 would be audio
	codecIDAVC    = 7
	packetTypeSeq = 0 // AVC sequence header (decoder configuration record)
	packetTypeNAL = 1 // one or more AVCC NAL units
)

var signature = []byte("FLV")

// StatsRecorder receives telemetry callbacks from the demuxer. The metrics
// package implements this interface.
type StatsRecorder interface {
	RecordAccessUnit(bytes, nalUnits int)
	RecordDemuxError()
}

// Demuxer splits a video-only FLV byte stream into Annex B access units.
// It validates the 9-byte stream header and the leading sequence-header tag
// on the first call, then yields one access unit per subsequent tag.
type Demuxer struct {
	log        *slog.Logger
	reader     io.Reader
	profile    avc.Profile
	stats      StatsRecorder
	headerDone bool
	tagBuf     [tagHeaderSize]byte
	lenBuf     [4]byte
	units      int64
}

// NewDemuxer creates a Demuxer reading from r, reframing NAL units for the
// given encoder profile. If log is nil, slog.Default() is used.
func NewDemuxer(r io.Reader, profile avc.Profile, log *slog.Logger) *Demuxer {
	if log == nil {
		log = slog.Default()
	}
	return &Demuxer{
		log:     log.With("component", "flv"),
		reader:  r,
		profile: profile,
	}
}

// SetStats attaches a StatsRecorder that is notified for every access unit
// produced and every demux failure.
func (d *Demuxer) SetStats(s StatsRecorder) {
	d.stats = s
}

// NextAccessUnit returns the next encoded access unit in Annex B framing,
// in stream order. The returned buffer is owned by the caller. It returns
// io.EOF once the source ends cleanly at a tag boundary; any other error is
// fatal and the demuxer must not be used further.
func (d *Demuxer) NextAccessUnit() ([]byte, error) {
	if !d.headerDone {
		if err := d.readStreamHeader(); err != nil {
			d.recordError(err)
			return nil, err
		}
		d.headerDone = true
	}

	au, units, err := d.readTagPayload()
	if err != nil {
		d.recordError(err)
		return nil, err
	}

	d.units++
	if d.stats != nil {
		d.stats.RecordAccessUnit(len(au), units)
	}
	return au, nil
}

// AccessUnits returns the number of access units produced so far.
func (d *Demuxer) AccessUnits() int64 {
	return d.units
}

func (d *Demuxer) recordError(err error) {
	if d.stats != nil && !errors.Is(err, io.EOF) {
		d.stats.RecordDemuxError()
	}
}

// readStreamHeader consumes the fixed stream header and the first tag, which
// must carry the AVC sequence header (decoder configuration record). The
// record's contents are not needed; it is validated and discarded so the
// cursor lands on the second tag, where the media tags begin.
func (d *Demuxer) readStreamHeader() error {
	var hdr [streamHeaderSize]byte
	if _, err := io.ReadFull(d.reader, hdr[:]); err != nil {
		return truncatedf("flv: stream header")
	}

	if hdr[0] != signature[0] || hdr[1] != signature[1] || hdr[2] != signature[2] {
		return formatErrorf("signature", "got %q, want %q", hdr[:3], signature)
	}
	if hdr[3] != flvVersion {
		return formatErrorf("version", "got %d, want %d", hdr[3], flvVersion)
	}
	if hdr[4] != flagsVideo {
		return formatErrorf("flags", "got 0x%02X, want 0x%02X (video only)", hdr[4], flagsVideo)
	}
	// hdr[5:9] is the header size, used only to frame the bytes already read.

	payloadLength, err := d.readTagHeader()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return truncatedf("flv: stream ended before sequence header tag")
		}
		return err
	}

	if payloadLength < 2 {
		return formatErrorf("payload length", "sequence header tag declares %d bytes", payloadLength)
	}

	var prefix [2]byte
	if _, err := io.ReadFull(d.reader, prefix[:]); err != nil {
		return truncatedf("flv: sequence header prefix")
	}
	if codec := prefix[0] & 0x0F; codec != codecIDAVC {
		return formatErrorf("codec id", "got %d, want %d (AVC)", codec, codecIDAVC)
	}
	if prefix[1] != packetTypeSeq {
		return formatErrorf("packet type", "first tag carries type %d, want %d (sequence header)", prefix[1], packetTypeSeq)
	}
	if _, err := io.CopyN(io.Discard, d.reader, int64(payloadLength-2)); err != nil {
		return truncatedf("flv: sequence header payload")
	}

	d.log.Debug("stream header validated", "sequence_header_bytes", payloadLength-2)
	return nil
}

// readTagHeader consumes one fixed 15-byte tag header and returns the
// declared payload length. A short read here is the stream's sole clean
// termination signal (the encoder closed its pipe at a tag boundary; FFmpeg
// additionally leaves a 4-byte previous-tag-size footer, which parses as an
// incomplete header), so it is reported as io.EOF rather than an error.
// The previous-tag-size, tag-type, timestamp, and stream-id fields are not
// interpreted.
func (d *Demuxer) readTagHeader() (uint32, error) {
	if _, err := io.ReadFull(d.reader, d.tagBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}
		return 0, err
	}
	length := uint32(d.tagBuf[5])<<16 | uint32(d.tagBuf[6])<<8 | uint32(d.tagBuf[7])
	return length, nil
}

// readTagPayload consumes one media tag and returns its payload reframed as
// a single Annex B access unit, plus the number of NAL units it contained.
func (d *Demuxer) readTagPayload() ([]byte, int, error) {
	payloadLength, err := d.readTagHeader()
	if err != nil {
		return nil, 0, err
	}

	// Validate the declared length before consuming payload bytes; a tag
	// shorter than its prefix must not eat into the next structure.
	if payloadLength < payloadPrefixSize {
		return nil, 0, formatErrorf("payload length", "tag declares %d bytes, less than the %d-byte prefix", payloadLength, payloadPrefixSize)
	}

	var prefix [payloadPrefixSize]byte
	if _, err := io.ReadFull(d.reader, prefix[:]); err != nil {
		return nil, 0, truncatedf("flv: payload prefix")
	}
	if codec := prefix[0] & 0x0F; codec != codecIDAVC {
		return nil, 0, formatErrorf("codec id", "got %d, want %d (AVC)", codec, codecIDAVC)
	}
	if prefix[1] != packetTypeNAL {
		return nil, 0, formatErrorf("packet type", "got %d, want %d (NAL unit data)", prefix[1], packetTypeNAL)
	}

	// remaining tracks the declared payload bytes not yet consumed. The tag
	// contains back-to-back length-prefixed NAL units whose sizes must sum
	// exactly to it.
	remaining := int(payloadLength) - payloadPrefixSize
	var au []byte
	units := 0

	for remaining > 0 {
		if _, err := io.ReadFull(d.reader, d.lenBuf[:]); err != nil {
			return nil, 0, truncatedf("flv: NAL unit length")
		}
		nalLength := binary.BigEndian.Uint32(d.lenBuf[:])
		remaining -= 4

		if nalLength == 0 {
			return nil, 0, formatErrorf("nal unit", "zero-length NAL unit")
		}

		nal := make([]byte, nalLength)
		if _, err := io.ReadFull(d.reader, nal); err != nil {
			return nil, 0, truncatedf("flv: NAL unit data (%d bytes)", nalLength)
		}
		remaining -= int(nalLength)

		if remaining < 0 {
			return nil, 0, formatErrorf("payload length", "NAL units overrun the declared payload by %d bytes", -remaining)
		}

		au = avc.ToAnnexB(au, nal, d.profile)
		units++
	}

	return au, units, nil
}
