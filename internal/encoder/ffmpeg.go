// Package encoder manages the external FFmpeg process that turns raw bgr24
// frames on stdin into an H.264 FLV stream on stdout. The FLV container is
// used deliberately: its per-tag payload size is the only way to know how
// many bytes to read from a pipe, which is what makes frame-by-frame
// consumption of the encoder output possible.
package encoder

import (
	"fmt"
	"strconv"

	"github.com/zsiec/espipe/internal/avc"
)

// Config describes the encoder invocation. Width, height, and fps are
// passed through to FFmpeg unchanged; the demux core never interprets them.
type Config struct {
	Width   int
	Height  int
	FPS     int
	Profile avc.Profile

	// ZeroLatency selects encoder tuning that emits each encoded access
	// unit as soon as its raw frame is consumed (no lookahead, no
	// B-frames). Without it the encoder buffers LatencyFrames frames
	// internally before the first tag appears on stdout.
	ZeroLatency   bool
	LatencyFrames int

	GOP     int    // keyframe interval; 0 selects a per-mode default
	BFrames int    // consecutive B-frames when not zero-latency
	Bitrate string // target bitrate for Quick Sync, e.g. "20000k"
	CRF     int    // constant rate factor for libx264; 0 selects the default
}

func (c *Config) gop() int {
	if c.GOP > 0 {
		return c.GOP
	}
	if c.ZeroLatency {
		return 10
	}
	return 25
}

func (c *Config) crf() int {
	if c.CRF > 0 {
		return c.CRF
	}
	return 10
}

func (c *Config) bitrate() string {
	if c.Bitrate != "" {
		return c.Bitrate
	}
	return "20000k"
}

// Validate reports configuration that FFmpeg would reject or that would
// desynchronize the raw-frame framing on stdin.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("encoder: invalid frame geometry %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("encoder: invalid frame rate %d", c.FPS)
	}
	if _, err := avc.ParseProfile(string(c.Profile)); err != nil {
		return err
	}
	if c.LatencyFrames < 0 {
		return fmt.Errorf("encoder: negative latency frames %d", c.LatencyFrames)
	}
	return nil
}

// FrameSize returns the byte size of one raw bgr24 frame on stdin.
func (c *Config) FrameSize() int {
	return c.Width * c.Height * 3
}

// Args builds the FFmpeg argument vector: rawvideo bgr24 in on pipe,
// FLV-contained H.264 out on pipe. The flvflags strip the sequence-end
// footer and metadata tags the demuxer has no use for, and dump_extra
// repeats SPS/PPS on every keyframe so a receiver can join mid-stream.
func (c *Config) Args() []string {
	args := []string{
		"-hide_banner",
		"-threads", "1",
		"-framerate", strconv.Itoa(c.FPS),
		"-video_size", fmt.Sprintf("%dx%d", c.Width, c.Height),
		"-pixel_format", "bgr24",
		"-f", "rawvideo",
		"-an", "-sn", "-dn",
		"-i", "pipe:",
		"-threads", "1",
	}

	switch c.Profile {
	case avc.ProfileQuickSync:
		args = append(args,
			"-vcodec", "h264_qsv",
			"-async_depth", "1",
			"-forced_idr", "1",
			"-g", strconv.Itoa(c.gop()),
			"-bf", "0",
			"-b:v", c.bitrate(),
			"-pix_fmt", "nv12",
		)
	default:
		args = append(args, "-vcodec", "libx264")
		if c.ZeroLatency {
			args = append(args,
				"-x264-params", "bframes=0:force-cfr=1:no-mbtree=1:sync-lookahead=0:sliced-threads=1:rc-lookahead=0",
				"-g", strconv.Itoa(c.gop()),
			)
		} else {
			args = append(args,
				"-g", strconv.Itoa(c.gop()),
				"-bf", strconv.Itoa(c.BFrames),
			)
		}
		args = append(args,
			"-pix_fmt", "yuv444p",
			"-crf", strconv.Itoa(c.crf()),
		)
	}

	args = append(args,
		"-f", "flv",
		"-flvflags", "no_sequence_end+no_metadata+no_duration_filesize",
		"-bsf:v", "dump_extra",
		"-an", "-sn", "-dn",
		"pipe:",
	)
	return args
}
