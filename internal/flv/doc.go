// Package flv implements streaming demultiplexing of a video-only FLV byte
// stream into H.264 access units. It reads from an unbounded, unseekable
// source (typically an encoder process's stdout pipe), validates the stream
// header once, then yields one access unit per FLV tag with each contained
// NAL unit reframed from AVCC (length-prefixed) to Annex B
// (start-code-prefixed).
//
// The central type is [Demuxer], which reads from an [io.Reader] and
// produces access units through repeated [Demuxer.NextAccessUnit] calls.
// At most one access unit is buffered at a time; the stream's declared
// payload sizes drive all reads, so the demuxer never over-reads the pipe.
package flv
