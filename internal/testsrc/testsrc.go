// Package testsrc generates synthetic raw video frames for exercising the
// encoder pipeline without a camera: a flat gray background with the
// 1-based frame number drawn centered, so encoded output can be checked
// visually and frame ordering verified end to end.
package testsrc

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"strconv"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	background = color.RGBA{60, 60, 60, 255}
	digitColor = color.RGBA{30, 30, 255, 255} // blue, readable on gray
)

// Source produces a fixed number of bgr24 frames and then io.EOF. It
// implements the pipeline's FrameSource.
type Source struct {
	width  int
	height int
	count  int
	next   int
	buf    []byte
}

// New creates a Source emitting count frames of width x height.
func New(width, height, count int) *Source {
	return &Source{
		width:  width,
		height: height,
		count:  count,
		buf:    make([]byte, width*height*3),
	}
}

// NextFrame renders the next frame and returns its bgr24 bytes. The buffer
// is reused across calls; callers must consume it before the next call.
func (s *Source) NextFrame() ([]byte, error) {
	if s.next >= s.count {
		return nil, io.EOF
	}
	s.next++

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	drawNumber(img, s.next)

	// Repack RGBA to the bgr24 layout FFmpeg expects on stdin.
	out := s.buf
	pix := img.Pix
	for i, j := 0, 0; i < len(pix); i, j = i+4, j+3 {
		out[j] = pix[i+2]
		out[j+1] = pix[i+1]
		out[j+2] = pix[i]
	}
	return out, nil
}

// drawNumber renders n with the basicfont face into a small image, then
// scales it up proportionally to the frame width and blits it centered.
func drawNumber(dst *image.RGBA, n int) {
	text := strconv.Itoa(n)
	face := basicfont.Face7x13

	w := len(text) * face.Advance
	h := face.Height
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	drawer := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(digitColor),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(text)

	// Scale so the digits span roughly a quarter of the frame width.
	scale := dst.Bounds().Dx() / 4 / w
	if scale < 1 {
		scale = 1
	}
	sw, sh := w*scale, h*scale
	x0 := (dst.Bounds().Dx() - sw) / 2
	y0 := (dst.Bounds().Dy() - sh) / 2
	target := image.Rect(x0, y0, x0+sw, y0+sh)
	xdraw.NearestNeighbor.Scale(dst, target, small, small.Bounds(), xdraw.Over, nil)
}
