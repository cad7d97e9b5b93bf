// Package imageproc prepares uploaded profile pictures.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// ErrNotImage is returned when the upload cannot be decoded as gif, jpeg, png, bmp or tiff.
var ErrNotImage = errors.New("imageproc: not a supported image")

// DefaultSize is the edge length of generated avatars in pixels.
const DefaultSize = 400

// Avatar is an encoded square thumbnail.
type Avatar struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Ext is the file extension matching ContentType.
func (a *Avatar) Ext() string {
	return ".jpg"
}

// MakeAvatar decodes r honouring EXIF orientation, centre-crops it to a square and
// scales it to size x size (never upscaling past the source's shorter edge), then
// encodes the result as JPEG.
func MakeAvatar(r io.Reader, size int) (*Avatar, error) {
	if size <= 0 {
		size = DefaultSize
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	edge := shortEdge(img.Bounds())
	if edge > size {
		edge = size
	}
	thumb := imaging.Fill(img, edge, edge, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	b := thumb.Bounds()
	return &Avatar{Data: buf.Bytes(), ContentType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

func shortEdge(b image.Rectangle) int {
	if b.Dx() < b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}
