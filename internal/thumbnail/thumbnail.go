// Package thumbnail derives fixed-size previews of image documents.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"docservice/internal/model"
)

// Target box of every derived thumbnail.
const (
	Width  = 200
	Height = 200
)

var (
	// ErrNotDerivable signals that doc_type has no thumbnail. It is not a failure.
	ErrNotDerivable = errors.New("thumbnail not derivable for document type")
	// ErrDecode means the content could not be decoded as an image.
	ErrDecode = errors.New("decode image")
)

// maxSourcePixels bounds the decoded source so a small compressed payload
// cannot expand into an arbitrarily large bitmap.
var maxSourcePixels = 50_000_000

// Derive returns a Width x Height thumbnail of content encoded in the format
// of docType. Non-image types yield ErrNotDerivable; undecodable content
// yields an error wrapping ErrDecode.
func Derive(content []byte, docType model.DocType) ([]byte, error) {
	if !docType.IsImage() {
		return nil, ErrNotDerivable
	}
	format, err := formatFor(docType)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxSourcePixels) {
		return nil, fmt.Errorf("%w: %dx%d source exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxSourcePixels)
	}

	src, err := imaging.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	dst := fit(src)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fit crops the largest centred region of src with the target aspect ratio
// and scales it to Width x Height. Cropping first keeps every intermediate
// image no larger than the source or the thumbnail.
func fit(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	cw, ch := w, h
	// Compare Width/Height with w/h without floating point.
	switch target, source := Width*h, Height*w; {
	case target > source:
		ch = max(1, w*Height/Width)
	case target < source:
		cw = max(1, h*Width/Height)
	}

	return imaging.Resize(imaging.CropCenter(src, cw, ch), Width, Height, imaging.Lanczos)
}

func formatFor(t model.DocType) (imaging.Format, error) {
	switch t {
	case model.TypeJPG, model.TypeJPEG:
		return imaging.JPEG, nil
	case model.TypePNG:
		return imaging.PNG, nil
	case model.TypeGIF:
		return imaging.GIF, nil
	}
	return 0, ErrNotDerivable
}
