package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"runtime"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docservice/internal/model"
)

func encode(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func TestDerive_Dimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{name: "portrait 400x500", w: 400, h: 500},
		{name: "landscape", w: 640, h: 200},
		{name: "square", w: 300, h: 300},
		{name: "tiny", w: 3, h: 7},
		{name: "extreme wide", w: 1000, h: 11},
		{name: "one pixel wide", w: 1, h: 6000},
		{name: "one pixel tall", w: 6000, h: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Derive(encode(t, tt.w, tt.h, imaging.JPEG), model.TypeJPG)
			require.NoError(t, err)

			cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, Width, cfg.Width)
			assert.Equal(t, Height, cfg.Height)
		})
	}
}

func TestDerive_KeepsFormat(t *testing.T) {
	out, err := Derive(encode(t, 400, 500, imaging.PNG), model.TypePNG)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Point{X: Width, Y: Height}, image.Point{X: cfg.Width, Y: cfg.Height})

	out, err = Derive(encode(t, 120, 80, imaging.GIF), model.TypeGIF)
	require.NoError(t, err)
	_, err = gif.DecodeConfig(bytes.NewReader(out))
	assert.NoError(t, err)

	out, err = Derive(encode(t, 50, 50, imaging.JPEG), model.TypeJPEG)
	require.NoError(t, err)
	_, err = jpeg.DecodeConfig(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestDerive_NotDerivable(t *testing.T) {
	for _, dt := range []model.DocType{model.TypePDF, model.TypeTXT, model.TypeDOCX} {
		out, err := Derive([]byte("%PDF-1.4"), dt)
		assert.ErrorIs(t, err, ErrNotDerivable)
		assert.Nil(t, out)
	}
}

func TestDerive_DecodeError(t *testing.T) {
	_, err := Derive([]byte("definitely not an image"), model.TypePNG)
	assert.ErrorIs(t, err, ErrDecode)
	assert.NotErrorIs(t, err, ErrNotDerivable)
}

func TestDerive_ExtremeAspectStaysSmall(t *testing.T) {
	src := encode(t, 1, 6000, imaging.PNG)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	out, err := Derive(src, model.TypePNG)
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Point{X: Width, Y: Height}, image.Point{X: cfg.Width, Y: cfg.Height})
	// Scaling the whole 1x6000 strip to 200 pixels wide would allocate about a gigabyte.
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20))
}

func TestDerive_RejectsOversizedSource(t *testing.T) {
	orig := maxSourcePixels
	maxSourcePixels = 100
	defer func() { maxSourcePixels = orig }()

	_, err := Derive(encode(t, 20, 20, imaging.PNG), model.TypePNG)
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorContains(t, err, "exceeds")

	_, err = Derive(encode(t, 10, 10, imaging.PNG), model.TypePNG)
	assert.NoError(t, err)
}
