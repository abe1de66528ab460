package optimize

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/gen2brain/jpegli"
)

// Encoder backend names accepted by Policy.Encoder.
const (
	EncoderStdlib = "stdlib"
	EncoderJpegli = "jpegli"
	EncoderVips   = "vips"
)

// JPEGEncoder abstracts the lossy encoder so backends can be swapped.
// Backends that cannot emit CMYK-tagged streams say so and the recompressor
// converts to RGB first.
type JPEGEncoder interface {
	Name() string
	EncodesCMYK() bool
	Encode(img image.Image, quality int) ([]byte, error)
}

func newJPEGEncoder(name string) (JPEGEncoder, error) {
	switch name {
	case "", EncoderStdlib:
		return stdlibEncoder{}, nil
	case EncoderJpegli:
		return jpegliEncoder{}, nil
	case EncoderVips:
		return newVipsEncoder()
	}
	return nil, fmt.Errorf("optimize: unknown encoder %q", name)
}

// stdlibEncoder writes grayscale or YCbCr JPEG. image/jpeg silently encodes
// CMYK input as three-component YCbCr, so CMYK must be converted upstream.
type stdlibEncoder struct{}

func (stdlibEncoder) Name() string      { return EncoderStdlib }
func (stdlibEncoder) EncodesCMYK() bool { return false }

func (stdlibEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// jpegliEncoder trades encode time for better quality per byte. It has no
// CMYK output path.
type jpegliEncoder struct{}

func (jpegliEncoder) Name() string      { return EncoderJpegli }
func (jpegliEncoder) EncodesCMYK() bool { return false }

func (jpegliEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpegli.Encode(&buf, img, &jpegli.EncodingOptions{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
