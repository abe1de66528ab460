package optimize

import (
	"fmt"

	"pdfslim/ir/raw"
)

// ColorModel is the closed set of color interpretations the pipeline
// understands. Distinguishing CMYK from RGBA by tag rather than by channel
// count is what keeps four-channel print images from being mangled.
type ColorModel int

const (
	ColorUnknown ColorModel = iota
	ColorGray
	ColorRGB
	ColorRGBA
	ColorCMYK
	ColorIndexed
)

func (m ColorModel) String() string {
	switch m {
	case ColorGray:
		return "Gray"
	case ColorRGB:
		return "RGB"
	case ColorRGBA:
		return "RGBA"
	case ColorCMYK:
		return "CMYK"
	case ColorIndexed:
		return "Indexed"
	}
	return "Unknown"
}

// Channels returns the per-pixel component count of the model.
func (m ColorModel) Channels() int {
	switch m {
	case ColorGray:
		return 1
	case ColorRGB:
		return 3
	case ColorRGBA, ColorCMYK:
		return 4
	}
	return 0
}

// Class is the sniffer's verdict on how an image resource is encoded.
type Class int

const (
	ClassUnsupported Class = iota
	ClassRawRaster         // lossless-filtered (or unfiltered) raster bytes
	ClassEmbeddedJPEG      // a DCT filter appears in the chain
)

func (c Class) String() string {
	switch c {
	case ClassRawRaster:
		return "RawRaster"
	case ClassEmbeddedJPEG:
		return "EmbeddedJPEG"
	}
	return "Unsupported"
}

// ImageResource identifies one embedded image XObject for the duration of a
// pipeline pass.
type ImageResource struct {
	Ref  raw.ObjectRef // zero for direct objects
	Page int           // zero-based page index
	Name string        // resource dictionary key

	Stream raw.Stream // backing stream object, mutated only by the rewriter

	Width            int
	Height           int
	BitsPerComponent int
	ColorSpaceName   string
	Filters          []string
	FilterParams     []raw.Dictionary

	Class Class
	Model ColorModel
	// Palette holds the looked-up base components for Indexed images, laid
	// out as consecutive PaletteBase-model entries.
	Palette     []byte
	PaletteBase ColorModel
}

// DecodedRaster is an in-memory decoded image with explicit geometry.
type DecodedRaster struct {
	Pix            []byte
	Width          int
	Height         int
	Channels       int
	BitsPerChannel int
	Model          ColorModel
}

// Validate checks the pixel buffer length invariant.
func (r *DecodedRaster) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid raster dimensions %dx%d", r.Width, r.Height)
	}
	if r.Channels < 1 || r.Channels > 4 {
		return fmt.Errorf("invalid channel count %d", r.Channels)
	}
	if r.BitsPerChannel != 8 {
		return fmt.Errorf("unsupported bit depth %d", r.BitsPerChannel)
	}
	want := r.Width * r.Height * r.Channels
	if len(r.Pix) != want {
		return fmt.Errorf("pixel buffer length %d, want %d", len(r.Pix), want)
	}
	return nil
}

// EncodedReplacement is the recompressor's output, ready for the rewriter.
type EncodedReplacement struct {
	Data             []byte
	FilterName       string // always DCTDecode today
	ColorSpaceName   string // derived from the encoded channel layout
	Width            int
	Height           int
	BitsPerComponent int
}

const (
	maxRasterDimension = 32768
	// maxRasterPixels keeps 4-channel buffers under 256 MB even when a
	// corrupted dictionary lies about dimensions.
	maxRasterPixels int64 = 64 * 1024 * 1024
)

func validateRasterBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > maxRasterDimension || height > maxRasterDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	if int64(width)*int64(height) > maxRasterPixels {
		return fmt.Errorf("image pixel count exceeds limit")
	}
	return nil
}
