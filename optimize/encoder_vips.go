//go:build vips

package optimize

import (
	"bytes"
	"image"
	"image/png"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"
)

// The libvips backend is compiled in only under the vips build tag, keeping
// cgo out of the default build the same way the native JBIG2/JPX codecs are
// isolated elsewhere in this codebase's lineage.

var vipsStartup sync.Once

func newVipsEncoder() (JPEGEncoder, error) {
	vipsStartup.Do(func() {
		govips.Startup(nil)
	})
	return vipsEncoder{}, nil
}

type vipsEncoder struct{}

func (vipsEncoder) Name() string      { return EncoderVips }
func (vipsEncoder) EncodesCMYK() bool { return false }

func (vipsEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	// govips wants an encoded source buffer; feed it a lossless PNG of the
	// raster and let libvips produce the final JPEG.
	pngBytes, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	ref, err := govips.NewImageFromBuffer(pngBytes)
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	params := govips.NewJpegExportParams()
	params.Quality = quality
	params.StripMetadata = true
	out, _, err := ref.ExportJpeg(params)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
