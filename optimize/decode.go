package optimize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pdfslim/filters"
	"pdfslim/observability"
)

// decodeStrategy is one way of turning an image resource into a raster.
// Strategies are tried in priority order; the first validated result wins.
type decodeStrategy interface {
	Name() string
	Decode(ctx context.Context, img *ImageResource) (*DecodedRaster, error)
}

// Decoder runs the strategy chain. The default order — raw reinterpretation,
// embedded JPEG, generic sniffing — can be overridden by the policy.
type Decoder struct {
	strategies []decodeStrategy
	log        observability.Logger
}

const (
	StrategyRaw     = "raw"
	StrategyJPEG    = "jpeg"
	StrategyGeneric = "generic"
)

func NewDecoder(policy Policy, log observability.Logger) (*Decoder, error) {
	if log == nil {
		log = observability.NopLogger{}
	}
	pipeline := filters.NewPipeline(filters.DefaultDecoders(), filters.Limits{})
	available := map[string]decodeStrategy{
		StrategyRaw:     &rawStrategy{pipeline: pipeline},
		StrategyJPEG:    &jpegStrategy{pipeline: pipeline},
		StrategyGeneric: &genericStrategy{pipeline: pipeline},
	}
	order := policy.StrategyOrder
	if len(order) == 0 {
		order = []string{StrategyRaw, StrategyJPEG, StrategyGeneric}
	}
	d := &Decoder{log: log}
	for _, name := range order {
		s, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("optimize: unknown decode strategy %q", name)
		}
		d.strategies = append(d.strategies, s)
	}
	return d, nil
}

// Decode tries each strategy until one produces a raster that passes the
// buffer-length invariant.
func (d *Decoder) Decode(ctx context.Context, img *ImageResource) (*DecodedRaster, error) {
	var failures []error
	for _, s := range d.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raster, err := s.Decode(ctx, img)
		if err != nil {
			d.log.Debug("decode strategy failed",
				observability.String("strategy", s.Name()),
				observability.String("resource", img.Name),
				observability.Err(err))
			failures = append(failures, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if err := raster.Validate(); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		return raster, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDecode, errors.Join(failures...))
}

// rawStrategy reinterprets the lossless-decoded payload using the declared
// geometry. Producers routinely pad streams, so a payload longer than the
// expected raster is truncated rather than rejected; a short payload fails.
type rawStrategy struct {
	pipeline *filters.Pipeline
}

func (*rawStrategy) Name() string { return StrategyRaw }

func (s *rawStrategy) Decode(ctx context.Context, img *ImageResource) (*DecodedRaster, error) {
	if img.Class != ClassRawRaster {
		return nil, fmt.Errorf("not a raw raster (%s)", img.Class)
	}
	data, err := s.pipeline.Decode(ctx, img.Stream.RawData(), img.Filters, img.FilterParams)
	if err != nil {
		return nil, err
	}
	bpc := img.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}

	switch img.Model {
	case ColorGray:
		switch bpc {
		case 8:
			pix, err := exactPixels(data, img.Width*img.Height)
			if err != nil {
				return nil, err
			}
			return grayRaster(pix, img.Width, img.Height), nil
		case 1:
			pix, err := expandBilevel(data, img.Width, img.Height)
			if err != nil {
				return nil, err
			}
			return grayRaster(pix, img.Width, img.Height), nil
		}
		return nil, fmt.Errorf("grayscale bit depth %d not supported", bpc)
	case ColorRGB:
		if bpc != 8 {
			return nil, fmt.Errorf("RGB bit depth %d not supported", bpc)
		}
		pix, err := exactPixels(data, img.Width*img.Height*3)
		if err != nil {
			return nil, err
		}
		return &DecodedRaster{Pix: pix, Width: img.Width, Height: img.Height, Channels: 3, BitsPerChannel: 8, Model: ColorRGB}, nil
	case ColorCMYK:
		if bpc != 8 {
			return nil, fmt.Errorf("CMYK bit depth %d not supported", bpc)
		}
		pix, err := exactPixels(data, img.Width*img.Height*4)
		if err != nil {
			return nil, err
		}
		return &DecodedRaster{Pix: pix, Width: img.Width, Height: img.Height, Channels: 4, BitsPerChannel: 8, Model: ColorCMYK}, nil
	case ColorIndexed:
		return depalettize(data, img)
	}

	// No declared colorspace: accept only unambiguous layouts.
	switch len(data) {
	case img.Width * img.Height:
		return grayRaster(data, img.Width, img.Height), nil
	case img.Width * img.Height * 3:
		return &DecodedRaster{Pix: data, Width: img.Width, Height: img.Height, Channels: 3, BitsPerChannel: 8, Model: ColorRGB}, nil
	}
	return nil, fmt.Errorf("cannot infer layout for %d bytes at %dx%d", len(data), img.Width, img.Height)
}

// jpegStrategy hands the DCT payload to the JPEG decoder, first undoing any
// transport filters that precede DCTDecode in the chain.
type jpegStrategy struct {
	pipeline *filters.Pipeline
}

func (*jpegStrategy) Name() string { return StrategyJPEG }

func (s *jpegStrategy) Decode(ctx context.Context, img *ImageResource) (*DecodedRaster, error) {
	if img.Class != ClassEmbeddedJPEG {
		return nil, fmt.Errorf("not an embedded JPEG (%s)", img.Class)
	}
	dctIdx := -1
	for i, name := range img.Filters {
		if name == "DCTDecode" || name == "DCT" {
			dctIdx = i
			break
		}
	}
	payload := img.Stream.RawData()
	if dctIdx > 0 {
		var err error
		payload, err = s.pipeline.Decode(ctx, payload, img.Filters[:dctIdx], img.FilterParams[:dctIdx])
		if err != nil {
			return nil, err
		}
	}
	decoded, err := jpeg.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return fromImage(decoded)
}

// genericStrategy is the last resort: sniff the payload as a standalone
// image file (PNG, TIFF, WebP, JPEG), then fall back to assuming a packed
// RGB buffer, mirroring the loosest extraction path of the original tool.
type genericStrategy struct {
	pipeline *filters.Pipeline
}

func (*genericStrategy) Name() string { return StrategyGeneric }

func (s *genericStrategy) Decode(ctx context.Context, img *ImageResource) (*DecodedRaster, error) {
	payload := img.Stream.RawData()
	if decoded, err := s.pipeline.Decode(ctx, payload, img.Filters, img.FilterParams); err == nil {
		payload = decoded
	}
	if decoded, _, err := image.Decode(bytes.NewReader(payload)); err == nil {
		return fromImage(decoded)
	}
	if want := img.Width * img.Height * 3; len(payload) >= want && want > 0 {
		return &DecodedRaster{Pix: payload[:want], Width: img.Width, Height: img.Height, Channels: 3, BitsPerChannel: 8, Model: ColorRGB}, nil
	}
	return nil, errors.New("payload is neither a known image format nor an RGB buffer")
}

func grayRaster(pix []byte, w, h int) *DecodedRaster {
	return &DecodedRaster{Pix: pix, Width: w, Height: h, Channels: 1, BitsPerChannel: 8, Model: ColorGray}
}

func exactPixels(data []byte, want int) ([]byte, error) {
	if len(data) < want {
		return nil, fmt.Errorf("payload %d bytes, need %d", len(data), want)
	}
	return data[:want], nil
}

// expandBilevel unpacks 1-bit rows (byte aligned per PDF raster rules) into
// an 8-bit grayscale buffer.
func expandBilevel(data []byte, w, h int) ([]byte, error) {
	stride := (w + 7) / 8
	if len(data) < stride*h {
		return nil, fmt.Errorf("bilevel payload %d bytes, need %d", len(data), stride*h)
	}
	out := make([]byte, w*h)
	for y := 0; y < h; y++ {
		row := data[y*stride:]
		for x := 0; x < w; x++ {
			if row[x/8]&(0x80>>(x%8)) != 0 {
				out[y*w+x] = 0xFF
			}
		}
	}
	return out, nil
}

// depalettize maps index values through the palette to the base model.
func depalettize(data []byte, img *ImageResource) (*DecodedRaster, error) {
	if len(img.Palette) == 0 {
		return nil, errors.New("indexed image without usable palette")
	}
	baseChannels := img.PaletteBase.Channels()
	if baseChannels == 0 {
		return nil, errors.New("indexed image with unsupported palette base")
	}
	bpc := img.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	if bpc != 1 && bpc != 2 && bpc != 4 && bpc != 8 {
		return nil, fmt.Errorf("indexed bit depth %d not supported", bpc)
	}
	w, h := img.Width, img.Height
	stride := (w*bpc + 7) / 8
	if len(data) < stride*h {
		return nil, fmt.Errorf("indexed payload %d bytes, need %d", len(data), stride*h)
	}
	maxIndex := len(img.Palette)/baseChannels - 1
	out := make([]byte, w*h*baseChannels)
	mask := byte(1<<bpc - 1)
	for y := 0; y < h; y++ {
		row := data[y*stride:]
		for x := 0; x < w; x++ {
			bitPos := x * bpc
			idx := int(row[bitPos/8] >> (8 - bpc - bitPos%8) & mask)
			if idx > maxIndex {
				idx = maxIndex
			}
			copy(out[(y*w+x)*baseChannels:], img.Palette[idx*baseChannels:idx*baseChannels+baseChannels])
		}
	}
	return &DecodedRaster{Pix: out, Width: w, Height: h, Channels: baseChannels, BitsPerChannel: 8, Model: img.PaletteBase}, nil
}

// fromImage converts a decoded image.Image into a raster without changing
// the color model: grayscale stays single channel and CMYK stays CMYK.
func fromImage(src image.Image) (*DecodedRaster, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if err := validateRasterBounds(w, h); err != nil {
		return nil, err
	}
	switch im := src.(type) {
	case *image.Gray:
		pix := make([]byte, w*h)
		for y := 0; y < h; y++ {
			copy(pix[y*w:], im.Pix[y*im.Stride:y*im.Stride+w])
		}
		return grayRaster(pix, w, h), nil
	case *image.CMYK:
		pix := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			copy(pix[y*w*4:], im.Pix[y*im.Stride:y*im.Stride+w*4])
		}
		return &DecodedRaster{Pix: pix, Width: w, Height: h, Channels: 4, BitsPerChannel: 8, Model: ColorCMYK}, nil
	}

	// Everything else goes through RGBA conversion; alpha is kept only when
	// the source actually carries it.
	hasAlpha := false
	switch src.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		hasAlpha = true
	}
	if hasAlpha {
		pix := make([]byte, w*h*4)
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, a := src.At(x, y).RGBA()
				pix[i] = byte(r >> 8)
				pix[i+1] = byte(g >> 8)
				pix[i+2] = byte(b >> 8)
				pix[i+3] = byte(a >> 8)
				i += 4
			}
		}
		return &DecodedRaster{Pix: pix, Width: w, Height: h, Channels: 4, BitsPerChannel: 8, Model: ColorRGBA}, nil
	}
	pix := make([]byte, w*h*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			pix[i] = byte(r >> 8)
			pix[i+1] = byte(g >> 8)
			pix[i+2] = byte(b >> 8)
			i += 3
		}
	}
	return &DecodedRaster{Pix: pix, Width: w, Height: h, Channels: 3, BitsPerChannel: 8, Model: ColorRGB}, nil
}
