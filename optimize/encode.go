package optimize

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Recompressor re-encodes decoded rasters as DCT (JPEG) streams, downscaling
// first when a dimension bound is exceeded. The channel count never changes
// implicitly: grayscale output stays grayscale, and CMYK is either encoded
// natively or explicitly converted to RGB — it is never treated as RGBA.
type Recompressor struct {
	policy Policy
	enc    JPEGEncoder
}

func NewRecompressor(policy Policy) (*Recompressor, error) {
	enc, err := newJPEGEncoder(policy.Encoder)
	if err != nil {
		return nil, err
	}
	return &Recompressor{policy: policy, enc: enc}, nil
}

// Recompress produces an encoded replacement for the raster.
func (r *Recompressor) Recompress(ctx context.Context, raster *DecodedRaster) (*EncodedReplacement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := raster.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	switch raster.Model {
	case ColorRGBA:
		// JPEG has no alpha; composite onto white like the original tool.
		raster = flattenAlpha(raster)
	case ColorCMYK:
		if !r.enc.EncodesCMYK() {
			raster = cmykToRGB(raster)
		}
	}

	raster, err := r.downscale(raster)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	quality := r.policy.Quality
	if raster.Channels == 1 {
		quality = r.policy.effectiveGrayQuality()
	}

	img, err := raster.Image()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	data, err := r.enc.Encode(img, quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: encoder produced no output", ErrEncode)
	}

	return &EncodedReplacement{
		Data:             data,
		FilterName:       "DCTDecode",
		ColorSpaceName:   colorSpaceForModel(raster.Model),
		Width:            raster.Width,
		Height:           raster.Height,
		BitsPerComponent: 8,
	}, nil
}

// downscale shrinks the raster so both dimensions respect the policy bounds,
// preserving aspect ratio. Images within bounds pass through untouched and
// nothing is ever upscaled.
func (r *Recompressor) downscale(raster *DecodedRaster) (*DecodedRaster, error) {
	maxW, maxH := r.policy.MaxWidth, r.policy.MaxHeight
	if maxW <= 0 && maxH <= 0 {
		return raster, nil
	}
	scale := 1.0
	if maxW > 0 && raster.Width > maxW {
		scale = float64(maxW) / float64(raster.Width)
	}
	if maxH > 0 && raster.Height > maxH {
		if s := float64(maxH) / float64(raster.Height); s < scale {
			scale = s
		}
	}
	if scale >= 1.0 {
		return raster, nil
	}
	targetW := int(float64(raster.Width) * scale)
	targetH := int(float64(raster.Height) * scale)
	if targetW < 1 {
		targetW = 1
	}
	if targetH < 1 {
		targetH = 1
	}

	src, err := raster.Image()
	if err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, targetW, targetH)
	var dst draw.Image
	switch raster.Model {
	case ColorGray:
		dst = image.NewGray(rect)
	case ColorCMYK:
		dst = image.NewCMYK(rect)
	default:
		dst = image.NewNRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, src, src.Bounds(), draw.Over, nil)

	switch d := dst.(type) {
	case *image.Gray:
		return grayRaster(d.Pix, targetW, targetH), nil
	case *image.CMYK:
		return &DecodedRaster{Pix: d.Pix, Width: targetW, Height: targetH, Channels: 4, BitsPerChannel: 8, Model: ColorCMYK}, nil
	case *image.NRGBA:
		// Drop the synthetic alpha plane to get back to packed RGB.
		out := make([]byte, targetW*targetH*3)
		for i, j := 0, 0; i < len(d.Pix); i, j = i+4, j+3 {
			out[j] = d.Pix[i]
			out[j+1] = d.Pix[i+1]
			out[j+2] = d.Pix[i+2]
		}
		return &DecodedRaster{Pix: out, Width: targetW, Height: targetH, Channels: 3, BitsPerChannel: 8, Model: ColorRGB}, nil
	}
	return nil, fmt.Errorf("unexpected resize target type")
}

func colorSpaceForModel(m ColorModel) string {
	switch m {
	case ColorGray:
		return "DeviceGray"
	case ColorCMYK:
		return "DeviceCMYK"
	}
	return "DeviceRGB"
}
