package optimize

import (
	"fmt"
	"image"
	"image/color"
)

// Image wraps the raster as an image.Image without copying pixel data.
func (r *DecodedRaster) Image() (image.Image, error) {
	rect := image.Rect(0, 0, r.Width, r.Height)
	switch r.Model {
	case ColorGray:
		return &image.Gray{Pix: r.Pix, Stride: r.Width, Rect: rect}, nil
	case ColorRGB:
		return &rgbImage{Pix: r.Pix, Stride: r.Width * 3, Rect: rect}, nil
	case ColorRGBA:
		return &image.NRGBA{Pix: r.Pix, Stride: r.Width * 4, Rect: rect}, nil
	case ColorCMYK:
		return &image.CMYK{Pix: r.Pix, Stride: r.Width * 4, Rect: rect}, nil
	}
	return nil, fmt.Errorf("raster model %s has no image representation", r.Model)
}

// rgbImage exposes a packed 3-byte-per-pixel buffer through the standard
// image interface.
type rgbImage struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

func (p *rgbImage) ColorModel() color.Model { return color.RGBAModel }
func (p *rgbImage) Bounds() image.Rectangle { return p.Rect }
func (p *rgbImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 255}
}

// flattenAlpha composites an RGBA raster onto a white background, returning
// a 3-channel RGB raster.
func flattenAlpha(r *DecodedRaster) *DecodedRaster {
	out := make([]byte, r.Width*r.Height*3)
	for i, j := 0, 0; i < len(r.Pix); i, j = i+4, j+3 {
		a := uint32(r.Pix[i+3])
		out[j] = byte((uint32(r.Pix[i])*a + 255*(255-a)) / 255)
		out[j+1] = byte((uint32(r.Pix[i+1])*a + 255*(255-a)) / 255)
		out[j+2] = byte((uint32(r.Pix[i+2])*a + 255*(255-a)) / 255)
	}
	return &DecodedRaster{Pix: out, Width: r.Width, Height: r.Height, Channels: 3, BitsPerChannel: 8, Model: ColorRGB}
}

// cmykToRGB approximates a CMYK raster as RGB for encoders without a native
// CMYK output path.
func cmykToRGB(r *DecodedRaster) *DecodedRaster {
	out := make([]byte, r.Width*r.Height*3)
	for i, j := 0, 0; i < len(r.Pix); i, j = i+4, j+3 {
		red, green, blue := color.CMYKToRGB(r.Pix[i], r.Pix[i+1], r.Pix[i+2], r.Pix[i+3])
		out[j] = red
		out[j+1] = green
		out[j+2] = blue
	}
	return &DecodedRaster{Pix: out, Width: r.Width, Height: r.Height, Channels: 3, BitsPerChannel: 8, Model: ColorRGB}
}
