package optimize

import (
	"context"

	"pdfslim/filters"
	"pdfslim/ir/raw"
)

// Sniffer classifies an image resource's encoding and resolves its color
// model. Classification is a pure function of dictionary metadata; no image
// bytes are inspected. Palette lookup for Indexed colorspaces is the one
// place that touches another object's stream.
type Sniffer struct {
	doc      *raw.Document
	pipeline *filters.Pipeline
}

func NewSniffer(doc *raw.Document) *Sniffer {
	return &Sniffer{
		doc:      doc,
		pipeline: filters.NewPipeline(filters.DefaultDecoders(), filters.Limits{}),
	}
}

// Sniff fills in Class, ColorSpaceName, Model and palette data.
func (s *Sniffer) Sniff(ctx context.Context, img *ImageResource) {
	img.Class = classify(img.Filters)
	img.ColorSpaceName, img.Model, img.Palette, img.PaletteBase = s.resolveColorSpace(ctx, img)
	if img.Class == ClassUnsupported {
		return
	}
	// Stencil masks paint with the current fill color and leave zero
	// samples transparent; an opaque recompressed raster renders
	// differently. Non-default Decode arrays remap samples the replacement
	// data would not. Both stay untouched.
	if s.isStencilMask(img.Stream.Dictionary()) || s.hasNonDefaultDecode(img) {
		img.Class = ClassUnsupported
	}
}

// losslessFilters are the transport filters the pipeline can undo to reach
// raster bytes.
var losslessFilters = map[string]bool{
	"FlateDecode":     true,
	"Fl":              true,
	"LZWDecode":       true,
	"LZW":             true,
	"ASCII85Decode":   true,
	"A85":             true,
	"ASCIIHexDecode":  true,
	"AHx":             true,
	"RunLengthDecode": true,
	"RL":              true,
}

// classify applies the filter-chain decision rule: a DCT filter anywhere
// means embedded JPEG; a chain of only lossless filters (or none) means raw
// raster bytes; any other image codec, or an unknown filter, is not
// recompressible.
func classify(filterNames []string) Class {
	for _, name := range filterNames {
		if name == "DCTDecode" || name == "DCT" {
			return ClassEmbeddedJPEG
		}
	}
	for _, name := range filterNames {
		if filters.ImageCodecFilters[name] || !losslessFilters[name] {
			return ClassUnsupported
		}
	}
	return ClassRawRaster
}

func (s *Sniffer) isStencilMask(dict raw.Dictionary) bool {
	maskObj, ok := dict.Get("ImageMask")
	if !ok {
		return false
	}
	b, ok := s.doc.Resolve(maskObj).(raw.Boolean)
	return ok && b.Value()
}

// hasNonDefaultDecode reports whether the image carries a Decode array that
// changes sample interpretation. The identity mapping [0 1 ...] is a no-op
// for component colorspaces; for Indexed images any Decode array rescales
// palette indices.
func (s *Sniffer) hasNonDefaultDecode(img *ImageResource) bool {
	decObj, ok := img.Stream.Dictionary().Get("Decode")
	if !ok {
		return false
	}
	if img.Model == ColorIndexed {
		return true
	}
	arr, ok := s.doc.Resolve(decObj).(raw.Array)
	if !ok {
		return true
	}
	for i := 0; i+1 < arr.Len(); i += 2 {
		loObj, _ := arr.Get(i)
		hiObj, _ := arr.Get(i + 1)
		lo, okLo := s.doc.Resolve(loObj).(raw.Number)
		hi, okHi := s.doc.Resolve(hiObj).(raw.Number)
		if !okLo || !okHi || lo.Float() != 0 || hi.Float() != 1 {
			return true
		}
	}
	return false
}

func (s *Sniffer) resolveColorSpace(ctx context.Context, img *ImageResource) (string, ColorModel, []byte, ColorModel) {
	dict := img.Stream.Dictionary()

	// Stencil masks carry no colorspace and are one bit deep.
	if s.isStencilMask(dict) {
		return "", ColorGray, nil, ColorUnknown
	}

	csObj, ok := dict.Get("ColorSpace")
	if !ok {
		// Absent colorspace is legal; one-bit data is grayscale by
		// construction, everything else is inferred later from the data.
		if img.BitsPerComponent == 1 {
			return "", ColorGray, nil, ColorUnknown
		}
		return "", ColorUnknown, nil, ColorUnknown
	}
	name, model := s.simpleColorSpace(csObj)
	if model != ColorIndexed {
		return name, model, nil, ColorUnknown
	}
	palette, base := s.resolvePalette(ctx, csObj)
	return name, ColorIndexed, palette, base
}

// simpleColorSpace maps a colorspace object to a model without resolving
// palettes. Arrays are recognized by their family name.
func (s *Sniffer) simpleColorSpace(csObj raw.Object) (string, ColorModel) {
	switch cs := s.doc.Resolve(csObj).(type) {
	case raw.Name:
		switch cs.Value() {
		case "DeviceGray", "CalGray", "G":
			return cs.Value(), ColorGray
		case "DeviceRGB", "CalRGB", "RGB":
			return cs.Value(), ColorRGB
		case "DeviceCMYK", "CMYK":
			return cs.Value(), ColorCMYK
		case "Indexed", "I":
			return cs.Value(), ColorIndexed
		}
		return cs.Value(), ColorUnknown
	case raw.Array:
		familyObj, _ := cs.Get(0)
		family, ok := s.doc.Resolve(familyObj).(raw.Name)
		if !ok {
			return "", ColorUnknown
		}
		switch family.Value() {
		case "Indexed", "I":
			return family.Value(), ColorIndexed
		case "ICCBased":
			// Channel count comes from the profile stream's /N.
			if profObj, ok := cs.Get(1); ok {
				if prof, ok := s.doc.Resolve(profObj).(raw.Stream); ok {
					if n, ok := s.doc.DictInt(prof.Dictionary(), "N"); ok {
						switch n {
						case 1:
							return family.Value(), ColorGray
						case 3:
							return family.Value(), ColorRGB
						case 4:
							return family.Value(), ColorCMYK
						}
					}
				}
			}
			return family.Value(), ColorUnknown
		case "CalGray":
			return family.Value(), ColorGray
		case "CalRGB", "Lab":
			return family.Value(), ColorRGB
		case "DeviceN", "Separation":
			return family.Value(), ColorUnknown
		}
		return family.Value(), ColorUnknown
	}
	return "", ColorUnknown
}

// resolvePalette extracts the lookup table of an Indexed colorspace:
// [/Indexed base hival lookup]. The lookup may be a literal string or a
// (possibly compressed) stream.
func (s *Sniffer) resolvePalette(ctx context.Context, csObj raw.Object) ([]byte, ColorModel) {
	cs, ok := s.doc.Resolve(csObj).(raw.Array)
	if !ok || cs.Len() < 4 {
		return nil, ColorUnknown
	}
	baseObj, _ := cs.Get(1)
	_, base := s.simpleColorSpace(baseObj)
	if base != ColorGray && base != ColorRGB {
		// CMYK and exotic palette bases are not worth recompressing; the
		// decoder will fall through and the image stays untouched.
		return nil, ColorUnknown
	}

	lookupObj, _ := cs.Get(3)
	switch lookup := s.doc.Resolve(lookupObj).(type) {
	case raw.String:
		return lookup.Value(), base
	case raw.Stream:
		names, params := filters.ExtractFilters(lookup.Dictionary())
		data, err := s.pipeline.Decode(ctx, lookup.RawData(), names, params)
		if err != nil {
			return nil, ColorUnknown
		}
		return data, base
	}
	return nil, ColorUnknown
}
