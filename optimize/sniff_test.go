package optimize

import (
	"testing"

	"pdfslim/ir/raw"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		filters []string
		want    Class
	}{
		{"no filters", nil, ClassRawRaster},
		{"flate only", []string{"FlateDecode"}, ClassRawRaster},
		{"lzw", []string{"LZWDecode"}, ClassRawRaster},
		{"ascii85 then flate", []string{"ASCII85Decode", "FlateDecode"}, ClassRawRaster},
		{"plain jpeg", []string{"DCTDecode"}, ClassEmbeddedJPEG},
		{"flate wrapped jpeg", []string{"FlateDecode", "DCTDecode"}, ClassEmbeddedJPEG},
		{"abbreviated jpeg", []string{"DCT"}, ClassEmbeddedJPEG},
		{"jpeg2000", []string{"JPXDecode"}, ClassUnsupported},
		{"jbig2", []string{"JBIG2Decode"}, ClassUnsupported},
		{"ccitt", []string{"CCITTFaxDecode"}, ClassUnsupported},
		{"flate then jbig2", []string{"FlateDecode", "JBIG2Decode"}, ClassUnsupported},
	}
	for _, tc := range cases {
		if got := classify(tc.filters); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSniffSimpleColorSpaces(t *testing.T) {
	cases := []struct {
		cs    raw.Object
		bpc   int
		model ColorModel
	}{
		{raw.NameLiteral("DeviceGray"), 8, ColorGray},
		{raw.NameLiteral("CalGray"), 8, ColorGray},
		{raw.NameLiteral("DeviceRGB"), 8, ColorRGB},
		{raw.NameLiteral("CalRGB"), 8, ColorRGB},
		{raw.NameLiteral("DeviceCMYK"), 8, ColorCMYK},
		{raw.NameLiteral("Pattern"), 8, ColorUnknown},
		{nil, 1, ColorGray}, // absent colorspace, 1-bit: grayscale by construction
		{nil, 8, ColorUnknown},
	}
	for i, tc := range cases {
		doc := testDoc(t, imageStream(2, 2, tc.bpc, tc.cs, []byte{0, 0, 0, 0}))
		img := locateOne(t, doc)
		if img.Model != tc.model {
			t.Errorf("case %d: model %v, want %v", i, img.Model, tc.model)
		}
	}
}

func TestSniffICCBasedUsesComponentCount(t *testing.T) {
	for _, tc := range []struct {
		n     int
		model ColorModel
	}{
		{1, ColorGray},
		{3, ColorRGB},
		{4, ColorCMYK},
	} {
		profileDict := raw.Dict()
		profileDict.Set("N", raw.Integer(int64(tc.n)))
		profile := raw.NewStream(profileDict, []byte("profile bytes"))

		cs := raw.NewArray(raw.NameLiteral("ICCBased"), raw.Ref(5, 0))
		doc := testDoc(t, imageStream(2, 2, 8, cs, make([]byte, 16)))
		doc.Objects[raw.ObjectRef{Num: 5}] = profile

		img := locateOne(t, doc)
		if img.Model != tc.model {
			t.Errorf("N=%d: model %v, want %v", tc.n, img.Model, tc.model)
		}
	}
}

// A four-component ICC profile must resolve to CMYK, never to RGBA. Treating
// it as RGBA would composite ink coverage as if it were transparency.
func TestSniffFourComponentsIsNotRGBA(t *testing.T) {
	profileDict := raw.Dict()
	profileDict.Set("N", raw.Integer(4))
	doc := testDoc(t, imageStream(2, 2, 8, raw.NewArray(raw.NameLiteral("ICCBased"), raw.Ref(5, 0)), make([]byte, 16)))
	doc.Objects[raw.ObjectRef{Num: 5}] = raw.NewStream(profileDict, nil)

	img := locateOne(t, doc)
	if img.Model == ColorRGBA {
		t.Fatal("four-component colorspace resolved to RGBA")
	}
	if img.Model != ColorCMYK {
		t.Errorf("model %v, want CMYK", img.Model)
	}
}

func TestSniffIndexedPaletteFromString(t *testing.T) {
	palette := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255} // red, green, blue
	cs := raw.NewArray(
		raw.NameLiteral("Indexed"),
		raw.NameLiteral("DeviceRGB"),
		raw.Integer(2),
		raw.Str(palette),
	)
	doc := testDoc(t, imageStream(3, 1, 8, cs, []byte{0, 1, 2}))
	img := locateOne(t, doc)

	if img.Model != ColorIndexed {
		t.Fatalf("model %v, want Indexed", img.Model)
	}
	if img.PaletteBase != ColorRGB {
		t.Errorf("palette base %v, want RGB", img.PaletteBase)
	}
	if len(img.Palette) != len(palette) {
		t.Errorf("palette length %d, want %d", len(img.Palette), len(palette))
	}
}

func TestSniffIndexedPaletteFromCompressedStream(t *testing.T) {
	palette := []byte{10, 20, 30, 40, 50, 60}
	lookupDict := raw.Dict()
	lookupDict.Set("Filter", raw.NameLiteral("FlateDecode"))
	lookup := raw.NewStream(lookupDict, deflate(t, palette))

	cs := raw.NewArray(
		raw.NameLiteral("Indexed"),
		raw.NameLiteral("DeviceRGB"),
		raw.Integer(1),
		raw.Ref(5, 0),
	)
	doc := testDoc(t, imageStream(2, 1, 8, cs, []byte{0, 1}))
	doc.Objects[raw.ObjectRef{Num: 5}] = lookup

	img := locateOne(t, doc)
	if img.PaletteBase != ColorRGB {
		t.Fatalf("palette base %v, want RGB", img.PaletteBase)
	}
	if string(img.Palette) != string(palette) {
		t.Errorf("palette % X, want % X", img.Palette, palette)
	}
}

func TestSniffIndexedCMYKBaseRejected(t *testing.T) {
	cs := raw.NewArray(
		raw.NameLiteral("Indexed"),
		raw.NameLiteral("DeviceCMYK"),
		raw.Integer(0),
		raw.Str([]byte{0, 0, 0, 0}),
	)
	doc := testDoc(t, imageStream(1, 1, 8, cs, []byte{0}))
	img := locateOne(t, doc)
	if img.Palette != nil {
		t.Error("CMYK palette base should not produce a usable palette")
	}
}

// Stencil masks paint with the fill color and leave samples transparent; a
// recompressed opaque raster would not render the same, so they are never
// candidates.
func TestSniffImageMaskNotCompressible(t *testing.T) {
	st := imageStream(8, 1, 1, nil, []byte{0xAA})
	st.Dict.Set("ImageMask", raw.Bool(true))
	doc := testDoc(t, st)
	img := locateOne(t, doc)
	if img.Model != ColorGray {
		t.Errorf("model %v, want Gray", img.Model)
	}
	if img.Class != ClassUnsupported {
		t.Errorf("class %v, want Unsupported", img.Class)
	}
}

func TestSniffDecodeArray(t *testing.T) {
	cases := []struct {
		name   string
		decode raw.Object
		want   Class
	}{
		{"identity", raw.NewArray(raw.Integer(0), raw.Integer(1)), ClassRawRaster},
		{"inverted", raw.NewArray(raw.Integer(1), raw.Integer(0)), ClassUnsupported},
		{"narrowed range", raw.NewArray(raw.Real(0.2), raw.Integer(1)), ClassUnsupported},
		{"not an array", raw.Integer(1), ClassUnsupported},
	}
	for _, tc := range cases {
		st := imageStream(2, 2, 8, raw.NameLiteral("DeviceGray"), []byte{0, 64, 128, 255})
		st.Dict.Set("Decode", tc.decode)
		img := locateOne(t, testDoc(t, st))
		if img.Class != tc.want {
			t.Errorf("%s: class %v, want %v", tc.name, img.Class, tc.want)
		}
	}
}

// Indexed images interpret Decode as an index range, not a component range;
// even [0 255] rescaling is left to the viewer.
func TestSniffIndexedDecodeNotCompressible(t *testing.T) {
	cs := raw.NewArray(
		raw.NameLiteral("Indexed"),
		raw.NameLiteral("DeviceRGB"),
		raw.Integer(1),
		raw.Str([]byte{255, 0, 0, 0, 255, 0}),
	)
	st := imageStream(2, 1, 8, cs, []byte{0, 1})
	st.Dict.Set("Decode", raw.NewArray(raw.Integer(0), raw.Integer(255)))
	img := locateOne(t, testDoc(t, st))
	if img.Class != ClassUnsupported {
		t.Errorf("class %v, want Unsupported", img.Class)
	}
}
