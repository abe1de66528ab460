package optimize

import (
	"bytes"
	"compress/zlib"
	"context"
	"testing"

	"pdfslim/ir/raw"
)

// testDoc builds a one-page document whose /Im0 resource is the given image
// stream, stored as object 4.
func testDoc(t *testing.T, img *raw.StreamObj) *raw.Document {
	t.Helper()
	doc := raw.NewDocument()

	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.Ref(2, 0))

	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", raw.NewArray(raw.Ref(3, 0)))
	pages.Set("Count", raw.Integer(1))

	xobjects := raw.Dict()
	xobjects.Set("Im0", raw.Ref(4, 0))
	resources := raw.Dict()
	resources.Set("XObject", xobjects)
	page := raw.Dict()
	page.Set("Type", raw.NameLiteral("Page"))
	page.Set("Parent", raw.Ref(2, 0))
	page.Set("Resources", resources)

	doc.Objects[raw.ObjectRef{Num: 1}] = catalog
	doc.Objects[raw.ObjectRef{Num: 2}] = pages
	doc.Objects[raw.ObjectRef{Num: 3}] = page
	doc.Objects[raw.ObjectRef{Num: 4}] = img

	trailer := raw.Dict()
	trailer.Set("Root", raw.Ref(1, 0))
	doc.Trailer = trailer
	return doc
}

// imageStream builds an image XObject stream with the given geometry.
func imageStream(width, height, bpc int, colorSpace raw.Object, data []byte) *raw.StreamObj {
	dict := raw.Dict()
	dict.Set("Subtype", raw.NameLiteral("Image"))
	dict.Set("Width", raw.Integer(int64(width)))
	dict.Set("Height", raw.Integer(int64(height)))
	dict.Set("BitsPerComponent", raw.Integer(int64(bpc)))
	if colorSpace != nil {
		dict.Set("ColorSpace", colorSpace)
	}
	return raw.NewStream(dict, data)
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	zw.Close()
	return buf.Bytes()
}

// locateOne runs the locator and sniffer and expects exactly one image.
func locateOne(t *testing.T, doc *raw.Document) *ImageResource {
	t.Helper()
	images := NewLocator(doc, nil).Locate()
	if len(images) != 1 {
		t.Fatalf("located %d images, want 1", len(images))
	}
	NewSniffer(doc).Sniff(context.Background(), images[0])
	return images[0]
}

// gradientRGB fills a raster with content that compresses differently at
// different JPEG qualities.
func gradientRGB(width, height int) *DecodedRaster {
	pix := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			pix[i] = byte(x * 7)
			pix[i+1] = byte(y * 13)
			pix[i+2] = byte((x*y + x + y) * 3)
		}
	}
	return &DecodedRaster{Pix: pix, Width: width, Height: height, Channels: 3, BitsPerChannel: 8, Model: ColorRGB}
}
