// Package analyze inspects a parsed document and explains where its bytes
// go, so a user can predict what a compression pass will and will not win.
package analyze

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pdfslim/ir/raw"
	"pdfslim/observability"
	"pdfslim/optimize"
)

// ImageInfo describes one embedded image as found on disk.
type ImageInfo struct {
	Page        int
	Name        string
	Width       int
	Height      int
	BitsPerComp int
	ColorSpace  string
	Filters     []string
	Bytes       int64
	Class       string
}

// Report is the full analysis of one document.
type Report struct {
	Version string
	Pages   int
	Objects int
	Streams int

	Info map[string]string

	Images          []ImageInfo
	ImageBytes      int64
	JPEGImages      int
	RawImages       int
	Unsupported     int
	ContentBytes    int64
	OtherBytes      int64
	MetadataPresent bool
}

// ImageShare returns the fraction of stream bytes held by images.
func (r *Report) ImageShare() float64 {
	total := r.ImageBytes + r.ContentBytes + r.OtherBytes
	if total == 0 {
		return 0
	}
	return float64(r.ImageBytes) / float64(total)
}

// TextHeavy reports whether the document is dominated by non-image content,
// in which case image recompression alone will not move the needle much.
func (r *Report) TextHeavy() bool { return r.ImageShare() < 0.2 }

// Analyzer builds analysis reports from parsed documents.
type Analyzer struct {
	log observability.Logger
}

func NewAnalyzer(log observability.Logger) *Analyzer {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Analyzer{log: log}
}

// Analyze walks the document without mutating it.
func (a *Analyzer) Analyze(ctx context.Context, doc *raw.Document) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rep := &Report{Version: doc.Version, Objects: len(doc.Objects), Info: map[string]string{}}

	if info := doc.Info(); info != nil {
		for _, key := range info.Keys() {
			obj, _ := info.Get(key)
			if s, ok := doc.Resolve(obj).(raw.String); ok {
				rep.Info[key] = string(s.Value())
			}
		}
	}
	if catalog, err := doc.Catalog(); err == nil {
		if _, ok := catalog.Get("Metadata"); ok {
			rep.MetadataPresent = true
		}
	}

	locator := optimize.NewLocator(doc, a.log)
	images := locator.Locate()
	sniffer := optimize.NewSniffer(doc)
	imageStreams := make(map[raw.Stream]bool, len(images))
	for _, img := range images {
		sniffer.Sniff(ctx, img)
		imageStreams[img.Stream] = true
		rep.ImageBytes += img.Stream.Length()
		switch img.Class {
		case optimize.ClassEmbeddedJPEG:
			rep.JPEGImages++
		case optimize.ClassRawRaster:
			rep.RawImages++
		default:
			rep.Unsupported++
		}
		rep.Images = append(rep.Images, ImageInfo{
			Page:        img.Page,
			Name:        img.Name,
			Width:       img.Width,
			Height:      img.Height,
			BitsPerComp: img.BitsPerComponent,
			ColorSpace:  img.ColorSpaceName,
			Filters:     img.Filters,
			Bytes:       img.Stream.Length(),
			Class:       img.Class.String(),
		})
	}

	rep.Pages = countPages(doc)
	for _, obj := range doc.Objects {
		st, ok := obj.(raw.Stream)
		if !ok {
			continue
		}
		rep.Streams++
		if imageStreams[st] {
			continue
		}
		if typ, _ := doc.DictName(st.Dictionary(), "Type"); typ == "" {
			// Untyped streams are almost always page content.
			rep.ContentBytes += st.Length()
		} else {
			rep.OtherBytes += st.Length()
		}
	}
	return rep, nil
}

func countPages(doc *raw.Document) int {
	catalog, err := doc.Catalog()
	if err != nil {
		return 0
	}
	root, ok := doc.DictDict(catalog, "Pages")
	if !ok {
		return 0
	}
	if n, ok := doc.DictInt(root, "Count"); ok {
		return n
	}
	count := 0
	var walk func(node raw.Dictionary, depth int)
	walk = func(node raw.Dictionary, depth int) {
		if node == nil || depth > 64 {
			return
		}
		if typ, _ := doc.DictName(node, "Type"); typ == "Page" {
			count++
			return
		}
		kids, ok := doc.DictArray(node, "Kids")
		if !ok {
			return
		}
		for i := 0; i < kids.Len(); i++ {
			kidObj, _ := kids.Get(i)
			if kid, ok := doc.Resolve(kidObj).(raw.Dictionary); ok {
				walk(kid, depth+1)
			}
		}
	}
	walk(root, 0)
	return count
}

// Render formats the report for terminal output.
func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PDF %s, %d pages, %d objects, %d streams\n", r.Version, r.Pages, r.Objects, r.Streams)
	if len(r.Info) > 0 {
		keys := make([]string, 0, len(r.Info))
		for k := range r.Info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Document info:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, r.Info[k])
		}
	}
	if r.MetadataPresent {
		b.WriteString("XMP metadata stream present\n")
	}
	fmt.Fprintf(&b, "Images: %d (%d JPEG, %d raw raster, %d unsupported), %d bytes\n",
		len(r.Images), r.JPEGImages, r.RawImages, r.Unsupported, r.ImageBytes)
	for _, img := range r.Images {
		filters := strings.Join(img.Filters, "+")
		if filters == "" {
			filters = "none"
		}
		fmt.Fprintf(&b, "  page %d %s: %dx%d %dbpc %s [%s] %d bytes (%s)\n",
			img.Page+1, img.Name, img.Width, img.Height, img.BitsPerComp,
			img.ColorSpace, filters, img.Bytes, img.Class)
	}
	fmt.Fprintf(&b, "Stream bytes: %d image, %d content, %d other (%.0f%% image)\n",
		r.ImageBytes, r.ContentBytes, r.OtherBytes, r.ImageShare()*100)
	if r.TextHeavy() {
		b.WriteString("Document is text-heavy; image recompression will have limited effect\n")
	}
	return b.String()
}
