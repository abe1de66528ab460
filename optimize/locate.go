package optimize

import (
	"pdfslim/filters"
	"pdfslim/ir/raw"
	"pdfslim/observability"
)

// Locator walks the page tree and yields every embedded image XObject in
// document traversal order: page order first, then resource-name order,
// recursing into Form XObjects. The traversal is read-only; malformed
// entries are logged and skipped.
type Locator struct {
	doc *raw.Document
	log observability.Logger

	skipped int
	seen    map[raw.ObjectRef]bool
}

func NewLocator(doc *raw.Document, log observability.Logger) *Locator {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Locator{doc: doc, log: log, seen: make(map[raw.ObjectRef]bool)}
}

// Skipped reports how many resource entries were dropped as malformed.
func (l *Locator) Skipped() int { return l.skipped }

// Locate returns all image resources in stable order.
func (l *Locator) Locate() []*ImageResource {
	var out []*ImageResource
	for pageIdx, page := range l.pages() {
		if page.resources == nil {
			continue
		}
		out = append(out, l.collectImages(page.resources, pageIdx)...)
	}
	return out
}

// pageNode is a leaf page with its effective resource dictionary, which may
// be inherited from an ancestor Pages node.
type pageNode struct {
	dict      raw.Dictionary
	resources raw.Dictionary
}

// pages flattens the page tree in order, following Kids recursively.
// Resources is an inheritable attribute: a node without its own entry uses
// the nearest ancestor's.
func (l *Locator) pages() []pageNode {
	catalog, err := l.doc.Catalog()
	if err != nil {
		return nil
	}
	root, ok := l.doc.DictDict(catalog, "Pages")
	if !ok {
		return nil
	}
	var pages []pageNode
	var walk func(node raw.Dictionary, inherited raw.Dictionary, depth int)
	walk = func(node raw.Dictionary, inherited raw.Dictionary, depth int) {
		if node == nil || depth > 64 {
			return
		}
		if res, ok := l.doc.DictDict(node, "Resources"); ok {
			inherited = res
		}
		typ, _ := l.doc.DictName(node, "Type")
		if typ == "Page" {
			pages = append(pages, pageNode{dict: node, resources: inherited})
			return
		}
		kids, ok := l.doc.DictArray(node, "Kids")
		if !ok {
			return
		}
		for i := 0; i < kids.Len(); i++ {
			kidObj, _ := kids.Get(i)
			kid, ok := l.doc.Resolve(kidObj).(raw.Dictionary)
			if !ok {
				l.skip("page tree kid is not a dictionary")
				continue
			}
			walk(kid, inherited, depth+1)
		}
	}
	walk(root, nil, 0)
	return pages
}

// collectImages reads one resource dictionary's XObjects, descending into
// Form XObjects. Shared XObjects referenced from several pages are visited
// once, at their first use.
func (l *Locator) collectImages(res raw.Dictionary, pageIdx int) []*ImageResource {
	var out []*ImageResource
	xobjects, ok := l.doc.DictDict(res, "XObject")
	if !ok {
		return nil
	}
	for _, name := range xobjects.Keys() {
		entry, _ := xobjects.Get(name)
		var ref raw.ObjectRef
		if r, ok := entry.(raw.Reference); ok {
			ref = r.Ref()
			if l.seen[ref] {
				continue
			}
			l.seen[ref] = true
		}
		stream, ok := l.doc.Resolve(entry).(raw.Stream)
		if !ok {
			l.skip("XObject entry is not a stream", observability.String("name", name))
			continue
		}
		subtype, _ := l.doc.DictName(stream.Dictionary(), "Subtype")
		switch subtype {
		case "Form":
			if nested, ok := l.doc.DictDict(stream.Dictionary(), "Resources"); ok {
				out = append(out, l.collectImages(nested, pageIdx)...)
			}
		case "Image":
			img, ok := l.imageResource(stream, ref, pageIdx, name)
			if !ok {
				continue
			}
			out = append(out, img)
		}
	}
	return out
}

func (l *Locator) imageResource(stream raw.Stream, ref raw.ObjectRef, pageIdx int, name string) (*ImageResource, bool) {
	dict := stream.Dictionary()
	width, okW := l.doc.DictInt(dict, "Width")
	height, okH := l.doc.DictInt(dict, "Height")
	if !okW || !okH || validateRasterBounds(width, height) != nil {
		l.skip("image has invalid dimensions",
			observability.String("name", name),
			observability.Int("page", pageIdx))
		return nil, false
	}
	bpc, _ := l.doc.DictInt(dict, "BitsPerComponent")
	names, params := filters.ExtractFilters(dict)

	img := &ImageResource{
		Ref:              ref,
		Page:             pageIdx,
		Name:             name,
		Stream:           stream,
		Width:            width,
		Height:           height,
		BitsPerComponent: bpc,
		Filters:          names,
		FilterParams:     params,
	}
	return img, true
}

func (l *Locator) skip(msg string, fields ...observability.Field) {
	l.skipped++
	l.log.Warn(msg, fields...)
}
