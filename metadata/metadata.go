// Package metadata removes document information and XMP metadata, the
// cheap non-image part of a size reduction pass.
package metadata

import (
	"pdfslim/ir/raw"
	"pdfslim/observability"
)

// Stripper clears document metadata in place.
type Stripper struct {
	doc *raw.Document
	log observability.Logger
}

func NewStripper(doc *raw.Document, log observability.Logger) *Stripper {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Stripper{doc: doc, log: log}
}

// Strip removes every docinfo entry and detaches the catalog's XMP metadata
// stream. It returns the number of entries removed. The /Info trailer key is
// dropped as well so the writer does not resurrect an empty dictionary.
func (s *Stripper) Strip() int {
	removed := 0

	if info := s.doc.Info(); info != nil {
		keys := info.Keys()
		for _, key := range keys {
			info.Delete(key)
		}
		removed += len(keys)
		if len(keys) > 0 {
			s.log.Debug("cleared document info", observability.Int("entries", len(keys)))
		}
	}
	if s.doc.Trailer != nil {
		if ref, ok := s.doc.Trailer.Get("Info"); ok {
			if r, isRef := ref.(raw.Reference); isRef {
				delete(s.doc.Objects, r.Ref())
			}
			s.doc.Trailer.Delete("Info")
		}
	}

	catalog, err := s.doc.Catalog()
	if err != nil {
		return removed
	}
	if obj, ok := catalog.Get("Metadata"); ok {
		if r, isRef := obj.(raw.Reference); isRef {
			delete(s.doc.Objects, r.Ref())
		}
		catalog.Delete("Metadata")
		removed++
		s.log.Debug("detached XMP metadata stream")
	}
	return removed
}
