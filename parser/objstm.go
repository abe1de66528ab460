package parser

import (
	"context"
	"fmt"

	"pdfslim/filters"
	"pdfslim/ir/raw"
	"pdfslim/observability"
	"pdfslim/scanner"
)

// expandObjectStreams unpacks /Type /ObjStm containers so that objects stored
// inside compressed object streams become ordinary entries in the document
// map. The containers themselves (and xref streams) are dropped afterwards:
// the writer re-serializes every object uncompressed into a classic xref
// layout.
func (p *DocumentParser) expandObjectStreams(ctx context.Context, doc *raw.Document) error {
	pipeline := filters.NewPipeline(filters.DefaultDecoders(), filters.Limits{})

	var containers []raw.ObjectRef
	for ref, obj := range doc.Objects {
		st, ok := obj.(raw.Stream)
		if !ok {
			continue
		}
		typ, _ := docDictName(st.Dictionary(), "Type")
		if typ == "ObjStm" {
			containers = append(containers, ref)
		}
	}

	for _, ref := range containers {
		if err := ctx.Err(); err != nil {
			return err
		}
		st := doc.Objects[ref].(raw.Stream)
		if err := p.expandOne(ctx, doc, pipeline, st); err != nil {
			p.log.Warn("skipping unreadable object stream",
				observability.String("ref", ref.String()),
				observability.Err(err))
		}
		delete(doc.Objects, ref)
	}

	// Cross-reference streams are stale once every object is inline.
	for ref, obj := range doc.Objects {
		if st, ok := obj.(raw.Stream); ok {
			if typ, _ := docDictName(st.Dictionary(), "Type"); typ == "XRef" {
				delete(doc.Objects, ref)
			}
		}
	}
	return nil
}

func (p *DocumentParser) expandOne(ctx context.Context, doc *raw.Document, pipeline *filters.Pipeline, st raw.Stream) error {
	dict := st.Dictionary()
	count, ok := intEntry(dict, "N")
	if !ok || count <= 0 {
		return fmt.Errorf("object stream missing /N")
	}
	first, ok := intEntry(dict, "First")
	if !ok || first < 0 {
		return fmt.Errorf("object stream missing /First")
	}

	names, params := filters.ExtractFilters(dict)
	data, err := pipeline.Decode(ctx, st.RawData(), names, params)
	if err != nil {
		return fmt.Errorf("decode object stream: %w", err)
	}
	if first > len(data) {
		return fmt.Errorf("object stream /First beyond payload")
	}

	// Header: N pairs of "objnum offset" relative to /First.
	head := scanner.New(data[:first], p.cfg.Scanner)
	type entry struct{ num, off int }
	entries := make([]entry, 0, count)
	for i := 0; i < count; i++ {
		numTok, err := head.Next()
		if err != nil {
			return fmt.Errorf("object stream header truncated: %w", err)
		}
		offTok, err := head.Next()
		if err != nil {
			return fmt.Errorf("object stream header truncated: %w", err)
		}
		num, ok1 := numTok.Int()
		off, ok2 := offTok.Int()
		if !ok1 || !ok2 || off < 0 {
			return fmt.Errorf("object stream header malformed")
		}
		entries = append(entries, entry{num: int(num), off: int(off)})
	}

	for _, e := range entries {
		pos := first + e.off
		if pos >= len(data) {
			continue
		}
		ref := raw.ObjectRef{Num: e.num, Gen: 0}
		if _, exists := doc.Objects[ref]; exists {
			// A top-level (newer) definition wins over the packed copy.
			continue
		}
		body := scanner.New(data[pos:], p.cfg.Scanner)
		obj, err := parseObject(&tokenReader{s: body})
		if err != nil {
			p.log.Warn("skipping malformed packed object",
				observability.String("ref", ref.String()),
				observability.Err(err))
			continue
		}
		doc.Objects[ref] = obj
	}
	return nil
}

func intEntry(dict raw.Dictionary, key string) (int, bool) {
	obj, ok := dict.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := obj.(raw.Number)
	if !ok {
		return 0, false
	}
	return int(n.Int()), true
}
