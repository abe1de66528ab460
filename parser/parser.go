// Package parser loads a raw.Document from PDF bytes. It performs a linear
// scan for "N G obj" markers rather than trusting cross-reference tables,
// which tolerates the truncated and hand-edited files this tool routinely
// sees. Objects packed into object streams are expanded afterwards.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"pdfslim/ir/raw"
	"pdfslim/observability"
	"pdfslim/scanner"
)

// ErrDocument marks input that cannot be parsed at all. Callers treat it as
// fatal for the whole run.
var ErrDocument = errors.New("parser: not a parsable PDF")

type Config struct {
	Scanner scanner.Config
	Logger  observability.Logger
}

type DocumentParser struct {
	cfg Config
	log observability.Logger
}

func NewDocumentParser(cfg Config) *DocumentParser {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	return &DocumentParser{cfg: cfg, log: log}
}

// Parse scans the whole input and returns every indirect object it can
// recover. Individual malformed objects are skipped, not fatal.
func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDocument)
	}
	doc := raw.NewDocument()
	doc.Version = headerVersion(data)

	s := scanner.New(data, p.cfg.Scanner)
	tr := &tokenReader{s: s}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := tr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Lexical garbage between objects; keep scanning.
			continue
		}
		if tok.IsKeyword("trailer") {
			p.mergeTrailer(doc, tr)
			continue
		}
		if tok.Type != scanner.TokenNumber {
			continue
		}
		num64, ok := tok.Int()
		if !ok {
			continue
		}
		genTok, err := tr.next()
		if err != nil {
			break
		}
		if genTok.Type != scanner.TokenNumber {
			tr.unread(genTok)
			continue
		}
		gen64, ok := genTok.Int()
		if !ok {
			continue
		}
		kwTok, err := tr.next()
		if err != nil {
			break
		}
		if !kwTok.IsKeyword("obj") {
			tr.unread(kwTok)
			tr.unread(genTok)
			continue
		}

		ref := raw.ObjectRef{Num: int(num64), Gen: int(gen64)}
		obj, err := p.parseIndirect(tr, s)
		if err != nil {
			p.log.Warn("skipping malformed object",
				observability.String("ref", ref.String()),
				observability.Err(err))
			skipToEndobj(tr)
			continue
		}
		doc.Objects[ref] = obj

		// Cross-reference streams double as the trailer dictionary.
		if st, ok := obj.(raw.Stream); ok {
			if typ, _ := docDictName(st.Dictionary(), "Type"); typ == "XRef" {
				p.adoptTrailerKeys(doc, st.Dictionary())
			}
		}
	}

	if len(doc.Objects) == 0 {
		return nil, fmt.Errorf("%w: no objects found", ErrDocument)
	}
	if err := p.expandObjectStreams(ctx, doc); err != nil {
		return nil, err
	}
	if doc.Trailer == nil {
		p.synthesizeTrailer(doc)
	}
	// Encrypted documents would need their strings and streams decrypted
	// before any of this is usable.
	if doc.Trailer != nil {
		if _, ok := doc.Trailer.Get("Encrypt"); ok {
			return nil, fmt.Errorf("%w: document is encrypted", ErrDocument)
		}
	}
	if _, err := doc.Catalog(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocument, err)
	}
	return doc, nil
}

// parseIndirect parses one object body, attaching a stream payload when the
// dictionary is followed by the stream keyword.
func (p *DocumentParser) parseIndirect(tr *tokenReader, s *scanner.Scanner) (raw.Object, error) {
	obj, err := parseObject(tr)
	if err != nil {
		return nil, err
	}
	dict, isDict := obj.(*raw.DictObj)
	if isDict {
		next, err := tr.next()
		if err == nil {
			if next.IsKeyword("stream") {
				declared := int64(-1)
				if lenObj, ok := dict.Get("Length"); ok {
					if n, ok := lenObj.(raw.Number); ok && n.IsInteger() {
						declared = n.Int()
					}
				}
				payload, err := s.ReadStream(declared)
				if err != nil {
					return nil, err
				}
				data := make([]byte, len(payload))
				copy(data, payload)
				obj = raw.NewStream(dict, data)
			} else {
				tr.unread(next)
			}
		}
	}
	// Consume the optional endobj keyword.
	if t, err := tr.next(); err == nil && !t.IsKeyword("endobj") {
		tr.unread(t)
	}
	return obj, nil
}

func (p *DocumentParser) mergeTrailer(doc *raw.Document, tr *tokenReader) {
	tok, err := tr.next()
	if err != nil || tok.Type != scanner.TokenDictOpen {
		return
	}
	dict, err := parseDict(tr)
	if err != nil {
		return
	}
	p.adoptTrailerKeys(doc, dict)
}

// adoptTrailerKeys merges trailer entries; later updates in the file win.
func (p *DocumentParser) adoptTrailerKeys(doc *raw.Document, dict raw.Dictionary) {
	if doc.Trailer == nil {
		doc.Trailer = raw.Dict()
	}
	for _, key := range dict.Keys() {
		switch key {
		case "Root", "Info", "Size", "ID", "Encrypt":
			if v, ok := dict.Get(key); ok {
				doc.Trailer.Set(key, v)
			}
		}
	}
}

// synthesizeTrailer finds a catalog by inspection when no trailer survived.
func (p *DocumentParser) synthesizeTrailer(doc *raw.Document) {
	for ref, obj := range doc.Objects {
		dict, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		if typ, _ := docDictName(dict, "Type"); typ == "Catalog" {
			doc.Trailer = raw.Dict()
			doc.Trailer.Set("Root", raw.Ref(ref.Num, ref.Gen))
			p.log.Warn("trailer missing, recovered catalog by scan",
				observability.String("ref", ref.String()))
			return
		}
	}
}

func headerVersion(data []byte) string {
	const prefix = "%PDF-"
	if len(data) > len(prefix)+3 && string(data[:len(prefix)]) == prefix {
		return string(data[len(prefix) : len(prefix)+3])
	}
	return ""
}

func docDictName(dict raw.Dictionary, key string) (string, bool) {
	if dict == nil {
		return "", false
	}
	obj, ok := dict.Get(key)
	if !ok {
		return "", false
	}
	n, ok := obj.(raw.Name)
	if !ok {
		return "", false
	}
	return n.Value(), true
}

func skipToEndobj(tr *tokenReader) {
	for {
		tok, err := tr.next()
		if err != nil {
			return
		}
		if tok.IsKeyword("endobj") {
			return
		}
	}
}

// Object assembly over the token stream.

func parseObject(tr *tokenReader) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameLiteral(tok.Text), nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenNumber:
		return parseNumberOrRef(tr, tok)
	case scanner.TokenKeyword:
		switch tok.Text {
		case "true":
			return raw.Bool(true), nil
		case "false":
			return raw.Bool(false), nil
		case "null":
			return raw.NullObj{}, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q", tok.Text)
	case scanner.TokenArrayOpen:
		return parseArray(tr)
	case scanner.TokenDictOpen:
		return parseDict(tr)
	}
	return nil, fmt.Errorf("unexpected token %q", tok.Text)
}

// parseNumberOrRef recognizes the "N G R" reference form with two-token
// lookahead.
func parseNumberOrRef(tr *tokenReader, first scanner.Token) (raw.Object, error) {
	if num, ok := first.Int(); ok && num >= 0 {
		second, err := tr.next()
		if err == nil {
			if gen, ok2 := second.Int(); ok2 && second.Type == scanner.TokenNumber && gen >= 0 {
				third, err := tr.next()
				if err == nil {
					if third.IsKeyword("R") {
						return raw.Ref(int(num), int(gen)), nil
					}
					tr.unread(third)
				}
			}
			tr.unread(second)
		}
	}
	if i, ok := first.Int(); ok {
		return raw.Integer(i), nil
	}
	f, ok := first.Float()
	if !ok {
		return nil, fmt.Errorf("malformed number %q", first.Text)
	}
	return raw.Real(f), nil
}

func parseArray(tr *tokenReader) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenArrayClose {
			return arr, nil
		}
		tr.unread(tok)
		item, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *tokenReader) (*raw.DictObj, error) {
	dict := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenDictClose {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name key, got %q", tok.Text)
		}
		val, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		dict.Set(tok.Text, val)
	}
}

type tokenReader struct {
	s   *scanner.Scanner
	buf []scanner.Token
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }
