// Package writer serializes a raw.Document back to PDF bytes with a classic
// cross-reference table. Streams that arrive uncompressed can be deflated on
// the way out, which is where the non-image part of the size win comes from.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/klauspost/compress/zlib"

	"pdfslim/ir/raw"
)

type Config struct {
	// Compression is the deflate level (1-9) used when CompressStreams
	// touches a stream. 0 selects the default level.
	Compression int
	// CompressStreams deflates streams that carry no filter yet.
	CompressStreams bool
}

type Writer struct{}

func NewWriter() *Writer { return &Writer{} }

// Write serializes the document. Object order, dictionary key order and
// xref layout are deterministic so identical documents produce identical
// bytes.
func (wr *Writer) Write(ctx context.Context, doc *raw.Document, w io.Writer, cfg Config) error {
	if doc == nil || len(doc.Objects) == 0 {
		return fmt.Errorf("writer: empty document")
	}

	refs := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})

	var out bytes.Buffer
	version := doc.Version
	if version == "" {
		version = "1.7"
	}
	fmt.Fprintf(&out, "%%PDF-%s\n", version)
	// Binary marker comment so transfer tools treat the file as binary.
	out.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	offsets := make(map[int]int64, len(refs))
	maxNum := 0
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := doc.Objects[ref]
		if st, ok := obj.(raw.Stream); ok && cfg.CompressStreams {
			compressStream(st, cfg.Compression)
		}
		offsets[ref.Num] = int64(out.Len())
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
		fmt.Fprintf(&out, "%d %d obj\n", ref.Num, ref.Gen)
		serializeObject(&out, obj)
		out.WriteString("\nendobj\n")
	}

	xrefPos := int64(out.Len())
	writeXref(&out, offsets, maxNum)

	trailer := buildTrailer(doc, maxNum+1)
	out.WriteString("trailer\n")
	serializeObject(&out, trailer)
	fmt.Fprintf(&out, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)

	_, err := w.Write(out.Bytes())
	return err
}

// compressStream deflates a stream in place when it has no filter yet.
// Already-filtered streams (including the freshly written DCT images) are
// left alone.
func compressStream(st raw.Stream, level int) {
	dict := st.Dictionary()
	if _, hasFilter := dict.Get("Filter"); hasFilter {
		return
	}
	if st.Length() == 0 {
		return
	}
	if level <= 0 || level > 9 {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return
	}
	if _, err := zw.Write(st.RawData()); err != nil {
		zw.Close()
		return
	}
	if err := zw.Close(); err != nil {
		return
	}
	if buf.Len() >= int(st.Length()) {
		return
	}
	st.SetRawData(buf.Bytes())
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	dict.Set("Length", raw.Integer(int64(buf.Len())))
}

// writeXref emits a classic xref table. Sparse object numbers are split
// into subsections; entry 0 is always the free-list head.
func writeXref(out *bytes.Buffer, offsets map[int]int64, maxNum int) {
	out.WriteString("xref\n")
	type section struct{ start, count int }
	var sections []section
	cur := section{start: 0, count: 1} // object 0, the free entry
	for num := 1; num <= maxNum; num++ {
		if _, ok := offsets[num]; !ok {
			if cur.count > 0 {
				sections = append(sections, cur)
				cur = section{}
			}
			continue
		}
		if cur.count == 0 {
			cur = section{start: num}
		}
		cur.count++
	}
	if cur.count > 0 {
		sections = append(sections, cur)
	}
	for _, sec := range sections {
		fmt.Fprintf(out, "%d %d\n", sec.start, sec.count)
		for num := sec.start; num < sec.start+sec.count; num++ {
			if num == 0 {
				out.WriteString("0000000000 65535 f \n")
				continue
			}
			fmt.Fprintf(out, "%010d 00000 n \n", offsets[num])
		}
	}
}

func buildTrailer(doc *raw.Document, size int) *raw.DictObj {
	trailer := raw.Dict()
	trailer.Set("Size", raw.Integer(int64(size)))
	if doc.Trailer != nil {
		for _, key := range []string{"Root", "Info", "ID"} {
			if v, ok := doc.Trailer.Get(key); ok {
				trailer.Set(key, v)
			}
		}
	}
	return trailer
}

// serializeObject writes one object body in canonical form.
func serializeObject(out *bytes.Buffer, obj raw.Object) {
	switch o := obj.(type) {
	case raw.Name:
		out.WriteString(nameLiteral(o.Value()))
	case raw.Number:
		if o.IsInteger() {
			out.WriteString(strconv.FormatInt(o.Int(), 10))
		} else {
			out.WriteString(strconv.FormatFloat(o.Float(), 'f', -1, 64))
		}
	case raw.Boolean:
		out.WriteString(strconv.FormatBool(o.Value()))
	case raw.Null:
		out.WriteString("null")
	case raw.Reference:
		fmt.Fprintf(out, "%d %d R", o.Ref().Num, o.Ref().Gen)
	case raw.String:
		serializeString(out, o)
	case raw.Array:
		out.WriteByte('[')
		for i := 0; i < o.Len(); i++ {
			if i > 0 {
				out.WriteByte(' ')
			}
			item, _ := o.Get(i)
			serializeObject(out, item)
		}
		out.WriteByte(']')
	case raw.Stream:
		serializeObject(out, o.Dictionary())
		out.WriteString("\nstream\n")
		out.Write(o.RawData())
		out.WriteString("\nendstream")
	case raw.Dictionary:
		out.WriteString("<<")
		for _, key := range o.Keys() {
			out.WriteByte(' ')
			out.WriteString(nameLiteral(key))
			out.WriteByte(' ')
			v, _ := o.Get(key)
			serializeObject(out, v)
		}
		out.WriteString(" >>")
	default:
		out.WriteString("null")
	}
}

func serializeString(out *bytes.Buffer, s raw.String) {
	str, isStrObj := s.(raw.StringObj)
	if isStrObj && str.Hex {
		out.WriteByte('<')
		for _, b := range s.Value() {
			fmt.Fprintf(out, "%02X", b)
		}
		out.WriteByte('>')
		return
	}
	out.WriteByte('(')
	for _, b := range s.Value() {
		switch b {
		case '(', ')', '\\':
			out.WriteByte('\\')
			out.WriteByte(b)
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		default:
			out.WriteByte(b)
		}
	}
	out.WriteByte(')')
}

// nameLiteral escapes a name per PDF rules.
func nameLiteral(value string) string {
	var b bytes.Buffer
	b.WriteByte('/')
	for i := 0; i < len(value); i++ {
		c := value[i]
		needsEscape := c < '!' || c > '~' || c == '#'
		switch c {
		case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
			needsEscape = true
		}
		if needsEscape {
			fmt.Fprintf(&b, "#%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}
