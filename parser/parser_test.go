package parser

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"pdfslim/ir/raw"
)

func parse(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func minimalPDF() []byte {
	payload := "xxxxxxxxxxxx" // 2x2 RGB
	return []byte(fmt.Sprintf(`%%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Im1 4 0 R >> >> >>
endobj
4 0 obj
<< /Subtype /Image /Width 2 /Height 2 /BitsPerComponent 8 /ColorSpace /DeviceRGB /Length %d >>
stream
%s
endstream
endobj
trailer
<< /Root 1 0 R /Size 5 >>
`, len(payload), payload))
}

func TestParseMinimalDocument(t *testing.T) {
	doc := parse(t, minimalPDF())

	if doc.Version != "1.4" {
		t.Errorf("version %q, want 1.4", doc.Version)
	}
	if len(doc.Objects) != 4 {
		t.Errorf("object count %d, want 4", len(doc.Objects))
	}
	catalog, err := doc.Catalog()
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	if typ, _ := doc.DictName(catalog, "Type"); typ != "Catalog" {
		t.Errorf("catalog type %q", typ)
	}

	st, ok := doc.Objects[raw.ObjectRef{Num: 4}].(raw.Stream)
	if !ok {
		t.Fatalf("object 4 is not a stream")
	}
	if string(st.RawData()) != "xxxxxxxxxxxx" {
		t.Errorf("stream payload %q", st.RawData())
	}
	if w, _ := doc.DictInt(st.Dictionary(), "Width"); w != 2 {
		t.Errorf("width %d, want 2", w)
	}
}

func TestParseSkipsMalformedObject(t *testing.T) {
	data := []byte(`%PDF-1.5
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
5 0 obj
<< /Broken [unclosed
endobj
2 0 obj
<< /Type /Pages /Kids [] /Count 0 >>
endobj
trailer
<< /Root 1 0 R >>
`)
	doc := parse(t, data)
	if _, ok := doc.Objects[raw.ObjectRef{Num: 2}]; !ok {
		t.Error("object after the malformed one was lost")
	}
	if _, err := doc.Catalog(); err != nil {
		t.Errorf("Catalog failed: %v", err)
	}
}

func TestParseRejectsEncryptedDocument(t *testing.T) {
	// Strings and streams in an encrypted file are ciphertext; rewriting
	// them without decryption would produce garbage.
	data := []byte(`%PDF-1.6
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [] /Count 0 >>
endobj
5 0 obj
<< /Filter /Standard /V 2 /R 3 >>
endobj
trailer
<< /Root 1 0 R /Encrypt 5 0 R >>
`)
	_, err := NewDocumentParser(Config{}).Parse(context.Background(), data)
	if !errors.Is(err, ErrDocument) {
		t.Fatalf("got %v, want ErrDocument", err)
	}
	if !strings.Contains(err.Error(), "encrypted") {
		t.Errorf("error %q does not name encryption", err)
	}
}

func TestParseSynthesizesTrailer(t *testing.T) {
	// No trailer at all: the catalog must still be found by scanning.
	data := []byte(`%PDF-1.6
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [] /Count 0 >>
endobj
`)
	doc := parse(t, data)
	if doc.Trailer == nil {
		t.Fatal("trailer was not synthesized")
	}
	if _, err := doc.Catalog(); err != nil {
		t.Errorf("Catalog failed: %v", err)
	}
}

func TestParseIndirectReference(t *testing.T) {
	doc := parse(t, minimalPDF())
	pages, ok := doc.Objects[raw.ObjectRef{Num: 2}].(raw.Dictionary)
	if !ok {
		t.Fatal("object 2 is not a dictionary")
	}
	kids, ok := doc.DictArray(pages, "Kids")
	if !ok || kids.Len() != 1 {
		t.Fatal("Kids not parsed")
	}
	kid, _ := kids.Get(0)
	ref, ok := kid.(raw.Reference)
	if !ok {
		t.Fatalf("kid is %T, want reference", kid)
	}
	if ref.Ref() != (raw.ObjectRef{Num: 3}) {
		t.Errorf("kid ref %v", ref.Ref())
	}
}

func TestParseWrongStreamLength(t *testing.T) {
	// Declared /Length lies; the payload must still be recovered.
	data := []byte(`%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [] /Count 0 >>
endobj
3 0 obj
<< /Length 3 >>
stream
the real payload
endstream
endobj
trailer
<< /Root 1 0 R >>
`)
	doc := parse(t, data)
	st, ok := doc.Objects[raw.ObjectRef{Num: 3}].(raw.Stream)
	if !ok {
		t.Fatal("object 3 is not a stream")
	}
	if string(st.RawData()) != "the real payload" {
		t.Errorf("payload %q", st.RawData())
	}
}

func TestExpandObjectStreams(t *testing.T) {
	// Two small objects packed into a flate-compressed object stream.
	inner := "<< /Type /Catalog /Pages 11 0 R >> << /Type /Pages /Kids [] /Count 0 >>"
	header := "10 0 11 35 "
	packed := header + inner
	first := len(header)

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write([]byte(packed)); err != nil {
		t.Fatal(err)
	}
	zw.Close()

	var file bytes.Buffer
	file.WriteString("%PDF-1.5\n")
	fmt.Fprintf(&file, "1 0 obj\n<< /Type /ObjStm /N 2 /First %d /Filter /FlateDecode /Length %d >>\nstream\n",
		first, compressed.Len())
	file.Write(compressed.Bytes())
	file.WriteString("\nendstream\nendobj\n")
	file.WriteString("trailer\n<< /Root 10 0 R >>\n")

	doc := parse(t, file.Bytes())
	if _, ok := doc.Objects[raw.ObjectRef{Num: 1}]; ok {
		t.Error("object stream container was not dropped")
	}
	catalog, err := doc.Catalog()
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	if typ, _ := doc.DictName(catalog, "Type"); typ != "Catalog" {
		t.Errorf("catalog type %q", typ)
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 11}]; !ok {
		t.Error("second packed object missing")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "not a pdf at all", "%PDF-1.4\njunk"} {
		if _, err := NewDocumentParser(Config{}).Parse(context.Background(), []byte(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestHeaderVersion(t *testing.T) {
	if v := headerVersion([]byte("%PDF-1.7\nrest")); v != "1.7" {
		t.Errorf("got %q", v)
	}
	if v := headerVersion([]byte("no header")); v != "" {
		t.Errorf("got %q, want empty", v)
	}
}

func TestParseLiteralStringObject(t *testing.T) {
	data := []byte(`%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [] /Count 0 >>
endobj
3 0 obj
<< /Title (A \(quoted\) title) /Producer (pdfslim) >>
endobj
trailer
<< /Root 1 0 R /Info 3 0 R >>
`)
	doc := parse(t, data)
	info := doc.Info()
	if info == nil {
		t.Fatal("Info missing")
	}
	titleObj, _ := info.Get("Title")
	title, ok := titleObj.(raw.String)
	if !ok {
		t.Fatalf("Title is %T", titleObj)
	}
	if !strings.Contains(string(title.Value()), "(quoted)") {
		t.Errorf("title %q", title.Value())
	}
}
