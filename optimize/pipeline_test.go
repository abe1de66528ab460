package optimize

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pdfslim/ir/raw"
)

func newTestPipeline(t *testing.T, policy Policy) *Pipeline {
	t.Helper()
	p, err := NewPipeline(policy, nil)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func TestPipelineRecompressesRawImage(t *testing.T) {
	// A smooth 200x200 grayscale ramp stored uncompressed: JPEG should win
	// by a wide margin.
	width, height := 200, 200
	pix := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix[y*width+x] = byte((x + y) / 2)
		}
	}
	doc := testDoc(t, imageStream(width, height, 8, raw.NameLiteral("DeviceGray"), pix))

	report, err := newTestPipeline(t, DefaultPolicy()).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Found != 1 || report.Recompressed != 1 {
		t.Fatalf("found=%d recompressed=%d", report.Found, report.Recompressed)
	}

	st := doc.Objects[raw.ObjectRef{Num: 4}].(raw.Stream)
	if name, _ := doc.DictName(st.Dictionary(), "Filter"); name != "DCTDecode" {
		t.Errorf("filter %q, want DCTDecode", name)
	}
	if name, _ := doc.DictName(st.Dictionary(), "ColorSpace"); name != "DeviceGray" {
		t.Errorf("colorspace %q, want DeviceGray", name)
	}
	if st.Length() >= int64(len(pix)) {
		t.Errorf("stream grew: %d >= %d", st.Length(), len(pix))
	}
	if report.BytesAfter >= report.BytesBefore {
		t.Errorf("report bytes: %d -> %d", report.BytesBefore, report.BytesAfter)
	}
}

func TestPipelineKeepsUnsupportedImageUntouched(t *testing.T) {
	payload := []byte("opaque jpeg2000 codestream")
	st := imageStream(10, 10, 8, raw.NameLiteral("DeviceRGB"), payload)
	st.Dict.Set("Filter", raw.NameLiteral("JPXDecode"))
	doc := testDoc(t, st)

	report, err := newTestPipeline(t, DefaultPolicy()).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.KeptUnsupported != 1 {
		t.Errorf("KeptUnsupported=%d, want 1", report.KeptUnsupported)
	}
	got := doc.Objects[raw.ObjectRef{Num: 4}].(raw.Stream)
	if !bytes.Equal(got.RawData(), payload) {
		t.Error("unsupported image bytes changed")
	}
	if name, _ := doc.DictName(got.Dictionary(), "Filter"); name != "JPXDecode" {
		t.Errorf("filter changed to %q", name)
	}
}

func TestPipelineKeepsImageOnDecodeFailure(t *testing.T) {
	// Payload too short for the declared geometry: every strategy fails and
	// the stream must survive byte-for-byte.
	payload := []byte{1, 2, 3}
	doc := testDoc(t, imageStream(100, 100, 8, raw.NameLiteral("DeviceRGB"), payload))

	report, err := newTestPipeline(t, DefaultPolicy()).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.KeptDecodeFailed != 1 {
		t.Errorf("KeptDecodeFailed=%d, want 1", report.KeptDecodeFailed)
	}
	got := doc.Objects[raw.ObjectRef{Num: 4}].(raw.Stream)
	if !bytes.Equal(got.RawData(), payload) {
		t.Error("failed image bytes changed")
	}
}

func TestPipelineRespectsMinimumGain(t *testing.T) {
	width, height := 50, 50
	pix := make([]byte, width*height)
	for i := range pix {
		pix[i] = byte(i)
	}
	doc := testDoc(t, imageStream(width, height, 8, raw.NameLiteral("DeviceGray"), pix))

	policy := DefaultPolicy()
	policy.MinGainFraction = 0.99
	report, err := newTestPipeline(t, policy).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.KeptSmallGain != 1 {
		t.Fatalf("KeptSmallGain=%d, want 1", report.KeptSmallGain)
	}
	got := doc.Objects[raw.ObjectRef{Num: 4}].(raw.Stream)
	if !bytes.Equal(got.RawData(), pix) {
		t.Error("image below gain threshold was rewritten")
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	doc := testDoc(t, imageStream(2, 2, 8, raw.NameLiteral("DeviceGray"), []byte{1, 2, 3, 4}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestPipeline(t, DefaultPolicy()).Run(ctx, doc); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestPipelineReportActions(t *testing.T) {
	// Two images on one page: a recompressible ramp and an unsupported
	// JPX stream. The report must list both in traversal order.
	width, height := 120, 120
	pix := make([]byte, width*height)
	for i := range pix {
		pix[i] = byte(i / 120)
	}
	rampSt := imageStream(width, height, 8, raw.NameLiteral("DeviceGray"), pix)
	jpxSt := imageStream(10, 10, 8, raw.NameLiteral("DeviceRGB"), []byte("jpx"))
	jpxSt.Dict.Set("Filter", raw.NameLiteral("JPXDecode"))

	doc := testDoc(t, rampSt)
	doc.Objects[raw.ObjectRef{Num: 5}] = jpxSt
	page := doc.Objects[raw.ObjectRef{Num: 3}].(raw.Dictionary)
	resources, _ := doc.DictDict(page, "Resources")
	xobjects, _ := doc.DictDict(resources, "XObject")
	xobjects.Set("Im1", raw.Ref(5, 0))

	report, err := newTestPipeline(t, DefaultPolicy()).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var got []Action
	for _, img := range report.Images {
		got = append(got, img.Action)
	}
	want := []Action{ActionRecompressed, ActionKeptUnsupported}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("action sequence mismatch (-want +got):\n%s", diff)
	}
	if report.Kept() != 1 {
		t.Errorf("Kept()=%d, want 1", report.Kept())
	}
	if report.Summary() == "" {
		t.Error("empty summary")
	}
}

func TestPipelineSharedImageVisitedOnce(t *testing.T) {
	// The same XObject referenced from two pages is processed once.
	doc := testDoc(t, imageStream(2, 2, 8, raw.NameLiteral("DeviceGray"), []byte{1, 2, 3, 4}))

	xobjects := raw.Dict()
	xobjects.Set("Im0", raw.Ref(4, 0))
	resources := raw.Dict()
	resources.Set("XObject", xobjects)
	page2 := raw.Dict()
	page2.Set("Type", raw.NameLiteral("Page"))
	page2.Set("Resources", resources)
	doc.Objects[raw.ObjectRef{Num: 6}] = page2

	pages := doc.Objects[raw.ObjectRef{Num: 2}].(raw.Dictionary)
	kids, _ := doc.DictArray(pages, "Kids")
	kids.Append(raw.Ref(6, 0))

	report, err := newTestPipeline(t, DefaultPolicy()).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Found != 1 {
		t.Errorf("Found=%d, want 1 (shared XObject deduplicated)", report.Found)
	}
}

func TestLocateInheritsResourcesFromPagesNode(t *testing.T) {
	// Resources is inheritable: a page without its own entry uses the
	// nearest ancestor Pages node's.
	doc := testDoc(t, imageStream(2, 2, 8, raw.NameLiteral("DeviceGray"), []byte{1, 2, 3, 4}))
	page := doc.Objects[raw.ObjectRef{Num: 3}].(raw.Dictionary)
	resources, _ := page.Get("Resources")
	page.Delete("Resources")
	pages := doc.Objects[raw.ObjectRef{Num: 2}].(raw.Dictionary)
	pages.Set("Resources", resources)

	images := NewLocator(doc, nil).Locate()
	if len(images) != 1 {
		t.Fatalf("located %d images, want 1", len(images))
	}
	if images[0].Name != "Im0" {
		t.Errorf("name %q, want Im0", images[0].Name)
	}
}

func TestLocatePageResourcesOverrideInherited(t *testing.T) {
	// The page keeps its own resource dictionary; the ancestor's points at
	// a nonexistent object and must be ignored.
	doc := testDoc(t, imageStream(2, 2, 8, raw.NameLiteral("DeviceGray"), []byte{1, 2, 3, 4}))
	stale := raw.Dict()
	staleX := raw.Dict()
	staleX.Set("Im9", raw.Ref(99, 0))
	stale.Set("XObject", staleX)
	pages := doc.Objects[raw.ObjectRef{Num: 2}].(raw.Dictionary)
	pages.Set("Resources", stale)

	images := NewLocator(doc, nil).Locate()
	if len(images) != 1 {
		t.Fatalf("located %d images, want 1", len(images))
	}
	if images[0].Name != "Im0" {
		t.Errorf("name %q, want Im0", images[0].Name)
	}
}

func TestPipelineKeepsInvertedDecodeImage(t *testing.T) {
	// Decode [1 0] inverts samples at render time; re-emitting the pixels
	// as-is without the array would flip the image. It must stay untouched.
	width, height := 200, 200
	pix := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix[y*width+x] = byte((x + y) / 2)
		}
	}
	st := imageStream(width, height, 8, raw.NameLiteral("DeviceGray"), pix)
	st.Dict.Set("Decode", raw.NewArray(raw.Integer(1), raw.Integer(0)))
	doc := testDoc(t, st)

	report, err := newTestPipeline(t, DefaultPolicy()).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.KeptUnsupported != 1 {
		t.Errorf("KeptUnsupported=%d, want 1", report.KeptUnsupported)
	}
	got := doc.Objects[raw.ObjectRef{Num: 4}].(raw.Stream)
	if !bytes.Equal(got.RawData(), pix) {
		t.Error("inverted-decode image bytes changed")
	}
	if _, ok := got.Dictionary().Get("Decode"); !ok {
		t.Error("Decode array removed from kept image")
	}
}

func TestPipelineKeepsStencilMask(t *testing.T) {
	width, height := 400, 400
	pix := make([]byte, width*height/8)
	for i := range pix {
		pix[i] = 0xAA
	}
	st := imageStream(width, height, 1, nil, pix)
	st.Dict.Set("ImageMask", raw.Bool(true))
	doc := testDoc(t, st)

	report, err := newTestPipeline(t, DefaultPolicy()).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.KeptUnsupported != 1 {
		t.Errorf("KeptUnsupported=%d, want 1", report.KeptUnsupported)
	}
	got := doc.Objects[raw.ObjectRef{Num: 4}].(raw.Stream)
	if !bytes.Equal(got.RawData(), pix) {
		t.Error("stencil mask bytes changed")
	}
	maskObj, ok := got.Dictionary().Get("ImageMask")
	if !ok {
		t.Fatal("ImageMask key removed")
	}
	if b, ok := maskObj.(raw.Boolean); !ok || !b.Value() {
		t.Error("ImageMask no longer true")
	}
}
