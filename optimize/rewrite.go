package optimize

import (
	"fmt"

	"pdfslim/ir/raw"
)

// Rewriter applies encoded replacements back onto the document's image
// streams. Only the stream bytes and the keys describing them change; every
// other dictionary entry (SMask, Intent, ...) is left alone so
// consumers of those keys are unaffected. Rewrites mutate shared document
// state and must stay on a single goroutine.
type Rewriter struct {
	doc *raw.Document
}

func NewRewriter(doc *raw.Document) *Rewriter { return &Rewriter{doc: doc} }

// Apply replaces the resource's stream with the encoded data. On any
// upstream failure the caller simply never invokes Apply, which leaves the
// image byte-for-byte unchanged.
func (rw *Rewriter) Apply(img *ImageResource, rep *EncodedReplacement) error {
	if rep == nil || len(rep.Data) == 0 {
		return fmt.Errorf("optimize: empty replacement for %s", img.Name)
	}
	dict := img.Stream.Dictionary()

	img.Stream.SetRawData(rep.Data)
	dict.Set("Length", raw.Integer(int64(len(rep.Data))))
	dict.Set("Filter", raw.NameLiteral(rep.FilterName))
	dict.Set("ColorSpace", raw.NameLiteral(rep.ColorSpaceName))
	dict.Set("Width", raw.Integer(int64(rep.Width)))
	dict.Set("Height", raw.Integer(int64(rep.Height)))
	dict.Set("BitsPerComponent", raw.Integer(int64(rep.BitsPerComponent)))

	// Stale descriptions of the old encoding must not survive. Only
	// identity Decode arrays reach this point, so dropping the key keeps
	// the rendering unchanged.
	dict.Delete("DecodeParms")
	dict.Delete("DP")
	dict.Delete("Decode")
	return nil
}
