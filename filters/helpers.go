package filters

import "pdfslim/ir/raw"

// ExtractFilters reads the Filter and DecodeParms entries from a stream
// dictionary. Both single-name and array forms are normalized to slices;
// params[i] belongs to names[i] and may be nil.
func ExtractFilters(dict raw.Dictionary) (names []string, params []raw.Dictionary) {
	if dict == nil {
		return nil, nil
	}
	filterObj, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	switch f := filterObj.(type) {
	case raw.Name:
		names = append(names, f.Value())
	case raw.Array:
		for i := 0; i < f.Len(); i++ {
			item, _ := f.Get(i)
			if n, ok := item.(raw.Name); ok {
				names = append(names, n.Value())
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	params = make([]raw.Dictionary, len(names))
	pObj, ok := dict.Get("DecodeParms")
	if !ok {
		pObj, ok = dict.Get("DP")
	}
	if !ok {
		return names, params
	}
	switch p := pObj.(type) {
	case raw.Dictionary:
		params[0] = p
	case raw.Array:
		for i := 0; i < p.Len() && i < len(params); i++ {
			item, _ := p.Get(i)
			if d, ok := item.(raw.Dictionary); ok {
				params[i] = d
			}
		}
	}
	return names, params
}

// ImageCodecFilters lists filters whose output is an encoded image rather
// than raster bytes. The lossless pipeline never decodes these.
var ImageCodecFilters = map[string]bool{
	"DCTDecode":      true,
	"DCT":            true,
	"JPXDecode":      true,
	"JBIG2Decode":    true,
	"CCITTFaxDecode": true,
	"CCF":            true,
}
