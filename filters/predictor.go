package filters

import (
	"fmt"

	"pdfslim/ir/raw"
)

// applyPredictor reverses the TIFF (2) and PNG (10-15) predictors declared in
// a filter's DecodeParms. Predictor 1 or absent parameters return the data
// unchanged.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor := paramInt(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := paramInt(params, "Colors", 1)
	bpc := paramInt(params, "BitsPerComponent", 8)
	columns := paramInt(params, "Columns", 1)
	if colors < 1 || columns < 1 || bpc < 1 {
		return nil, fmt.Errorf("invalid predictor parameters (colors=%d columns=%d bpc=%d)", colors, columns, bpc)
	}

	bytesPerPixel := (colors*bpc + 7) / 8
	rowLen := (colors*columns*bpc + 7) / 8

	if predictor == 2 {
		return applyTIFFPredictor(data, colors, bpc, columns)
	}
	if predictor < 10 || predictor > 15 {
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}

	// PNG predictors: each row is prefixed with a per-row filter type byte.
	stride := rowLen + 1
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("predictor data length %d not a multiple of row size %d", len(data), stride)
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	row := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		ft := data[r*stride]
		copy(row, data[r*stride+1:(r+1)*stride])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bytesPerPixel; i < rowLen; i++ {
				row[i] += row[i-bytesPerPixel]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
					upLeft = prev[i-bytesPerPixel]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG row filter %d", ft)
		}
		out = append(out, row...)
		copy(prev, row)
	}
	return out, nil
}

// applyTIFFPredictor undoes horizontal differencing (predictor 2).
func applyTIFFPredictor(data []byte, colors, bpc, columns int) ([]byte, error) {
	if bpc != 8 {
		return nil, fmt.Errorf("TIFF predictor supports 8 bits per component, got %d", bpc)
	}
	rowLen := colors * columns
	if rowLen <= 0 || len(data)%rowLen != 0 {
		return nil, fmt.Errorf("TIFF predictor data length %d not a multiple of row size %d", len(data), rowLen)
	}
	out := make([]byte, len(data))
	copy(out, data)
	for r := 0; r < len(out); r += rowLen {
		for i := colors; i < rowLen; i++ {
			out[r+i] += out[r+i-colors]
		}
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	pc := int(c)
	pa := int(b) - pc
	pb := int(a) - pc
	pc = abs(pa + pb)
	pa = abs(pa)
	pb = abs(pb)
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func paramInt(params raw.Dictionary, key string, def int) int {
	obj, ok := params.Get(key)
	if !ok {
		return def
	}
	n, ok := obj.(raw.Number)
	if !ok {
		return def
	}
	return int(n.Int())
}
