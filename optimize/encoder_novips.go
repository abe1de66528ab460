//go:build !vips

package optimize

import "errors"

func newVipsEncoder() (JPEGEncoder, error) {
	return nil, errors.New("optimize: vips encoder requires building with -tags vips")
}
