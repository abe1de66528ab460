package optimize

import (
	"fmt"
	"runtime"
)

// Policy is the immutable configuration for one compression run. The zero
// value is not usable; start from DefaultPolicy or a tier preset.
type Policy struct {
	// Quality is the lossy quality (1-100) for color images.
	Quality int
	// GrayQuality is the lossy quality for single-channel images. Scanned
	// grayscale content tolerates harder compression than color photos, so
	// it gets its own knob.
	GrayQuality int
	// MaxWidth / MaxHeight bound output dimensions in pixels. 0 means no
	// limit. Images within bounds are never upscaled.
	MaxWidth  int
	MaxHeight int
	// MinGainFraction is the minimum relative saving a replacement must
	// achieve before it is applied. Below it the original stream is kept.
	MinGainFraction float64
	// StripMetadata removes the document info dictionary and the catalog's
	// XMP metadata stream.
	StripMetadata bool
	// Workers sizes the decode/encode pool. 0 means GOMAXPROCS.
	Workers int
	// Encoder selects the JPEG encoder backend ("stdlib" or "jpegli").
	Encoder string
	// StrategyOrder overrides the decode strategy priority. Empty means the
	// default order (raw, jpeg, generic).
	StrategyOrder []string
}

// DefaultPolicy mirrors the documented defaults: quality 30, grayscale 40,
// 1200x1200 bound, 10% minimum gain, metadata stripped.
func DefaultPolicy() Policy {
	return Policy{
		Quality:         30,
		GrayQuality:     40,
		MaxWidth:        1200,
		MaxHeight:       1200,
		MinGainFraction: 0.10,
		StripMetadata:   true,
		Encoder:         EncoderStdlib,
	}
}

// Tier is a named quality preset.
type Tier string

const (
	TierHigh     Tier = "high"     // color 60, gray 70
	TierBalanced Tier = "balanced" // color 45, gray 55
	TierCompact  Tier = "compact"  // color 30, gray 40
)

// TierPolicy returns DefaultPolicy with the tier's quality pair applied.
func TierPolicy(t Tier) (Policy, error) {
	p := DefaultPolicy()
	switch t {
	case TierHigh:
		p.Quality, p.GrayQuality = 60, 70
	case TierBalanced:
		p.Quality, p.GrayQuality = 45, 55
	case TierCompact:
		p.Quality, p.GrayQuality = 30, 40
	default:
		return Policy{}, fmt.Errorf("optimize: unknown tier %q", t)
	}
	return p, nil
}

func (p Policy) Validate() error {
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("optimize: quality %d out of range [1,100]", p.Quality)
	}
	if p.GrayQuality != 0 && (p.GrayQuality < 1 || p.GrayQuality > 100) {
		return fmt.Errorf("optimize: grayscale quality %d out of range [1,100]", p.GrayQuality)
	}
	if p.MaxWidth < 0 || p.MaxHeight < 0 {
		return fmt.Errorf("optimize: negative dimension bound")
	}
	if p.MinGainFraction < 0 || p.MinGainFraction >= 1 {
		return fmt.Errorf("optimize: minimum gain fraction %v out of range [0,1)", p.MinGainFraction)
	}
	switch p.Encoder {
	case "", EncoderStdlib, EncoderJpegli, EncoderVips:
	default:
		return fmt.Errorf("optimize: unknown encoder %q", p.Encoder)
	}
	return nil
}

// effectiveGrayQuality falls back to the color quality when unset.
func (p Policy) effectiveGrayQuality() int {
	if p.GrayQuality > 0 {
		return p.GrayQuality
	}
	return p.Quality
}

func (p Policy) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}
