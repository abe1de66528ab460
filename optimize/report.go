package optimize

import "fmt"

// Action records what happened to one image.
type Action int

const (
	ActionRecompressed Action = iota
	ActionKeptUnsupported
	ActionKeptDecodeFailed
	ActionKeptEncodeFailed
	ActionKeptInsufficientGain
)

func (a Action) String() string {
	switch a {
	case ActionRecompressed:
		return "recompressed"
	case ActionKeptUnsupported:
		return "kept (unsupported encoding)"
	case ActionKeptDecodeFailed:
		return "kept (decode failed)"
	case ActionKeptEncodeFailed:
		return "kept (encode failed)"
	case ActionKeptInsufficientGain:
		return "kept (insufficient gain)"
	}
	return "unknown"
}

// ImageResult is one report line, in document traversal order.
type ImageResult struct {
	Page        int
	Name        string
	Ref         string
	BytesBefore int64
	BytesAfter  int64
	Action      Action
	Reason      string
}

// Report aggregates a whole run. BytesBefore/BytesAfter cover image streams
// only; whole-file savings additionally depend on the writer's stream
// compression pass.
type Report struct {
	Images []ImageResult

	Found            int
	Recompressed     int
	KeptUnsupported  int
	KeptDecodeFailed int
	KeptEncodeFailed int
	KeptSmallGain    int
	LocatorSkipped   int
	MetadataRemoved  int

	BytesBefore int64
	BytesAfter  int64
}

func (r *Report) add(res ImageResult) {
	r.Images = append(r.Images, res)
	r.Found++
	r.BytesBefore += res.BytesBefore
	r.BytesAfter += res.BytesAfter
	switch res.Action {
	case ActionRecompressed:
		r.Recompressed++
	case ActionKeptUnsupported:
		r.KeptUnsupported++
	case ActionKeptDecodeFailed:
		r.KeptDecodeFailed++
	case ActionKeptEncodeFailed:
		r.KeptEncodeFailed++
	case ActionKeptInsufficientGain:
		r.KeptSmallGain++
	}
}

// Reduction returns the image-stream size reduction in percent.
func (r *Report) Reduction() float64 {
	if r.BytesBefore == 0 {
		return 0
	}
	return (1 - float64(r.BytesAfter)/float64(r.BytesBefore)) * 100
}

// Kept returns how many images were left unchanged, for the run summary.
func (r *Report) Kept() int {
	return r.KeptUnsupported + r.KeptDecodeFailed + r.KeptEncodeFailed + r.KeptSmallGain
}

func (r *Report) Summary() string {
	return fmt.Sprintf("%d images found, %d recompressed, %d left unchanged (%.1f%% image data reduction)",
		r.Found, r.Recompressed, r.Kept(), r.Reduction())
}
