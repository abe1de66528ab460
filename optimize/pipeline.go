package optimize

import (
	"context"
	"sync"

	"pdfslim/ir/raw"
	"pdfslim/observability"
)

// Pipeline runs the full per-image chain: locate, sniff, decode, recompress,
// rewrite. Decode and encode are CPU-bound and fan out across a worker pool;
// rewrites mutate the shared document and are applied serially by the
// coordinating goroutine, in traversal order.
type Pipeline struct {
	policy       Policy
	log          observability.Logger
	decoder      *Decoder
	recompressor *Recompressor
}

func NewPipeline(policy Policy, log observability.Logger) (*Pipeline, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = observability.NopLogger{}
	}
	decoder, err := NewDecoder(policy, log)
	if err != nil {
		return nil, err
	}
	recompressor, err := NewRecompressor(policy)
	if err != nil {
		return nil, err
	}
	return &Pipeline{policy: policy, log: log, decoder: decoder, recompressor: recompressor}, nil
}

type outcome struct {
	idx    int
	rep    *EncodedReplacement
	action Action
	reason string
	before int64
}

// Run processes every image in the document and returns the run report.
// Per-image failures are recorded, never propagated; only context
// cancellation aborts the run.
func (p *Pipeline) Run(ctx context.Context, doc *raw.Document) (*Report, error) {
	locator := NewLocator(doc, p.log)
	images := locator.Locate()
	sniffer := NewSniffer(doc)
	for _, img := range images {
		sniffer.Sniff(ctx, img)
	}
	p.log.Info("located images", observability.Int(observability.MetricImagesFound, len(images)))

	outcomes := make([]outcome, len(images))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.policy.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = p.process(ctx, idx, images[idx])
			}
		}()
	}

scheduling:
	for idx := range images {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			// Stop scheduling; whatever is in flight runs to completion.
			break scheduling
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Single-writer discipline: all mutation happens here, in order.
	rewriter := NewRewriter(doc)
	report := &Report{LocatorSkipped: locator.Skipped()}
	for idx, img := range images {
		o := outcomes[idx]
		res := ImageResult{
			Page:        img.Page,
			Name:        img.Name,
			Ref:         img.Ref.String(),
			BytesBefore: o.before,
			BytesAfter:  o.before,
			Action:      o.action,
			Reason:      o.reason,
		}
		if o.action == ActionRecompressed {
			if err := rewriter.Apply(img, o.rep); err != nil {
				res.Action = ActionKeptEncodeFailed
				res.Reason = err.Error()
			} else {
				res.BytesAfter = int64(len(o.rep.Data))
			}
		}
		report.add(res)
	}
	p.log.Info("pipeline finished",
		observability.Int(observability.MetricImagesRewritten, report.Recompressed),
		observability.Int64(observability.MetricBytesBefore, report.BytesBefore),
		observability.Int64(observability.MetricBytesAfter, report.BytesAfter))
	return report, nil
}

// process runs the read-only stages for one image.
func (p *Pipeline) process(ctx context.Context, idx int, img *ImageResource) outcome {
	o := outcome{idx: idx, before: img.Stream.Length()}

	if img.Class == ClassUnsupported {
		o.action = ActionKeptUnsupported
		o.reason = ErrUnsupported.Error()
		return o
	}

	raster, err := p.decoder.Decode(ctx, img)
	if err != nil {
		o.action = ActionKeptDecodeFailed
		o.reason = err.Error()
		return o
	}

	rep, err := p.recompressor.Recompress(ctx, raster)
	if err != nil {
		o.action = ActionKeptEncodeFailed
		o.reason = err.Error()
		return o
	}

	// Replacing a stream is only worth it when it actually saves space.
	if o.before > 0 {
		gain := 1 - float64(len(rep.Data))/float64(o.before)
		if gain < p.policy.MinGainFraction {
			o.action = ActionKeptInsufficientGain
			o.reason = ErrInsufficientGain.Error()
			return o
		}
	}

	o.action = ActionRecompressed
	o.rep = rep
	return o
}
