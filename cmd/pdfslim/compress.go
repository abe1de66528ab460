package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pdfslim/metadata"
	"pdfslim/observability"
	"pdfslim/optimize"
	"pdfslim/parser"
	"pdfslim/writer"
)

var (
	compressOutput      string
	compressQuality     int
	compressGrayQuality int
	compressMaxWidth    int
	compressMaxHeight   int
	compressTier        string
	compressEncoder     string
	compressKeepMeta    bool
	compressWorkers     int
	compressMinGain     float64
	compressKeepStreams bool
)

var compressCmd = &cobra.Command{
	Use:   "compress <input.pdf>",
	Short: "Recompress embedded images and rewrite the document",
	Long: `Decodes every embedded raster image, re-encodes it as JPEG at the
requested quality, downscales oversized images, and rewrites the document.
Images that cannot be decoded, or whose replacement saves too little, are
kept byte-for-byte unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(args[0])
	},
}

func init() {
	f := compressCmd.Flags()
	f.StringVarP(&compressOutput, "output", "o", "", "Output file (default: <input>_compressed.pdf)")
	f.IntVarP(&compressQuality, "quality", "q", 0, "JPEG quality for color images (1-100)")
	f.IntVar(&compressGrayQuality, "gray-quality", 0, "JPEG quality for grayscale images (1-100)")
	f.IntVar(&compressMaxWidth, "max-width", 0, "Maximum output image width in pixels")
	f.IntVar(&compressMaxHeight, "max-height", 0, "Maximum output image height in pixels")
	f.StringVar(&compressTier, "tier", "", "Quality preset: high, balanced or compact")
	f.StringVar(&compressEncoder, "encoder", "", "JPEG encoder backend: stdlib, jpegli or vips")
	f.BoolVar(&compressKeepMeta, "keep-metadata", false, "Keep document info and XMP metadata")
	f.IntVar(&compressWorkers, "workers", 0, "Decode/encode worker count (default: CPU count)")
	f.Float64Var(&compressMinGain, "min-gain", -1, "Minimum relative saving to apply a replacement (0-1)")
	f.BoolVar(&compressKeepStreams, "no-stream-compress", false, "Do not deflate uncompressed non-image streams")
}

func buildPolicy() (optimize.Policy, error) {
	policy := optimize.DefaultPolicy()
	if compressTier != "" {
		var err error
		policy, err = optimize.TierPolicy(optimize.Tier(compressTier))
		if err != nil {
			return optimize.Policy{}, err
		}
	}
	// Explicit flags override the tier preset.
	if compressQuality > 0 {
		policy.Quality = compressQuality
	}
	if compressGrayQuality > 0 {
		policy.GrayQuality = compressGrayQuality
	}
	if compressMaxWidth > 0 {
		policy.MaxWidth = compressMaxWidth
	}
	if compressMaxHeight > 0 {
		policy.MaxHeight = compressMaxHeight
	}
	if compressMinGain >= 0 {
		policy.MinGainFraction = compressMinGain
	}
	if compressEncoder != "" {
		policy.Encoder = compressEncoder
	}
	policy.Workers = compressWorkers
	policy.StripMetadata = !compressKeepMeta
	return policy, policy.Validate()
}

func runCompress(inPath string) error {
	policy, err := buildPolicy()
	if err != nil {
		return err
	}
	log := newLogger()

	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	ctx := contextForRun()

	start := time.Now()
	doc, err := parser.NewDocumentParser(parser.Config{Logger: log}).Parse(ctx, data)
	if err != nil {
		return err
	}
	log.Debug("parsed document", observability.Int64(observability.MetricParseTime, time.Since(start).Milliseconds()))

	pipeline, err := optimize.NewPipeline(policy, log)
	if err != nil {
		return err
	}
	report, err := pipeline.Run(ctx, doc)
	if err != nil {
		return err
	}
	if policy.StripMetadata {
		report.MetadataRemoved = metadata.NewStripper(doc, log).Strip()
	}

	outPath := compressOutput
	if outPath == "" {
		outPath = defaultOutputPath(inPath)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	writeStart := time.Now()
	werr := writer.NewWriter().Write(ctx, doc, out, writer.Config{CompressStreams: !compressKeepStreams})
	if cerr := out.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(outPath)
		return werr
	}
	log.Debug("wrote document", observability.Int64(observability.MetricWriteTime, time.Since(writeStart).Milliseconds()))

	if !flagQuiet {
		printReport(report)
	}
	inSize := int64(len(data))
	outInfo, err := os.Stat(outPath)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d bytes -> %d bytes (%.1f%% smaller)\n",
		outPath, inSize, outInfo.Size(), (1-float64(outInfo.Size())/float64(inSize))*100)
	return nil
}

func printReport(report *optimize.Report) {
	for _, img := range report.Images {
		line := fmt.Sprintf("page %d %s: %s", img.Page+1, img.Name, img.Action)
		if img.Action == optimize.ActionRecompressed {
			line += fmt.Sprintf(", %d -> %d bytes", img.BytesBefore, img.BytesAfter)
		} else if img.Reason != "" {
			line += ": " + img.Reason
		}
		fmt.Println(line)
	}
	if report.MetadataRemoved > 0 {
		fmt.Printf("removed %d metadata entries\n", report.MetadataRemoved)
	}
	fmt.Println(report.Summary())
}

func defaultOutputPath(inPath string) string {
	if strings.HasSuffix(strings.ToLower(inPath), ".pdf") {
		return inPath[:len(inPath)-4] + "_compressed.pdf"
	}
	return inPath + "_compressed.pdf"
}
