package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdfslim/observability"
)

var (
	flagVerbose bool
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:           "pdfslim",
	Short:         "Reduce PDF file size by recompressing embedded images",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log pipeline details to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Suppress per-image output")
	rootCmd.AddCommand(compressCmd, analyzeCmd)
}

func newLogger() observability.Logger {
	if !flagVerbose {
		return observability.NopLogger{}
	}
	return observability.NewWriterLogger(os.Stderr, observability.LevelDebug)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pdfslim: %v\n", err)
		os.Exit(1)
	}
}
