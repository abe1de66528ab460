package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"pdfslim/analyze"
	"pdfslim/parser"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input.pdf>",
	Short: "Report where a document's bytes go without modifying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(args[0])
	},
}

func runAnalyze(inPath string) error {
	log := newLogger()
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	ctx := contextForRun()
	doc, err := parser.NewDocumentParser(parser.Config{Logger: log}).Parse(ctx, data)
	if err != nil {
		return err
	}
	report, err := analyze.NewAnalyzer(log).Analyze(ctx, doc)
	if err != nil {
		return err
	}
	fmt.Print(report.Render())
	return nil
}

// contextForRun cancels on interrupt so a long decode pass stops scheduling
// new images instead of fighting Ctrl-C.
func contextForRun() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt)
	return ctx
}
