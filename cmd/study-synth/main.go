package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "study-synth",
	Short: "Synthesize study guides from PDFs",
	Long: `study-synth turns a PDF into a single study guide: it describes the
document's images, organizes its pages into an outline, writes one section per
outline entry with review questions, glossary and pitfalls, and merges the
result into markdown with a concept diagram.

Configuration comes from the environment (and .env), optionally overlaid by the
YAML file named in STUDY_CONFIG_FILE.`,
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
