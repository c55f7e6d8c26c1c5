package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/documents"
	"github.com/Epistemic-Technology/study-mcp/internal/llm"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
	"github.com/Epistemic-Technology/study-mcp/internal/operations"
	"github.com/Epistemic-Technology/study-mcp/internal/pdf"
	"github.com/Epistemic-Technology/study-mcp/internal/render"
	"github.com/Epistemic-Technology/study-mcp/internal/study"
)

var (
	outputPath string
	htmlPath   string
	title      string
	logLevel   string
	targets    string
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize <file.pdf>",
	Short: "Synthesize a study guide from a local PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.NewLogger(logger.LogConfig{Output: "stderr", Level: logLevel, Format: "console"})
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if targets != "" {
			cfg.SynthesisTargets = targets
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		if err := documents.RequirePDF(data); err != nil {
			return err
		}

		pages, err := pdf.ExtractPages(data, pdf.Options{MaxImageWidth: cfg.MaxImageWidth}, log)
		if err != nil {
			return err
		}

		docTitle := title
		if docTitle == "" {
			docTitle = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		result, err := study.Run(cmd.Context(), llm.NewOpenAIClient(cfg, log), cfg, log, study.Input{Title: docTitle, Pages: pages})
		if err != nil {
			return err
		}

		if err := writeOutput(cmd.OutOrStdout(), outputPath, result.Markdown); err != nil {
			return err
		}

		if htmlPath != "" {
			images := make(map[string][]byte)
			for _, img := range operations.ReferencedImages(result.Markdown, pages) {
				images[img.StorageName] = img.Bytes
			}
			html, err := render.HTML(result.Markdown, render.Options{
				Title:           docTitle,
				DiagramLanguage: cfg.DiagramLanguage,
				Images:          images,
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(htmlPath, []byte(html), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", htmlPath, err)
			}
		}

		for _, w := range result.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d pages, %d sections, %d input / %d output tokens, cost $%.4f\n",
			len(pages), len(result.Sections), result.InputTokens, result.OutputTokens, result.Cost)
		return nil
	},
}

func writeOutput(stdout io.Writer, path, markdown string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, markdown)
		return err
	}
	if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func init() {
	synthesizeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write markdown to this file instead of stdout")
	synthesizeCmd.Flags().StringVar(&htmlPath, "html", "", "Also write a standalone HTML rendering to this file")
	synthesizeCmd.Flags().StringVarP(&title, "title", "t", "", "Study guide title (default: file name)")
	synthesizeCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	synthesizeCmd.Flags().StringVar(&targets, "targets", "", "Synthesis targets: top-level or leaves (default from config)")

	rootCmd.AddCommand(synthesizeCmd)
}
