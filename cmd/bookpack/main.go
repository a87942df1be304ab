package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/bookpack/internal/book"
	"github.com/yuanying/bookpack/internal/codec"
)

const (
	defaultJPEGQuality = 85
	defaultWorkers     = 4
)

// commonOptions are shared by every subcommand.
type commonOptions struct {
	Logger  *slog.Logger
	Workers int
}

type encodeOptions struct {
	commonOptions
	InputPath     string
	OutputPath    string
	Mode          book.LayoutMode
	MaxImageWidth int
	JPEGQuality   int
}

type decodeOptions struct {
	commonOptions
	InputPath string
	OutputDir string
	Strict    bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bookpack",
		Short: "Convert between book descriptions and EPUB packages",
		Long: `bookpack encodes a book description (YAML or JSON plus page files)
into an EPUB 3 package, and decodes EPUB packages back into the same
description format.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "Log format: text, json")
	root.PersistentFlags().BoolP("verbose", "v", false, "Shorthand for --log-level debug")
	root.PersistentFlags().Int("workers", defaultWorkers, "Concurrent workers for page and resource processing")

	root.AddCommand(newEncodeCmd(), newDecodeCmd(), newInspectCmd())
	return root
}

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode <book.yaml>",
		Short: "Encode a book description into an EPUB package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readEncodeOptions(cmd, args)
			if err != nil {
				return err
			}
			return runEncode(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file path (default: input with .epub extension)")
	cmd.Flags().String("layout", "", "Layout mode: reflow or fixed (default: from the description)")
	cmd.Flags().Int("max-image-width", 0, "Downscale embedded images wider than this many pixels (0 keeps them as-is)")
	cmd.Flags().Int("quality", defaultJPEGQuality, "JPEG quality for downscaled images (1-100)")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <book.epub>",
		Short: "Decode an EPUB package into a book description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readDecodeOptions(cmd, args)
			if err != nil {
				return err
			}
			return runDecode(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output directory (default: input without extension)")
	cmd.Flags().Bool("strict", false, "Fail when the package decodes with warnings")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <book.epub>",
		Short: "Print the metadata, pages and warnings of an EPUB package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			common, err := readCommonOptions(cmd)
			if err != nil {
				return err
			}
			return runInspect(cmd.Context(), common, args[0], cmd.OutOrStdout())
		},
	}
}

func readCommonOptions(cmd *cobra.Command) (commonOptions, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	verbose, _ := cmd.Flags().GetBool("verbose")
	workers, _ := cmd.Flags().GetInt("workers")

	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return commonOptions{}, fmt.Errorf("--log-level must be one of debug, info, warn, error: %q", level)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "text" && format != "json" {
		return commonOptions{}, fmt.Errorf("--log-format must be text or json: %q", format)
	}
	if workers < 1 {
		return commonOptions{}, fmt.Errorf("--workers must be at least 1: %d", workers)
	}
	if verbose {
		level = "debug"
	}

	return commonOptions{
		Logger:  buildLogger(cmd.ErrOrStderr(), level, format),
		Workers: workers,
	}, nil
}

func readEncodeOptions(cmd *cobra.Command, args []string) (encodeOptions, error) {
	common, err := readCommonOptions(cmd)
	if err != nil {
		return encodeOptions{}, err
	}

	output, _ := cmd.Flags().GetString("output")
	layout, _ := cmd.Flags().GetString("layout")
	maxWidth, _ := cmd.Flags().GetInt("max-image-width")
	quality, _ := cmd.Flags().GetInt("quality")

	var mode book.LayoutMode
	if layout != "" {
		mode, err = book.ParseLayoutMode(layout)
		if err != nil {
			return encodeOptions{}, fmt.Errorf("--layout: %w", err)
		}
	}
	if maxWidth < 0 {
		return encodeOptions{}, fmt.Errorf("--max-image-width must not be negative: %d", maxWidth)
	}
	if quality < 1 || quality > 100 {
		return encodeOptions{}, fmt.Errorf("--quality must be between 1 and 100: %d", quality)
	}
	if output == "" {
		output = defaultOutputPath(args[0], ".epub")
	}

	return encodeOptions{
		commonOptions: common,
		InputPath:     args[0],
		OutputPath:    output,
		Mode:          mode,
		MaxImageWidth: maxWidth,
		JPEGQuality:   quality,
	}, nil
}

func readDecodeOptions(cmd *cobra.Command, args []string) (decodeOptions, error) {
	common, err := readCommonOptions(cmd)
	if err != nil {
		return decodeOptions{}, err
	}

	output, _ := cmd.Flags().GetString("output")
	strict, _ := cmd.Flags().GetBool("strict")
	if output == "" {
		output = defaultOutputPath(args[0], "")
	}

	return decodeOptions{
		commonOptions: common,
		InputPath:     args[0],
		OutputDir:     output,
		Strict:        strict,
	}, nil
}

// buildLogger creates a slog.Logger writing to w. Unknown levels fall back to
// info; format is case-insensitive.
func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// defaultOutputPath replaces the input's extension with ext.
func defaultOutputPath(inputPath, ext string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ext
}

func runEncode(ctx context.Context, opts encodeOptions) error {
	logger := opts.Logger
	logger.Info("encoding", "input", opts.InputPath, "output", opts.OutputPath)

	b, pages, err := book.LoadDescription(opts.InputPath)
	if err != nil {
		return err
	}

	encOpts := codec.EncoderOptions{Workers: opts.Workers, Logger: logger}
	if opts.MaxImageWidth > 0 {
		encOpts.Images = codec.NewImageOptimizer(opts.MaxImageWidth, opts.JPEGQuality)
	}
	enc := codec.NewEncoder(encOpts)

	var buf bytes.Buffer
	if err := enc.EncodeTo(ctx, &buf, b, pages, opts.Mode); err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	logger.Info("done", "output", opts.OutputPath, "pages", len(pages), "bytes", buf.Len())
	return nil
}

func decodeFile(ctx context.Context, common commonOptions, inputPath string) (*codec.Result, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read EPUB: %w", err)
	}
	dec := codec.NewDecoder(codec.DecoderOptions{Workers: common.Workers, Logger: common.Logger})
	res, err := dec.DecodeBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return res, nil
}

func runDecode(ctx context.Context, opts decodeOptions) error {
	logger := opts.Logger
	logger.Info("decoding", "input", opts.InputPath, "output", opts.OutputDir)

	res, err := decodeFile(ctx, opts.commonOptions, opts.InputPath)
	if err != nil {
		return err
	}
	if opts.Strict && len(res.Warnings) > 0 {
		return fmt.Errorf("package decoded with %d warnings (strict mode)", len(res.Warnings))
	}

	if err := book.SaveDescription(opts.OutputDir, &res.Book, res.Pages); err != nil {
		return err
	}

	if len(res.Warnings) > 0 {
		logger.Warn("imported with issues", "warnings", len(res.Warnings))
	}
	logger.Info("done", "output", opts.OutputDir, "pages", len(res.Pages), "assets", res.Assets.Len())
	return nil
}

func runInspect(ctx context.Context, common commonOptions, inputPath string, out io.Writer) error {
	res, err := decodeFile(ctx, common, inputPath)
	if err != nil {
		return err
	}

	b := res.Book
	fmt.Fprintf(out, "Title:      %s\n", b.Title)
	fmt.Fprintf(out, "Author:     %s\n", b.Author)
	fmt.Fprintf(out, "Identifier: %s\n", b.ID)
	fmt.Fprintf(out, "Layout:     %s", b.LayoutMode)
	if b.PageSize != nil {
		fmt.Fprintf(out, " (%dx%d%s)", b.PageSize.Width, b.PageSize.Height, b.PageSize.Unit)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "\nPages (%d):\n", len(res.Pages))
	for _, p := range res.Pages {
		fmt.Fprintf(out, "  %3d  %-30s %6d bytes\n", p.PageNumber, p.Name, len(p.Content))
	}

	fmt.Fprintf(out, "\nAssets (%d):\n", res.Assets.Len())
	for _, a := range res.Assets.All() {
		marker := ""
		if a.Key == res.Cover {
			marker = " [cover]"
		}
		fmt.Fprintf(out, "  %s  %s  %dx%d%s\n", a.Key, a.MediaType, a.Width, a.Height, marker)
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintf(out, "\nWarnings (%d):\n", len(res.Warnings))
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "  %s\n", w)
		}
	}
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
