package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuanying/epubshelf/internal/config"
	"github.com/yuanying/epubshelf/internal/content"
	"github.com/yuanying/epubshelf/internal/entrypoint"
	"github.com/yuanying/epubshelf/internal/pipeline"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const defaultEnvFile = ".env.local"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epubshelf",
		Short: "Catalogue EPUB books and serve their content",
		Long: `epubshelf scans directories of EPUB books, extracts their metadata and
covers into a catalogue, and serves each book as a single HTML document
with its images inlined.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text, json")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")
	cmd.PersistentFlags().String("env-file", defaultEnvFile, "Dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newServeCmd(),
		newScanCmd(),
		newMetaCmd(),
		newRenderCmd(),
		newImportCmd(),
	)
	return cmd
}

// loadConfig reads the dotenv file named by --env-file and the environment.
func loadConfig(cmd *cobra.Command) *config.Config {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		config.LoadEnvFiles(envFile)
	}
	return config.NewConfig()
}

// readLogger builds the logger from the persistent flags. An explicit
// --log-level wins over fallbackLevel, which comes from the configuration.
func readLogger(cmd *cobra.Command, fallbackLevel string) (*slog.Logger, error) {
	flags := cmd.Flags()
	level, _ := flags.GetString("log-level")
	if !flags.Changed("log-level") && fallbackLevel != "" {
		level = fallbackLevel
	}
	format, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")

	if _, ok := parseLogLevel(level); !ok {
		return nil, fmt.Errorf("invalid --log-level %q: must be one of debug, info, warn, error", level)
	}
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid --log-format %q: must be text or json", format)
	}
	if verbose {
		level = "debug"
	}
	return buildLogger(cmd.ErrOrStderr(), level, format), nil
}

func parseLogLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := parseLogLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newPipeline builds a pipeline for one-shot commands.
func newPipeline(cfg *config.Config, logger *slog.Logger) *pipeline.Pipeline {
	return pipeline.New(pipeline.Options{
		CoversDir:      cfg.Covers.Dir,
		ThumbnailWidth: cfg.Covers.ThumbnailWidth,
		PoolSize:       cfg.Pipeline.PoolSize,
	}, logger)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalogue and book content over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			logger, err := readLogger(cmd, cfg.Log.Level)
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetInt32("port"); cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}
			return entrypoint.Run(cmd.Context(), cfg, version, logger)
		},
	}
	cmd.Flags().Int32P("port", "p", 0, "Listen port (default: PORT or 8080)")
	return cmd
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>",
		Short: "List the EPUB files under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			logger, err := readLogger(cmd, cfg.Log.Level)
			if err != nil {
				return err
			}

			paths, err := newPipeline(cfg, logger).Scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range paths {
				fmt.Fprintln(out, p)
			}
			logger.Info("scan finished", "root", args[0], "found", len(paths))
			return nil
		},
	}
}

// metaOutput is the JSON shape printed by the meta command
type metaOutput struct {
	Title          string   `json:"title"`
	Authors        []string `json:"authors"`
	Publishers     []string `json:"publishers"`
	PublishedDate  string   `json:"published_date,omitempty"`
	ISBN           string   `json:"isbn,omitempty"`
	Language       string   `json:"language,omitempty"`
	Description    string   `json:"description,omitempty"`
	Subjects       []string `json:"subjects,omitempty"`
	FilePath       string   `json:"file_path"`
	CoverHref      string   `json:"cover_href,omitempty"`
	CoverMediaType string   `json:"cover_media_type,omitempty"`
	CoverPath      string   `json:"cover_path,omitempty"`
}

func newMetaOutput(meta *content.BookMetadata) metaOutput {
	out := metaOutput{
		Title:         meta.Title,
		Authors:       meta.Authors,
		Publishers:    meta.Publishers,
		PublishedDate: meta.PublishedDate,
		ISBN:          meta.ISBN,
		Language:      meta.Language,
		Description:   meta.Description,
		Subjects:      meta.Subjects,
		FilePath:      meta.FilePath,
	}
	if meta.Cover != nil {
		out.CoverHref = meta.Cover.Href
		out.CoverMediaType = meta.Cover.MediaType
	}
	return out
}

func newMetaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta <file>",
		Short: "Print the metadata of an EPUB file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			logger, err := readLogger(cmd, cfg.Log.Level)
			if err != nil {
				return err
			}
			p := newPipeline(cfg, logger)

			meta, err := p.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := newMetaOutput(meta)

			if save, _ := cmd.Flags().GetBool("save-cover"); save && meta.Cover != nil {
				out.CoverPath, err = p.StoreCover(cmd.Context(), meta.Cover.Data, meta.Cover.MediaType, meta.Title)
				if err != nil {
					return fmt.Errorf("store cover: %w", err)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().Bool("save-cover", false, "Write the cover image to COVERS_DIR")
	return cmd
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render an EPUB file into a single HTML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			logger, err := readLogger(cmd, cfg.Log.Level)
			if err != nil {
				return err
			}

			html, err := newPipeline(cfg, logger).Render(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			outputPath, _ := cmd.Flags().GetString("output")
			if outputPath == "" || outputPath == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), html)
				return err
			}
			if err := os.WriteFile(outputPath, []byte(html), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			logger.Info("rendered", "input", args[0], "output", outputPath, "bytes", len(html))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import every EPUB under a directory into the catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			logger, err := readLogger(cmd, cfg.Log.Level)
			if err != nil {
				return err
			}
			// one-shot: import inline, no background workers
			cfg.Tasks.Enabled = false
			cfg.Library.ScanEnabled = false

			app, err := entrypoint.NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			force, _ := cmd.Flags().GetBool("force")
			res, err := app.Importer.ImportLibrary(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().Bool("force", false, "Re-import books already in the catalogue")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
