// Command pagesift serves the scrape API or runs one scrape from the shell.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/pagesift/browser"
	"github.com/use-agent/pagesift/config"
	"github.com/use-agent/pagesift/extract"
	"github.com/use-agent/pagesift/scraper"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pagesift",
	Short: "Render web pages in a real browser and extract structured views",
	Long: `pagesift loads a page in a stealth-configured Chromium, gets past common
bot challenges and cookie overlays, and returns metadata, links, images,
headings, text, prices, tables and a readable Markdown body.

Examples:
  # Run the HTTP API
  pagesift serve

  # Scrape one page and print the JSON result
  pagesift scrape https://example.com --extractors links,headings`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override PAGESIFT_LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override PAGESIFT_LOG_FORMAT (json, text)")

	rootCmd.AddCommand(serveCmd, scrapeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the global flag overrides.
func loadConfig() *config.Config {
	cfg := config.Load()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg
}

// newScraper wires the engine from configuration.
func newScraper(cfg *config.Config) *scraper.Scraper {
	return scraper.New(
		browser.NewRodLauncher(cfg.Browser),
		extract.NewPipeline(),
		cfg.Scraper,
		cfg.Browser.BlockMedia,
	)
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
