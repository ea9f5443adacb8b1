package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/pagesift/models"
)

var (
	scrapeExtractors []string
	scrapeWaitFor    int
	scrapeFullHTML   bool
	scrapeScreenshot bool
	scrapeFields     []string
	scrapeCompact    bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape one page and print the result as JSON",
	Long: `Scrape one page with a fresh browser session and print the result JSON
to stdout. Logs go to stderr.

Examples:
  pagesift scrape https://example.com
  pagesift scrape https://shop.example/item --extractors prices,images --fields url,prices`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	f := scrapeCmd.Flags()
	f.StringSliceVarP(&scrapeExtractors, "extractors", "e", nil,
		"extractors to run: "+strings.Join(models.AllExtractors, ", ")+" (default all)")
	f.IntVarP(&scrapeWaitFor, "wait-for", "w", models.DefaultWaitFor, "extra render time in ms after challenge handling")
	f.BoolVar(&scrapeFullHTML, "full-html", false, "include the raw captured HTML")
	f.BoolVar(&scrapeScreenshot, "screenshot", false, "include a viewport PNG as a data URI")
	f.StringSliceVar(&scrapeFields, "fields", nil, "only print these top-level result keys")
	f.BoolVar(&scrapeCompact, "compact", false, "print JSON on one line")
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	initLogger(cfg.Log, os.Stderr)

	wait := scrapeWaitFor
	req := &models.ScrapeRequest{
		URL:        args[0],
		WaitFor:    &wait,
		Extractors: scrapeExtractors,
		FullHTML:   scrapeFullHTML,
		Screenshot: scrapeScreenshot,
	}
	req.Defaults()
	if err := req.Validate(); err != nil {
		for _, fe := range models.FieldErrors(err) {
			fmt.Fprintf(os.Stderr, "invalid %s: %s\n", fe.Field, fe.Message)
		}
		return fmt.Errorf("invalid request")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := newScraper(cfg).Scrape(ctx, req)
	if err != nil {
		return err
	}

	out := models.PickFields(result, scrapeFields)

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !scrapeCompact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
