package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
	"github.com/JakeFAU/sitechat-crawler/internal/ingest"
)

type crawlFlags struct {
	maxPages        int
	maxDepth        int
	includeExternal bool
	timeout         time.Duration
}

// crawlSummary is printed to stdout when a crawl succeeds.
type crawlSummary struct {
	WebsiteID  string             `json:"websiteId"`
	URL        string             `json:"url"`
	Title      string             `json:"title"`
	PagesCount int                `json:"pagesCount"`
	Stats      crawler.CrawlStats `json:"stats"`
	ArchiveURI string             `json:"archiveUri,omitempty"`
}

// newCrawlCmd runs one crawl from the command line and stores the website
// in the configured store.
func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a website once and store its pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := appInstance.Crawl(cmd.Context(), ingest.Request{
				URL:                  args[0],
				MaxPages:             flags.maxPages,
				MaxDepth:             flags.maxDepth,
				IncludeExternalLinks: flags.includeExternal,
				Timeout:              flags.timeout,
			})
			if err != nil {
				return fmt.Errorf("crawl %s: %w", args[0], err)
			}
			appInstance.Logger().Info("crawl command finished",
				zap.String("url", result.Website.URL),
				zap.Int("pages", len(result.Pages)),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(crawlSummary{
				WebsiteID:  result.Website.ID.String(),
				URL:        result.Website.URL,
				Title:      result.Website.Title,
				PagesCount: len(result.Pages),
				Stats:      result.Stats,
				ArchiveURI: result.ArchiveURI,
			})
		},
	}
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 0, "page cap (0 uses the configured default, capped at 100)")
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", 0, "link depth bound (0 uses the configured default, capped at 5)")
	cmd.Flags().BoolVar(&flags.includeExternal, "include-external", false, "follow links to other hosts")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-page fetch timeout (0 uses the configured default)")
	return cmd
}
