package scraper

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-groceries/config"
	"github.com/aluiziolira/go-scrape-groceries/models"
	"github.com/aluiziolira/go-scrape-groceries/parser"
)

// Scraper fetches a listing page and builds its report.
type Scraper struct {
	cfg       *config.Config
	transport http.RoundTripper
	Metrics   *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	if parsed.Scheme != "file" && parsed.Host == "" {
		return nil, fmt.Errorf("listing url must include a host")
	}

	return &Scraper{
		cfg:       cfg,
		transport: NewTransport(cfg),
		Metrics:   NewMetrics(),
	}, nil
}

// WithTransport sets the transport shared by every Fetcher the scraper builds.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.transport = rt
}

// NewFetcher returns a Fetcher with a fresh session.
func (s *Scraper) NewFetcher() (parser.Fetcher, error) {
	fetcher, err := NewFetcher(s.cfg, s.Metrics, WithTransport(s.transport))
	if err != nil {
		return nil, err
	}
	return fetcher, nil
}

// Run fetches the listing page, follows every product and returns the
// report. Any failure aborts the run with no partial report.
func (s *Scraper) Run() (*models.Report, error) {
	start := time.Now()

	fetcher, err := s.NewFetcher()
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	listing, err := fetcher.Fetch(s.cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("listing: %w", err)
	}

	listingParser, err := parser.NewListingParser(listing.Body, s.NewFetcher)
	if err != nil {
		return nil, fmt.Errorf("listing: %w", err)
	}
	slog.Debug("listing parsed",
		slog.String("url", s.cfg.ListingURL),
		slog.Int("products", len(listingParser.Products())),
	)

	report, err := listingParser.Parse()
	if err != nil {
		return nil, err
	}
	s.Metrics.AddProducts(len(report.Results))

	slog.Info("scrape complete",
		slog.Int("products", len(report.Results)),
		slog.Float64("total", report.Total),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}
