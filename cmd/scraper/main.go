package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-groceries/config"
	"github.com/aluiziolira/go-scrape-groceries/models"
	"github.com/aluiziolira/go-scrape-groceries/output"
	"github.com/aluiziolira/go-scrape-groceries/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaultCfg := config.DefaultConfig()
	urlDefault := defaultCfg.ListingURL
	if value, ok := config.EnvString("SCRAPER_URL"); ok {
		urlDefault = value
	}
	formatDefault := defaultCfg.OutputFormat
	if value, ok := config.EnvString("SCRAPER_FORMAT"); ok {
		formatDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	maxBodyDefault := defaultCfg.MaxBodySize
	if value, ok, err := config.EnvInt("SCRAPER_MAX_BODY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_MAX_BODY: %v\n", err)
		os.Exit(1)
	} else if ok {
		maxBodyDefault = value
	}

	listingURL := flag.String("url", urlDefault, "Listing page URL (http, https or file)")
	outputFormat := flag.String("format", formatDefault, "Output format: json or csv")
	userAgent := flag.String("user-agent", defaultCfg.UserAgent, "User-Agent header sent with every request")
	timeoutMs := flag.Int("timeout", 0, "Request timeout in milliseconds (0 keeps the client default)")
	maxBody := flag.Int("max-body", maxBodyDefault, "Maximum body bytes read per page (0 reads everything)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.ListingURL = *listingURL
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.UserAgent = *userAgent
	cfg.Timeout = time.Duration(*timeoutMs) * time.Millisecond
	cfg.MaxBodySize = *maxBody
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := output.NewWriter(cfg.OutputFormat, os.Stdout)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting scrape", slog.String("url", cfg.ListingURL))

	startTime := time.Now()
	report, err := s.Run()
	shutdownMetrics(metricsServer)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Write(report); err != nil {
		slog.Error("writing report", slog.Any("error", err))
		os.Exit(1)
	}

	printSummary(report, time.Since(startTime), cfg.ListingURL)
}

func shutdownMetrics(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(report *models.Report, duration time.Duration, listingURL string) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(os.Stderr, "\n"+separator)
	fmt.Fprintln(os.Stderr, "Scrape complete")
	fmt.Fprintf(os.Stderr, "  Listing:       %s\n", listingURL)
	fmt.Fprintf(os.Stderr, "  Products:      %d\n", len(report.Results))
	fmt.Fprintf(os.Stderr, "  Total:         %.2f\n", report.Total)
	fmt.Fprintf(os.Stderr, "  Duration:      %v\n", duration)
	fmt.Fprintln(os.Stderr, separator)
}

// newLogger writes to stderr so the report on stdout stays machine readable.
func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
