package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/aluiziolira/go-scrape-catalog/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	phase := flag.String("phase", pipeline.PhaseAll, "Phase to run: all, listing, aggregate, merge, or export")
	baseURL := flag.String("base-url", cfg.BaseURL, "Store base URL")
	category := flag.String("category", cfg.CategoryID, "Catalog category id")
	pageSize := flag.Int("page-size", cfg.PageSize, "Products per listing page")
	filters := flag.String("filters", strings.Join(cfg.FilterParams, ","), "Comma separated filterParams tokens")
	timeoutMs := flag.Int("timeout", int(cfg.Timeout/time.Millisecond), "Request timeout (milliseconds)")
	maxRetries := flag.Int("max-retries", cfg.MaxRetries, "Retry attempts for transient errors (0 disables retry)")
	retryBackoffMs := flag.Int("retry-backoff", int(cfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(cfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	userAgent := flag.String("user-agent", cfg.UserAgent, "User-Agent sent when the session file has none")
	referer := flag.String("referer", cfg.Referer, "Referer sent when the session file has none (empty uses the base URL)")
	sessionFile := flag.String("session", cfg.SessionFile, "JSON file with session headers and cookies")
	outputDir := flag.String("output-dir", cfg.OutputDir, "Directory for phase files and exports")
	outputFormat := flag.String("format", cfg.OutputFormat, "Export format: xlsx, csv, or dual")
	missingPrice := flag.String("missing-price", cfg.MissingPrice, "Products without a price: fail or skip")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "Also export rows to Postgres")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg.BaseURL = *baseURL
	cfg.CategoryID = *category
	cfg.PageSize = *pageSize
	cfg.FilterParams = splitList(*filters)
	cfg.Timeout = time.Duration(*timeoutMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.UserAgent = *userAgent
	cfg.Referer = *referer
	cfg.SessionFile = *sessionFile
	cfg.OutputDir = *outputDir
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MissingPrice = strings.ToLower(*missingPrice)
	cfg.PostgresDSN = *postgresDSN
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if cfg.SessionFile != "" {
		if err := config.LoadSession(cfg, cfg.SessionFile); err != nil {
			slog.Error("loading session", slog.Any("error", err))
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting run",
		slog.String("phase", *phase),
		slog.String("base_url", cfg.BaseURL),
		slog.String("category", cfg.CategoryID),
		slog.String("output_dir", cfg.OutputDir),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, aborting current phase")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
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

	st := store.New(cfg.OutputDir)
	runner := pipeline.NewRunner(cfg, s, st, func(ctx context.Context) (pipeline.OutputWriter, error) {
		return pipeline.NewOutputWriter(ctx, cfg, st)
	})

	runErr := runner.Run(ctx, *phase)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	result := runner.Result
	if client, ok := s.API().(*scraper.Client); ok {
		stats := client.Stats()
		result.RequestCount = stats.Requests
		result.RetryCount = stats.Retries
		result.ErrorsByType = stats.ErrorsByType
	}

	if runErr != nil {
		slog.Error("run failed", slog.String("phase", *phase), slog.Any("error", runErr))
		printSummary(&result, s.Duplicates(), cfg.OutputDir)
		os.Exit(1)
	}
	printSummary(&result, s.Duplicates(), cfg.OutputDir)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printSummary(result *models.RunResult, duplicates int, outputDir string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Run complete")

	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Products:      %d\n", result.ProductCount)
	if result.PriceCount > 0 {
		fmt.Printf("  Prices:        %d\n", result.PriceCount)
	}
	if result.RowCount > 0 {
		fmt.Printf("  Rows exported: %d\n", result.RowCount)
	}
	if len(result.SkippedProducts) > 0 {
		fmt.Printf("  Skipped:       %d %v\n", len(result.SkippedProducts), result.SkippedProducts)
	}
	if duplicates > 0 {
		fmt.Printf("  Duplicate ids: %d\n", duplicates)
	}
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("  Output dir:    %s\n", outputDir)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
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
