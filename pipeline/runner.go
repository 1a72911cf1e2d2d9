package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/store"
)

// Phases accepted by Runner.Run.
const (
	PhaseAll       = "all"
	PhaseListing   = "listing"
	PhaseAggregate = "aggregate"
	PhaseMerge     = "merge"
	PhaseExport    = "export"
)

// Fetcher performs the network phases.
type Fetcher interface {
	FetchListing(ctx context.Context) (models.ProductIDs, error)
	FetchDetailsAndPrices(ctx context.Context, ids models.ProductIDs) ([]models.DetailPage, models.Prices, error)
}

// WriterFactory opens the export destination.
type WriterFactory func(ctx context.Context) (OutputWriter, error)

// Runner owns one scraping run. Each phase reads the previous phase's file
// and writes its own only after it has fully succeeded.
type Runner struct {
	cfg       *config.Config
	fetcher   Fetcher
	store     *store.Store
	newWriter WriterFactory

	Result models.RunResult
}

// NewRunner wires a run. newWriter may be nil when the export phase is not used.
func NewRunner(cfg *config.Config, fetcher Fetcher, st *store.Store, newWriter WriterFactory) *Runner {
	return &Runner{
		cfg:       cfg,
		fetcher:   fetcher,
		store:     st,
		newWriter: newWriter,
		Result:    models.RunResult{ErrorsByType: map[string]int{}},
	}
}

// Run executes phase, or every phase in order for PhaseAll.
func (r *Runner) Run(ctx context.Context, phase string) error {
	r.Result.StartTime = time.Now()
	defer func() { r.Result.EndTime = time.Now() }()

	switch phase {
	case PhaseAll:
		return r.RunAll(ctx)
	case PhaseListing:
		return r.RunListing(ctx)
	case PhaseAggregate:
		return r.RunAggregate(ctx)
	case PhaseMerge:
		return r.RunMerge(ctx)
	case PhaseExport:
		return r.RunExport(ctx)
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
}

// RunAll runs every phase in order, stopping at the first failure.
func (r *Runner) RunAll(ctx context.Context) error {
	for _, step := range []func(context.Context) error{r.RunListing, r.RunAggregate, r.RunMerge, r.RunExport} {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunListing collects product ids per page and writes product_ids.json.
func (r *Runner) RunListing(ctx context.Context) error {
	slog.Info("phase started", slog.String("phase", PhaseListing), slog.String("category", r.cfg.CategoryID))

	ids, err := r.fetcher.FetchListing(ctx)
	if err != nil {
		slog.Error("listing aborted, no files written", slog.Any("error", err))
		return fmt.Errorf("listing: %w", err)
	}
	if err := r.store.SaveProductIDs(ids); err != nil {
		return fmt.Errorf("listing: %w", err)
	}

	r.Result.PageCount = len(ids)
	r.Result.ProductCount = ids.Total()
	slog.Info("phase done",
		slog.String("phase", PhaseListing),
		slog.Int("pages", len(ids)),
		slog.Int("products", ids.Total()),
		slog.String("file", r.store.Path(store.ProductIDsFile)),
	)
	return nil
}

// RunAggregate fetches details and prices for every page and writes
// product_description.json and product_prices.json.
func (r *Runner) RunAggregate(ctx context.Context) error {
	ids, err := r.store.LoadProductIDs()
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	slog.Info("phase started", slog.String("phase", PhaseAggregate), slog.Int("pages", len(ids)))

	pages, prices, err := r.fetcher.FetchDetailsAndPrices(ctx, ids)
	if err != nil {
		slog.Error("aggregation aborted, no files written", slog.Any("error", err))
		return fmt.Errorf("aggregate: %w", err)
	}
	if err := r.store.SaveDetails(pages); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	if err := r.store.SavePrices(prices); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	r.Result.PageCount = len(pages)
	r.Result.PriceCount = len(prices)
	slog.Info("phase done",
		slog.String("phase", PhaseAggregate),
		slog.Int("pages", len(pages)),
		slog.Int("prices", len(prices)),
	)
	return nil
}

// RunMerge injects prices and links into the stored details and writes result.json.
func (r *Runner) RunMerge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	pages, err := r.store.LoadDetails()
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	prices, err := r.store.LoadPrices()
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	slog.Info("phase started",
		slog.String("phase", PhaseMerge),
		slog.Int("pages", len(pages)),
		slog.Int("prices", len(prices)),
		slog.String("missing_price", r.cfg.MissingPrice),
	)

	stats, err := Merge(pages, prices, r.cfg.BaseURL, r.cfg.MissingPrice)
	if err != nil {
		slog.Error("merge aborted, no files written", slog.Any("error", err))
		return fmt.Errorf("merge: %w", err)
	}
	if err := r.store.SaveResult(pages); err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	r.Result.ProductCount = stats.Merged + len(stats.Skipped)
	r.Result.SkippedProducts = stats.Skipped
	slog.Info("phase done",
		slog.String("phase", PhaseMerge),
		slog.Int("merged", stats.Merged),
		slog.Int("skipped", len(stats.Skipped)),
	)
	return nil
}

// RunExport flattens result.json into the configured outputs.
func (r *Runner) RunExport(ctx context.Context) error {
	if r.newWriter == nil {
		return fmt.Errorf("export: no output writer configured")
	}

	pages, err := r.store.LoadResult()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	rows, err := Flatten(pages)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	slog.Info("phase started", slog.String("phase", PhaseExport), slog.Int("rows", len(rows)))

	writer, err := r.newWriter(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	p := NewPipeline(writer, r.cfg)
	if err := p.Process(rows...); err != nil {
		abort(writer)
		return fmt.Errorf("export: %w", err)
	}
	if err := p.Close(); err != nil {
		abort(writer)
		return fmt.Errorf("export: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("export: output validation: %w", err)
	}

	metrics := p.GetMetrics()
	if processed, ok := metrics["processed_rows"].(int64); ok {
		r.Result.RowCount = int(processed)
	}
	if validation, ok := metrics["validation_errors"].(map[string]int); ok && len(validation) > 0 {
		slog.Warn("rows dropped during export", slog.Any("validation", validation))
	}
	slog.Info("phase done", slog.String("phase", PhaseExport), slog.Int("rows", r.Result.RowCount))
	return nil
}

func abort(w OutputWriter) {
	if err := w.Abort(); err != nil {
		slog.Error("abort writer", slog.Any("error", err))
	}
}
