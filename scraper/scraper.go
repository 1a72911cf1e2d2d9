package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Scraper runs the two fetch phases against an API. Calls are strictly
// sequential: listing pages in order, then details before prices per page.
type Scraper struct {
	cfg     *config.Config
	api     API
	Metrics *Metrics

	seen       *lru.Cache[string, int]
	duplicates int
}

// NewScraper builds a scraper backed by a colly client configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	client, err := NewClient(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return New(cfg, client, metrics)
}

// New builds a scraper over an arbitrary API implementation.
func New(cfg *config.Config, api API, metrics *Metrics) (*Scraper, error) {
	seen, err := lru.New[string, int](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Scraper{
		cfg:     cfg,
		api:     api,
		Metrics: metrics,
		seen:    seen,
	}, nil
}

// API returns the underlying BFF client.
func (s *Scraper) API() API {
	return s.api
}

// PageCount is the number of listing pages needed for total items.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// FetchListing reads the category total at offset 0 and then collects the
// product ids of every page.
func (s *Scraper) FetchListing(ctx context.Context) (models.ProductIDs, error) {
	first, err := s.api.Listing(ctx, 0)
	if err != nil {
		return nil, withPage(err, 0)
	}
	if first.Body.Total == nil || *first.Body.Total <= 0 {
		return nil, fmt.Errorf("%w: category %s", ErrNoItems, s.cfg.CategoryID)
	}

	total := *first.Body.Total
	pages := PageCount(total, s.cfg.PageSize)
	slog.Info("listing total",
		slog.String("category", s.cfg.CategoryID),
		slog.Int("items", total),
		slog.Int("pages", pages),
	)

	ids := make(models.ProductIDs, pages)
	for i := 0; i < pages; i++ {
		resp, err := s.api.Listing(ctx, i*s.cfg.PageSize)
		if err != nil {
			return nil, withPage(err, i)
		}
		page := resp.Body.Products
		if page == nil {
			page = []string{}
		}
		ids[i] = page
		s.trackDuplicates(i, page)
		s.Metrics.AddProducts(len(page))
		s.Metrics.IncPage(EndpointListing)
		slog.Debug("listing page done", slog.Int("page", i), slog.Int("ids", len(page)))
	}
	return ids, nil
}

// FetchDetailsAndPrices requests the detail blob and the prices of every
// page. Prices are merged into one map where a later page overwrites an
// earlier entry for the same id.
func (s *Scraper) FetchDetailsAndPrices(ctx context.Context, ids models.ProductIDs) ([]models.DetailPage, models.Prices, error) {
	pages := make([]models.DetailPage, len(ids))
	prices := make(models.Prices, ids.Total())

	for i, pageIDs := range ids {
		if len(pageIDs) == 0 {
			slog.Debug("skipping empty page", slog.Int("page", i))
			pages[i] = emptyDetailPage()
			continue
		}

		details, err := s.api.Details(ctx, pageIDs)
		if err != nil {
			return nil, nil, withPage(err, i)
		}
		pages[i] = details

		entries, err := s.api.Prices(ctx, pageIDs)
		if err != nil {
			return nil, nil, withPage(err, i)
		}
		for _, entry := range entries {
			if overwritten := prices.Upsert(entry.ProductID, entry.PriceInfo()); overwritten {
				s.Metrics.IncPriceOverwrite()
				slog.Debug("price overwritten by later page",
					slog.String("product_id", entry.ProductID),
					slog.Int("page", i),
				)
			}
		}

		s.Metrics.IncPage(EndpointDetails)
		slog.Debug("details page done",
			slog.Int("page", i),
			slog.Int("ids", len(pageIDs)),
			slog.Int("prices", len(entries)),
		)
	}
	return pages, prices, nil
}

// Duplicates returns how many ids were seen on more than one listing page.
func (s *Scraper) Duplicates() int {
	return s.duplicates
}

func (s *Scraper) trackDuplicates(page int, ids []string) {
	for _, id := range ids {
		if first, ok := s.seen.Peek(id); ok {
			s.duplicates++
			s.Metrics.IncDuplicate()
			slog.Warn("product id listed twice",
				slog.String("product_id", id),
				slog.Int("first_page", first),
				slog.Int("page", page),
			)
			continue
		}
		s.seen.Add(id, page)
	}
}

func emptyDetailPage() models.DetailPage {
	return models.DetailPage{
		"body": map[string]any{"products": []any{}},
	}
}
