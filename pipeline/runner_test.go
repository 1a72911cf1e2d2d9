package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/store"
	"github.com/google/go-cmp/cmp"
)

type fakeFetcher struct {
	ids       models.ProductIDs
	pages     []models.DetailPage
	prices    models.Prices
	listErr   error
	detailErr error
}

func (f *fakeFetcher) FetchListing(ctx context.Context) (models.ProductIDs, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ids, nil
}

func (f *fakeFetcher) FetchDetailsAndPrices(ctx context.Context, ids models.ProductIDs) ([]models.DetailPage, models.Prices, error) {
	if f.detailErr != nil {
		return nil, nil, f.detailErr
	}
	return f.pages, f.prices, nil
}

func newTestFetcher() *fakeFetcher {
	return &fakeFetcher{
		ids: models.ProductIDs{{"1", "2"}, {"3"}},
		pages: []models.DetailPage{
			detailPage(product("1", "A", "X", "a"), product("2", "B", "X", "b")),
			detailPage(product("3", "C", "Y", "c")),
		},
		prices: models.Prices{
			"1": price("100", "90", "1"),
			"2": price("200", "180", "2"),
			"3": price("300", "270.50", "3"),
		},
	}
}

func newTestRunner(t *testing.T, fetcher Fetcher) (*Runner, *store.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL
	cfg.OutputDir = t.TempDir()
	st := store.New(cfg.OutputDir)
	r := NewRunner(cfg, fetcher, st, func(ctx context.Context) (OutputWriter, error) {
		return NewOutputWriter(ctx, cfg, st)
	})
	return r, st
}

func dirFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunnerRunAll(t *testing.T) {
	r, st := newTestRunner(t, newTestFetcher())

	if err := r.Run(context.Background(), PhaseAll); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{
		store.DescriptionsFile,
		store.ProductIDsFile,
		store.PricesFile,
		store.ResultFile,
		store.XLSXFile,
	}
	if diff := cmp.Diff(want, dirFiles(t, st.Dir)); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}

	rows := readXLSX(t, st.Path(store.XLSXFile))
	if len(rows) != 4 {
		t.Fatalf("xlsx rows = %d, want 4", len(rows))
	}
	wantLast := []string{"2", "3", "C", "Y", "300", "270.5", "3", testBaseURL + "/products/c-3"}
	if diff := cmp.Diff(wantLast, rows[3]); diff != "" {
		t.Fatalf("last row mismatch (-want +got):\n%s", diff)
	}

	if r.Result.RowCount != 3 || r.Result.PriceCount != 3 {
		t.Fatalf("result = %+v, want 3 rows and 3 prices", r.Result)
	}
	if r.Result.EndTime.Before(r.Result.StartTime) {
		t.Fatalf("end time before start time")
	}
}

func TestRunnerNullPriceStaysBlank(t *testing.T) {
	f := newTestFetcher()
	f.prices["3"] = models.PriceInfo{BasePrice: "300"}
	r, st := newTestRunner(t, f)

	if err := r.Run(context.Background(), PhaseAll); err != nil {
		t.Fatalf("run: %v", err)
	}

	result, err := st.LoadResult()
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	products, err := parser.Products(result[1])
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	for _, key := range []string{models.FieldSalePrice, models.FieldBonus} {
		value, ok := products[0][key]
		if !ok || value != nil {
			t.Fatalf("%s = %v (present=%v), want null", key, value, ok)
		}
	}

	rows := readXLSX(t, st.Path(store.XLSXFile))
	wantLast := []string{"2", "3", "C", "Y", "300", "", "", testBaseURL + "/products/c-3"}
	if diff := cmp.Diff(wantLast, rows[3]); diff != "" {
		t.Fatalf("last row mismatch (-want +got):\n%s", diff)
	}
}

func TestRunnerListingFailureWritesNothing(t *testing.T) {
	f := newTestFetcher()
	f.listErr = errors.New("connection refused")
	r, st := newTestRunner(t, f)

	err := r.Run(context.Background(), PhaseAll)
	if !errors.Is(err, f.listErr) {
		t.Fatalf("err = %v, want %v", err, f.listErr)
	}
	if files := dirFiles(t, st.Dir); len(files) != 0 {
		t.Fatalf("files written after failed listing: %v", files)
	}
}

func TestRunnerAggregateFailureKeepsListing(t *testing.T) {
	f := newTestFetcher()
	f.detailErr = errors.New("prices: 502")
	r, st := newTestRunner(t, f)

	if err := r.Run(context.Background(), PhaseAll); !errors.Is(err, f.detailErr) {
		t.Fatalf("err = %v, want %v", err, f.detailErr)
	}
	if diff := cmp.Diff([]string{store.ProductIDsFile}, dirFiles(t, st.Dir)); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestRunnerMissingPriceWritesNoResult(t *testing.T) {
	f := newTestFetcher()
	delete(f.prices, "2")
	r, st := newTestRunner(t, f)

	err := r.Run(context.Background(), PhaseAll)
	var notFound *ProductNotFoundError
	if !errors.As(err, &notFound) || notFound.ProductID != "2" {
		t.Fatalf("err = %v, want ProductNotFoundError for 2", err)
	}
	if _, err := os.Stat(st.Path(store.ResultFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("result.json should not exist: %v", err)
	}
	if _, err := os.Stat(st.Path(store.XLSXFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("result.xlsx should not exist: %v", err)
	}
}

func TestRunnerMissingPriceSkipExportsRest(t *testing.T) {
	f := newTestFetcher()
	delete(f.prices, "2")
	r, st := newTestRunner(t, f)
	r.cfg.MissingPrice = config.MissingPriceSkip

	if err := r.Run(context.Background(), PhaseAll); err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{"2"}, r.Result.SkippedProducts); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
	if rows := readXLSX(t, st.Path(store.XLSXFile)); len(rows) != 3 {
		t.Fatalf("xlsx rows = %d, want header plus 2", len(rows))
	}
}

func TestRunnerResumesFromStoredFiles(t *testing.T) {
	f := newTestFetcher()
	r, st := newTestRunner(t, f)
	if err := st.SaveDetails(f.pages); err != nil {
		t.Fatalf("save details: %v", err)
	}
	if err := st.SavePrices(f.prices); err != nil {
		t.Fatalf("save prices: %v", err)
	}

	// The fetcher must not be consulted by the offline phases.
	r.fetcher = &fakeFetcher{listErr: errors.New("unexpected"), detailErr: errors.New("unexpected")}

	if err := r.Run(context.Background(), PhaseMerge); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := r.Run(context.Background(), PhaseExport); err != nil {
		t.Fatalf("export: %v", err)
	}
	if rows := readXLSX(t, st.Path(store.XLSXFile)); len(rows) != 4 {
		t.Fatalf("xlsx rows = %d, want 4", len(rows))
	}
}

func TestRunnerAggregateNeedsListing(t *testing.T) {
	r, _ := newTestRunner(t, newTestFetcher())
	err := r.Run(context.Background(), PhaseAggregate)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}

func TestRunnerUnknownPhase(t *testing.T) {
	r, _ := newTestRunner(t, newTestFetcher())
	if err := r.Run(context.Background(), "scrape"); err == nil {
		t.Fatalf("expected error for unknown phase")
	}
}

func TestRunnerMergeHonoursCancellation(t *testing.T) {
	r, _ := newTestRunner(t, newTestFetcher())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.RunMerge(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
