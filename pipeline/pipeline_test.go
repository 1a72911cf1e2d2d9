package pipeline

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.Row
	closed      bool
	aborted     bool
	writeErr    error
	closeErr    error
	validateErr error
}

func (mw *mockWriter) Write(rows []*models.Row) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	copyBatch := make([]*models.Row, len(rows))
	copy(copyBatch, rows)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.closeErr != nil {
		return mw.closeErr
	}
	mw.closed = true
	return nil
}

func (mw *mockWriter) Abort() error {
	mw.mu.Lock()
	mw.aborted = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) rows() []*models.Row {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []*models.Row
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func testRow(i int) *models.Row {
	id := strconv.Itoa(i)
	return &models.Row{
		ProductID: id,
		ModelName: "Model " + id,
		BrandName: "Brand",
		BasePrice: "1000",
		SalePrice: "900",
		Bonus:     "10",
		Link:      "https://shop.example.test/products/model-" + id,
	}
}

func TestPipelineProcessValidation(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(writer, cfg)

	rows := []*models.Row{
		testRow(1),
		nil,
		{ModelName: "no id", Link: "https://shop.example.test/products/x"},
		{ProductID: "7", ModelName: "no price"},
		testRow(2),
	}
	if err := p.Process(rows...); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	written := writer.rows()
	if len(written) != 2 || written[0].ProductID != "1" || written[1].ProductID != "2" {
		t.Fatalf("written rows = %v, want products 1 and 2", written)
	}

	metrics := p.GetMetrics()
	if processed, _ := metrics["processed_rows"].(int64); processed != 2 {
		t.Fatalf("processed_rows = %d, want 2", processed)
	}
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("validation_errors metric has unexpected type")
	}
	if validation["invalid_record"] != 2 {
		t.Fatalf("invalid_record = %d, want 2", validation["invalid_record"])
	}
	if validation["missing_price"] != 1 {
		t.Fatalf("missing_price = %d, want 1", validation["missing_price"])
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(writer, cfg)

	for i := 0; i < 65; i++ {
		if err := p.Process(testRow(i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if sizes := writer.batchSizes(); len(sizes) != 1 || sizes[0] != 64 {
		t.Fatalf("batch sizes before close = %v, want [64]", sizes)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 || sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
	if writer.closed {
		t.Fatalf("pipeline close must not close the writer")
	}
}

func TestPipelinePreservesOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 3
	writer := &mockWriter{}
	p := NewPipeline(writer, cfg)

	for i := 0; i < 10; i++ {
		if err := p.Process(testRow(i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for i, row := range writer.rows() {
		if row.ProductID != strconv.Itoa(i) {
			t.Fatalf("row %d = %s, want %d", i, row.ProductID, i)
		}
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(&mockWriter{}, config.DefaultConfig())
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(testRow(1)); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("err = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineWriteErrorIsSticky(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1
	boom := errors.New("disk full")
	p := NewPipeline(&mockWriter{writeErr: boom}, cfg)

	if err := p.Process(testRow(1)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if err := p.Process(testRow(2)); !errors.Is(err, boom) {
		t.Fatalf("second process err = %v, want %v", err, boom)
	}
	if err := p.Close(); !errors.Is(err, boom) {
		t.Fatalf("close err = %v, want %v", err, boom)
	}
	if !errors.Is(p.Err(), boom) {
		t.Fatalf("Err() = %v, want %v", p.Err(), boom)
	}
}
