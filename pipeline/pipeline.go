package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// Pipeline validates flattened rows and hands them to the writer in batches,
// preserving their order. It is used from a single goroutine.
type Pipeline struct {
	writer    OutputWriter
	batchSize int
	batch     []*models.Row

	metrics metrics

	closed bool
	err    error
}

// NewPipeline builds a pipeline writing through writer.
func NewPipeline(writer OutputWriter, cfg *config.Config) *Pipeline {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Pipeline{
		writer:    writer,
		batchSize: batchSize,
		batch:     make([]*models.Row, 0, batchSize),
		metrics:   newMetrics(),
	}
}

// Process validates rows and writes full batches.
func (p *Pipeline) Process(rows ...*models.Row) error {
	if p.err != nil {
		return p.err
	}
	if p.closed {
		return ErrPipelineClosed
	}

	for _, row := range rows {
		prepared := p.prepare(row)
		if prepared == nil {
			continue
		}
		p.batch = append(p.batch, prepared)
		if len(p.batch) >= p.batchSize {
			if err := p.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close writes the final partial batch and prevents more submissions. It
// does not close the writer.
func (p *Pipeline) Close() error {
	if p.closed {
		return p.err
	}
	p.closed = true
	if p.err != nil {
		return p.err
	}
	return p.flush()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) flush() error {
	if len(p.batch) == 0 {
		return nil
	}
	if err := p.writer.Write(p.batch); err != nil {
		p.err = fmt.Errorf("write batch: %w", err)
		return p.err
	}
	p.batch = p.batch[:0]
	return nil
}

func (p *Pipeline) prepare(row *models.Row) *models.Row {
	if row != nil && row.ProductID != "" && row.Link == "" {
		p.metrics.addValidation("missing_price")
		return nil
	}
	if err := parser.ValidateRow(row); err != nil {
		p.metrics.addValidation("invalid_record")
		return nil
	}
	p.metrics.incrementProcessed()
	return row
}

type metrics struct {
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.processed++
}

func (m *metrics) addValidation(kind string) {
	m.validation[kind]++
}

func (m *metrics) snapshot() map[string]interface{} {
	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_rows":    m.processed,
		"validation_errors": copyValidation,
	}
}
