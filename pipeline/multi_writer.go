package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// MultiWriter fans rows out to several writers, e.g. xlsx plus csv.
type MultiWriter struct {
	writers []OutputWriter
	mu      sync.Mutex
}

// NewMultiWriter combines writers in order.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write writes rows to every writer, stopping at the first failure.
func (mw *MultiWriter) Write(rows []*models.Row) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for i, w := range mw.writers {
		if err := w.Write(rows); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}

// Close closes writers in order. After the first failure the remaining
// writers are aborted instead, so a later sink (e.g. the Postgres
// transaction) is not committed. Writers closed before the failure stay
// published.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs := []error{fmt.Errorf("close writer %d: %w", i, err)}
			for j, rest := range mw.writers[i+1:] {
				if err := rest.Abort(); err != nil {
					errs = append(errs, fmt.Errorf("abort writer %d: %w", i+1+j, err))
				}
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

// Abort aborts every writer.
func (mw *MultiWriter) Abort() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for i, w := range mw.writers {
		if err := w.Abort(); err != nil {
			errs = append(errs, fmt.Errorf("abort writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every writer's output.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validate writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
