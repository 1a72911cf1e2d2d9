package pipeline

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/store"
)

// NewOutputWriter opens the writers selected by cfg.OutputFormat under st's
// directory, adding the Postgres sink when a DSN is configured.
func NewOutputWriter(ctx context.Context, cfg *config.Config, st *store.Store) (OutputWriter, error) {
	var writers []OutputWriter
	closeAll := func() {
		for _, w := range writers {
			abort(w)
		}
	}

	var files []string
	switch cfg.OutputFormat {
	case "xlsx":
		files = []string{store.XLSXFile}
	case "csv":
		files = []string{store.CSVFile}
	case "dual":
		files = []string{store.XLSXFile, store.CSVFile}
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}

	for _, name := range files {
		var (
			w   OutputWriter
			err error
		)
		if name == store.XLSXFile {
			w, err = NewXLSXWriter(st.Path(name))
		} else {
			w, err = NewCSVWriter(st.Path(name))
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		writers = append(writers, w)
	}

	if cfg.PostgresDSN != "" {
		w, err := NewPostgresWriter(ctx, cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, err
		}
		writers = append(writers, w)
	}

	if len(writers) == 1 {
		return writers[0], nil
	}
	return NewMultiWriter(writers...), nil
}
