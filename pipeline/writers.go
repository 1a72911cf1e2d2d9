package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/store"
	"github.com/xuri/excelize/v2"
)

// OutputWriter defines the interface for data output. Nothing is visible at
// the destination until Close succeeds; Abort discards what was written.
type OutputWriter interface {
	Write(rows []*models.Row) error
	Close() error
	Abort() error
	Validate() error
}

// XLSXWriter builds a single-sheet workbook in memory and saves it on Close.
// The first column is a 0-based row index under an empty header cell.
type XLSXWriter struct {
	path  string
	file  *excelize.File
	sheet string
	next  int
	mu    sync.Mutex
}

// NewXLSXWriter initialises a workbook and writes the header row.
func NewXLSXWriter(filename string) (*XLSXWriter, error) {
	if err := store.EnsureDir(filename); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := make([]any, 0, len(models.RowHeader)+1)
	header = append(header, nil)
	for _, name := range models.RowHeader {
		header = append(header, name)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}

	return &XLSXWriter{
		path:  filename,
		file:  f,
		sheet: sheet,
	}, nil
}

// Write appends rows below the previous ones.
func (xw *XLSXWriter) Write(rows []*models.Row) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	for _, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, xw.next+2)
		if err != nil {
			return fmt.Errorf("xlsx cell for row %d: %w", xw.next, err)
		}
		values := []any{
			xw.next,
			row.ProductID,
			row.ModelName,
			row.BrandName,
			cellNumber(row.BasePrice),
			cellNumber(row.SalePrice),
			cellNumber(row.Bonus),
			row.Link,
		}
		if err := xw.file.SetSheetRow(xw.sheet, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", xw.next, err)
		}
		xw.next++
	}
	return nil
}

// Close saves the workbook to its path.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(xw.path), "."+filepath.Base(xw.path)+".*")
	if err != nil {
		xw.file.Close()
		return fmt.Errorf("create xlsx file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := xw.file.Write(tmp); err != nil {
		tmp.Close()
		xw.file.Close()
		return fmt.Errorf("write xlsx file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		xw.file.Close()
		return fmt.Errorf("close xlsx file: %w", err)
	}
	if err := os.Rename(tmp.Name(), xw.path); err != nil {
		xw.file.Close()
		return fmt.Errorf("rename xlsx file: %w", err)
	}
	return xw.file.Close()
}

// Abort drops the in-memory workbook.
func (xw *XLSXWriter) Abort() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()
	return xw.file.Close()
}

// Validate ensures the saved workbook exists and is not empty.
func (xw *XLSXWriter) Validate() error {
	return validateFile(xw.path, "xlsx")
}

// CSVWriter writes records to CSV with the same layout as the workbook.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	next   int
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := store.EnsureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := append([]string{""}, models.RowHeader...)
	if err := writer.Write(header); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	return &CSVWriter{
		path:   filename,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends rows to the CSV output.
func (cw *CSVWriter) Write(rows []*models.Row) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, row := range rows {
		record := []string{
			strconv.Itoa(cw.next),
			row.ProductID,
			row.ModelName,
			row.BrandName,
			row.BasePrice.String(),
			row.SalePrice.String(),
			row.Bonus.String(),
			row.Link,
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.next++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes the file and moves it into place.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		os.Remove(cw.file.Name())
		return fmt.Errorf("flush csv writer: %w", err)
	}
	if err := cw.file.Close(); err != nil {
		os.Remove(cw.file.Name())
		return fmt.Errorf("close csv file: %w", err)
	}
	if err := os.Rename(cw.file.Name(), cw.path); err != nil {
		os.Remove(cw.file.Name())
		return fmt.Errorf("rename csv file: %w", err)
	}
	return nil
}

// Abort removes the partial file.
func (cw *CSVWriter) Abort() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.file.Close()
	return os.Remove(cw.file.Name())
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	return validateFile(cw.path, "csv")
}

func validateFile(path, kind string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

// cellNumber renders a price as a numeric cell. Empty values stay blank.
func cellNumber(n json.Number) any {
	if n == "" {
		return nil
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
