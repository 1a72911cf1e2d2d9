// Package store persists the intermediate files each phase hands to the next.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// File names inside the output directory.
const (
	ProductIDsFile   = "product_ids.json"
	DescriptionsFile = "product_description.json"
	PricesFile       = "product_prices.json"
	ResultFile       = "result.json"
	XLSXFile         = "result.xlsx"
	CSVFile          = "result.csv"
)

// Store reads and writes phase outputs under Dir.
type Store struct {
	Dir string
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Path joins name onto the store directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

func (s *Store) SaveProductIDs(ids models.ProductIDs) error {
	return s.writeJSON(ProductIDsFile, ids)
}

func (s *Store) LoadProductIDs() (models.ProductIDs, error) {
	var ids models.ProductIDs
	if err := s.readJSON(ProductIDsFile, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) SaveDetails(pages []models.DetailPage) error {
	return s.writeJSON(DescriptionsFile, pages)
}

func (s *Store) LoadDetails() ([]models.DetailPage, error) {
	var pages []models.DetailPage
	if err := s.readJSON(DescriptionsFile, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (s *Store) SavePrices(prices models.Prices) error {
	return s.writeJSON(PricesFile, prices)
}

func (s *Store) LoadPrices() (models.Prices, error) {
	prices := make(models.Prices)
	if err := s.readJSON(PricesFile, &prices); err != nil {
		return nil, err
	}
	return prices, nil
}

func (s *Store) SaveResult(pages []models.DetailPage) error {
	return s.writeJSON(ResultFile, pages)
}

func (s *Store) LoadResult() ([]models.DetailPage, error) {
	var pages []models.DetailPage
	if err := s.readJSON(ResultFile, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// writeJSON encodes v to a temp file and renames it into place so readers
// never observe a half-written file.
func (s *Store) writeJSON(name string, v any) error {
	path := s.Path(name)
	if err := EnsureDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	buffer := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := buffer.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// EnsureDir creates the parent directory of filename.
func EnsureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
