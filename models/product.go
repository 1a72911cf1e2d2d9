// Package models defines data structures for the scraper.
package models

import (
	"encoding/json"
	"time"
)

// Keys injected into product records by the merge step.
const (
	FieldBasePrice = "item_basePrice"
	FieldSalePrice = "item_salePrice"
	FieldBonus     = "item_bonus"
	FieldLink      = "item_link"
)

// ProductIDs holds the ids returned by the listing call, one slice per page.
// The slice index is the page index.
type ProductIDs [][]string

// Total counts ids across all pages.
func (p ProductIDs) Total() int {
	n := 0
	for _, page := range p {
		n += len(page)
	}
	return n
}

// DetailPage is the raw product-details response for one listing page.
// Numbers are kept as json.Number so values are written back verbatim.
type DetailPage map[string]any

// Price is a numeric price kept as the API sent it. The zero value stands
// for null and is written back as null.
type Price json.Number

// MarshalJSON writes the number verbatim, or null when empty.
func (p Price) MarshalJSON() ([]byte, error) {
	if p == "" {
		return []byte("null"), nil
	}
	return json.Marshal(json.Number(p))
}

// UnmarshalJSON accepts a number or null.
func (p *Price) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = Price(n)
	return nil
}

// Value is the price as stored in a raw product record: nil for null.
func (p Price) Value() any {
	if p == "" {
		return nil
	}
	return json.Number(p)
}

// PriceInfo is the pricing data merged into a product record.
type PriceInfo struct {
	BasePrice Price `json:"item_basePrice"`
	SalePrice Price `json:"item_salePrice"`
	Bonus     Price `json:"item_bonus"`
}

// Prices maps product id to its latest PriceInfo for the whole run.
type Prices map[string]PriceInfo

// Upsert stores info under id. The last write wins; overwritten reports
// whether an earlier entry was replaced.
func (p Prices) Upsert(id string, info PriceInfo) (overwritten bool) {
	_, overwritten = p[id]
	p[id] = info
	return overwritten
}

// Row is one line of the exported table.
type Row struct {
	ProductID string      `csv:"productId" json:"productId"`
	ModelName string      `csv:"modelName" json:"modelName"`
	BrandName string      `csv:"brandName" json:"brandName"`
	BasePrice json.Number `csv:"item_basePrice" json:"item_basePrice"`
	SalePrice json.Number `csv:"item_salePrice" json:"item_salePrice"`
	Bonus     json.Number `csv:"item_bonus" json:"item_bonus"`
	Link      string      `csv:"item_link" json:"item_link"`
}

// RowHeader is the exported column order.
var RowHeader = []string{"productId", "modelName", "brandName", FieldBasePrice, FieldSalePrice, FieldBonus, FieldLink}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	StartTime       time.Time
	EndTime         time.Time
	PageCount       int
	ProductCount    int
	PriceCount      int
	RowCount        int
	SkippedProducts []string
	RequestCount    int
	RetryCount      int
	ErrorsByType    map[string]int
}
