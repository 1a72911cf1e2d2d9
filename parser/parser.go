package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ErrMalformed marks a response or stored blob without the expected shape.
var ErrMalformed = errors.New("malformed payload")

// DecodeListing parses a listing response.
func DecodeListing(data []byte) (*models.ListingResponse, error) {
	var resp models.ListingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: listing: %v", ErrMalformed, err)
	}
	return &resp, nil
}

// DecodeDetails parses a product-details response into a raw page blob.
func DecodeDetails(data []byte) (models.DetailPage, error) {
	var page models.DetailPage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: details: %v", ErrMalformed, err)
	}
	if _, err := Products(page); err != nil {
		return nil, err
	}
	return page, nil
}

// DecodePrices parses a prices response.
func DecodePrices(data []byte) ([]models.MaterialPrice, error) {
	var resp models.PricesResponse
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: prices: %v", ErrMalformed, err)
	}
	return resp.Body.MaterialPrices, nil
}

// Products returns the product records of a detail page in response order.
// The records are the page's own maps, so writes show up in the page.
func Products(page models.DetailPage) ([]map[string]any, error) {
	body, ok := page["body"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: details page has no body", ErrMalformed)
	}
	raw, ok := body["products"].([]any)
	if !ok {
		if body["products"] == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: details body.products is %T", ErrMalformed, body["products"])
	}
	out := make([]map[string]any, 0, len(raw))
	for i, item := range raw {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: product %d is %T", ErrMalformed, i, item)
		}
		out = append(out, rec)
	}
	return out, nil
}

// StringField reads key from a product record as a string. Numeric ids are
// rendered in their original notation.
func StringField(rec map[string]any, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// NumberField reads key from a product record as a json.Number.
func NumberField(rec map[string]any, key string) json.Number {
	switch v := rec[key].(type) {
	case json.Number:
		return v
	case string:
		return json.Number(v)
	case float64:
		return json.Number(fmt.Sprint(v))
	default:
		return ""
	}
}

// ProductLink builds the public product page URL from a translit slug and id.
func ProductLink(baseURL, translit, productID string) string {
	return fmt.Sprintf("%s/products/%s-%s", strings.TrimRight(baseURL, "/"), translit, productID)
}

// ValidateRow ensures a flattened row carries the fields the export needs.
func ValidateRow(r *models.Row) error {
	if r == nil {
		return fmt.Errorf("row is nil")
	}
	if strings.TrimSpace(r.ProductID) == "" {
		return fmt.Errorf("row missing product id")
	}
	if r.Link == "" {
		return fmt.Errorf("row missing link for %s", r.ProductID)
	}
	return nil
}
