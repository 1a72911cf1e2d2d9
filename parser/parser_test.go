package parser

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func TestProductLink(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "plain", base: "https://www.mvideo.ru", want: "https://www.mvideo.ru/products/noutbuk-asus-100123"},
		{name: "trailing slash", base: "https://www.mvideo.ru/", want: "https://www.mvideo.ru/products/noutbuk-asus-100123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProductLink(tt.base, "noutbuk-asus", "100123"); got != tt.want {
				t.Fatalf("ProductLink = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeListing(t *testing.T) {
	resp, err := DecodeListing([]byte(`{"success":true,"body":{"total":25,"products":["1","2"]}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Body.Total == nil || *resp.Body.Total != 25 {
		t.Fatalf("total = %v, want 25", resp.Body.Total)
	}
	if len(resp.Body.Products) != 2 {
		t.Fatalf("products = %v", resp.Body.Products)
	}

	resp, err = DecodeListing([]byte(`{"body":{"total":null}}`))
	if err != nil {
		t.Fatalf("decode null total: %v", err)
	}
	if resp.Body.Total != nil {
		t.Fatalf("null total should decode as nil")
	}

	if _, err := DecodeListing([]byte(`<html>`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeDetailsKeepsNumbersVerbatim(t *testing.T) {
	page, err := DecodeDetails([]byte(`{"body":{"products":[{"productId":"7","rating":4.50,"reviews":12}]}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	products, err := Products(page)
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("products = %d, want 1", len(products))
	}
	if got := NumberField(products[0], "rating"); got != "4.50" {
		t.Fatalf("rating = %q, want 4.50", got)
	}
	if got := StringField(products[0], "productId"); got != "7" {
		t.Fatalf("productId = %q", got)
	}
}

func TestDecodeDetailsRejectsWrongShape(t *testing.T) {
	tests := []string{
		`{"success":false}`,
		`{"body":{"products":"nope"}}`,
		`{"body":{"products":[1]}}`,
		`[]`,
	}
	for _, body := range tests {
		if _, err := DecodeDetails([]byte(body)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("DecodeDetails(%s): expected ErrMalformed, got %v", body, err)
		}
	}
}

func TestProductsSharesRecords(t *testing.T) {
	page, err := DecodeDetails([]byte(`{"body":{"products":[{"productId":"1"}]}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	products, _ := Products(page)
	products[0]["item_link"] = "x"

	again, _ := Products(page)
	if again[0]["item_link"] != "x" {
		t.Fatalf("writes to a record should be visible through the page")
	}
}

func TestDecodePrices(t *testing.T) {
	body := `{"body":{"materialPrices":[{"productId":"1","price":{"basePrice":1000,"salePrice":899.9},"bonusRubles":{"total":45}}]}}`
	prices, err := DecodePrices([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(prices) != 1 {
		t.Fatalf("prices = %d, want 1", len(prices))
	}
	info := prices[0].PriceInfo()
	want := models.PriceInfo{BasePrice: "1000", SalePrice: "899.9", Bonus: "45"}
	if info != want {
		t.Fatalf("price info = %+v, want %+v", info, want)
	}
}

func TestStringFieldNumericID(t *testing.T) {
	rec := map[string]any{"productId": json.Number("400123")}
	if got := StringField(rec, "productId"); got != "400123" {
		t.Fatalf("StringField = %q", got)
	}
	if got := StringField(rec, "missing"); got != "" {
		t.Fatalf("missing field = %q, want empty", got)
	}
}

func TestValidateRow(t *testing.T) {
	if err := ValidateRow(nil); err == nil {
		t.Fatalf("nil row should fail")
	}
	if err := ValidateRow(&models.Row{Link: "x"}); err == nil {
		t.Fatalf("row without id should fail")
	}
	if err := ValidateRow(&models.Row{ProductID: "1"}); err == nil {
		t.Fatalf("row without link should fail")
	}
	if err := ValidateRow(&models.Row{ProductID: "1", Link: "x"}); err != nil {
		t.Fatalf("valid row: %v", err)
	}
}
