package models

import "encoding/json"

// ListingResponse is the body of GET /bff/products/listing.
type ListingResponse struct {
	Body struct {
		Total    *int     `json:"total"`
		Products []string `json:"products"`
	} `json:"body"`
}

// DetailsRequest is the body of POST /bff/product-details/list.
type DetailsRequest struct {
	ProductIDs       []string         `json:"productIds"`
	MediaTypes       []string         `json:"mediaTypes"`
	Category         bool             `json:"category"`
	Status           bool             `json:"status"`
	Brand            bool             `json:"brand"`
	PropertyTypes    []string         `json:"propertyTypes"`
	PropertiesConfig PropertiesConfig `json:"propertiesConfig"`
	Multioffer       bool             `json:"multioffer"`
}

// PropertiesConfig limits how many properties come back per product.
type PropertiesConfig struct {
	PropertiesPortionSize int `json:"propertiesPortionSize"`
}

// NewDetailsRequest builds the fixed inclusion flags around ids.
func NewDetailsRequest(ids []string) DetailsRequest {
	return DetailsRequest{
		ProductIDs:       ids,
		MediaTypes:       []string{"images"},
		Category:         true,
		Status:           true,
		Brand:            true,
		PropertyTypes:    []string{"KEY"},
		PropertiesConfig: PropertiesConfig{PropertiesPortionSize: 5},
		Multioffer:       false,
	}
}

// PricesResponse is the body of GET /bff/products/prices.
type PricesResponse struct {
	Body struct {
		MaterialPrices []MaterialPrice `json:"materialPrices"`
	} `json:"body"`
}

// MaterialPrice is one entry of a prices response.
type MaterialPrice struct {
	ProductID string `json:"productId"`
	Price     struct {
		BasePrice json.Number `json:"basePrice"`
		SalePrice json.Number `json:"salePrice"`
	} `json:"price"`
	BonusRubles struct {
		Total json.Number `json:"total"`
	} `json:"bonusRubles"`
}

// PriceInfo projects the entry onto the fields kept per product.
func (m MaterialPrice) PriceInfo() PriceInfo {
	return PriceInfo{
		BasePrice: Price(m.Price.BasePrice),
		SalePrice: Price(m.Price.SalePrice),
		Bonus:     Price(m.BonusRubles.Total),
	}
}
