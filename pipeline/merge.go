package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// ProductNotFoundError reports a product present in the details data but
// absent from the price map.
type ProductNotFoundError struct {
	ProductID string
	Page      int
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s on page %d has no price entry", e.ProductID, e.Page)
}

// MergeStats summarises a merge.
type MergeStats struct {
	Merged  int
	Skipped []string
}

// Merge injects price fields and the product link into every product record
// of pages, in place. Under the fail policy the first product without a
// price stops the merge; under skip it is logged and left untouched.
func Merge(pages []models.DetailPage, prices models.Prices, baseURL, policy string) (MergeStats, error) {
	var stats MergeStats
	for i, page := range pages {
		products, err := parser.Products(page)
		if err != nil {
			return stats, fmt.Errorf("page %d: %w", i, err)
		}

		for _, rec := range products {
			id := parser.StringField(rec, "productId")
			info, ok := prices[id]
			if !ok {
				if policy == config.MissingPriceSkip {
					slog.Warn("product has no price, skipping",
						slog.String("product_id", id),
						slog.Int("page", i),
					)
					stats.Skipped = append(stats.Skipped, id)
					continue
				}
				return stats, &ProductNotFoundError{ProductID: id, Page: i}
			}

			rec[models.FieldBasePrice] = info.BasePrice.Value()
			rec[models.FieldSalePrice] = info.SalePrice.Value()
			rec[models.FieldBonus] = info.Bonus.Value()
			rec[models.FieldLink] = parser.ProductLink(baseURL, parser.StringField(rec, "nameTranslit"), id)
			stats.Merged++
		}
	}
	return stats, nil
}

// Flatten projects every product record onto the export columns, pages in
// index order and products in response order.
func Flatten(pages []models.DetailPage) ([]*models.Row, error) {
	var rows []*models.Row
	for i, page := range pages {
		products, err := parser.Products(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for _, rec := range products {
			rows = append(rows, &models.Row{
				ProductID: parser.StringField(rec, "productId"),
				ModelName: parser.StringField(rec, "modelName"),
				BrandName: parser.StringField(rec, "brandName"),
				BasePrice: parser.NumberField(rec, models.FieldBasePrice),
				SalePrice: parser.NumberField(rec, models.FieldSalePrice),
				Bonus:     parser.NumberField(rec, models.FieldBonus),
				Link:      parser.StringField(rec, models.FieldLink),
			})
		}
	}
	return rows, nil
}
