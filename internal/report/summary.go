package report

import (
	"time"

	"github.com/prn-tf/stockwarden/internal/domain"
)

// Summary aggregates a catalog snapshot.
type Summary struct {
	TotalCount    int       `json:"total_count"`
	TotalQuantity int       `json:"total_quantity"`
	TotalValue    float64   `json:"total_value"`
	LowStockCount int       `json:"low_stock_count"`
	Threshold     int       `json:"threshold"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Summarize computes a Summary over products. A product is low on stock when
// its quantity is at or below threshold.
func Summarize(products []domain.Product, threshold int, now time.Time) Summary {
	s := Summary{
		TotalCount:  len(products),
		Threshold:   threshold,
		GeneratedAt: now.UTC(),
	}
	for _, p := range products {
		s.TotalQuantity += p.Quantity
		s.TotalValue += p.Value()
		if p.Quantity >= 0 && p.Quantity <= threshold {
			s.LowStockCount++
		}
	}
	return s
}

// FileName returns the report file name for date.
func FileName(date time.Time) string {
	return "inventory-report-" + date.Format(domain.DateLayout) + ".csv"
}
