package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecentWindow is the trailing span counted as recent movement activity.
const RecentWindow = 7 * 24 * time.Hour

// Stats summarises the snapshot. It is derived and never stored.
type Stats struct {
	TotalProducts   int             `json:"total_products"`
	TotalValue      decimal.Decimal `json:"total_value"`
	LowStock        int             `json:"low_stock"`
	OutOfStock      int             `json:"out_of_stock"`
	RecentMovements int             `json:"recent_movements"`
}

// CalculateStats derives Stats from products and movements as of now.
func CalculateStats(products []Product, movements []StockMovement, now time.Time) Stats {
	stats := Stats{TotalProducts: len(products), TotalValue: decimal.Zero}
	for _, p := range products {
		stats.TotalValue = stats.TotalValue.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(p.CurrentStock))))
		switch {
		case p.CurrentStock == 0:
			stats.OutOfStock++
		case p.CurrentStock > 0 && p.CurrentStock <= p.MinStock:
			stats.LowStock++
		}
	}
	cutoff := now.Add(-RecentWindow)
	for _, m := range movements {
		if !m.CreatedAt.Before(cutoff) && !m.CreatedAt.After(now) {
			stats.RecentMovements++
		}
	}
	return stats
}
