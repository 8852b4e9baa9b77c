package service

import (
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_storefront/internal/models"
)

// Aggregate recomputes collection totals from its lines.
func Aggregate(lines []models.Line) models.Totals {
	totals := models.Totals{TotalAmount: decimal.Zero}
	for _, l := range lines {
		totals.TotalItems += l.Quantity
		totals.TotalAmount = totals.TotalAmount.Add(l.Subtotal())
	}
	return totals
}
