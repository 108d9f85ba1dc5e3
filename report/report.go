package report

import (
	"github.com/shopspring/decimal"

	"github.com/publicidadxacarlos-cell/FinanzaAI/ledger"
)

// Summary is the dashboard view of a ledger snapshot.
type Summary struct {
	Income     float64              `json:"income"`
	Expense    float64              `json:"expense"`
	Balance    float64              `json:"balance"`
	ByCategory map[string]float64   `json:"byCategory"`
	Recent     []ledger.Transaction `json:"recent"`
}

const recentCount = 5

// Summarize totals a snapshot. Decimal arithmetic keeps the cents exact
// even over long runs of float-entered amounts.
func Summarize(transactions []ledger.Transaction) Summary {
	income := decimal.Zero
	expense := decimal.Zero
	byCategory := map[string]decimal.Decimal{}

	for _, t := range transactions {
		amount := decimal.NewFromFloat(t.Amount)
		switch t.Type {
		case ledger.Income:
			income = income.Add(amount)
		case ledger.Expense:
			expense = expense.Add(amount)
			category := t.Category
			if category == "" {
				category = ledger.Uncategorized
			}
			byCategory[category] = byCategory[category].Add(amount)
		}
	}

	summary := Summary{
		Income:     income.InexactFloat64(),
		Expense:    expense.InexactFloat64(),
		Balance:    income.Sub(expense).InexactFloat64(),
		ByCategory: map[string]float64{},
	}
	for category, total := range byCategory {
		summary.ByCategory[category] = total.InexactFloat64()
	}

	recent := transactions
	if len(recent) > recentCount {
		recent = recent[:recentCount]
	}
	summary.Recent = append([]ledger.Transaction{}, recent...)

	return summary
}
