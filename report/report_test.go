package report

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/publicidadxacarlos-cell/FinanzaAI/ledger"
)

func Test_Summarize(t *testing.T) {
	type expected struct {
		income     float64
		expense    float64
		balance    float64
		byCategory map[string]float64
	}
	tests := []struct {
		name         string
		transactions []ledger.Transaction
		expected     expected
	}{
		{
			"Empty",
			nil,
			expected{byCategory: map[string]float64{}},
		},
		{
			"Mixed",
			[]ledger.Transaction{
				{Amount: 3000, Category: "Trabajo", Type: ledger.Income},
				{Amount: 150.50, Category: "Comida", Type: ledger.Expense},
				{Amount: 49.50, Category: "Comida", Type: ledger.Expense},
				{Amount: 20, Category: "Transporte", Type: ledger.Expense},
			},
			expected{
				income:     3000,
				expense:    220,
				balance:    2780,
				byCategory: map[string]float64{"Comida": 200, "Transporte": 20},
			},
		},
		{
			"FloatCentsStayExact",
			[]ledger.Transaction{
				{Amount: 0.1, Category: "Comida", Type: ledger.Expense},
				{Amount: 0.2, Category: "Comida", Type: ledger.Expense},
			},
			expected{
				expense:    0.3,
				balance:    -0.3,
				byCategory: map[string]float64{"Comida": 0.3},
			},
		},
		{
			"BlankCategoryFallsBack",
			[]ledger.Transaction{
				{Amount: 10, Type: ledger.Expense},
			},
			expected{
				expense:    10,
				balance:    -10,
				byCategory: map[string]float64{ledger.Uncategorized: 10},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(tt *testing.T) {
			summary := Summarize(test.transactions)
			assert.Equal(tt, test.expected.income, summary.Income)
			assert.Equal(tt, test.expected.expense, summary.Expense)
			assert.Equal(tt, test.expected.balance, summary.Balance)
			assert.Equal(tt, test.expected.byCategory, summary.ByCategory)
		})
	}
}

func Test_SummarizeRecent(t *testing.T) {
	var transactions []ledger.Transaction
	for i := 0; i < 8; i++ {
		transactions = append(transactions, ledger.Transaction{
			ID:     fmt.Sprintf("%d", i),
			Amount: 1,
			Type:   ledger.Expense,
		})
	}

	summary := Summarize(transactions)
	// The ledger is most-recent-first, so Recent is simply the head.
	if assert.Len(t, summary.Recent, 5) {
		assert.Equal(t, "0", summary.Recent[0].ID)
		assert.Equal(t, "4", summary.Recent[4].ID)
	}
}
