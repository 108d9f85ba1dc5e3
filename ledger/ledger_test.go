package ledger

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rapidloop/skv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func newStore(t *testing.T) (*Store, *skv.KVStore, string) {
	path := filepath.Join(t.TempDir(), "test.db")
	kv, err := skv.Open(path)
	if err != nil {
		t.Fatalf("skv.Open: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return Open(kv), kv, path
}

func emptyStore(t *testing.T) *Store {
	s, _, _ := newStore(t)
	s.Clear()
	return s
}

func Test_SeedOnFirstRun(t *testing.T) {
	s, _, _ := newStore(t)
	got := s.List()
	assert.Len(t, got, 2)
	assert.Equal(t, "Inversión Portfolio", got[0].Description)
	assert.Equal(t, Income, got[0].Type)
	assert.Equal(t, Expense, got[1].Type)
}

func Test_Add(t *testing.T) {
	type setup struct {
		description string
		amount      float64
		category    string
	}
	type expected struct {
		err      error
		amount   float64
		category string
		ttype    Type
	}
	tests := []struct {
		name     string
		setup    setup
		expected expected
	}{
		{
			"Coffee",
			setup{"Coffee", -4.50, ""},
			expected{amount: 4.50, category: Uncategorized, ttype: Expense},
		},
		{
			"Salary",
			setup{"Salary", 3000, ""},
			expected{amount: 3000, category: Uncategorized, ttype: Income},
		},
		{
			"ZeroIsIncome",
			setup{"Ajuste", 0, ""},
			expected{amount: 0, category: Uncategorized, ttype: Income},
		},
		{
			"KeepsGivenCategory",
			setup{"Cena", -22, "Comida"},
			expected{amount: 22, category: "Comida", ttype: Expense},
		},
		{
			"EmptyDescription",
			setup{"", 10, ""},
			expected{err: ErrInvalid},
		},
		{
			"NaNAmount",
			setup{"Bad", math.NaN(), ""},
			expected{err: ErrInvalid},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(tt *testing.T) {
			s := emptyStore(tt)

			got, err := s.Add(test.setup.description, test.setup.amount, test.setup.category)

			if test.expected.err != nil {
				assert.Equal(tt, test.expected.err, err)
				assert.Len(tt, s.List(), 0)
				return
			}
			assert.Nil(tt, err)
			assert.NotEmpty(tt, got.ID)
			assert.NotEmpty(tt, got.Date)
			assert.Equal(tt, test.expected.amount, got.Amount)
			assert.Equal(tt, test.expected.category, got.Category)
			assert.Equal(tt, test.expected.ttype, got.Type)
			assert.Len(tt, s.List(), 1)
		})
	}
}

func Test_AddTyped(t *testing.T) {
	type setup struct {
		amount float64
		ttype  Type
	}
	tests := []struct {
		name     string
		setup    setup
		expected Type
	}{
		{"ExpenseKeptForPositive", setup{25.40, Expense}, Expense},
		{"ExpenseKeptForZero", setup{0, Expense}, Expense},
		{"ExpenseKeptForNegativeZero", setup{math.Copysign(0, -1), Expense}, Expense},
		{"IncomeKeptForNegative", setup{-100, Income}, Income},
	}
	for _, test := range tests {
		t.Run(test.name, func(tt *testing.T) {
			s := emptyStore(tt)

			got, err := s.AddTyped("26/10/2023", "Recibo escaneado", test.setup.amount, "Compras", test.setup.ttype)
			assert.Nil(tt, err)
			assert.Equal(tt, test.expected, got.Type)
			assert.Equal(tt, math.Abs(test.setup.amount), got.Amount)
		})
	}
}

func Test_AddPrependsWithUniqueIds(t *testing.T) {
	s := emptyStore(t)

	s.Add("first", 1, "")
	s.Add("second", 2, "")
	s.Add("third", 3, "")

	got := s.List()
	assert.Len(t, got, 3)
	assert.Equal(t, "third", got[0].Description)
	assert.Equal(t, "second", got[1].Description)
	assert.Equal(t, "first", got[2].Description)

	seen := map[string]bool{}
	for _, tr := range got {
		assert.False(t, seen[tr.ID], "duplicate id %s", tr.ID)
		seen[tr.ID] = true
	}
}

func Test_Update(t *testing.T) {
	s := emptyStore(t)
	s.Add("first", 1, "")
	target, _ := s.Add("second", 2, "")
	s.Add("third", 3, "")

	target.Description = "renamed"
	target.Amount = 99
	assert.Nil(t, s.Update(target))

	got := s.List()
	assert.Len(t, got, 3)
	assert.Equal(t, "renamed", got[1].Description)
	assert.Equal(t, 99.0, got[1].Amount)
	assert.Equal(t, "third", got[0].Description)
	assert.Equal(t, "first", got[2].Description)

	assert.Equal(t, ErrNotFound, s.Update(Transaction{ID: "missing"}))
}

func Test_Delete(t *testing.T) {
	s := emptyStore(t)
	keep, _ := s.Add("keep", 1, "")
	gone, _ := s.Add("gone", 2, "")

	assert.Nil(t, s.Delete(gone.ID))
	got := s.List()
	assert.Len(t, got, 1)
	assert.Equal(t, keep.ID, got[0].ID)

	// Unknown id is a no-op.
	assert.Nil(t, s.Delete("missing"))
	assert.Len(t, s.List(), 1)
}

func Test_SetCategory(t *testing.T) {
	s := emptyStore(t)
	tr, _ := s.Add("cafe con leche", -3, "")

	assert.Nil(t, s.SetCategory(tr.ID, "Comida"))
	got, _ := s.Get(tr.ID)
	assert.Equal(t, "Comida", got.Category)

	assert.Nil(t, s.SetCategory(tr.ID, ""))
	got, _ = s.Get(tr.ID)
	assert.Equal(t, Uncategorized, got.Category)

	// Classification arriving after a delete is lost.
	s.Delete(tr.ID)
	assert.Equal(t, ErrNotFound, s.SetCategory(tr.ID, "Comida"))
}

func Test_PersistReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	kv, err := skv.Open(path)
	if err != nil {
		t.Fatalf("skv.Open: %v", err)
	}

	s := Open(kv)
	s.Clear()
	s.Add("uno", -1.25, "Comida")
	s.Add("dos", 2.50, "")
	want := s.List()
	kv.Close()

	kv2, err := skv.Open(path)
	if err != nil {
		t.Fatalf("skv.Open: %v", err)
	}
	defer kv2.Close()

	got := Open(kv2).List()
	assert.Equal(t, want, got)
}

func Test_Clear(t *testing.T) {
	s, _, _ := newStore(t)
	assert.Nil(t, s.Clear())
	assert.Len(t, s.List(), 0)
}
