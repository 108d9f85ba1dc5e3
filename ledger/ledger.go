package ledger

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rapidloop/skv"
	"github.com/rs/zerolog/log"
)

// Uncategorized is the fallback category when no classification is available.
const Uncategorized = "Varios"

const storeKey = "transactions"

type Type string

const (
	Income  Type = "Ingreso"
	Expense Type = "Gasto"
)

type Transaction struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Type        Type    `json:"type"`
}

var (
	ErrInvalid  = errors.New("description and amount are required")
	ErrNotFound = errors.New("transaction not found")
)

// Store holds the ordered ledger, most recent first, and mirrors every
// mutation to the kv file as a single JSON blob. All mutations funnel
// through Add/Update/Delete/SetCategory/Clear.
type Store struct {
	mu           sync.Mutex
	kv           *skv.KVStore
	transactions []Transaction
}

func Open(kv *skv.KVStore) *Store {
	s := &Store{kv: kv}

	var blob []byte
	if err := kv.Get(storeKey, &blob); err != nil {
		if err != skv.ErrNotFound {
			log.Error().Err(err).Msg("Failed to read ledger, seeding defaults")
		}
		s.transactions = seedData()
		s.persist()
		return s
	}
	if err := json.Unmarshal(blob, &s.transactions); err != nil {
		log.Error().Err(err).Msg("Unparsable ledger, seeding defaults")
		s.transactions = seedData()
		s.persist()
		return s
	}
	log.Debug().Msgf("Ledger loaded: %d transactions", len(s.transactions))
	return s
}

func seedData() []Transaction {
	return []Transaction{
		{ID: "1", Date: "25/10/2023", Description: "Inversión Portfolio", Amount: 5000, Category: "Inversión", Type: Income},
		{ID: "2", Date: "26/10/2023", Description: "Cena de Negocios", Amount: 150.00, Category: "Comida", Type: Expense},
	}
}

// Add creates a new transaction at the head of the ledger. The sign of
// amount selects the type, the stored magnitude is always absolute. A
// blank category gets the Uncategorized sentinel; callers that want a
// classified category backfill it later via SetCategory.
func (s *Store) Add(description string, amount float64, category string) (Transaction, error) {
	return s.AddAt(time.Now().Format("02/01/2006"), description, amount, category)
}

// AddAt is Add with an explicit date stamp, for records that carry their
// own date (receipt scans).
func (s *Store) AddAt(date, description string, amount float64, category string) (Transaction, error) {
	typ := Income
	if amount < 0 {
		typ = Expense
	}
	return s.AddTyped(date, description, amount, category, typ)
}

// AddTyped records a transaction with an explicit type, bypassing the
// sign inference. Receipt scans use it: a scan is an expense even when
// the extractor could not read a total and reports zero.
func (s *Store) AddTyped(date, description string, amount float64, category string, typ Type) (Transaction, error) {
	if description == "" || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Transaction{}, ErrInvalid
	}
	if category == "" {
		category = Uncategorized
	}

	t := Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Description: description,
		Amount:      math.Abs(amount),
		Category:    category,
		Type:        typ,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append([]Transaction{t}, s.transactions...)
	log.Debug().Str("id", t.ID).Str("type", string(t.Type)).Msgf("Added %q", t.Description)
	return t, s.persist()
}

// Update replaces the record with t.ID in place, position preserved.
func (s *Store) Update(t Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == t.ID {
			s.transactions[i] = t
			log.Debug().Str("id", t.ID).Msg("Updated transaction")
			return s.persist()
		}
	}
	return ErrNotFound
}

// Delete removes the record with the given id. Deleting an unknown id is
// a no-op, but the ledger is re-persisted regardless.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.transactions[:0]
	for _, t := range s.transactions {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.transactions = kept
	log.Debug().Str("id", id).Msg("Deleted transaction")
	return s.persist()
}

// SetCategory backfills the category of the record currently holding id.
// Returns ErrNotFound when the record was deleted in the interim; callers
// treat that as a lost classification, not a failure.
func (s *Store) SetCategory(id string, category string) error {
	if category == "" {
		category = Uncategorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions[i].Category = category
			return s.persist()
		}
	}
	return ErrNotFound
}

func (s *Store) Get(id string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return Transaction{}, ErrNotFound
}

// List returns a snapshot of the ledger, most recent first.
func (s *Store) List() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Clear wipes the ledger (factory reset).
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = []Transaction{}
	return s.persist()
}

func (s *Store) persist() error {
	blob, _ := json.Marshal(s.transactions)
	if err := s.kv.Put(storeKey, blob); err != nil {
		log.Error().Err(err).Msg("Failed to persist ledger")
		return err
	}
	return nil
}
