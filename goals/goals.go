package goals

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rapidloop/skv"
	"github.com/rs/zerolog/log"
)

const storeKey = "goals"

var (
	ErrInvalid  = errors.New("title is required")
	ErrNotFound = errors.New("goal not found")
)

type Goal struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	TargetAmount float64 `json:"targetAmount"`
	SavedAmount  float64 `json:"savedAmount"`
	ImageURL     string  `json:"imageUrl,omitempty"`
}

// Store keeps the vision-board goals in the same kv file as the ledger,
// same full-replace JSON discipline.
type Store struct {
	mu    sync.Mutex
	kv    *skv.KVStore
	goals []Goal
}

func Open(kv *skv.KVStore) *Store {
	s := &Store{kv: kv}
	var blob []byte
	if err := kv.Get(storeKey, &blob); err != nil {
		if err != skv.ErrNotFound {
			log.Error().Err(err).Msg("Failed to read goals")
		}
		s.goals = []Goal{}
		return s
	}
	if err := json.Unmarshal(blob, &s.goals); err != nil {
		log.Error().Err(err).Msg("Unparsable goals, starting empty")
		s.goals = []Goal{}
	}
	return s
}

func (s *Store) Add(title, description string, target float64) (Goal, error) {
	if title == "" {
		return Goal{}, ErrInvalid
	}
	g := Goal{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  description,
		TargetAmount: target,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, g)
	return g, s.persist()
}

func (s *Store) Update(g Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == g.ID {
			s.goals[i] = g
			return s.persist()
		}
	}
	return ErrNotFound
}

func (s *Store) SetImage(id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals[i].ImageURL = url
			return s.persist()
		}
	}
	return ErrNotFound
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.goals[:0]
	for _, g := range s.goals {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	s.goals = kept
	return s.persist()
}

func (s *Store) List() []Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Goal, len(s.goals))
	copy(out, s.goals)
	return out
}

func (s *Store) persist() error {
	blob, _ := json.Marshal(s.goals)
	if err := s.kv.Put(storeKey, blob); err != nil {
		log.Error().Err(err).Msg("Failed to persist goals")
		return err
	}
	return nil
}
