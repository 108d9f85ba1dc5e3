package goals

import (
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

func newStore(t *testing.T) *Store {
	kv, err := skv.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("skv.Open: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return Open(kv)
}

func Test_Add(t *testing.T) {
	s := newStore(t)

	g, err := s.Add("Casa en la playa", "Entrada del piso", 50000)
	assert.Nil(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "Casa en la playa", g.Title)
	assert.Equal(t, 50000.0, g.TargetAmount)
	assert.Equal(t, 0.0, g.SavedAmount)

	_, err = s.Add("", "sin título", 100)
	assert.Equal(t, ErrInvalid, err)
	assert.Len(t, s.List(), 1)
}

func Test_Update(t *testing.T) {
	s := newStore(t)
	g, _ := s.Add("Viaje", "", 2000)

	g.SavedAmount = 350
	assert.Nil(t, s.Update(g))
	assert.Equal(t, 350.0, s.List()[0].SavedAmount)

	assert.Equal(t, ErrNotFound, s.Update(Goal{ID: "missing"}))
}

func Test_SetImage(t *testing.T) {
	s := newStore(t)
	g, _ := s.Add("Moto", "", 8000)

	assert.Nil(t, s.SetImage(g.ID, "data:image/png;base64,aW1n"))
	assert.Equal(t, "data:image/png;base64,aW1n", s.List()[0].ImageURL)

	assert.Equal(t, ErrNotFound, s.SetImage("missing", "data:image/png;base64,aW1n"))
}

func Test_Delete(t *testing.T) {
	s := newStore(t)
	g, _ := s.Add("Moto", "", 8000)

	assert.Nil(t, s.Delete(g.ID))
	assert.Len(t, s.List(), 0)

	// Deleting an unknown id is a no-op.
	assert.Nil(t, s.Delete("missing"))
}

func Test_PersistReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	kv, err := skv.Open(path)
	if err != nil {
		t.Fatalf("skv.Open: %v", err)
	}

	s := Open(kv)
	s.Add("Casa", "Entrada", 50000)
	g, _ := s.Add("Viaje", "", 2000)
	s.SetImage(g.ID, "data:image/png;base64,aW1n")
	before := s.List()
	kv.Close()

	kv2, err := skv.Open(path)
	if err != nil {
		t.Fatalf("skv.Open: %v", err)
	}
	defer kv2.Close()

	assert.Equal(t, before, Open(kv2).List())
}
