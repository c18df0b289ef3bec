// Package activations stores extracted hidden-state vectors keyed by model,
// prompt and layer, with optional persistence.
package activations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Key identifies one extracted vector.
type Key struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Layer  int    `json:"layer"`
}

// Entry is one cached vector.
type Entry struct {
	Key         Key       `json:"key"`
	Values      []float64 `json:"values"`
	Token       string    `json:"token"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Bank holds every entry extracted from one model.
type Bank struct {
	Model     string    `json:"model"`
	Entries   []Entry   `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dimension returns the vector length of the first entry, or 0.
func (b *Bank) Dimension() int {
	for _, e := range b.Entries {
		if len(e.Values) > 0 {
			return len(e.Values)
		}
	}
	return 0
}

// ValidateDimensions returns the bank dimension and the keys whose vectors
// disagree with it.
func (b *Bank) ValidateDimensions() (dim int, mismatched []Key) {
	dim = b.Dimension()
	if dim == 0 {
		return 0, nil
	}
	for _, e := range b.Entries {
		if len(e.Values) != dim {
			mismatched = append(mismatched, e.Key)
		}
	}
	return dim, mismatched
}

// Stats reports cache effectiveness.
type Stats struct {
	Entries int
	Hits    int
	Misses  int
}

// HitRate returns hits over lookups, or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type bank struct {
	meta    Bank
	entries map[Key]*Entry
	order   []Key
}

// Store is a concurrency-safe activation cache. It satisfies
// patchscope.Cache.
type Store struct {
	mu     sync.RWMutex
	banks  map[string]*bank
	hits   int
	misses int
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{banks: make(map[string]*bank), now: time.Now}
}

// Store records a vector. An existing entry for the same key is replaced.
func (s *Store) Store(modelName, prompt string, layer int, values []float64, token string) {
	s.Put(Entry{
		Key:    Key{Model: modelName, Prompt: prompt, Layer: layer},
		Values: values,
		Token:  token,
	})
}

// Put records e, copying its values.
func (s *Store) Put(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e.ExtractedAt.IsZero() {
		e.ExtractedAt = now
	}
	e.Values = append([]float64(nil), e.Values...)

	b, ok := s.banks[e.Key.Model]
	if !ok {
		b = &bank{meta: Bank{Model: e.Key.Model, CreatedAt: now}, entries: make(map[Key]*Entry)}
		s.banks[e.Key.Model] = b
	}
	if _, exists := b.entries[e.Key]; !exists {
		b.order = append(b.order, e.Key)
	}
	b.entries[e.Key] = &e
	b.meta.UpdatedAt = now
}

// Lookup returns a copy of the cached vector for the key.
func (s *Store) Lookup(modelName, prompt string, layer int) ([]float64, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.banks[modelName]; ok {
		if e, ok := b.entries[Key{Model: modelName, Prompt: prompt, Layer: layer}]; ok {
			s.hits++
			return append([]float64(nil), e.Values...), e.Token, true
		}
	}
	s.misses++
	return nil, "", false
}

// Get returns a copy of the bank for a model.
func (s *Store) Get(modelName string) (*Bank, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.banks[modelName]
	if !ok {
		return nil, false
	}
	return b.snapshot(), true
}

func (b *bank) snapshot() *Bank {
	cpy := b.meta
	cpy.Entries = make([]Entry, 0, len(b.order))
	for _, k := range b.order {
		e := *b.entries[k]
		e.Values = append([]float64(nil), e.Values...)
		cpy.Entries = append(cpy.Entries, e)
	}
	return &cpy
}

// List returns entry counts per model.
func (s *Store) List() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int, len(s.banks))
	for name, b := range s.banks {
		result[name] = len(b.entries)
	}
	return result
}

// Clear removes every entry for a model.
func (s *Store) Clear(modelName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.banks[modelName]; ok {
		delete(s.banks, modelName)
		return true
	}
	return false
}

// ClearAll removes everything and returns the number of models cleared.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.banks)
	s.banks = make(map[string]*bank)
	return n
}

// Count returns the total number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.banks {
		n += len(b.entries)
	}
	return n
}

// Stats returns entry and lookup counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.banks {
		n += len(b.entries)
	}
	return Stats{Entries: n, Hits: s.hits, Misses: s.misses}
}

// fileName maps a model name to a safe JSON file name.
func fileName(modelName string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return r.Replace(modelName) + ".json"
}

// Save writes one JSON file per model into dir.
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	names := make([]string, 0, len(s.banks))
	toSave := make(map[string][]byte, len(s.banks))
	for name, b := range s.banks {
		data, err := json.MarshalIndent(b.snapshot(), "", "  ")
		if err != nil {
			s.mu.RUnlock()
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		names = append(names, name)
		toSave[name] = data
	}
	s.mu.RUnlock()
	sort.Strings(names)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, name := range names {
		path := filepath.Join(dir, fileName(name))
		if err := os.WriteFile(path, toSave[name], 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// Load merges banks saved by Save. A missing directory is not an error.
func (s *Store) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var loaded []Bank
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		var b Bank
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("unmarshal %s: %w", entry.Name(), err)
		}
		loaded = append(loaded, b)
	}

	for _, b := range loaded {
		for _, e := range b.Entries {
			s.Put(e)
		}
	}
	return nil
}
