// Package vocab accumulates the dictionary terms a learner encounters during
// practice. Transcription and translation turns harvest their dictionaries
// into the store; flashcard tooling reads it back out per language.
package vocab

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rjpio/multivox/internal/chat"
)

// Entry is one vocabulary item in the practice language.
type Entry struct {
	// Term is the word or phrase in the practice language.
	Term string `json:"term"`

	// Reading is the phonetic reading for symbolic scripts; empty otherwise.
	Reading string `json:"reading,omitempty"`

	// Meaning is the gloss in the learner's native language.
	Meaning string `json:"meaning"`

	// Notes holds usage notes in the native language.
	Notes string `json:"notes,omitempty"`

	// Language is the practice language code the term belongs to.
	Language string `json:"language"`

	// Source identifies where the term came from, e.g. a scenario id.
	Source string `json:"source,omitempty"`

	// SeenCount is how many times the term has been harvested.
	SeenCount int `json:"seen_count"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Language string
	Source   string
}

// Store is the vocabulary persistence contract. Implementations must be safe
// for concurrent use.
type Store interface {
	// Add records an entry. Re-adding the same term and language updates
	// the gloss and bumps the seen count instead of duplicating.
	Add(ctx context.Context, entry Entry) error

	// List returns entries matching the filter, most recently seen first.
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Harvest converts a turn's dictionary into entries and adds them all.
// Entries with an empty term are skipped.
func Harvest(ctx context.Context, store Store, dict map[string]chat.DictionaryEntry, language, source string) error {
	for key, d := range dict {
		term := d.SourceText
		if term == "" {
			term = key
		}
		if strings.TrimSpace(term) == "" {
			continue
		}
		err := store.Add(ctx, Entry{
			Term:     term,
			Reading:  d.Reading,
			Meaning:  d.TranslatedText,
			Notes:    d.Notes,
			Language: language,
			Source:   source,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Memory is an in-process Store used when no database is configured and in
// tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

// Compile-time assertion.
var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry), now: time.Now}
}

func memKey(term, language string) string {
	return language + "\x00" + term
}

// Add implements Store.
func (m *Memory) Add(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := memKey(entry.Term, entry.Language)
	if existing, ok := m.entries[key]; ok {
		existing.Meaning = entry.Meaning
		if entry.Reading != "" {
			existing.Reading = entry.Reading
		}
		if entry.Notes != "" {
			existing.Notes = entry.Notes
		}
		existing.SeenCount++
		existing.LastSeen = now
		return nil
	}

	entry.SeenCount = 1
	entry.FirstSeen = now
	entry.LastSeen = now
	m.entries[key] = &entry
	return nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, filter Filter) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.entries {
		if filter.Language != "" && e.Language != filter.Language {
			continue
		}
		if filter.Source != "" && e.Source != filter.Source {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].Term < out[j].Term
	})
	return out, nil
}
