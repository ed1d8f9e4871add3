// Package scenario holds the role-play catalogue: chapters of practice
// conversations, each with the instructions that seed the tutor's persona.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a chapter or scenario id is unknown.
var ErrNotFound = errors.New("scenario: not found")

// Scenario is one practice conversation.
type Scenario struct {
	// ID is a URL-friendly slug.
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Instructions seed the upstream model's role-play persona. They are
	// language-independent; the language comes from the session.
	Instructions string `yaml:"instructions" json:"instructions"`
}

// Chapter groups scenarios into a course unit.
type Chapter struct {
	ID            string     `yaml:"id" json:"id"`
	Title         string     `yaml:"title" json:"title"`
	Description   string     `yaml:"description,omitempty" json:"description,omitempty"`
	Conversations []Scenario `yaml:"conversations" json:"conversations"`
}

// Catalogue is an immutable, indexed set of chapters.
type Catalogue struct {
	chapters  []Chapter
	byChapter map[string]Chapter
	byID      map[string]Scenario
}

// New builds a Catalogue and validates id uniqueness across all chapters.
func New(chapters []Chapter) (*Catalogue, error) {
	c := &Catalogue{
		chapters:  chapters,
		byChapter: make(map[string]Chapter, len(chapters)),
		byID:      make(map[string]Scenario),
	}
	for _, ch := range chapters {
		if ch.ID == "" {
			return nil, fmt.Errorf("scenario: chapter %q has no id", ch.Title)
		}
		if _, dup := c.byChapter[ch.ID]; dup {
			return nil, fmt.Errorf("scenario: duplicate chapter id %q", ch.ID)
		}
		c.byChapter[ch.ID] = ch
		for _, s := range ch.Conversations {
			if s.ID == "" {
				return nil, fmt.Errorf("scenario: scenario %q in chapter %q has no id", s.Title, ch.ID)
			}
			if _, dup := c.byID[s.ID]; dup {
				return nil, fmt.Errorf("scenario: duplicate scenario id %q", s.ID)
			}
			c.byID[s.ID] = s
		}
	}
	return c, nil
}

// Load reads a catalogue from a YAML file.
func Load(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader reads a catalogue from YAML. Unknown fields are rejected so
// typos in hand-edited files fail loudly.
func LoadFromReader(r io.Reader) (*Catalogue, error) {
	var doc struct {
		Chapters []Chapter `yaml:"chapters"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("scenario: parse yaml: %w", err)
	}
	if len(doc.Chapters) == 0 {
		return nil, errors.New("scenario: no chapters defined")
	}
	return New(doc.Chapters)
}

// Chapters returns all chapters in catalogue order.
func (c *Catalogue) Chapters() []Chapter {
	out := make([]Chapter, len(c.chapters))
	copy(out, c.chapters)
	return out
}

// Chapter returns the chapter with the given id.
func (c *Catalogue) Chapter(id string) (Chapter, error) {
	ch, ok := c.byChapter[id]
	if !ok {
		return Chapter{}, fmt.Errorf("%w: chapter %q", ErrNotFound, id)
	}
	return ch, nil
}

// Scenarios returns every scenario across all chapters, in catalogue order.
func (c *Catalogue) Scenarios() []Scenario {
	var out []Scenario
	for _, ch := range c.chapters {
		out = append(out, ch.Conversations...)
	}
	return out
}

// Scenario returns the scenario with the given id.
func (c *Catalogue) Scenario(id string) (Scenario, error) {
	s, ok := c.byID[id]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: scenario %q", ErrNotFound, id)
	}
	return s, nil
}

// Default returns the built-in catalogue used when no scenario file is
// configured.
func Default() *Catalogue {
	c, err := New([]Chapter{
		{
			ID:          "everyday",
			Title:       "Everyday situations",
			Description: "Short role-plays for common daily interactions.",
			Conversations: []Scenario{
				{
					ID:    "hotel",
					Title: "Checking into a hotel",
					Instructions: `We are going to role-play a scenario.

You are a hotel receptionist.
You act _exactly_ as a hotel receptionist at a front desk would.
Do not break character under any circumstances.
You don't know any other languages.
Don't explain yourself or refer to yourself e.g. as "I'm a helpful receptionist".

A guest approaches...
`,
				},
				{
					ID:           "restaurant",
					Title:        "Ordering at a restaurant",
					Instructions: "You are a waiter at a casual restaurant. Take the customer's order and answer questions about the menu.",
				},
				{
					ID:           "directions",
					Title:        "Asking for directions",
					Instructions: "You are a local resident. Help the tourist find their way to popular attractions and recommend places to visit.",
				},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}
