// Package problem holds the global practice problem catalog.
package problem

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
)

// Difficulty is a problem's difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Links holds the external resources for a problem.
type Links struct {
	Practice  string `json:"practice,omitempty"`
	Editorial string `json:"editorial,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Problem is a single practice problem. It is global and referenced by ID
// from any number of sheet subsections.
type Problem struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Links      Links      `json:"links"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	Platform   string     `json:"platform,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Normalize canonicalizes free-form fields in place.
func (p *Problem) Normalize() {
	p.ID = strings.TrimSpace(p.ID)
	p.Title = strings.Join(strings.Fields(p.Title), " ")
	p.Difficulty = Difficulty(strings.ToLower(strings.TrimSpace(string(p.Difficulty))))
	p.Platform = Fold(p.Platform)
	p.Tags = NormalizeTags(p.Tags)
	p.Links.Practice = strings.TrimSpace(p.Links.Practice)
	p.Links.Editorial = strings.TrimSpace(p.Links.Editorial)
	p.Links.YouTube = strings.TrimSpace(p.Links.YouTube)
	p.Links.Notes = strings.TrimSpace(p.Links.Notes)
}

// Validate checks a normalized problem.
func (p *Problem) Validate() error {
	if p.Title == "" {
		return apperr.Invalid("problem title is required")
	}
	switch p.Difficulty {
	case "", DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return apperr.Invalid("difficulty %q is not one of easy, medium, hard", p.Difficulty)
	}
	for name, link := range map[string]string{
		"practice":  p.Links.Practice,
		"editorial": p.Links.Editorial,
		"youtube":   p.Links.YouTube,
		"notes":     p.Links.Notes,
	} {
		if link == "" {
			continue
		}
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperr.Invalid("%s link %q is not an http(s) URL", name, link)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p Problem) Clone() Problem {
	p.Tags = slices.Clone(p.Tags)
	return p
}

// Filter narrows problem listings. Zero fields match everything.
type Filter struct {
	Tag        string
	Difficulty string
	Platform   string
	Query      string
}

// Matches reports whether p satisfies every set field of f.
func (f Filter) Matches(p Problem) bool {
	if f.Tag != "" && !slices.Contains(p.Tags, NormalizeTag(f.Tag)) {
		return false
	}
	if f.Difficulty != "" && !strings.EqualFold(string(p.Difficulty), f.Difficulty) {
		return false
	}
	if f.Platform != "" && Fold(p.Platform) != Fold(f.Platform) {
		return false
	}
	if f.Query != "" && !strings.Contains(Fold(p.Title), Fold(f.Query)) {
		return false
	}
	return true
}

// SortByCreated orders problems oldest first, breaking ties by ID.
func SortByCreated(ps []Problem) {
	slices.SortFunc(ps, func(a, b Problem) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
