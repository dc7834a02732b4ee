// Package sheet models curated problem sheets: a sheet holds ordered
// sections, a section holds subsections, and a subsection references problems.
package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/problem"
)

// Location identifies one subsection of one sheet.
type Location struct {
	SheetID      string `json:"sheet_id"`
	SectionID    string `json:"section_id"`
	SubsectionID string `json:"subsection_id"`
}

// ProblemRef points at a global problem from a subsection.
//
// Stored sheets contain two encodings: a bare problem ID string, and an
// embedded problem object keyed by "id" or "_id". Both decode into a ref; the
// embedded copy is kept in Problem. Refs marshal back to the bare ID unless
// Problem is set.
type ProblemRef struct {
	ID      string
	Problem *problem.Problem
}

// Ref returns an ID-only reference.
func Ref(id string) ProblemRef {
	return ProblemRef{ID: id}
}

func (r ProblemRef) MarshalJSON() ([]byte, error) {
	if r.Problem != nil {
		return json.Marshal(r.Problem)
	}
	return json.Marshal(r.ID)
}

func (r *ProblemRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("problem reference is empty")
		}
		*r = ProblemRef{ID: id}
		return nil
	}

	var keys struct {
		ID       string `json:"id"`
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("decode problem reference: %w", err)
	}
	id := strings.TrimSpace(keys.ID)
	if id == "" {
		id = strings.TrimSpace(keys.LegacyID)
	}
	if id == "" {
		return fmt.Errorf("embedded problem has no id")
	}

	var p problem.Problem
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode embedded problem %s: %w", id, err)
	}
	p.ID = id
	*r = ProblemRef{ID: id, Problem: &p}
	return nil
}

// Subsection is the leaf grouping of a sheet.
type Subsection struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Problems []ProblemRef `json:"problems"`
}

// Section groups subsections.
type Section struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Subsections []Subsection `json:"subsections"`
}

// Sheet is a curated, ordered problem list.
type Sheet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Sections    []Section `json:"sections"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Normalize trims names and drops duplicate problem refs within a subsection.
func (s *Sheet) Normalize() {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
	if s.Sections == nil {
		s.Sections = []Section{}
	}
	for i := range s.Sections {
		sec := &s.Sections[i]
		sec.ID = strings.TrimSpace(sec.ID)
		sec.Name = strings.TrimSpace(sec.Name)
		if sec.Subsections == nil {
			sec.Subsections = []Subsection{}
		}
		for j := range sec.Subsections {
			sub := &sec.Subsections[j]
			sub.ID = strings.TrimSpace(sub.ID)
			sub.Name = strings.TrimSpace(sub.Name)
			seen := make(map[string]bool, len(sub.Problems))
			refs := make([]ProblemRef, 0, len(sub.Problems))
			for _, ref := range sub.Problems {
				if ref.ID == "" || seen[ref.ID] {
					continue
				}
				seen[ref.ID] = true
				refs = append(refs, ref)
			}
			sub.Problems = refs
		}
	}
}

// Validate checks names and ID uniqueness.
func (s *Sheet) Validate() error {
	if s.Name == "" {
		return apperr.Invalid("sheet name is required")
	}
	sections := make(map[string]bool, len(s.Sections))
	for _, sec := range s.Sections {
		if sec.ID == "" {
			return apperr.Invalid("section id is required")
		}
		if sec.Name == "" {
			return apperr.Invalid("section %s name is required", sec.ID)
		}
		if sections[sec.ID] {
			return apperr.Invalid("duplicate section id %s", sec.ID)
		}
		sections[sec.ID] = true

		subsections := make(map[string]bool, len(sec.Subsections))
		for _, sub := range sec.Subsections {
			if sub.ID == "" {
				return apperr.Invalid("subsection id is required in section %s", sec.ID)
			}
			if sub.Name == "" {
				return apperr.Invalid("subsection %s name is required", sub.ID)
			}
			if subsections[sub.ID] {
				return apperr.Invalid("duplicate subsection id %s in section %s", sub.ID, sec.ID)
			}
			subsections[sub.ID] = true
		}
	}
	return nil
}

// Compact drops embedded problem copies so only IDs are persisted.
func (s *Sheet) Compact() {
	for i := range s.Sections {
		for j := range s.Sections[i].Subsections {
			refs := s.Sections[i].Subsections[j].Problems
			for k := range refs {
				refs[k].Problem = nil
			}
		}
	}
}

// Clone returns a deep copy. Embedded problems are shared.
func (s Sheet) Clone() Sheet {
	s.Sections = slices.Clone(s.Sections)
	for i := range s.Sections {
		s.Sections[i].Subsections = slices.Clone(s.Sections[i].Subsections)
		for j := range s.Sections[i].Subsections {
			s.Sections[i].Subsections[j].Problems = slices.Clone(s.Sections[i].Subsections[j].Problems)
		}
	}
	return s
}

// Section returns the section with the given ID.
func (s *Sheet) Section(id string) (*Section, error) {
	for i := range s.Sections {
		if s.Sections[i].ID == id {
			return &s.Sections[i], nil
		}
	}
	return nil, apperr.NotFound("section %s not found in sheet %s", id, s.ID)
}

// Subsection returns the subsection at the given location within s.
func (s *Sheet) Subsection(sectionID, subsectionID string) (*Subsection, error) {
	sec, err := s.Section(sectionID)
	if err != nil {
		return nil, err
	}
	for i := range sec.Subsections {
		if sec.Subsections[i].ID == subsectionID {
			return &sec.Subsections[i], nil
		}
	}
	return nil, apperr.NotFound("subsection %s not found in section %s", subsectionID, sectionID)
}

// ProblemIDs returns every referenced problem ID once, in sheet order.
func (s *Sheet) ProblemIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, sec := range s.Sections {
		out = appendSectionIDs(out, seen, sec)
	}
	return out
}

// ProblemIDs returns every problem ID referenced by the section once.
func (sec *Section) ProblemIDs() []string {
	return appendSectionIDs(nil, make(map[string]bool), *sec)
}

func appendSectionIDs(out []string, seen map[string]bool, sec Section) []string {
	for _, sub := range sec.Subsections {
		for _, ref := range sub.Problems {
			if !seen[ref.ID] {
				seen[ref.ID] = true
				out = append(out, ref.ID)
			}
		}
	}
	return out
}

// Contains reports whether any subsection of s references problemID.
func (s *Sheet) Contains(problemID string) bool {
	for _, sec := range s.Sections {
		for i := range sec.Subsections {
			if sec.Subsections[i].Has(problemID) {
				return true
			}
		}
	}
	return false
}

// RemoveProblem deletes every reference to problemID and reports how many
// subsections changed.
func (s *Sheet) RemoveProblem(problemID string) int {
	removed := 0
	for i := range s.Sections {
		for j := range s.Sections[i].Subsections {
			if s.Sections[i].Subsections[j].Remove(problemID) {
				removed++
			}
		}
	}
	return removed
}

// Has reports whether the subsection references problemID.
func (sub *Subsection) Has(problemID string) bool {
	return slices.ContainsFunc(sub.Problems, func(r ProblemRef) bool { return r.ID == problemID })
}

// Add appends a reference unless one already exists.
func (sub *Subsection) Add(problemID string) bool {
	if sub.Has(problemID) {
		return false
	}
	sub.Problems = append(sub.Problems, Ref(problemID))
	return true
}

// Remove drops the reference to problemID if present.
func (sub *Subsection) Remove(problemID string) bool {
	n := len(sub.Problems)
	sub.Problems = slices.DeleteFunc(sub.Problems, func(r ProblemRef) bool { return r.ID == problemID })
	return len(sub.Problems) != n
}

// Locate scans every sheet for subsections referencing problemID.
func Locate(sheets []Sheet, problemID string) []Location {
	var out []Location
	for _, s := range sheets {
		for _, sec := range s.Sections {
			for _, sub := range sec.Subsections {
				if sub.Has(problemID) {
					out = append(out, Location{SheetID: s.ID, SectionID: sec.ID, SubsectionID: sub.ID})
				}
			}
		}
	}
	return out
}

// SortByCreated orders sheets oldest first, breaking ties by ID.
func SortByCreated(sheets []Sheet) {
	slices.SortFunc(sheets, func(a, b Sheet) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
