package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
)

// SheetPatch carries the editable top-level sheet fields. Nil fields are
// left unchanged.
type SheetPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// CreateSheet validates and stores a new sheet. Missing sheet, section and
// subsection IDs are generated. Every referenced problem must exist.
func (s *Service) CreateSheet(ctx context.Context, sh sheet.Sheet) (sheet.Sheet, error) {
	if err := s.prepareSheet(ctx, &sh); err != nil {
		return sheet.Sheet{}, err
	}
	now := s.now()
	sh.CreatedAt = now
	sh.UpdatedAt = now

	s.sheetMu.Lock()
	err := s.sheets.Create(ctx, sh)
	s.sheetMu.Unlock()
	if err != nil {
		return sheet.Sheet{}, err
	}

	s.memo.Invalidate(ctx)
	s.resyncQuietly(ctx, sh.ProblemIDs())
	return sh, nil
}

// ImportSheet creates the sheet, or replaces the stored sheet with the same
// ID. It reports whether a new sheet was created.
func (s *Service) ImportSheet(ctx context.Context, sh sheet.Sheet) (sheet.Sheet, bool, error) {
	if err := s.prepareSheet(ctx, &sh); err != nil {
		return sheet.Sheet{}, false, err
	}

	s.sheetMu.Lock()
	existing, err := s.sheets.Get(ctx, sh.ID)
	created := errors.Is(err, apperr.ErrNotFound)
	if err != nil && !created {
		s.sheetMu.Unlock()
		return sheet.Sheet{}, false, err
	}

	now := s.now()
	sh.UpdatedAt = now
	if created {
		sh.CreatedAt = now
		err = s.sheets.Create(ctx, sh)
	} else {
		sh.CreatedAt = existing.CreatedAt
		err = s.sheets.Replace(ctx, sh)
	}
	s.sheetMu.Unlock()
	if err != nil {
		return sheet.Sheet{}, false, err
	}

	s.memo.Invalidate(ctx)
	affected := sh.ProblemIDs()
	if !created {
		affected = union(existing.ProblemIDs(), affected)
	}
	s.resyncQuietly(ctx, affected)
	return sh, created, nil
}

func (s *Service) prepareSheet(ctx context.Context, sh *sheet.Sheet) error {
	sh.Normalize()
	if sh.ID == "" {
		sh.ID = s.newID()
	}
	for i := range sh.Sections {
		sec := &sh.Sections[i]
		if sec.ID == "" {
			sec.ID = s.newID()
		}
		for j := range sec.Subsections {
			if sec.Subsections[j].ID == "" {
				sec.Subsections[j].ID = s.newID()
			}
		}
	}
	if err := sh.Validate(); err != nil {
		return err
	}

	ids := sh.ProblemIDs()
	if len(ids) > 0 {
		found, err := s.problems.GetMany(ctx, ids)
		if err != nil {
			return fmt.Errorf("check sheet problems: %w", err)
		}
		var missing []string
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return apperr.Invalid("unknown problems: %s", strings.Join(missing, ", "))
		}
	}
	sh.Compact()
	return nil
}

// GetSheet returns a sheet. With expand set, every problem ref carries the
// current problem document; refs whose problem no longer exists keep any
// embedded copy stored with the sheet.
func (s *Service) GetSheet(ctx context.Context, id string, expand bool) (sheet.Sheet, error) {
	sh, err := s.sheets.Get(ctx, id)
	if err != nil {
		return sheet.Sheet{}, err
	}
	if !expand {
		sh.Compact()
		return sh, nil
	}

	found, err := s.problems.GetMany(ctx, sh.ProblemIDs())
	if err != nil {
		return sheet.Sheet{}, fmt.Errorf("expand sheet %s: %w", id, err)
	}
	for i := range sh.Sections {
		for j := range sh.Sections[i].Subsections {
			refs := sh.Sections[i].Subsections[j].Problems
			for k := range refs {
				if p, ok := found[refs[k].ID]; ok {
					refs[k].Problem = &p
				}
			}
		}
	}
	return sh, nil
}

// ListSheets returns every sheet, oldest first, with ID-only problem refs.
func (s *Service) ListSheets(ctx context.Context) ([]sheet.Sheet, error) {
	all, err := s.sheets.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i].Compact()
	}
	return all, nil
}

// UpdateSheet applies patch to the sheet's name and description.
func (s *Service) UpdateSheet(ctx context.Context, id string, patch SheetPatch) (sheet.Sheet, error) {
	return s.mutate(ctx, id, func(sh *sheet.Sheet) ([]string, bool, error) {
		if patch.Name != nil {
			sh.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			sh.Description = strings.TrimSpace(*patch.Description)
		}
		return nil, true, nil
	})
}

// DeleteSheet removes a sheet and drops its locations from progress records.
func (s *Service) DeleteSheet(ctx context.Context, id string) error {
	s.sheetMu.Lock()
	sh, err := s.sheets.Get(ctx, id)
	if err == nil {
		err = s.sheets.Delete(ctx, id)
	}
	s.sheetMu.Unlock()
	if err != nil {
		return err
	}

	s.memo.Invalidate(ctx)
	s.resyncQuietly(ctx, sh.ProblemIDs())
	return nil
}

// AddSection appends an empty section to a sheet.
func (s *Service) AddSection(ctx context.Context, sheetID, name string) (sheet.Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return sheet.Section{}, apperr.Invalid("section name is required")
	}
	sec := sheet.Section{ID: s.newID(), Name: name, Subsections: []sheet.Subsection{}}
	_, err := s.mutate(ctx, sheetID, func(sh *sheet.Sheet) ([]string, bool, error) {
		sh.Sections = append(sh.Sections, sec)
		return nil, true, nil
	})
	if err != nil {
		return sheet.Section{}, err
	}
	return sec, nil
}

// RenameSection changes a section's name.
func (s *Service) RenameSection(ctx context.Context, sheetID, sectionID, name string) (sheet.Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return sheet.Section{}, apperr.Invalid("section name is required")
	}
	var out sheet.Section
	_, err := s.mutate(ctx, sheetID, func(sh *sheet.Sheet) ([]string, bool, error) {
		sec, err := sh.Section(sectionID)
		if err != nil {
			return nil, false, err
		}
		sec.Name = name
		out = *sec
		return nil, true, nil
	})
	return out, err
}

// DeleteSection removes a section and every subsection in it.
func (s *Service) DeleteSection(ctx context.Context, sheetID, sectionID string) error {
	_, err := s.mutate(ctx, sheetID, func(sh *sheet.Sheet) ([]string, bool, error) {
		sec, err := sh.Section(sectionID)
		if err != nil {
			return nil, false, err
		}
		affected := sec.ProblemIDs()
		sh.Sections = slices.DeleteFunc(sh.Sections, func(x sheet.Section) bool { return x.ID == sectionID })
		return affected, true, nil
	})
	return err
}

// AddSubsection appends an empty subsection to a section.
func (s *Service) AddSubsection(ctx context.Context, sheetID, sectionID, name string) (sheet.Subsection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return sheet.Subsection{}, apperr.Invalid("subsection name is required")
	}
	sub := sheet.Subsection{ID: s.newID(), Name: name, Problems: []sheet.ProblemRef{}}
	_, err := s.mutate(ctx, sheetID, func(sh *sheet.Sheet) ([]string, bool, error) {
		sec, err := sh.Section(sectionID)
		if err != nil {
			return nil, false, err
		}
		sec.Subsections = append(sec.Subsections, sub)
		return nil, true, nil
	})
	if err != nil {
		return sheet.Subsection{}, err
	}
	return sub, nil
}

// RenameSubsection changes a subsection's name.
func (s *Service) RenameSubsection(ctx context.Context, sheetID, sectionID, subsectionID, name string) (sheet.Subsection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return sheet.Subsection{}, apperr.Invalid("subsection name is required")
	}
	var out sheet.Subsection
	_, err := s.mutate(ctx, sheetID, func(sh *sheet.Sheet) ([]string, bool, error) {
		sub, err := sh.Subsection(sectionID, subsectionID)
		if err != nil {
			return nil, false, err
		}
		sub.Name = name
		out = *sub
		return nil, true, nil
	})
	return out, err
}

// DeleteSubsection removes a subsection from its section.
func (s *Service) DeleteSubsection(ctx context.Context, sheetID, sectionID, subsectionID string) error {
	_, err := s.mutate(ctx, sheetID, func(sh *sheet.Sheet) ([]string, bool, error) {
		sub, err := sh.Subsection(sectionID, subsectionID)
		if err != nil {
			return nil, false, err
		}
		var affected []string
		for _, ref := range sub.Problems {
			affected = append(affected, ref.ID)
		}
		sec, _ := sh.Section(sectionID)
		sec.Subsections = slices.DeleteFunc(sec.Subsections, func(x sheet.Subsection) bool { return x.ID == subsectionID })
		return affected, true, nil
	})
	return err
}

// mutate runs a read-modify-write cycle on one sheet under sheetMu. fn edits
// the sheet in place and reports the problems whose locations changed and
// whether the sheet must be written at all.
func (s *Service) mutate(ctx context.Context, sheetID string, fn func(*sheet.Sheet) ([]string, bool, error)) (sheet.Sheet, error) {
	s.sheetMu.Lock()
	sh, err := s.sheets.Get(ctx, sheetID)
	if err != nil {
		s.sheetMu.Unlock()
		return sheet.Sheet{}, err
	}

	affected, write, err := fn(&sh)
	if err != nil || !write {
		s.sheetMu.Unlock()
		return sh, err
	}

	if err := sh.Validate(); err != nil {
		s.sheetMu.Unlock()
		return sheet.Sheet{}, err
	}
	sh.Compact()
	sh.UpdatedAt = s.now()
	err = s.sheets.Replace(ctx, sh)
	s.sheetMu.Unlock()
	if err != nil {
		return sheet.Sheet{}, err
	}

	s.memo.Invalidate(ctx)
	s.resyncQuietly(ctx, affected)
	return sh, nil
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
