package tracker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/problem"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
)

// CreateProblem validates and stores a new problem, generating its ID when
// none is given.
func (s *Service) CreateProblem(ctx context.Context, p problem.Problem) (problem.Problem, error) {
	p.Normalize()
	if p.ID == "" {
		p.ID = s.newID()
	}
	if err := p.Validate(); err != nil {
		return problem.Problem{}, err
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.problems.Create(ctx, p); err != nil {
		return problem.Problem{}, err
	}
	return p, nil
}

// UpsertProblem creates p or overwrites the stored problem with the same ID.
// It reports whether a new problem was created.
func (s *Service) UpsertProblem(ctx context.Context, p problem.Problem) (problem.Problem, bool, error) {
	p.Normalize()
	if p.ID == "" {
		created, err := s.CreateProblem(ctx, p)
		return created, err == nil, err
	}

	existing, err := s.problems.Get(ctx, p.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		created, err := s.CreateProblem(ctx, p)
		return created, err == nil, err
	}
	if err != nil {
		return problem.Problem{}, false, err
	}

	if err := p.Validate(); err != nil {
		return problem.Problem{}, false, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	if err := s.problems.Update(ctx, p); err != nil {
		return problem.Problem{}, false, err
	}
	return p, false, nil
}

// GetProblem returns one problem.
func (s *Service) GetProblem(ctx context.Context, id string) (problem.Problem, error) {
	return s.problems.Get(ctx, id)
}

// ListProblems returns the problems matching f, oldest first.
func (s *Service) ListProblems(ctx context.Context, f problem.Filter) ([]problem.Problem, error) {
	return s.problems.List(ctx, f)
}

// UpdateProblem replaces the editable fields of an existing problem.
func (s *Service) UpdateProblem(ctx context.Context, id string, p problem.Problem) (problem.Problem, error) {
	existing, err := s.problems.Get(ctx, id)
	if err != nil {
		return problem.Problem{}, err
	}
	p.ID = id
	p.Normalize()
	if err := p.Validate(); err != nil {
		return problem.Problem{}, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	if err := s.problems.Update(ctx, p); err != nil {
		return problem.Problem{}, err
	}
	return p, nil
}

// DeleteProblem removes a problem, then scrubs it from every sheet and deletes
// every progress record for it. Only the problem delete itself can fail the
// call; cleanup failures are logged. Cleanup also runs when the problem is
// already gone, so repeating a delete clears leftover references.
func (s *Service) DeleteProblem(ctx context.Context, id string) error {
	err := s.problems.Delete(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	s.scrubSheets(ctx, id)
	s.purgeProgress(ctx, id)
	return err
}

func (s *Service) scrubSheets(ctx context.Context, problemID string) {
	s.sheetMu.Lock()
	defer s.sheetMu.Unlock()

	all, err := s.sheets.List(ctx)
	if err != nil {
		slog.Warn("sheet scrub failed", "problem_id", problemID, "error", err)
		return
	}
	for _, sh := range all {
		if sh.RemoveProblem(problemID) == 0 {
			continue
		}
		sh.Compact()
		sh.UpdatedAt = s.now()
		if err := s.sheets.Replace(ctx, sh); err != nil {
			slog.Warn("sheet scrub failed", "problem_id", problemID, "sheet_id", sh.ID, "error", err)
			continue
		}
		slog.Info("problem removed from sheet", "problem_id", problemID, "sheet_id", sh.ID)
	}
	s.memo.Invalidate(ctx)
}

func (s *Service) purgeProgress(ctx context.Context, problemID string) {
	defer s.progressMu.lock(problemID)()

	records, err := s.progress.ListByProblem(ctx, problemID)
	if err != nil {
		slog.Warn("progress purge failed", "problem_id", problemID, "error", err)
		return
	}
	n, err := s.progress.DeleteByProblem(ctx, problemID)
	if err != nil {
		slog.Warn("progress purge failed", "problem_id", problemID, "error", err)
		return
	}
	for _, rec := range records {
		s.publish(EventProgressCleared, rec)
	}
	slog.Info("progress purged", "problem_id", problemID, "records", n)
}

// LinkProblem adds a reference to problemID at loc. Linking a problem that is
// already present is a no-op.
func (s *Service) LinkProblem(ctx context.Context, loc sheet.Location, problemID string) (sheet.Subsection, error) {
	if _, err := s.requireProblem(ctx, problemID); err != nil {
		return sheet.Subsection{}, err
	}

	var out sheet.Subsection
	_, err := s.mutate(ctx, loc.SheetID, func(sh *sheet.Sheet) ([]string, bool, error) {
		sub, err := sh.Subsection(loc.SectionID, loc.SubsectionID)
		if err != nil {
			return nil, false, err
		}
		changed := sub.Add(problemID)
		out = *sub
		return []string{problemID}, changed, nil
	})
	return out, err
}

// CreateAndLinkProblem creates a problem and links it at loc. The location is
// checked first so a bad location does not leave an orphan problem behind.
func (s *Service) CreateAndLinkProblem(ctx context.Context, loc sheet.Location, p problem.Problem) (problem.Problem, error) {
	sh, err := s.sheets.Get(ctx, loc.SheetID)
	if err != nil {
		return problem.Problem{}, err
	}
	if _, err := sh.Subsection(loc.SectionID, loc.SubsectionID); err != nil {
		return problem.Problem{}, err
	}

	created, err := s.CreateProblem(ctx, p)
	if err != nil {
		return problem.Problem{}, err
	}
	if _, err := s.LinkProblem(ctx, loc, created.ID); err != nil {
		return problem.Problem{}, err
	}
	return created, nil
}

// UnlinkProblem removes the reference to problemID at loc. The problem itself
// is kept.
func (s *Service) UnlinkProblem(ctx context.Context, loc sheet.Location, problemID string) error {
	_, err := s.mutate(ctx, loc.SheetID, func(sh *sheet.Sheet) ([]string, bool, error) {
		sub, err := sh.Subsection(loc.SectionID, loc.SubsectionID)
		if err != nil {
			return nil, false, err
		}
		if !sub.Remove(problemID) {
			return nil, false, apperr.NotFound("problem %s is not linked in subsection %s", problemID, loc.SubsectionID)
		}
		return []string{problemID}, true, nil
	})
	return err
}
