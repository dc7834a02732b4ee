// Package progress stores per-user completion and revision state for problems.
package progress

import (
	"slices"
	"time"

	"github.com/p-n-ai/pai-sheets/internal/sheet"
)

// Progress is one user's state for one problem. The context lists name the
// sheet locations where each flag is shown.
type Progress struct {
	UserID            string           `json:"user_id"`
	ProblemID         string           `json:"problem_id"`
	Completed         bool             `json:"completed"`
	CompletedContexts []sheet.Location `json:"completed_contexts"`
	Revision          bool             `json:"revision"`
	RevisionContexts  []sheet.Location `json:"revision_contexts"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Empty reports whether both flags are cleared. Empty records are deleted
// rather than stored.
func (p Progress) Empty() bool {
	return !p.Completed && !p.Revision
}

// SetCompleted sets the completion flag and its contexts.
func (p *Progress) SetCompleted(done bool, locs []sheet.Location) {
	p.Completed = done
	p.CompletedContexts = contexts(done, locs)
}

// SetRevision sets the revision flag and its contexts.
func (p *Progress) SetRevision(marked bool, locs []sheet.Location) {
	p.Revision = marked
	p.RevisionContexts = contexts(marked, locs)
}

// Sync replaces both context lists with locs, keeping the flags.
// It reports whether anything changed.
func (p *Progress) Sync(locs []sheet.Location) bool {
	completed := contexts(p.Completed, locs)
	revision := contexts(p.Revision, locs)
	if slices.Equal(completed, p.CompletedContexts) && slices.Equal(revision, p.RevisionContexts) {
		return false
	}
	p.CompletedContexts = completed
	p.RevisionContexts = revision
	return true
}

// CompletedAt reports whether the problem counts as completed at loc.
func (p Progress) CompletedAt(loc sheet.Location) bool {
	return p.Completed && slices.Contains(p.CompletedContexts, loc)
}

// RevisionAt reports whether the problem is marked for revision at loc.
func (p Progress) RevisionAt(loc sheet.Location) bool {
	return p.Revision && slices.Contains(p.RevisionContexts, loc)
}

// Clone returns a copy that shares no slices with p.
func (p Progress) Clone() Progress {
	p.CompletedContexts = slices.Clone(p.CompletedContexts)
	p.RevisionContexts = slices.Clone(p.RevisionContexts)
	return p
}

func contexts(on bool, locs []sheet.Location) []sheet.Location {
	if !on {
		return []sheet.Location{}
	}
	out := make([]sheet.Location, len(locs))
	copy(out, locs)
	return out
}
