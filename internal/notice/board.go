package notice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Broadcaster sends announcement text to outside channels.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) error
}

// BoardConfig holds dependencies for a Board.
type BoardConfig struct {
	Announcements AnnouncementStore
	Jobs          JobStore
	Broadcaster   Broadcaster // optional
	Now           func() time.Time
	NewID         func() string
}

// Board posts, lists and expires announcements and jobs.
type Board struct {
	announcements AnnouncementStore
	jobs          JobStore
	broadcaster   Broadcaster
	now           func() time.Time
	newID         func() string
}

// NewBoard creates a Board. Missing stores default to in-memory ones.
func NewBoard(cfg BoardConfig) *Board {
	announcements := cfg.Announcements
	if announcements == nil {
		announcements = NewMemoryStore[Announcement]("announcement")
	}
	jobs := cfg.Jobs
	if jobs == nil {
		jobs = NewMemoryStore[Job]("job")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Board{
		announcements: announcements,
		jobs:          jobs,
		broadcaster:   cfg.Broadcaster,
		now:           now,
		newID:         newID,
	}
}

// PostAnnouncement stores a new announcement and broadcasts it when a
// broadcaster is configured. Broadcast failures are logged only.
func (b *Board) PostAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	now := b.now()
	a.Normalize()
	if err := a.Validate(now); err != nil {
		return Announcement{}, err
	}
	a.ID = b.newID()
	a.CreatedAt = now
	if err := b.announcements.Create(ctx, a); err != nil {
		return Announcement{}, err
	}

	if b.broadcaster != nil {
		if err := b.broadcaster.Broadcast(ctx, a.Text()); err != nil {
			slog.Warn("announcement broadcast failed", "announcement_id", a.ID, "error", err)
		}
	}
	return a, nil
}

// ListAnnouncements returns unexpired announcements, newest first.
func (b *Board) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	return b.announcements.ListActive(ctx, b.now())
}

// DeleteAnnouncement removes an announcement.
func (b *Board) DeleteAnnouncement(ctx context.Context, id string) error {
	return b.announcements.Delete(ctx, id)
}

// PostJob stores a new job posting.
func (b *Board) PostJob(ctx context.Context, j Job) (Job, error) {
	now := b.now()
	j.Normalize()
	if err := j.Validate(now); err != nil {
		return Job{}, err
	}
	j.ID = b.newID()
	if j.PostedAt.IsZero() || j.PostedAt.After(now) {
		j.PostedAt = now
	}
	if err := b.jobs.Create(ctx, j); err != nil {
		return Job{}, err
	}
	return j, nil
}

// ListJobs returns unexpired jobs, newest first. A non-empty tag keeps only
// jobs carrying it.
func (b *Board) ListJobs(ctx context.Context, tag string) ([]Job, error) {
	jobs, err := b.jobs.ListActive(ctx, b.now())
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return jobs, nil
	}
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if j.HasTag(tag) {
			out = append(out, j)
		}
	}
	return out, nil
}

// DeleteJob removes a job posting.
func (b *Board) DeleteJob(ctx context.Context, id string) error {
	return b.jobs.Delete(ctx, id)
}

// PurgeResult counts the notices removed by Purge.
type PurgeResult struct {
	Announcements int `json:"announcements"`
	Jobs          int `json:"jobs"`
}

// Purge deletes every expired announcement and job.
func (b *Board) Purge(ctx context.Context) (PurgeResult, error) {
	now := b.now()
	var res PurgeResult
	var errs []error

	n, err := b.announcements.PurgeExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge announcements: %w", err))
	}
	res.Announcements = n

	n, err = b.jobs.PurgeExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge jobs: %w", err))
	}
	res.Jobs = n

	return res, errors.Join(errs...)
}
