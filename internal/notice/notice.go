// Package notice manages announcements and the jobs board. Both kinds of
// notice may carry an expiry time after which they are hidden and purged.
package notice

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/problem"
)

// Notice is implemented by the documents kept in a Store.
type Notice interface {
	NoticeID() string
	Expiry() *time.Time
	Timestamp() time.Time
}

// Active reports whether n is visible at now.
func Active(n Notice, now time.Time) bool {
	exp := n.Expiry()
	return exp == nil || now.Before(*exp)
}

// Announcement is an admin-posted message shown to every user.
type Announcement struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      string     `json:"link,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (a Announcement) NoticeID() string     { return a.ID }
func (a Announcement) Expiry() *time.Time   { return a.ExpiresAt }
func (a Announcement) Timestamp() time.Time { return a.CreatedAt }

// Clone returns a deep copy of a.
func (a Announcement) Clone() Announcement {
	a.ExpiresAt = cloneTime(a.ExpiresAt)
	return a
}

// Normalize trims free-form fields.
func (a *Announcement) Normalize() {
	a.Title = strings.TrimSpace(a.Title)
	a.Body = strings.TrimSpace(a.Body)
	a.Link = strings.TrimSpace(a.Link)
}

// Validate checks a normalized announcement against now.
func (a *Announcement) Validate(now time.Time) error {
	if a.Title == "" {
		return apperr.Invalid("announcement title is required")
	}
	if err := validateLink("link", a.Link); err != nil {
		return err
	}
	return validateExpiry(a.ExpiresAt, now)
}

// Text renders the announcement for chat broadcast.
func (a Announcement) Text() string {
	var b strings.Builder
	b.WriteString("*")
	b.WriteString(a.Title)
	b.WriteString("*")
	if a.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(a.Body)
	}
	if a.Link != "" {
		b.WriteString("\n\n")
		b.WriteString(a.Link)
	}
	return b.String()
}

// Job is a posting on the jobs board.
type Job struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Company   string     `json:"company"`
	Location  string     `json:"location,omitempty"`
	URL       string     `json:"url"`
	Tags      []string   `json:"tags,omitempty"`
	PostedAt  time.Time  `json:"posted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (j Job) NoticeID() string     { return j.ID }
func (j Job) Expiry() *time.Time   { return j.ExpiresAt }
func (j Job) Timestamp() time.Time { return j.PostedAt }

// Clone returns a deep copy of j.
func (j Job) Clone() Job {
	j.Tags = slices.Clone(j.Tags)
	j.ExpiresAt = cloneTime(j.ExpiresAt)
	return j
}

// Normalize trims free-form fields and folds tags.
func (j *Job) Normalize() {
	j.Title = strings.TrimSpace(j.Title)
	j.Company = strings.TrimSpace(j.Company)
	j.Location = strings.TrimSpace(j.Location)
	j.URL = strings.TrimSpace(j.URL)
	j.Tags = problem.NormalizeTags(j.Tags)
}

// Validate checks a normalized job against now.
func (j *Job) Validate(now time.Time) error {
	if j.Title == "" {
		return apperr.Invalid("job title is required")
	}
	if j.Company == "" {
		return apperr.Invalid("job company is required")
	}
	if j.URL == "" {
		return apperr.Invalid("job url is required")
	}
	if err := validateLink("url", j.URL); err != nil {
		return err
	}
	return validateExpiry(j.ExpiresAt, now)
}

// HasTag reports whether the job carries tag, compared after folding.
func (j Job) HasTag(tag string) bool {
	want := problem.NormalizeTag(tag)
	for _, t := range j.Tags {
		if t == want {
			return true
		}
	}
	return false
}

func validateLink(field, link string) error {
	if link == "" {
		return nil
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Invalid("%s %q is not an http(s) URL", field, link)
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func validateExpiry(exp *time.Time, now time.Time) error {
	if exp != nil && !exp.After(now) {
		return apperr.Invalid("expires_at must be in the future")
	}
	return nil
}
