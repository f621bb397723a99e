// Package announcements publishes school-wide notices and fans them out
// to staff mailboxes through the job queue.
package announcements

import (
	"errors"
	"time"
)

// Audience selects who receives an announcement.
type Audience string

const (
	AudienceAll      Audience = "ALL"
	AudienceTeachers Audience = "TEACHERS"
	AudienceStaff    Audience = "STAFF"
)

// Valid reports whether a is a known audience.
func (a Audience) Valid() bool {
	switch a {
	case AudienceAll, AudienceTeachers, AudienceStaff:
		return true
	}
	return false
}

// ErrAlreadyPublished rejects publishing or editing a published announcement.
var ErrAlreadyPublished = errors.New("announcement already published")

// Announcement is a notice authored by staff. Drafts are editable;
// published announcements are frozen.
type Announcement struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Audience    Audience   `json:"audience"`
	AuthorID    *int64     `json:"authorId,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Published reports whether the announcement has gone out.
func (a Announcement) Published() bool { return a.PublishedAt != nil }
