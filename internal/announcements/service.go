package announcements

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Notifier fans a published announcement out to recipient mailboxes.
// The queue-backed implementation lives in the jobs package.
type Notifier interface {
	NotifyAnnouncement(ctx context.Context, title, body string, recipients []string) error
}

// Service manages the announcement lifecycle: draft, edit, publish.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context, publishedOnly bool) ([]Announcement, error) {
	return s.repo.List(ctx, publishedOnly)
}

func (s *Service) Get(ctx context.Context, id int64) (Announcement, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, authorID *int64, a Announcement) (Announcement, error) {
	if err := validate(&a); err != nil {
		return Announcement{}, err
	}
	a.AuthorID = authorID
	if err := s.repo.Create(ctx, &a); err != nil {
		return Announcement{}, err
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, id int64, a Announcement) (Announcement, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	if current.Published() {
		return Announcement{}, ErrAlreadyPublished
	}
	a.ID = id
	if err := validate(&a); err != nil {
		return Announcement{}, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return Announcement{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Publish freezes the announcement and queues mail to its audience.
// Notification failures are logged, not returned: the publish itself stands.
func (s *Service) Publish(ctx context.Context, id int64) (Announcement, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	if err := s.repo.MarkPublished(ctx, id, s.now()); err != nil {
		return Announcement{}, err
	}

	if s.notifier != nil {
		recipients, err := s.repo.RecipientEmails(ctx, a.Audience)
		if err != nil {
			s.logger.Error("resolve announcement recipients", slog.Any("error", err))
		} else if len(recipients) > 0 {
			if err := s.notifier.NotifyAnnouncement(ctx, a.Title, a.Body, recipients); err != nil {
				s.logger.Error("enqueue announcement mail", slog.Any("error", err))
			} else {
				s.logger.Info("announcement mail queued",
					slog.Int64("id", id), slog.Int("recipients", len(recipients)))
			}
		}
	}
	return s.repo.Get(ctx, id)
}

func validate(a *Announcement) error {
	a.Title = strings.TrimSpace(a.Title)
	a.Body = strings.TrimSpace(a.Body)
	fields := map[string]string{}
	if a.Title == "" {
		fields["title"] = "required"
	}
	if a.Body == "" {
		fields["body"] = "required"
	}
	if a.Audience == "" {
		a.Audience = AudienceAll
	}
	if !a.Audience.Valid() {
		fields["audience"] = "must be one of ALL, TEACHERS, STAFF"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}
