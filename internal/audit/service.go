package audit

import (
	"context"
	"log/slog"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// RepositoryPort abstracts the read side for tests.
type RepositoryPort interface {
	List(ctx context.Context, f Filters, limit, offset int) ([]Entry, int, error)
}

// Service exposes the read-only audit trail. Writes happen inside the
// lifecycle services' own transactions via Record.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns a page of the audit trail, newest entries first.
func (s *Service) List(ctx context.Context, f Filters) (shared.Page[Entry], error) {
	meta := shared.NewPagination(f.Page, f.Limit, 0)
	entries, total, err := s.repo.List(ctx, f, meta.Limit, meta.Offset())
	if err != nil {
		return shared.Page[Entry]{}, err
	}
	return shared.NewPage(entries, shared.NewPagination(meta.Page, meta.Limit, total)), nil
}
