package students

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// ErrSectionFull rejects placements into a section at capacity.
var ErrSectionFull = shared.NewValidationError(map[string]string{"sectionId": "section is full"})

// CreateInput carries an admission request.
type CreateInput struct {
	FirstName     string
	LastName      string
	DateOfBirth   *time.Time
	Gender        string
	GuardianName  string
	GuardianPhone string
	SectionID     *int64
}

// UpdateInput carries a partial student change. Nil fields stay untouched.
type UpdateInput struct {
	FirstName     *string
	LastName      *string
	DateOfBirth   *time.Time
	Gender        *string
	GuardianName  *string
	GuardianPhone *string
	SectionID     *int64
	Status        *EnrollmentStatus
}

// Service implements student admission and record keeping.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Admit enrolls a student, assigning the next ADM-<year>-<seq> number.
func (s *Service) Admit(ctx context.Context, in CreateInput) (Student, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.FirstName) == "" {
		fields["firstName"] = "required"
	}
	if strings.TrimSpace(in.LastName) == "" {
		fields["lastName"] = "required"
	}
	if len(fields) > 0 {
		return Student{}, shared.NewValidationError(fields)
	}

	if in.SectionID != nil {
		if err := s.checkSectionSpace(ctx, *in.SectionID); err != nil {
			return Student{}, err
		}
	}

	student := Student{
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		DateOfBirth:   in.DateOfBirth,
		Gender:        in.Gender,
		GuardianName:  strings.TrimSpace(in.GuardianName),
		GuardianPhone: strings.TrimSpace(in.GuardianPhone),
		SectionID:     in.SectionID,
		Status:        StatusEnrolled,
	}
	if err := s.repo.CreateWithAdmission(ctx, &student, s.now().Year()); err != nil {
		return Student{}, err
	}

	s.logger.Info("student admitted",
		slog.Int64("studentId", student.ID),
		slog.String("admissionNo", student.AdmissionNo),
	)
	return student, nil
}

// Update applies a partial change. Moving into a different section re-checks
// its capacity.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Student, error) {
	student, err := s.repo.Get(ctx, id)
	if err != nil {
		return Student{}, err
	}

	if in.FirstName != nil {
		student.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		student.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.DateOfBirth != nil {
		student.DateOfBirth = in.DateOfBirth
	}
	if in.Gender != nil {
		student.Gender = *in.Gender
	}
	if in.GuardianName != nil {
		student.GuardianName = strings.TrimSpace(*in.GuardianName)
	}
	if in.GuardianPhone != nil {
		student.GuardianPhone = strings.TrimSpace(*in.GuardianPhone)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return Student{}, shared.NewValidationError(map[string]string{"status": "unknown status"})
		}
		student.Status = *in.Status
	}
	if in.SectionID != nil {
		moving := student.SectionID == nil || *student.SectionID != *in.SectionID
		if moving && *in.SectionID != 0 {
			if err := s.checkSectionSpace(ctx, *in.SectionID); err != nil {
				return Student{}, err
			}
		}
		if *in.SectionID == 0 {
			student.SectionID = nil
		} else {
			student.SectionID = in.SectionID
		}
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return Student{}, err
	}
	return student, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Student, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilters) (shared.Page[Student], error) {
	meta := shared.NewPagination(f.Page, f.Limit, 0)
	items, total, err := s.repo.List(ctx, f, meta.Limit, meta.Offset())
	if err != nil {
		return shared.Page[Student]{}, err
	}
	return shared.NewPage(items, shared.NewPagination(meta.Page, meta.Limit, total)), nil
}

func (s *Service) checkSectionSpace(ctx context.Context, sectionID int64) error {
	occupied, capacity, err := s.repo.SectionOccupancy(ctx, sectionID)
	if err != nil {
		return err
	}
	if occupied >= capacity {
		return ErrSectionFull
	}
	return nil
}
