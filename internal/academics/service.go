package academics

import (
	"context"
	"strings"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Service validates and orchestrates academic structure changes.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListYears(ctx context.Context) ([]AcademicYear, error) {
	return s.repo.ListYears(ctx)
}

func (s *Service) ActiveYear(ctx context.Context) (AcademicYear, error) {
	return s.repo.ActiveYear(ctx)
}

func (s *Service) CreateYear(ctx context.Context, y AcademicYear) (AcademicYear, error) {
	if err := validateYear(y); err != nil {
		return AcademicYear{}, err
	}
	y.Name = strings.TrimSpace(y.Name)
	if err := s.repo.CreateYear(ctx, &y); err != nil {
		return AcademicYear{}, err
	}
	return y, nil
}

func (s *Service) UpdateYear(ctx context.Context, id int64, y AcademicYear) (AcademicYear, error) {
	if err := validateYear(y); err != nil {
		return AcademicYear{}, err
	}
	existing, err := s.repo.GetYear(ctx, id)
	if err != nil {
		return AcademicYear{}, err
	}
	existing.Name = strings.TrimSpace(y.Name)
	existing.StartDate = y.StartDate
	existing.EndDate = y.EndDate
	if err := s.repo.UpdateYear(ctx, existing); err != nil {
		return AcademicYear{}, err
	}
	return existing, nil
}

// ActivateYear marks one year active and every other year inactive.
func (s *Service) ActivateYear(ctx context.Context, id int64) error {
	return s.repo.ActivateYear(ctx, id)
}

func (s *Service) ListClassLevels(ctx context.Context) ([]ClassLevel, error) {
	return s.repo.ListClassLevels(ctx)
}

func (s *Service) CreateClassLevel(ctx context.Context, c ClassLevel) (ClassLevel, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return ClassLevel{}, shared.NewValidationError(map[string]string{"name": "required"})
	}
	if err := s.repo.CreateClassLevel(ctx, &c); err != nil {
		return ClassLevel{}, err
	}
	return c, nil
}

func (s *Service) UpdateClassLevel(ctx context.Context, id int64, c ClassLevel) (ClassLevel, error) {
	c.ID = id
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return ClassLevel{}, shared.NewValidationError(map[string]string{"name": "required"})
	}
	if err := s.repo.UpdateClassLevel(ctx, c); err != nil {
		return ClassLevel{}, err
	}
	return c, nil
}

func (s *Service) DeleteClassLevel(ctx context.Context, id int64) error {
	return s.repo.DeleteClassLevel(ctx, id)
}

func (s *Service) ListSections(ctx context.Context, classLevelID int64) ([]Section, error) {
	return s.repo.ListSections(ctx, classLevelID)
}

func (s *Service) CreateSection(ctx context.Context, sec Section) (Section, error) {
	if err := validateSection(sec); err != nil {
		return Section{}, err
	}
	sec.Name = strings.TrimSpace(sec.Name)
	if err := s.repo.CreateSection(ctx, &sec); err != nil {
		return Section{}, err
	}
	return sec, nil
}

func (s *Service) UpdateSection(ctx context.Context, id int64, sec Section) (Section, error) {
	existing, err := s.repo.GetSection(ctx, id)
	if err != nil {
		return Section{}, err
	}
	sec.ID = id
	sec.ClassLevelID = existing.ClassLevelID
	if err := validateSection(sec); err != nil {
		return Section{}, err
	}
	sec.Name = strings.TrimSpace(sec.Name)
	if err := s.repo.UpdateSection(ctx, sec); err != nil {
		return Section{}, err
	}
	return sec, nil
}

func (s *Service) DeleteSection(ctx context.Context, id int64) error {
	return s.repo.DeleteSection(ctx, id)
}

func (s *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	return s.repo.ListSubjects(ctx)
}

func (s *Service) CreateSubject(ctx context.Context, sub Subject) (Subject, error) {
	if err := validateSubject(&sub); err != nil {
		return Subject{}, err
	}
	if err := s.repo.CreateSubject(ctx, &sub); err != nil {
		return Subject{}, err
	}
	return sub, nil
}

func (s *Service) UpdateSubject(ctx context.Context, id int64, sub Subject) (Subject, error) {
	sub.ID = id
	if err := validateSubject(&sub); err != nil {
		return Subject{}, err
	}
	if err := s.repo.UpdateSubject(ctx, sub); err != nil {
		return Subject{}, err
	}
	return sub, nil
}

func (s *Service) DeleteSubject(ctx context.Context, id int64) error {
	return s.repo.DeleteSubject(ctx, id)
}

func validateYear(y AcademicYear) error {
	fields := map[string]string{}
	if strings.TrimSpace(y.Name) == "" {
		fields["name"] = "required"
	}
	if y.StartDate.IsZero() || y.EndDate.IsZero() {
		fields["startDate"] = "start and end dates are required"
	} else if !y.EndDate.After(y.StartDate) {
		fields["endDate"] = "must be after startDate"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}

func validateSection(s Section) error {
	fields := map[string]string{}
	if strings.TrimSpace(s.Name) == "" {
		fields["name"] = "required"
	}
	if s.ClassLevelID <= 0 {
		fields["classLevelId"] = "required"
	}
	if s.Capacity <= 0 {
		fields["capacity"] = "must be positive"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}

func validateSubject(s *Subject) error {
	s.Name = strings.TrimSpace(s.Name)
	s.Code = strings.ToUpper(strings.TrimSpace(s.Code))
	fields := map[string]string{}
	if s.Name == "" {
		fields["name"] = "required"
	}
	if s.Code == "" {
		fields["code"] = "required"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}
