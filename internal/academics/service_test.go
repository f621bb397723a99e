package academics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

type memAcademicsRepo struct {
	years    map[int64]AcademicYear
	sections map[int64]Section
	nextID   int64
}

func newMemAcademicsRepo() *memAcademicsRepo {
	return &memAcademicsRepo{years: map[int64]AcademicYear{}, sections: map[int64]Section{}}
}

func (m *memAcademicsRepo) ListYears(context.Context) ([]AcademicYear, error) {
	out := []AcademicYear{}
	for _, y := range m.years {
		out = append(out, y)
	}
	return out, nil
}

func (m *memAcademicsRepo) GetYear(_ context.Context, id int64) (AcademicYear, error) {
	y, ok := m.years[id]
	if !ok {
		return AcademicYear{}, shared.ErrNotFound
	}
	return y, nil
}

func (m *memAcademicsRepo) CreateYear(_ context.Context, y *AcademicYear) error {
	m.nextID++
	y.ID = m.nextID
	m.years[y.ID] = *y
	return nil
}

func (m *memAcademicsRepo) UpdateYear(_ context.Context, y AcademicYear) error {
	if _, ok := m.years[y.ID]; !ok {
		return shared.ErrNotFound
	}
	m.years[y.ID] = y
	return nil
}

func (m *memAcademicsRepo) ActivateYear(_ context.Context, id int64) error {
	if _, ok := m.years[id]; !ok {
		return shared.ErrNotFound
	}
	for k, y := range m.years {
		y.Active = k == id
		m.years[k] = y
	}
	return nil
}

func (m *memAcademicsRepo) ActiveYear(context.Context) (AcademicYear, error) {
	for _, y := range m.years {
		if y.Active {
			return y, nil
		}
	}
	return AcademicYear{}, shared.ErrNotFound
}

func (m *memAcademicsRepo) ListClassLevels(context.Context) ([]ClassLevel, error) { return nil, nil }
func (m *memAcademicsRepo) CreateClassLevel(_ context.Context, c *ClassLevel) error {
	m.nextID++
	c.ID = m.nextID
	return nil
}
func (m *memAcademicsRepo) UpdateClassLevel(context.Context, ClassLevel) error { return nil }
func (m *memAcademicsRepo) DeleteClassLevel(context.Context, int64) error      { return nil }

func (m *memAcademicsRepo) ListSections(context.Context, int64) ([]Section, error) { return nil, nil }
func (m *memAcademicsRepo) GetSection(_ context.Context, id int64) (Section, error) {
	s, ok := m.sections[id]
	if !ok {
		return Section{}, shared.ErrNotFound
	}
	return s, nil
}
func (m *memAcademicsRepo) CreateSection(_ context.Context, s *Section) error {
	m.nextID++
	s.ID = m.nextID
	m.sections[s.ID] = *s
	return nil
}
func (m *memAcademicsRepo) UpdateSection(_ context.Context, s Section) error {
	m.sections[s.ID] = s
	return nil
}
func (m *memAcademicsRepo) DeleteSection(context.Context, int64) error { return nil }

func (m *memAcademicsRepo) ListSubjects(context.Context) ([]Subject, error) { return nil, nil }
func (m *memAcademicsRepo) CreateSubject(_ context.Context, s *Subject) error {
	m.nextID++
	s.ID = m.nextID
	return nil
}
func (m *memAcademicsRepo) UpdateSubject(context.Context, Subject) error { return nil }
func (m *memAcademicsRepo) DeleteSubject(context.Context, int64) error   { return nil }

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestCreateYearValidatesDateOrder(t *testing.T) {
	svc := NewService(newMemAcademicsRepo())

	_, err := svc.CreateYear(context.Background(), AcademicYear{
		Name:      "2026/2027",
		StartDate: day("2027-06-30"),
		EndDate:   day("2026-09-01"),
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestActivateYearDeactivatesOthers(t *testing.T) {
	repo := newMemAcademicsRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.CreateYear(ctx, AcademicYear{Name: "2025/2026", StartDate: day("2025-09-01"), EndDate: day("2026-06-30")})
	require.NoError(t, err)
	second, err := svc.CreateYear(ctx, AcademicYear{Name: "2026/2027", StartDate: day("2026-09-01"), EndDate: day("2027-06-30")})
	require.NoError(t, err)

	require.NoError(t, svc.ActivateYear(ctx, first.ID))
	require.NoError(t, svc.ActivateYear(ctx, second.ID))

	active, err := svc.ActiveYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.False(t, repo.years[first.ID].Active)
}

func TestCreateSectionRequiresPositiveCapacity(t *testing.T) {
	svc := NewService(newMemAcademicsRepo())

	_, err := svc.CreateSection(context.Background(), Section{Name: "A", ClassLevelID: 1, Capacity: 0})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateSectionKeepsClassLevel(t *testing.T) {
	repo := newMemAcademicsRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.CreateSection(ctx, Section{Name: "A", ClassLevelID: 3, Capacity: 30})
	require.NoError(t, err)

	updated, err := svc.UpdateSection(ctx, created.ID, Section{Name: "B", ClassLevelID: 9, Capacity: 25})
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.ClassLevelID, "sections stay attached to their class level")
	assert.Equal(t, "B", updated.Name)
}

func TestCreateSubjectNormalisesCode(t *testing.T) {
	svc := NewService(newMemAcademicsRepo())

	created, err := svc.CreateSubject(context.Background(), Subject{Name: "Mathematics", Code: " math "})
	require.NoError(t, err)
	assert.Equal(t, "MATH", created.Code)
}
