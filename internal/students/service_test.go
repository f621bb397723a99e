package students

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

type memStudentRepo struct {
	students  map[int64]Student
	seqByYear map[int]int
	sections  map[int64]int // section id -> capacity
	nextID    int64
}

func newMemStudentRepo() *memStudentRepo {
	return &memStudentRepo{
		students:  map[int64]Student{},
		seqByYear: map[int]int{},
		sections:  map[int64]int{},
	}
}

func (m *memStudentRepo) CreateWithAdmission(_ context.Context, s *Student, year int) error {
	m.seqByYear[year]++
	s.AdmissionNo = AdmissionNumber(year, m.seqByYear[year])
	m.nextID++
	s.ID = m.nextID
	s.EnrolledAt = time.Now()
	m.students[s.ID] = *s
	return nil
}

func (m *memStudentRepo) Get(_ context.Context, id int64) (Student, error) {
	s, ok := m.students[id]
	if !ok {
		return Student{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memStudentRepo) Update(_ context.Context, s Student) error {
	if _, ok := m.students[s.ID]; !ok {
		return shared.ErrNotFound
	}
	m.students[s.ID] = s
	return nil
}

func (m *memStudentRepo) List(_ context.Context, f ListFilters, limit, offset int) ([]Student, int, error) {
	var out []Student
	for _, s := range m.students {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memStudentRepo) SectionOccupancy(_ context.Context, sectionID int64) (int, int, error) {
	capacity, ok := m.sections[sectionID]
	if !ok {
		return 0, 0, shared.ErrNotFound
	}
	occupied := 0
	for _, s := range m.students {
		if s.SectionID != nil && *s.SectionID == sectionID && s.Status == StatusEnrolled {
			occupied++
		}
	}
	return occupied, capacity, nil
}

func newTestService(repo *memStudentRepo) *Service {
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestAdmitAssignsSequentialAdmissionNumbers(t *testing.T) {
	repo := newMemStudentRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Admit(ctx, CreateInput{FirstName: "Kofi", LastName: "Owusu"})
	require.NoError(t, err)
	second, err := svc.Admit(ctx, CreateInput{FirstName: "Ama", LastName: "Owusu"})
	require.NoError(t, err)

	assert.Equal(t, "ADM-2026-0001", first.AdmissionNo)
	assert.Equal(t, "ADM-2026-0002", second.AdmissionNo)
	assert.Equal(t, StatusEnrolled, first.Status)
}

func TestAdmitRequiresNames(t *testing.T) {
	svc := newTestService(newMemStudentRepo())
	_, err := svc.Admit(context.Background(), CreateInput{FirstName: " "})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdmitRejectsFullSection(t *testing.T) {
	repo := newMemStudentRepo()
	repo.sections[1] = 2
	svc := newTestService(repo)
	ctx := context.Background()
	section := int64(1)

	for i := 0; i < 2; i++ {
		_, err := svc.Admit(ctx, CreateInput{
			FirstName: "Student", LastName: fmt.Sprintf("N%d", i), SectionID: &section,
		})
		require.NoError(t, err)
	}

	_, err := svc.Admit(ctx, CreateInput{FirstName: "One", LastName: "More", SectionID: &section})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateMoveToFullSectionRejected(t *testing.T) {
	repo := newMemStudentRepo()
	repo.sections[1] = 1
	repo.sections[2] = 1
	svc := newTestService(repo)
	ctx := context.Background()

	sectionOne := int64(1)
	sectionTwo := int64(2)
	_, err := svc.Admit(ctx, CreateInput{FirstName: "A", LastName: "A", SectionID: &sectionOne})
	require.NoError(t, err)
	mover, err := svc.Admit(ctx, CreateInput{FirstName: "B", LastName: "B", SectionID: &sectionTwo})
	require.NoError(t, err)

	_, err = svc.Update(ctx, mover.ID, UpdateInput{SectionID: &sectionOne})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateWithdrawnStudentFreesSeat(t *testing.T) {
	repo := newMemStudentRepo()
	repo.sections[1] = 1
	svc := newTestService(repo)
	ctx := context.Background()
	section := int64(1)

	occupant, err := svc.Admit(ctx, CreateInput{FirstName: "A", LastName: "A", SectionID: &section})
	require.NoError(t, err)

	withdrawn := StatusWithdrawn
	_, err = svc.Update(ctx, occupant.ID, UpdateInput{Status: &withdrawn})
	require.NoError(t, err)

	_, err = svc.Admit(ctx, CreateInput{FirstName: "B", LastName: "B", SectionID: &section})
	assert.NoError(t, err)
}
