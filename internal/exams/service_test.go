package exams

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

type memExamRepo struct {
	exams   map[int64]Exam
	results map[int64]map[int64]Result
	nextID  int64
}

func newMemExamRepo() *memExamRepo {
	return &memExamRepo{exams: map[int64]Exam{}, results: map[int64]map[int64]Result{}}
}

func (m *memExamRepo) ListExams(_ context.Context, yearID, sectionID int64) ([]Exam, error) {
	var out []Exam
	for _, e := range m.exams {
		if yearID > 0 && e.AcademicYearID != yearID {
			continue
		}
		if sectionID > 0 && e.SectionID != sectionID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memExamRepo) GetExam(_ context.Context, id int64) (Exam, error) {
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, shared.ErrNotFound
	}
	return e, nil
}

func (m *memExamRepo) CreateExam(_ context.Context, e *Exam) error {
	m.nextID++
	e.ID = m.nextID
	m.exams[e.ID] = *e
	return nil
}

func (m *memExamRepo) UpdateExam(_ context.Context, e Exam) error {
	if _, ok := m.exams[e.ID]; !ok {
		return shared.ErrNotFound
	}
	m.exams[e.ID] = e
	return nil
}

func (m *memExamRepo) DeleteExam(_ context.Context, id int64) error {
	if _, ok := m.exams[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.exams, id)
	delete(m.results, id)
	return nil
}

func (m *memExamRepo) UpsertResults(_ context.Context, examID int64, results []Result) error {
	byStudent := m.results[examID]
	if byStudent == nil {
		byStudent = map[int64]Result{}
		m.results[examID] = byStudent
	}
	for _, res := range results {
		existing, ok := byStudent[res.StudentID]
		if !ok {
			m.nextID++
			res.ID = m.nextID
		} else {
			res.ID = existing.ID
		}
		byStudent[res.StudentID] = res
	}
	return nil
}

func (m *memExamRepo) ResultsByExam(_ context.Context, examID int64) ([]Result, error) {
	var out []Result
	for _, res := range m.results[examID] {
		out = append(out, res)
	}
	return out, nil
}

func (m *memExamRepo) ResultsByStudent(_ context.Context, studentID int64) ([]Result, error) {
	var out []Result
	for _, byStudent := range m.results {
		if res, ok := byStudent[studentID]; ok {
			out = append(out, res)
		}
	}
	return out, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedExam(t *testing.T, svc *Service, maxScore float64) Exam {
	t.Helper()
	exam, err := svc.CreateExam(context.Background(), Exam{
		Name:           "Midterm",
		AcademicYearID: 1,
		SubjectID:      1,
		SectionID:      1,
		Date:           time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		MaxScore:       maxScore,
	})
	require.NoError(t, err)
	return exam
}

func TestSubmitResultsGradesAgainstMaximum(t *testing.T) {
	repo := newMemExamRepo()
	svc := newTestService(repo)
	exam := seedExam(t, svc, 50)

	results, err := svc.SubmitResults(context.Background(), exam.ID, []ResultEntry{
		{StudentID: 1, Score: 47},
		{StudentID: 2, Score: 31},
		{StudentID: 3, Score: 12},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	grades := map[int64]string{}
	for _, res := range results {
		grades[res.StudentID] = res.Grade
	}
	assert.Equal(t, "A", grades[1])
	assert.Equal(t, "D", grades[2])
	assert.Equal(t, "F", grades[3])
}

func TestSubmitResultsRejectsScoreAboveMaximum(t *testing.T) {
	svc := newTestService(newMemExamRepo())
	exam := seedExam(t, svc, 50)

	_, err := svc.SubmitResults(context.Background(), exam.ID, []ResultEntry{{StudentID: 1, Score: 51}})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestSubmitResultsRejectsDuplicateStudent(t *testing.T) {
	svc := newTestService(newMemExamRepo())
	exam := seedExam(t, svc, 100)

	_, err := svc.SubmitResults(context.Background(), exam.ID, []ResultEntry{
		{StudentID: 1, Score: 80},
		{StudentID: 1, Score: 90},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestSubmitResultsReplacesExistingScore(t *testing.T) {
	repo := newMemExamRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	exam := seedExam(t, svc, 100)

	_, err := svc.SubmitResults(ctx, exam.ID, []ResultEntry{{StudentID: 1, Score: 55}})
	require.NoError(t, err)
	results, err := svc.SubmitResults(ctx, exam.ID, []ResultEntry{{StudentID: 1, Score: 85, Remarks: "re-marked"}})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.InDelta(t, 85, results[0].Score, 0.001)
	assert.Equal(t, "B", results[0].Grade)
	assert.Equal(t, "re-marked", results[0].Remarks)
}

func TestSubmitResultsUnknownExam(t *testing.T) {
	svc := newTestService(newMemExamRepo())

	_, err := svc.SubmitResults(context.Background(), 99, []ResultEntry{{StudentID: 1, Score: 10}})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateExamKeepsAcademicYear(t *testing.T) {
	repo := newMemExamRepo()
	svc := newTestService(repo)
	exam := seedExam(t, svc, 100)

	updated, err := svc.UpdateExam(context.Background(), exam.ID, Exam{
		Name:      "Final",
		SubjectID: 2,
		SectionID: 1,
		Date:      time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		MaxScore:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, exam.AcademicYearID, updated.AcademicYearID)
	assert.Equal(t, "Final", updated.Name)
}
