package exams

import (
	"context"
	"log/slog"
	"strings"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Service validates exam schedules and score submissions.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) ListExams(ctx context.Context, yearID, sectionID int64) ([]Exam, error) {
	return s.repo.ListExams(ctx, yearID, sectionID)
}

func (s *Service) GetExam(ctx context.Context, id int64) (Exam, error) {
	return s.repo.GetExam(ctx, id)
}

func (s *Service) CreateExam(ctx context.Context, e Exam) (Exam, error) {
	if err := validateExam(&e); err != nil {
		return Exam{}, err
	}
	if err := s.repo.CreateExam(ctx, &e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *Service) UpdateExam(ctx context.Context, id int64, e Exam) (Exam, error) {
	current, err := s.repo.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	e.ID = id
	e.AcademicYearID = current.AcademicYearID
	if err := validateExam(&e); err != nil {
		return Exam{}, err
	}
	if err := s.repo.UpdateExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return s.repo.GetExam(ctx, id)
}

func (s *Service) DeleteExam(ctx context.Context, id int64) error {
	return s.repo.DeleteExam(ctx, id)
}

// SubmitResults grades and stores a batch of scores for one exam. Scores above
// the exam maximum or duplicate students are rejected before anything is written.
func (s *Service) SubmitResults(ctx context.Context, examID int64, entries []ResultEntry) ([]Result, error) {
	exam, err := s.repo.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, shared.NewValidationError(map[string]string{"results": "required"})
	}

	seen := make(map[int64]bool, len(entries))
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		if entry.StudentID <= 0 {
			return nil, shared.NewValidationError(map[string]string{"studentId": "required"})
		}
		if seen[entry.StudentID] {
			return nil, shared.NewValidationError(map[string]string{"results": "duplicate student in batch"})
		}
		seen[entry.StudentID] = true
		if entry.Score < 0 || entry.Score > exam.MaxScore {
			return nil, shared.NewValidationError(map[string]string{"score": "must be between 0 and the exam maximum"})
		}
		results = append(results, Result{
			ExamID:    examID,
			StudentID: entry.StudentID,
			Score:     entry.Score,
			Grade:     LetterGrade(entry.Score, exam.MaxScore),
			Remarks:   strings.TrimSpace(entry.Remarks),
		})
	}

	if err := s.repo.UpsertResults(ctx, examID, results); err != nil {
		return nil, err
	}
	s.logger.Info("exam results recorded",
		slog.Int64("examId", examID), slog.Int("count", len(results)))
	return s.repo.ResultsByExam(ctx, examID)
}

func (s *Service) ExamResults(ctx context.Context, examID int64) ([]Result, error) {
	if _, err := s.repo.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.repo.ResultsByExam(ctx, examID)
}

func (s *Service) StudentResults(ctx context.Context, studentID int64) ([]Result, error) {
	return s.repo.ResultsByStudent(ctx, studentID)
}

func validateExam(e *Exam) error {
	e.Name = strings.TrimSpace(e.Name)
	fields := map[string]string{}
	if e.Name == "" {
		fields["name"] = "required"
	}
	if e.AcademicYearID <= 0 {
		fields["academicYearId"] = "required"
	}
	if e.SubjectID <= 0 {
		fields["subjectId"] = "required"
	}
	if e.SectionID <= 0 {
		fields["sectionId"] = "required"
	}
	if e.Date.IsZero() {
		fields["date"] = "required"
	}
	if e.MaxScore <= 0 {
		fields["maxScore"] = "must be positive"
	}
	if len(fields) > 0 {
		return shared.NewValidationError(fields)
	}
	return nil
}
