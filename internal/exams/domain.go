// Package exams manages exam schedules and per-student results.
package exams

import "time"

// Exam is a scheduled assessment for one subject in one section.
type Exam struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	AcademicYearID int64     `json:"academicYearId"`
	SubjectID      int64     `json:"subjectId"`
	SectionID      int64     `json:"sectionId"`
	Date           time.Time `json:"date"`
	MaxScore       float64   `json:"maxScore"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Result is one student's score on an exam. (exam, student) is unique;
// resubmitting replaces the score.
type Result struct {
	ID        int64     `json:"id"`
	ExamID    int64     `json:"examId"`
	StudentID int64     `json:"studentId"`
	Score     float64   `json:"score"`
	Grade     string    `json:"grade"`
	Remarks   string    `json:"remarks,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResultEntry is one line in a bulk result submission.
type ResultEntry struct {
	StudentID int64   `json:"studentId"`
	Score     float64 `json:"score"`
	Remarks   string  `json:"remarks,omitempty"`
}

// LetterGrade maps a score against the exam maximum onto a letter.
func LetterGrade(score, maxScore float64) string {
	if maxScore <= 0 {
		return ""
	}
	switch pct := score / maxScore * 100; {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}
