package academics

import "time"

// AcademicYear bounds a school year. Exactly one year is active at a time.
type AcademicYear struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClassLevel is a grade (e.g. "Grade 5"). Ordinal orders levels for display
// and promotion.
type ClassLevel struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"createdAt"`
}

// Section is a stream within a class level. HomeroomTeacherID references the
// teacher profile of the account in charge.
type Section struct {
	ID                int64     `json:"id"`
	ClassLevelID      int64     `json:"classLevelId"`
	Name              string    `json:"name"`
	Capacity          int       `json:"capacity"`
	HomeroomTeacherID *int64    `json:"homeroomTeacherId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Subject is a taught discipline, identified by a short unique code.
type Subject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}
