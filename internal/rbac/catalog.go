package rbac

// Action enumerates the grantable operations on a subject.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions returns every catalog action in seeding order.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
}

// Subject enumerates the modules permissions apply to.
type Subject string

const (
	SubjectSchoolProfile  Subject = "school_profile"
	SubjectAcademicYear   Subject = "academic_year"
	SubjectUserManagement Subject = "user_management"
	SubjectClassLevel     Subject = "class_level"
	SubjectSection        Subject = "section"
	SubjectSubject        Subject = "subject"
	SubjectStaff          Subject = "staff"
	SubjectFinance        Subject = "finance"
	SubjectAuditLog       Subject = "audit_log"
	SubjectStudent        Subject = "student"
	SubjectAttendance     Subject = "attendance"
	SubjectExam           Subject = "exam"
	SubjectAnnouncement   Subject = "announcement"
)

// Subjects returns every catalog subject in seeding order.
func Subjects() []Subject {
	return []Subject{
		SubjectSchoolProfile,
		SubjectAcademicYear,
		SubjectUserManagement,
		SubjectClassLevel,
		SubjectSection,
		SubjectSubject,
		SubjectStaff,
		SubjectFinance,
		SubjectAuditLog,
		SubjectStudent,
		SubjectAttendance,
		SubjectExam,
		SubjectAnnouncement,
	}
}

// PermissionName builds the canonical permission identifier for a pair.
func PermissionName(action Action, subject Subject) string {
	return string(subject) + "." + string(action)
}

// Well-known role names. Role membership checks go through ResolvePrivilege
// or Identity.HasRole; never compare against other spellings.
const (
	RoleSuperAdmin = "SuperAdmin"
	RoleAdmin      = "Admin"
	RoleTeacher    = "Teacher"
	RoleAccountant = "Accountant"
	RoleRegistrar  = "Registrar"
)

// RoleDefinition declares a seeded role and the predicate selecting its permissions.
type RoleDefinition struct {
	Name        string
	Description string
	System      bool
	Grants      func(Action, Subject) bool
}

func grantAll(Action, Subject) bool { return true }

var academicSubjects = map[Subject]bool{
	SubjectAcademicYear: true,
	SubjectClassLevel:   true,
	SubjectSection:      true,
	SubjectSubject:      true,
}

// RoleDefinitions returns the fixed role registry seeded at bootstrap.
func RoleDefinitions() []RoleDefinition {
	return []RoleDefinition{
		{
			Name:        RoleSuperAdmin,
			Description: "Full access to every module",
			System:      true,
			Grants:      grantAll,
		},
		{
			Name:        RoleAdmin,
			Description: "School administrator with full access",
			System:      true,
			Grants:      grantAll,
		},
		{
			Name:        RoleTeacher,
			Description: "Teaching staff with read access to academic records",
			Grants: func(action Action, subject Subject) bool {
				if subject == SubjectAttendance || subject == SubjectExam {
					return action != ActionDelete
				}
				if action != ActionRead {
					return false
				}
				return academicSubjects[subject] || subject == SubjectStudent ||
					subject == SubjectSchoolProfile || subject == SubjectAnnouncement
			},
		},
		{
			Name:        RoleAccountant,
			Description: "Finance staff managing fees, invoices and payments",
			Grants: func(action Action, subject Subject) bool {
				if subject == SubjectFinance {
					return true
				}
				return action == ActionRead && (subject == SubjectStudent ||
					subject == SubjectSchoolProfile || subject == SubjectAnnouncement)
			},
		},
		{
			Name:        RoleRegistrar,
			Description: "Admissions staff managing students and academic structure",
			Grants: func(action Action, subject Subject) bool {
				if subject == SubjectStudent {
					return true
				}
				if subject == SubjectAnnouncement {
					return action == ActionRead
				}
				return academicSubjects[subject] && action != ActionDelete
			},
		},
	}
}
