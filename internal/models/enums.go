package models

type Role string

const (
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
)

func (r Role) String() string {
	return string(r)
}

func IsValidRole(role string) bool {
	switch Role(role) {
	case RoleTutor, RoleStudent:
		return true
	default:
		return false
	}
}

type AssignmentStatus string

const (
	AssignmentStatusScheduled AssignmentStatus = "SCHEDULED"
	AssignmentStatusOngoing   AssignmentStatus = "ONGOING"
)

func (s AssignmentStatus) String() string {
	return string(s)
}

func IsValidAssignmentStatus(status string) bool {
	switch AssignmentStatus(status) {
	case AssignmentStatusScheduled, AssignmentStatusOngoing:
		return true
	default:
		return false
	}
}

type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "PENDING"
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusOverdue   SubmissionStatus = "OVERDUE"
)

func (s SubmissionStatus) String() string {
	return string(s)
}

func IsValidSubmissionStatus(status string) bool {
	switch SubmissionStatus(status) {
	case SubmissionStatusPending, SubmissionStatusSubmitted, SubmissionStatusOverdue:
		return true
	default:
		return false
	}
}

// FilterAll disables a status filter. An empty filter value does the same.
const FilterAll = "ALL"
