package models

type EventType string

const (
	EventAssignmentCreated   EventType = "assignment.created"
	EventAssignmentUpdated   EventType = "assignment.updated"
	EventAssignmentDeleted   EventType = "assignment.deleted"
	EventSubmissionSubmitted EventType = "submission.submitted"
)

func (t EventType) String() string {
	return string(t)
}

type AssignmentEvent struct {
	EventID      string    `json:"event_id"`
	Type         EventType `json:"type"`
	AssignmentID string    `json:"assignment_id"`
	Tutor        string    `json:"tutor,omitempty"`
	Students     []string  `json:"students,omitempty"`
	Timestamp    int64     `json:"timestamp"`
}
