package domain

// EventType names a business event that fans out into notifications.
type EventType string

const (
	EventLecturerApproved       EventType = "lecturer_approved"
	EventLecturerRejected       EventType = "lecturer_rejected"
	EventAnnouncementPublished  EventType = "announcement"
	EventCourseEnrolled         EventType = "course_enrolled"
	EventNewLearnerRegistration EventType = "new_learner_registration"
	EventNewCoursePublished     EventType = "new_course_published"
	EventAccountSuspended       EventType = "account_suspended"
	EventAccountUnsuspended     EventType = "account_unsuspended"
	EventSystem                 EventType = "system"
)

// RecipientSpec selects who receives an event. Exactly one selector is used,
// checked in the order UserIDs, Role, All.
type RecipientSpec struct {
	UserIDs []string `json:"userIds,omitempty"`
	Role    Role     `json:"role,omitempty"`
	All     bool     `json:"all,omitempty"`
}

// Event is a business occurrence handed to the dispatcher.
type Event struct {
	Type       EventType      `json:"type" validate:"required"`
	Recipients RecipientSpec  `json:"recipients"`
	Data       map[string]any `json:"data,omitempty"`
}
