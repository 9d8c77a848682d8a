package domain

import (
	"math"
	"time"
)

// NotificationType is the fixed set of notification kinds a recipient can receive.
type NotificationType string

const (
	NotificationNewLearnerRegistration NotificationType = "new_learner_registration"
	NotificationLecturerApproved       NotificationType = "lecturer_approved"
	NotificationLecturerRejected       NotificationType = "lecturer_rejected"
	NotificationNewCoursePublished     NotificationType = "new_course_published"
	NotificationCourseEnrolled         NotificationType = "course_enrolled"
	NotificationAnnouncement           NotificationType = "announcement"
	NotificationSystem                 NotificationType = "system"
	NotificationAccountSuspended       NotificationType = "account_suspended"
	NotificationAccountUnsuspended     NotificationType = "account_unsuspended"
)

// NotificationTypes lists every valid NotificationType.
var NotificationTypes = []NotificationType{
	NotificationNewLearnerRegistration,
	NotificationLecturerApproved,
	NotificationLecturerRejected,
	NotificationNewCoursePublished,
	NotificationCourseEnrolled,
	NotificationAnnouncement,
	NotificationSystem,
	NotificationAccountSuspended,
	NotificationAccountUnsuspended,
}

// Valid reports whether t is one of NotificationTypes.
func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Notification is a durable per-recipient record. Only Read changes after creation.
type Notification struct {
	NotificationID string           `json:"id" dynamodbav:"notification_id"`
	Recipient      string           `json:"recipient" dynamodbav:"user_id" validate:"required"`
	Type           NotificationType `json:"type" dynamodbav:"type" validate:"required"`
	Title          string           `json:"title" dynamodbav:"title" validate:"required,max=200"`
	Message        string           `json:"message" dynamodbav:"message" validate:"required,max=1000"`
	Data           map[string]any   `json:"data,omitempty" dynamodbav:"data,omitempty"`
	Read           bool             `json:"read" dynamodbav:"read"`
	ActionURL      string           `json:"actionUrl,omitempty" dynamodbav:"action_url,omitempty"`
	Icon           string           `json:"icon,omitempty" dynamodbav:"icon,omitempty"`
	TargetRole     Role             `json:"targetRole,omitempty" dynamodbav:"target_role,omitempty" validate:"omitempty,oneof=admin lecturer learner"`
	CreatedAt      time.Time        `json:"createdAt" dynamodbav:"created_at"`
}

// NotificationTemplate is the recipient-independent part of a notification,
// fanned out into one Notification per recipient.
type NotificationTemplate struct {
	Type       NotificationType `json:"type" validate:"required"`
	Title      string           `json:"title" validate:"required,max=200"`
	Message    string           `json:"message" validate:"required,max=1000"`
	Data       map[string]any   `json:"data,omitempty"`
	ActionURL  string           `json:"actionUrl,omitempty"`
	Icon       string           `json:"icon,omitempty"`
	TargetRole Role             `json:"targetRole,omitempty" validate:"omitempty,oneof=admin lecturer learner"`
}

// For builds the Notification for one recipient. ID and CreatedAt are left to the caller.
func (t NotificationTemplate) For(recipient string) Notification {
	return Notification{
		Recipient:  recipient,
		Type:       t.Type,
		Title:      t.Title,
		Message:    t.Message,
		Data:       t.Data,
		ActionURL:  t.ActionURL,
		Icon:       t.Icon,
		TargetRole: t.TargetRole,
	}
}

// NotificationQuery selects a page of a recipient's notifications.
type NotificationQuery struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

// Skip is the offset of the first item on the requested page. It saturates at
// math.MaxInt instead of overflowing on very large pages.
func (q NotificationQuery) Skip() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// NotificationPage is one page of a recipient's notifications.
type NotificationPage struct {
	Items       []Notification `json:"items"`
	Total       int            `json:"total"`
	UnreadCount int            `json:"unreadCount"`
	Page        int            `json:"page"`
	Limit       int            `json:"limit"`
	TotalPages  int            `json:"totalPages"`
}
