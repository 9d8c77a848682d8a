package dispatch

import (
	"fmt"
	"strings"

	"github.com/edu-notify-api/internal/domain"
)

// eventSpec is the fixed mapping of one event type to its delivery.
type eventSpec struct {
	// realtimeEvent is the websocket event name recipients receive.
	realtimeEvent string
	// defaultRecipients applies when the event names no recipients. Nil means recipients are required.
	defaultRecipients *domain.RecipientSpec
	// userRecipientKey names the data key holding the single recipient when none are given.
	userRecipientKey string
	// required lists data keys the template cannot be built without.
	required []string
	template func(data map[string]any, rs domain.RecipientSpec) domain.NotificationTemplate
}

var (
	allUsers = &domain.RecipientSpec{All: true}
	admins   = &domain.RecipientSpec{Role: domain.RoleAdmin}
	learners = &domain.RecipientSpec{Role: domain.RoleLearner}
)

// catalogue maps every supported event type to its delivery. Context keys per event:
//
//	lecturer_approved        userId
//	lecturer_rejected        userId, reason?
//	announcement             title, message, actionUrl?
//	course_enrolled          lecturerId, learnerName, courseTitle, courseId
//	new_learner_registration learnerName, learnerId?
//	new_course_published     courseTitle, courseId, lecturerName?
//	account_suspended        userId, reason?
//	account_unsuspended      userId
//	system                   title, message, actionUrl?
var catalogue = map[domain.EventType]eventSpec{
	domain.EventLecturerApproved: {
		realtimeEvent:    "lecturer_approved",
		userRecipientKey: "userId",
		template: func(map[string]any, domain.RecipientSpec) domain.NotificationTemplate {
			return domain.NotificationTemplate{
				Type:      domain.NotificationLecturerApproved,
				Title:     "Lecturer application approved",
				Message:   "Congratulations! Your lecturer application has been approved. You can now create courses.",
				ActionURL: "/lecturer/dashboard",
			}
		},
	},
	domain.EventLecturerRejected: {
		realtimeEvent:    "lecturer_rejected",
		userRecipientKey: "userId",
		template: func(data map[string]any, _ domain.RecipientSpec) domain.NotificationTemplate {
			msg := "Your lecturer application was not approved."
			if reason := str(data, "reason"); reason != "" {
				msg += " Reason: " + reason
			}
			return domain.NotificationTemplate{
				Type:      domain.NotificationLecturerRejected,
				Title:     "Lecturer application rejected",
				Message:   msg,
				ActionURL: "/profile",
			}
		},
	},
	domain.EventAnnouncementPublished: {
		realtimeEvent:     "announcement",
		defaultRecipients: allUsers,
		required:          []string{"title", "message"},
		template: func(data map[string]any, rs domain.RecipientSpec) domain.NotificationTemplate {
			return domain.NotificationTemplate{
				Type:       domain.NotificationAnnouncement,
				Title:      str(data, "title"),
				Message:    str(data, "message"),
				ActionURL:  str(data, "actionUrl"),
				Icon:       "megaphone",
				TargetRole: rs.Role,
			}
		},
	},
	domain.EventCourseEnrolled: {
		realtimeEvent:    "course_enrolled",
		userRecipientKey: "lecturerId",
		required:         []string{"learnerName", "courseTitle", "courseId"},
		template: func(data map[string]any, _ domain.RecipientSpec) domain.NotificationTemplate {
			return domain.NotificationTemplate{
				Type:       domain.NotificationCourseEnrolled,
				Title:      "New enrollment",
				Message:    fmt.Sprintf("%s enrolled in %s", str(data, "learnerName"), str(data, "courseTitle")),
				ActionURL:  "/lecturer/courses/" + str(data, "courseId"),
				TargetRole: domain.RoleLecturer,
			}
		},
	},
	domain.EventNewLearnerRegistration: {
		realtimeEvent:     "new_learner_registration",
		defaultRecipients: admins,
		required:          []string{"learnerName"},
		template: func(data map[string]any, _ domain.RecipientSpec) domain.NotificationTemplate {
			return domain.NotificationTemplate{
				Type:       domain.NotificationNewLearnerRegistration,
				Title:      "New learner registered",
				Message:    str(data, "learnerName") + " just joined the platform",
				ActionURL:  "/admin/users",
				TargetRole: domain.RoleAdmin,
			}
		},
	},
	domain.EventNewCoursePublished: {
		realtimeEvent:     "new_course_published",
		defaultRecipients: learners,
		required:          []string{"courseTitle", "courseId"},
		template: func(data map[string]any, _ domain.RecipientSpec) domain.NotificationTemplate {
			msg := str(data, "courseTitle") + " is now available"
			if by := str(data, "lecturerName"); by != "" {
				msg = fmt.Sprintf("%s by %s is now available", str(data, "courseTitle"), by)
			}
			return domain.NotificationTemplate{
				Type:       domain.NotificationNewCoursePublished,
				Title:      "New course published",
				Message:    msg,
				ActionURL:  "/courses/" + str(data, "courseId"),
				TargetRole: domain.RoleLearner,
			}
		},
	},
	domain.EventAccountSuspended: {
		realtimeEvent:    "account_status_changed",
		userRecipientKey: "userId",
		template: func(data map[string]any, _ domain.RecipientSpec) domain.NotificationTemplate {
			msg := "Your account has been suspended."
			if reason := str(data, "reason"); reason != "" {
				msg += " Reason: " + reason
			}
			return domain.NotificationTemplate{
				Type:    domain.NotificationAccountSuspended,
				Title:   "Account suspended",
				Message: msg,
			}
		},
	},
	domain.EventAccountUnsuspended: {
		realtimeEvent:    "account_status_changed",
		userRecipientKey: "userId",
		template: func(map[string]any, domain.RecipientSpec) domain.NotificationTemplate {
			return domain.NotificationTemplate{
				Type:    domain.NotificationAccountUnsuspended,
				Title:   "Account reinstated",
				Message: "Your account is active again.",
			}
		},
	},
	domain.EventSystem: {
		realtimeEvent: "system",
		required:      []string{"title", "message"},
		template: func(data map[string]any, _ domain.RecipientSpec) domain.NotificationTemplate {
			return domain.NotificationTemplate{
				Type:      domain.NotificationSystem,
				Title:     str(data, "title"),
				Message:   str(data, "message"),
				ActionURL: str(data, "actionUrl"),
			}
		},
	},
}

// recipients picks the recipient selector for ev: explicit selectors first, then the
// single-user data key, then the event default.
func (s eventSpec) recipients(ev domain.Event) (domain.RecipientSpec, error) {
	rs := ev.Recipients
	switch {
	case len(rs.UserIDs) > 0:
		return domain.RecipientSpec{UserIDs: rs.UserIDs}, nil
	case rs.Role != "":
		if !rs.Role.Valid() {
			return rs, fmt.Errorf("unknown role %q: %w", rs.Role, domain.ErrBadRequest)
		}
		return domain.RecipientSpec{Role: rs.Role}, nil
	case rs.All:
		return domain.RecipientSpec{All: true}, nil
	}
	if s.userRecipientKey != "" {
		if uid := str(ev.Data, s.userRecipientKey); uid != "" {
			return domain.RecipientSpec{UserIDs: []string{uid}}, nil
		}
	}
	if s.defaultRecipients != nil {
		return *s.defaultRecipients, nil
	}
	return rs, fmt.Errorf("event %s names no recipients: %w", ev.Type, domain.ErrBadRequest)
}

func (s eventSpec) checkData(ev domain.Event) error {
	var missing []string
	for _, k := range s.required {
		if str(ev.Data, k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("event %s missing %s: %w", ev.Type, strings.Join(missing, ", "), domain.ErrBadRequest)
	}
	return nil
}

// pushPayload renders the device notification for tmpl. Scalar event data is
// forwarded as string key/values.
func pushPayload(ev domain.Event, tmpl domain.NotificationTemplate) domain.PushPayload {
	data := map[string]string{"type": string(tmpl.Type)}
	for k, v := range ev.Data {
		switch v.(type) {
		case string, bool, int, int64, float64:
			data[k] = fmt.Sprint(v)
		}
	}
	if tmpl.ActionURL != "" {
		data["actionUrl"] = tmpl.ActionURL
	}
	return domain.PushPayload{
		Title:       tmpl.Title,
		Body:        tmpl.Message,
		Data:        data,
		Icon:        tmpl.Icon,
		ClickAction: tmpl.ActionURL,
	}
}

func str(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}
