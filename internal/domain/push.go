package domain

// Topic is a named push broadcast channel on the push provider.
type Topic string

const (
	TopicAllUsers  Topic = "all_users"
	TopicAdmins    Topic = "admins"
	TopicLecturers Topic = "lecturers"
	TopicLearners  Topic = "learners"
)

// Topics is the fixed topic set.
var Topics = []Topic{TopicAllUsers, TopicAdmins, TopicLecturers, TopicLearners}

// TopicsForRoles returns all_users plus the topic of each role.
func TopicsForRoles(roles []Role) []Topic {
	topics := []Topic{TopicAllUsers}
	for _, r := range roles {
		if t := r.Topic(); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// PushPayload is what the push provider renders on the device.
type PushPayload struct {
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	Icon        string            `json:"icon,omitempty"`
	ClickAction string            `json:"clickAction,omitempty"`
}

// DeliveryResult reports one provider send. MessageID is empty for no-op sends.
type DeliveryResult struct {
	MessageID string `json:"messageId,omitempty"`
}

// BatchResult reports a multi-device send.
type BatchResult struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
}
