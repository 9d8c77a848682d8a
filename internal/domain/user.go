package domain

// User is the read-only slice of the platform user record needed to resolve recipients.
type User struct {
	UserID string   `json:"id" dynamodbav:"user_id"`
	Roles  []string `json:"roles" dynamodbav:"roles,stringset,omitempty"`
	Enable int      `json:"enable" dynamodbav:"enable"`
}

// Identity is the resolved auth context of a caller or a live connection.
type Identity struct {
	UserID string
	Roles  []Role
}
