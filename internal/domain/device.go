package domain

import "time"

// DeviceRegistration holds every push-capable token of one user.
// The record outlives its tokens: clearing empties Tokens but keeps DeviceInfo.
type DeviceRegistration struct {
	UserID     string         `json:"userId" dynamodbav:"user_id"`
	Tokens     []string       `json:"tokens" dynamodbav:"tokens,stringset,omitempty"`
	DeviceInfo map[string]any `json:"deviceInfo,omitempty" dynamodbav:"device_info,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt  time.Time      `json:"updatedAt" dynamodbav:"updated_at"`
}

// RegisterTokenRequest is the body of a device token registration.
type RegisterTokenRequest struct {
	Token      string         `json:"token" validate:"required,max=4096"`
	DeviceInfo map[string]any `json:"deviceInfo"`
}

// UnregisterTokenRequest is the body of a device token removal.
type UnregisterTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// DeviceStatus is the read-only projection of a DeviceRegistration.
type DeviceStatus struct {
	HasTokens  bool           `json:"hasTokens"`
	TokenCount int            `json:"tokenCount"`
	DeviceInfo map[string]any `json:"deviceInfo,omitempty"`
}
