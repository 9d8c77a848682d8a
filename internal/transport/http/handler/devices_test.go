package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edu-notify-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDeviceSvc struct{ mock.Mock }

func (m *mockDeviceSvc) RegisterToken(ctx context.Context, user domain.Identity, req domain.RegisterTokenRequest) (*domain.DeviceStatus, error) {
	args := m.Called(ctx, user, req)
	if s, _ := args.Get(0).(*domain.DeviceStatus); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeviceSvc) UnregisterToken(ctx context.Context, userID string, req domain.UnregisterTokenRequest) error {
	return m.Called(ctx, userID, req).Error(0)
}

func (m *mockDeviceSvc) ClearAllTokens(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	tokens, _ := args.Get(0).([]string)
	return tokens, args.Error(1)
}

func (m *mockDeviceSvc) GetStatus(ctx context.Context, userID string) (*domain.DeviceStatus, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*domain.DeviceStatus); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeviceSvc) Tokens(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	tokens, _ := args.Get(0).([]string)
	return tokens, args.Error(1)
}

func (m *mockDeviceSvc) ResyncTopics(ctx context.Context, userID string, previous, current []domain.Role) error {
	return m.Called(ctx, userID, previous, current).Error(0)
}

func TestRegisterDevice_InvalidBody(t *testing.T) {
	p := newTestJWTProvider(t)
	h := NewDeviceHandler(&mockDeviceSvc{})
	r := bearerReq(t, p, http.MethodPost, "/v1/devices/token", "u1", nil, []byte("not-json"))
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Register), rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterDevice_MissingTokenIs400(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockDeviceSvc{}
	svc.On("RegisterToken", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrBadRequest)
	h := NewDeviceHandler(svc)
	r := bearerReq(t, p, http.MethodPost, "/v1/devices/token", "u1", nil, []byte(`{}`))
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Register), rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterDevice_PassesIdentityWithRoles(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockDeviceSvc{}
	want := domain.Identity{UserID: "u1", Roles: []domain.Role{domain.RoleLearner}}
	svc.On("RegisterToken", mock.Anything, want, domain.RegisterTokenRequest{
		Token:      "tok1",
		DeviceInfo: map[string]any{"platform": "android"},
	}).Return(&domain.DeviceStatus{HasTokens: true, TokenCount: 1}, nil).Once()
	h := NewDeviceHandler(svc)

	body, _ := json.Marshal(map[string]any{"token": "tok1", "deviceInfo": map[string]any{"platform": "android"}})
	r := bearerReq(t, p, http.MethodPost, "/v1/devices/token", "u1", []string{"learner"}, body)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Register), rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var status domain.DeviceStatus
	env := decodeEnvelope(t, rr, &status)
	assert.True(t, env.Success)
	assert.Equal(t, 1, status.TokenCount)
	svc.AssertExpectations(t)
}

func TestUnregisterDevice(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockDeviceSvc{}
	svc.On("UnregisterToken", mock.Anything, "u1", domain.UnregisterTokenRequest{Token: "tok1"}).Return(nil).Once()
	h := NewDeviceHandler(svc)

	r := bearerReq(t, p, http.MethodDelete, "/v1/devices/token", "u1", nil, []byte(`{"token":"tok1"}`))
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Unregister), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestDeviceStatus_NoRegistration(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockDeviceSvc{}
	svc.On("GetStatus", mock.Anything, "u1").Return(&domain.DeviceStatus{}, nil)
	h := NewDeviceHandler(svc)

	r := bearerReq(t, p, http.MethodGet, "/v1/devices/status", "u1", nil, nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Status), rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var status domain.DeviceStatus
	decodeEnvelope(t, rr, &status)
	assert.False(t, status.HasTokens)
	assert.Zero(t, status.TokenCount)
}

func TestClearAllDevices(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockDeviceSvc{}
	svc.On("ClearAllTokens", mock.Anything, "u1").Return([]string{"a", "b"}, nil).Once()
	h := NewDeviceHandler(svc)

	r := bearerReq(t, p, http.MethodDelete, "/v1/devices/tokens", "u1", nil, nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.ClearAll), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		RemovedCount int `json:"removedCount"`
	}
	decodeEnvelope(t, rr, &body)
	assert.Equal(t, 2, body.RemovedCount)
	svc.AssertExpectations(t)
}
