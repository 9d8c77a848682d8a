package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/edu-notify-api/internal/domain"
	"github.com/edu-notify-api/internal/pkg/validate"
	"go.uber.org/zap"
)

// Service is the device registry: the source of truth for which push tokens a user holds.
type Service interface {
	RegisterToken(ctx context.Context, user domain.Identity, req domain.RegisterTokenRequest) (*domain.DeviceStatus, error)
	UnregisterToken(ctx context.Context, userID string, req domain.UnregisterTokenRequest) error
	// ClearAllTokens removes every token the user holds and returns the removed tokens.
	ClearAllTokens(ctx context.Context, userID string) ([]string, error)
	GetStatus(ctx context.Context, userID string) (*domain.DeviceStatus, error)
	// Tokens returns the user's push tokens; a user who never registered has none.
	Tokens(ctx context.Context, userID string) ([]string, error)
	// ResyncTopics moves the user's tokens between role topics after a role change.
	ResyncTopics(ctx context.Context, userID string, previous, current []domain.Role) error
}

type registrationStore interface {
	AddToken(ctx context.Context, userID, token string, deviceInfo map[string]any) (*domain.DeviceRegistration, error)
	RemoveToken(ctx context.Context, userID, token string) error
	ClearTokens(ctx context.Context, userID string) ([]string, error)
	Get(ctx context.Context, userID string) (*domain.DeviceRegistration, error)
}

type topicSubscriber interface {
	SubscribeToTopic(ctx context.Context, tokens []string, topic domain.Topic) error
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic domain.Topic) error
}

type service struct {
	repo   registrationStore
	topics topicSubscriber
	log    *zap.Logger
}

func NewService(repo registrationStore, topics topicSubscriber, log *zap.Logger) Service {
	return &service{repo: repo, topics: topics, log: log}
}

func (s *service) RegisterToken(ctx context.Context, user domain.Identity, req domain.RegisterTokenRequest) (*domain.DeviceStatus, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	reg, err := s.repo.AddToken(ctx, user.UserID, req.Token, req.DeviceInfo)
	if err != nil {
		return nil, err
	}

	// Topic membership is best-effort; registration already succeeded.
	tokens := []string{req.Token}
	for _, topic := range domain.TopicsForRoles(user.Roles) {
		if err := s.topics.SubscribeToTopic(ctx, tokens, topic); err != nil {
			s.log.Warn("topic subscribe failed",
				zap.String("user_id", user.UserID),
				zap.String("topic", string(topic)),
				zap.Error(err))
		}
	}
	return statusOf(reg), nil
}

func (s *service) UnregisterToken(ctx context.Context, userID string, req domain.UnregisterTokenRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	if err := s.repo.RemoveToken(ctx, userID, req.Token); err != nil {
		return err
	}
	s.unsubscribeAll(ctx, userID, []string{req.Token})
	return nil
}

func (s *service) ClearAllTokens(ctx context.Context, userID string) ([]string, error) {
	removed, err := s.repo.ClearTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.unsubscribeAll(ctx, userID, removed)
	return removed, nil
}

func (s *service) GetStatus(ctx context.Context, userID string) (*domain.DeviceStatus, error) {
	reg, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.DeviceStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return statusOf(reg), nil
}

func (s *service) Tokens(ctx context.Context, userID string) ([]string, error) {
	reg, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return reg.Tokens, nil
}

func (s *service) ResyncTopics(ctx context.Context, userID string, previous, current []domain.Role) error {
	tokens, err := s.Tokens(ctx, userID)
	if err != nil || len(tokens) == 0 {
		return err
	}
	var errs []error
	for _, r := range previous {
		if domain.HasRole(current, r) {
			continue
		}
		if err := s.topics.UnsubscribeFromTopic(ctx, tokens, r.Topic()); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range current {
		if domain.HasRole(previous, r) {
			continue
		}
		if err := s.topics.SubscribeToTopic(ctx, tokens, r.Topic()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// unsubscribeAll detaches removed tokens from every topic so they stop receiving broadcasts.
func (s *service) unsubscribeAll(ctx context.Context, userID string, tokens []string) {
	if len(tokens) == 0 {
		return
	}
	for _, topic := range domain.Topics {
		if err := s.topics.UnsubscribeFromTopic(ctx, tokens, topic); err != nil {
			s.log.Warn("topic unsubscribe failed",
				zap.String("user_id", userID),
				zap.String("topic", string(topic)),
				zap.Error(err))
		}
	}
}

func statusOf(reg *domain.DeviceRegistration) *domain.DeviceStatus {
	return &domain.DeviceStatus{
		HasTokens:  len(reg.Tokens) > 0,
		TokenCount: len(reg.Tokens),
		DeviceInfo: reg.DeviceInfo,
	}
}
