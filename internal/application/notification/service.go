package notification

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/edu-notify-api/internal/domain"
	"github.com/edu-notify-api/internal/pkg/id"
	"github.com/edu-notify-api/internal/pkg/validate"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Service is the durable per-recipient notification store.
type Service interface {
	Create(ctx context.Context, n domain.Notification) (*domain.Notification, error)
	CreateForMany(ctx context.Context, recipients []string, tmpl domain.NotificationTemplate) (int, error)
	// Insert stores notifications already built with Build.
	Insert(ctx context.Context, ns []domain.Notification) (int, error)
	List(ctx context.Context, userID string, q domain.NotificationQuery) (*domain.NotificationPage, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	DeleteAll(ctx context.Context, userID string) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	PutMany(ctx context.Context, ns []domain.Notification) (int, error)
	List(ctx context.Context, userID string, q domain.NotificationQuery) ([]domain.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	DeleteAll(ctx context.Context, userID string) (int, error)
}

type service struct {
	repo notificationStore
}

func NewService(repo notificationStore) Service {
	return &service{repo: repo}
}

// Build fans tmpl out into one unread notification per distinct recipient, each
// with its own id. Empty recipient ids are skipped.
func Build(recipients []string, tmpl domain.NotificationTemplate) []domain.Notification {
	now := time.Now().UTC()
	seen := make(map[string]bool, len(recipients))
	out := make([]domain.Notification, 0, len(recipients))
	for _, r := range recipients {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		n := tmpl.For(r)
		n.NotificationID = id.New()
		n.CreatedAt = now
		out = append(out, n)
	}
	return out
}

func (s *service) Create(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	if err := validate.Struct(n); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	if !n.Type.Valid() {
		return nil, fmt.Errorf("unknown notification type %q: %w", n.Type, domain.ErrBadRequest)
	}
	n.NotificationID = id.New()
	n.Read = false
	n.CreatedAt = time.Now().UTC()
	if err := s.repo.Put(ctx, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *service) CreateForMany(ctx context.Context, recipients []string, tmpl domain.NotificationTemplate) (int, error) {
	if err := checkTemplate(tmpl); err != nil {
		return 0, err
	}
	return s.repo.PutMany(ctx, Build(recipients, tmpl))
}

func (s *service) Insert(ctx context.Context, ns []domain.Notification) (int, error) {
	if len(ns) == 0 {
		return 0, nil
	}
	for i := range ns {
		if err := validate.Struct(ns[i]); err != nil {
			return 0, fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
		}
	}
	return s.repo.PutMany(ctx, ns)
}

func (s *service) List(ctx context.Context, userID string, q domain.NotificationQuery) (*domain.NotificationPage, error) {
	q = normalize(q)
	items, total, err := s.repo.List(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.NotificationPage{
		Items:       items,
		Total:       total,
		UnreadCount: unread,
		Page:        q.Page,
		Limit:       q.Limit,
		TotalPages:  (total + q.Limit - 1) / q.Limit,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	if err := checkID(notificationID); err != nil {
		return nil, err
	}
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	if err := checkID(notificationID); err != nil {
		return nil, err
	}
	return s.repo.Delete(ctx, userID, notificationID)
}

func (s *service) DeleteAll(ctx context.Context, userID string) (int, error) {
	return s.repo.DeleteAll(ctx, userID)
}

func (s *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func checkTemplate(tmpl domain.NotificationTemplate) error {
	if err := validate.Struct(tmpl); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	if !tmpl.Type.Valid() {
		return fmt.Errorf("unknown notification type %q: %w", tmpl.Type, domain.ErrBadRequest)
	}
	return nil
}

func checkID(notificationID string) error {
	if !id.Valid(notificationID) {
		return fmt.Errorf("invalid notification id: %w", domain.ErrBadRequest)
	}
	return nil
}

func normalize(q domain.NotificationQuery) domain.NotificationQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Page > math.MaxInt/q.Limit {
		q.Page = math.MaxInt / q.Limit
	}
	return q
}
