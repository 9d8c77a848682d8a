// Package natsintake feeds business events published on NATS into the dispatcher.
package natsintake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edu-notify-api/internal/application/dispatch"
	"github.com/edu-notify-api/internal/domain"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// TypeRolesChanged is the intake message announcing a user's new role set.
const TypeRolesChanged = "user_roles_changed"

const queueGroup = "notify-dispatch"

// Dispatcher delivers one event and reports the store outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) (dispatch.Outcome, error)
}

// TopicSyncer moves a user's devices between role topics.
type TopicSyncer interface {
	ResyncTopics(ctx context.Context, userID string, previous, current []domain.Role) error
}

// Invalidator drops cached recipient listings.
type Invalidator interface {
	Invalidate()
}

// message is the wire form of an intake message. Events use Type, Recipients and
// Data; role changes use UserID, PreviousRoles and Roles.
type message struct {
	Type          string               `json:"type"`
	Recipients    domain.RecipientSpec `json:"recipients"`
	Data          map[string]any       `json:"data,omitempty"`
	UserID        string               `json:"userId,omitempty"`
	PreviousRoles []string             `json:"previousRoles,omitempty"`
	Roles         []string             `json:"roles,omitempty"`
}

type reply struct {
	Success bool              `json:"success"`
	Msg     string            `json:"msg,omitempty"`
	Data    *dispatch.Outcome `json:"data,omitempty"`
}

// Consumer is a queue-group subscriber; each message is handled by exactly one instance.
// Delivery is at-most-once: failed messages are logged and not redelivered.
type Consumer struct {
	nc         *nats.Conn
	sub        *nats.Subscription
	dispatcher Dispatcher
	devices    TopicSyncer
	directory  Invalidator
	timeout    time.Duration
	log        *zap.Logger
}

// Connect dials NATS with reconnect enabled.
func Connect(url string, log *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("edu-notify-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

func NewConsumer(nc *nats.Conn, dispatcher Dispatcher, devices TopicSyncer, directory Invalidator, timeout time.Duration, log *zap.Logger) *Consumer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Consumer{
		nc:         nc,
		dispatcher: dispatcher,
		devices:    devices,
		directory:  directory,
		timeout:    timeout,
		log:        log,
	}
}

// Start subscribes to subject (wildcards allowed).
func (c *Consumer) Start(subject string) error {
	sub, err := c.nc.QueueSubscribe(subject, queueGroup, c.handleMsg)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.sub = sub
	c.log.Info("event intake subscribed", zap.String("subject", subject), zap.String("queue", queueGroup))
	return nil
}

// Close drains the subscription and the connection.
func (c *Consumer) Close() error {
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.log.Warn("drain subscription", zap.Error(err))
		}
	}
	return c.nc.Drain()
}

func (c *Consumer) handleMsg(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	res := c.handle(ctx, msg.Subject, msg.Data)
	if msg.Reply == "" {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		c.log.Error("encode intake reply", zap.Error(err))
		return
	}
	if err := msg.Respond(b); err != nil {
		c.log.Warn("intake reply failed", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

func (c *Consumer) handle(ctx context.Context, subject string, data []byte) reply {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		c.log.Warn("intake message dropped", zap.String("subject", subject), zap.Error(err))
		return reply{Msg: "invalid message body"}
	}
	if m.Type == "" {
		m.Type = subject[strings.LastIndex(subject, ".")+1:]
	}

	if m.Type == TypeRolesChanged {
		if err := c.rolesChanged(ctx, m); err != nil {
			c.log.Warn("role change not applied", zap.String("user_id", m.UserID), zap.Error(err))
			return reply{Msg: err.Error()}
		}
		return reply{Success: true}
	}

	out, err := c.dispatcher.Dispatch(ctx, domain.Event{
		Type:       domain.EventType(m.Type),
		Recipients: m.Recipients,
		Data:       m.Data,
	})
	if err != nil {
		c.log.Warn("intake event rejected", zap.String("type", m.Type), zap.Error(err))
		return reply{Msg: err.Error()}
	}
	c.log.Info("intake event dispatched",
		zap.String("type", m.Type),
		zap.Int("recipients", out.Recipients),
		zap.Int("stored", out.Stored))
	return reply{Success: true, Data: &out}
}

func (c *Consumer) rolesChanged(ctx context.Context, m message) error {
	if m.UserID == "" {
		return fmt.Errorf("role change without userId: %w", domain.ErrBadRequest)
	}
	c.directory.Invalidate()
	return c.devices.ResyncTopics(ctx, m.UserID, domain.ParseRoles(m.PreviousRoles), domain.ParseRoles(m.Roles))
}
