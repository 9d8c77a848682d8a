// Package dispatch fans business events out to the notification store, the
// realtime hub and the push gateway. It is the failure-isolation boundary:
// delivery errors are logged here and never returned to the triggering caller.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edu-notify-api/internal/application/notification"
	"github.com/edu-notify-api/internal/domain"
	"github.com/edu-notify-api/internal/pkg/validate"
	"github.com/edu-notify-api/internal/realtime"
	"go.uber.org/zap"
)

// Store is the durable channel.
type Store interface {
	Insert(ctx context.Context, ns []domain.Notification) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// Broadcaster is the realtime channel.
type Broadcaster interface {
	EmitToUser(userID, event string, data any) int
	EmitToRole(role domain.Role, event string, data any) int
	EmitToAll(event string, data any) int
	IsUserOnline(userID string) bool
}

// PushGateway is the device push channel.
type PushGateway interface {
	SendToMultipleDevices(ctx context.Context, tokens []string, payload domain.PushPayload) (domain.BatchResult, error)
	SendToTopic(ctx context.Context, topic domain.Topic, payload domain.PushPayload) (domain.DeliveryResult, error)
}

// TokenSource returns a user's registered push tokens.
type TokenSource interface {
	Tokens(ctx context.Context, userID string) ([]string, error)
}

// Outcome summarizes a dispatch. Only the store result is known when Notify returns.
type Outcome struct {
	Type       domain.EventType `json:"type"`
	Recipients int              `json:"recipients"`
	Stored     int              `json:"stored"`
	StoreError string           `json:"storeError,omitempty"`
}

// Dispatcher fans one event out to three independent delivery tasks.
type Dispatcher struct {
	store     Store
	broadcast Broadcaster
	push      PushGateway
	tokens    TokenSource
	directory UserDirectory
	timeout   time.Duration
	log       *zap.Logger

	background sync.WaitGroup
}

// New builds a Dispatcher. timeout bounds the detached realtime and push tasks started by Notify.
func New(store Store, broadcast Broadcaster, push PushGateway, tokens TokenSource, directory UserDirectory, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		store:     store,
		broadcast: broadcast,
		push:      push,
		tokens:    tokens,
		directory: directory,
		timeout:   timeout,
		log:       log,
	}
}

// delivery is an event resolved against the catalogue.
type delivery struct {
	event         domain.Event
	realtimeEvent string
	recipients    domain.RecipientSpec
	template      domain.NotificationTemplate
	push          domain.PushPayload
	// records is built up front for explicit recipients so the realtime task can
	// emit them without waiting on the store.
	records []domain.Notification
}

func (d *Dispatcher) plan(ev domain.Event) (*delivery, error) {
	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	entry, ok := catalogue[ev.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q: %w", ev.Type, domain.ErrBadRequest)
	}
	if err := entry.checkData(ev); err != nil {
		return nil, err
	}
	rs, err := entry.recipients(ev)
	if err != nil {
		return nil, err
	}
	tmpl := entry.template(ev.Data, rs)
	tmpl.Data = ev.Data
	if err := validate.Struct(tmpl); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}
	dl := &delivery{
		event:         ev,
		realtimeEvent: entry.realtimeEvent,
		recipients:    rs,
		template:      tmpl,
		push:          pushPayload(ev, tmpl),
	}
	if len(rs.UserIDs) > 0 {
		dl.records = notification.Build(rs.UserIDs, tmpl)
	}
	return dl, nil
}

// Dispatch delivers ev on all three channels and waits for all of them.
// The returned error reports an invalid event only; delivery failures are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) (Outcome, error) {
	dl, err := d.plan(ev)
	if err != nil {
		return Outcome{Type: ev.Type}, err
	}
	var (
		wg  sync.WaitGroup
		out Outcome
	)
	wg.Add(3)
	go d.guard(&wg, dl, "store", func() { out = d.storeTask(ctx, dl) })
	go d.guard(&wg, dl, "realtime", func() { d.broadcastTask(dl) })
	go d.guard(&wg, dl, "push", func() { d.pushTask(ctx, dl) })
	wg.Wait()
	return out, nil
}

// Notify waits for the store write only. Realtime and push continue detached from
// ctx, bounded by the dispatcher timeout; Wait drains them.
func (d *Dispatcher) Notify(ctx context.Context, ev domain.Event) (Outcome, error) {
	dl, err := d.plan(ev)
	if err != nil {
		return Outcome{Type: ev.Type}, err
	}
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.background.Add(2)
	go d.guard(&d.background, dl, "realtime", func() { d.broadcastTask(dl) })
	go func() {
		defer cancel()
		d.guard(&d.background, dl, "push", func() { d.pushTask(detached, dl) })
	}()

	var (
		wg  sync.WaitGroup
		out Outcome
	)
	wg.Add(1)
	d.guard(&wg, dl, "store", func() { out = d.storeTask(ctx, dl) })
	return out, nil
}

// Wait blocks until detached deliveries finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// guard runs one delivery task, converting a panic into a logged failure.
func (d *Dispatcher) guard(wg *sync.WaitGroup, dl *delivery, channel string, task func()) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("delivery task panicked",
				zap.String("channel", channel),
				zap.String("event", string(dl.event.Type)),
				zap.Any("panic", r))
		}
	}()
	task()
}

func (d *Dispatcher) storeTask(ctx context.Context, dl *delivery) Outcome {
	out := Outcome{Type: dl.event.Type}
	ns := dl.records
	if ns == nil {
		ids, err := resolve(ctx, d.directory, dl.recipients)
		if err != nil {
			out.StoreError = err.Error()
			d.log.Error("resolve recipients failed", zap.String("event", string(dl.event.Type)), zap.Error(err))
			return out
		}
		ns = notification.Build(ids, dl.template)
	}
	out.Recipients = len(ns)

	stored, err := d.store.Insert(ctx, ns)
	out.Stored = stored
	if err != nil {
		out.StoreError = err.Error()
		d.log.Error("store notifications failed",
			zap.String("event", string(dl.event.Type)),
			zap.Int("recipients", len(ns)),
			zap.Int("stored", stored),
			zap.Error(err))
		return out
	}
	d.refreshUnread(ctx, ns)
	return out
}

// refreshUnread pushes a fresh unread badge to recipients that are online here.
func (d *Dispatcher) refreshUnread(ctx context.Context, ns []domain.Notification) {
	for i := range ns {
		uid := ns[i].Recipient
		if !d.broadcast.IsUserOnline(uid) {
			continue
		}
		count, err := d.store.UnreadCount(ctx, uid)
		if err != nil {
			d.log.Warn("unread count failed", zap.String("user_id", uid), zap.Error(err))
			continue
		}
		d.broadcast.EmitToUser(uid, realtime.EventUnreadCount, map[string]int{"count": count})
	}
}

// broadcastTask sends explicit recipients their own record, and role or
// platform-wide events the shared template.
func (d *Dispatcher) broadcastTask(dl *delivery) {
	rs := dl.recipients
	switch {
	case len(rs.UserIDs) > 0:
		for i := range dl.records {
			d.broadcast.EmitToUser(dl.records[i].Recipient, dl.realtimeEvent, dl.records[i])
		}
	case rs.Role != "":
		n := d.broadcast.EmitToRole(rs.Role, dl.realtimeEvent, dl.template)
		d.log.Debug("realtime role emit", zap.String("role", string(rs.Role)), zap.Int("connections", n))
	case rs.All:
		n := d.broadcast.EmitToAll(dl.realtimeEvent, dl.template)
		d.log.Debug("realtime global emit", zap.Int("connections", n))
	}
}

func (d *Dispatcher) pushTask(ctx context.Context, dl *delivery) {
	rs := dl.recipients
	switch {
	case rs.Role != "":
		d.pushTopic(ctx, dl, rs.Role.Topic())
		return
	case rs.All:
		d.pushTopic(ctx, dl, domain.TopicAllUsers)
		return
	}

	var tokens []string
	for i := range dl.records {
		uid := dl.records[i].Recipient
		ts, err := d.tokens.Tokens(ctx, uid)
		if err != nil {
			d.log.Warn("token lookup failed", zap.String("user_id", uid), zap.Error(err))
			continue
		}
		tokens = append(tokens, ts...)
	}
	if len(tokens) == 0 {
		return
	}
	res, err := d.push.SendToMultipleDevices(ctx, tokens, dl.push)
	if err != nil {
		d.log.Warn("push failed",
			zap.String("event", string(dl.event.Type)),
			zap.Int("tokens", len(tokens)),
			zap.Error(err))
		return
	}
	d.log.Debug("push sent",
		zap.String("event", string(dl.event.Type)),
		zap.Int("success", res.SuccessCount),
		zap.Int("failure", res.FailureCount))
}

func (d *Dispatcher) pushTopic(ctx context.Context, dl *delivery, topic domain.Topic) {
	if _, err := d.push.SendToTopic(ctx, topic, dl.push); err != nil {
		d.log.Warn("topic push failed",
			zap.String("event", string(dl.event.Type)),
			zap.String("topic", string(topic)),
			zap.Error(err))
	}
}
