package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/smalob/marketplace/internal/domain/notification"
	"github.com/smalob/marketplace/internal/observability"
	"github.com/smalob/marketplace/internal/observability/logctx"
)

const componentHub = "notify_hub"

var ErrClosed = errors.New("notify: hub closed")

// Hub is an in-memory fan-out for notification events. Delivery is
// best-effort and at most once: a subscriber whose buffer is full simply
// misses the event, and publishing never blocks the caller.
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]map[*Subscription]struct{}
	buffer    int
	closed    bool
	log       observability.Logger
	published observability.Counter
	dropped   observability.Counter
}

type Subscription struct {
	hub     *Hub
	channel string
	ch      chan notification.Event
	once    sync.Once
}

// Events is the subscriber's receive stream. It is closed by Close or when
// the hub shuts down.
func (s *Subscription) Events() <-chan notification.Event { return s.ch }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.ch)
	})
}

func NewHub(buffer int, logger observability.Logger, tel observability.Observability) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	metrics := observability.NopMetrics()
	if tel != nil {
		metrics = tel.Metrics()
	}
	return &Hub{
		subs:      make(map[string]map[*Subscription]struct{}),
		buffer:    buffer,
		log:       logger.With(observability.F("component", componentHub)),
		published: metrics.Counter(observability.MNotificationsPublished),
		dropped:   metrics.Counter(observability.MNotificationsDropped),
	}
}

// Subscribe attaches a listener to its channel. Channel identifiers are
// derived from vendor/customer identities, so subscribers self-select.
func (h *Hub) Subscribe(channel string) *Subscription {
	sub := &Subscription{
		hub:     h,
		channel: channel,
		ch:      make(chan notification.Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub
	}
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Subscription]struct{})
	}
	h.subs[channel][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.channel)
		}
	}
}

// Publish delivers the event to every current listener on its channel
// without blocking; slow listeners are skipped.
func (h *Hub) Publish(ctx context.Context, e notification.Event) error {
	logger := logctx.FromOr(ctx, h.log).With(
		observability.F("channel", e.Channel),
		observability.F("event_type", string(e.Type)),
	)

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}

	listeners := h.subs[e.Channel]
	if len(listeners) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return nil
	}

	delivered, dropped := 0, 0
	for sub := range listeners {
		select {
		case sub.ch <- e:
			delivered++
		default:
			dropped++
		}
	}

	h.published.Add(float64(delivered), observability.L("event_type", string(e.Type)))
	if dropped > 0 {
		h.dropped.Add(float64(dropped), observability.L("event_type", string(e.Type)))
		logger.Warn("event_dropped_slow_subscriber",
			observability.F("dropped", dropped),
		)
	}

	logger.Debug("event_fanned_out",
		observability.F("order_id", e.OrderID),
		observability.F("listeners", delivered),
	)
	return nil
}

// Subscribers reports how many listeners a channel currently has.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Close detaches all subscribers and closes their streams.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	h.subs = make(map[string]map[*Subscription]struct{})
	h.log.Info("notify_hub_closed")
}
