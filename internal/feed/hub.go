package feed

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"fargoat/internal/metrics"
)

// ChannelChartData carries the polled chart data
const ChannelChartData = "chart-data"

// otherChannelLabel is the metric label of every channel outside the built-in set
const otherChannelLabel = "other"

// Handler receives every value published on a channel it subscribed to
type Handler func(value any)

// Hub is a named-channel publish/subscribe registry with optional
// periodic generators per channel. Create one with NewHub and release it
// with Close.
type Hub struct {
	mu         sync.Mutex
	channels   map[string]*channel
	generators map[string]*generator
	closed     bool
	nextID     uint64

	clock   clockwork.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// channel holds the subscribers of one key and its pending deliveries
type channel struct {
	key         string
	subscribers []*Subscription
	queue       []any
	delivering  bool
}

// Subscription is the handle returned by Subscribe
type Subscription struct {
	hub     *Hub
	channel string
	id      uint64
	handler Handler
	active  atomic.Bool
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithClock sets the clock used by generators
func WithClock(c clockwork.Clock) HubOption {
	return func(h *Hub) {
		h.clock = c
	}
}

// WithMetrics records deliveries and generator activity
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		channels:   make(map[string]*channel),
		generators: make(map[string]*generator),
		clock:      clockwork.NewRealClock(),
		logger:     logger.Named("feed"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// channelLocked returns the channel for key, creating it when missing
func (h *Hub) channelLocked(key string) *channel {
	ch, ok := h.channels[key]
	if !ok {
		ch = &channel{key: key}
		h.channels[key] = ch
	}
	return ch
}

// Subscribe registers handler on the channel, creating the channel if needed
func (h *Hub) Subscribe(key string, handler Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		hub:     h,
		channel: key,
		id:      h.nextID,
		handler: handler,
	}
	sub.active.Store(true)

	ch := h.channelLocked(key)
	ch.subscribers = append(ch.subscribers, sub)

	h.logger.Debug("Subscribed",
		zap.String("channel", key),
		zap.Int("subscribers", len(ch.subscribers)))

	return sub
}

// Unsubscribe removes exactly this registration. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}

	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[s.channel]
	if !ok {
		return
	}
	// copy on write so an in-progress delivery keeps its own slice
	subscribers := make([]*Subscription, 0, len(ch.subscribers))
	for _, other := range ch.subscribers {
		if other.id != s.id {
			subscribers = append(subscribers, other)
		}
	}
	ch.subscribers = subscribers
}

// Channel returns the channel key of the subscription
func (s *Subscription) Channel() string {
	return s.channel
}

// Subscribers returns the number of registrations on a channel
func (h *Hub) Subscribers(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[key]; ok {
		return len(ch.subscribers)
	}
	return 0
}

// Publish delivers value to every subscriber registered on the channel.
// Values published on one channel are delivered in publish order. When a
// delivery on the channel is already running, including from inside one of
// its handlers, the value is queued and delivered by that run after the
// values before it.
func (h *Hub) Publish(key string, value any) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}

	ch := h.channelLocked(key)
	ch.queue = append(ch.queue, value)
	if ch.delivering {
		h.mu.Unlock()
		return
	}
	ch.delivering = true

	for len(ch.queue) > 0 {
		next := ch.queue[0]
		ch.queue[0] = nil
		ch.queue = ch.queue[1:]
		subscribers := ch.subscribers
		h.mu.Unlock()

		h.deliver(key, subscribers, next)

		h.mu.Lock()
	}

	ch.queue = nil
	ch.delivering = false
	h.mu.Unlock()
}

func (h *Hub) deliver(key string, subscribers []*Subscription, value any) {
	delivered := 0
	for _, sub := range subscribers {
		// skip registrations removed earlier in this delivery
		if !sub.active.Load() {
			continue
		}
		h.invoke(key, sub, value)
		delivered++
	}
	h.metrics.RecordPublish(metricLabel(key), delivered)
}

// invoke runs one handler; a panicking handler does not stop the others
func (h *Hub) invoke(key string, sub *Subscription, value any) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Subscriber panicked",
				zap.String("channel", key),
				zap.Any("error", r))
		}
	}()
	sub.handler(value)
}

// Channels returns the keys of every channel created so far
func (h *Hub) Channels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.channels))
	for k := range h.channels {
		keys = append(keys, k)
	}
	return keys
}

// Close stops every generator and waits for its goroutine to exit. Later
// publishes are dropped. Close must not be called from a handler of a
// generated channel.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("feed hub already closed")
	}
	h.closed = true
	generators := h.generators
	h.generators = make(map[string]*generator)
	h.mu.Unlock()

	for key, g := range generators {
		g.stop()
		<-g.done
		h.logger.Debug("Generator stopped on close", zap.String("channel", key))
	}
	h.metrics.SetGenerators(0)

	h.logger.Info("Feed hub closed", zap.Int("generators_stopped", len(generators)))
	return nil
}

// metricLabel maps a channel key to its metric label
func metricLabel(key string) string {
	if key == ChannelChartData || key == GeneratorChart {
		return key
	}
	if _, ok := metricRanges[key]; ok {
		return key
	}
	return otherChannelLabel
}
