package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// GeneratorFunc produces the next value of a synthetic channel
type GeneratorFunc func() any

// RandomDataOptions configures a channel generator
type RandomDataOptions struct {
	Interval  time.Duration
	Generator GeneratorFunc
}

type generator struct {
	cancel context.CancelFunc
	ticker clockwork.Ticker
	done   chan struct{}
}

// stop cancels the generator without waiting for its goroutine, so it is
// safe to call from inside a subscriber of the generated channel
func (g *generator) stop() {
	g.cancel()
	g.ticker.Stop()
}

// StartRandomData publishes opts.Generator() on key every opts.Interval.
// An active generator on the same channel is stopped first, so at most one
// generator runs per channel.
func (h *Hub) StartRandomData(key string, opts RandomDataOptions) error {
	if opts.Interval <= 0 {
		return fmt.Errorf("invalid generator interval %s", opts.Interval)
	}
	if opts.Generator == nil {
		return fmt.Errorf("generator is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("feed hub is closed")
	}

	if previous, ok := h.generators[key]; ok {
		previous.stop()
		h.logger.Debug("Replaced generator", zap.String("channel", key))
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &generator{
		cancel: cancel,
		ticker: h.clock.NewTicker(opts.Interval),
		done:   make(chan struct{}),
	}
	h.generators[key] = g
	h.channelLocked(key)
	h.metrics.SetGenerators(len(h.generators))

	go h.runGenerator(ctx, key, g, opts.Generator)

	h.logger.Info("Generator started",
		zap.String("channel", key),
		zap.Duration("interval", opts.Interval))

	return nil
}

// StopRandomData cancels the generator of key. It is a no-op when none is active.
func (h *Hub) StopRandomData(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.generators[key]
	if !ok {
		return
	}
	g.stop()
	delete(h.generators, key)
	h.metrics.SetGenerators(len(h.generators))

	h.logger.Info("Generator stopped", zap.String("channel", key))
}

// Generators returns the channels with an active generator, sorted
func (h *Hub) Generators() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, len(h.generators))
	for k := range h.generators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (h *Hub) runGenerator(ctx context.Context, key string, g *generator, fn GeneratorFunc) {
	defer close(g.done)
	defer g.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.ticker.Chan():
			// a tick that raced with cancellation is dropped
			if ctx.Err() != nil {
				return
			}
			value, err := h.generate(fn)
			if err != nil {
				h.logger.Error("Generator failed", zap.String("channel", key), zap.Error(err))
				continue
			}
			h.metrics.RecordGeneratorTick(metricLabel(key))
			h.Publish(key, value)
		}
	}
}

func (h *Hub) generate(fn GeneratorFunc) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panicked: %v", r)
		}
	}()
	return fn(), nil
}
