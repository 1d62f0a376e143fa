package feed

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fargoat/internal/metrics"
)

func newTestHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	h := NewHub(zap.NewNop(), opts...)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// recorder collects delivered values
type recorder struct {
	mu     sync.Mutex
	values []any
}

func (r *recorder) handle(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.values...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

func TestHub_PublishBeforeSubscribe(t *testing.T) {
	h := newTestHub(t)

	require.NotPanics(t, func() { h.Publish("x", 1) })

	rec := &recorder{}
	h.Subscribe("x", rec.handle)
	require.Empty(t, rec.snapshot(), "earlier publish must not be replayed")

	h.Publish("x", 2)
	require.Equal(t, []any{2}, rec.snapshot())
}

func TestHub_TwoSubscribersSameOrder(t *testing.T) {
	h := newTestHub(t)

	a, b := &recorder{}, &recorder{}
	h.Subscribe("tvl", a.handle)
	h.Subscribe("tvl", b.handle)

	for i := 0; i < 5; i++ {
		h.Publish("tvl", i)
	}

	expected := []any{0, 1, 2, 3, 4}
	require.Equal(t, expected, a.snapshot())
	require.Equal(t, expected, b.snapshot())
}

func TestHub_ChannelsAreIndependent(t *testing.T) {
	h := newTestHub(t)

	tvl, dau := &recorder{}, &recorder{}
	h.Subscribe("tvl", tvl.handle)
	h.Subscribe("dau", dau.handle)

	h.Publish("tvl", "a")

	require.Equal(t, 1, tvl.count())
	require.Zero(t, dau.count())
}

func TestHub_UnsubscribeRemovesOnlyThatRegistration(t *testing.T) {
	h := newTestHub(t)

	a, b := &recorder{}, &recorder{}
	subA := h.Subscribe("x", a.handle)
	h.Subscribe("x", b.handle)

	subA.Unsubscribe()
	subA.Unsubscribe()
	require.Equal(t, 1, h.Subscribers("x"))

	h.Publish("x", 1)
	require.Zero(t, a.count())
	require.Equal(t, 1, b.count())
}

func TestHub_SameHandlerTwice(t *testing.T) {
	h := newTestHub(t)

	rec := &recorder{}
	first := h.Subscribe("x", rec.handle)
	h.Subscribe("x", rec.handle)

	h.Publish("x", 1)
	require.Equal(t, 2, rec.count())

	first.Unsubscribe()
	h.Publish("x", 2)
	require.Equal(t, 3, rec.count())
}

func TestHub_UnsubscribeDuringDelivery(t *testing.T) {
	h := newTestHub(t)

	late := &recorder{}
	var lateSub *Subscription
	h.Subscribe("x", func(any) {
		lateSub.Unsubscribe()
	})
	lateSub = h.Subscribe("x", late.handle)

	h.Publish("x", 1)
	require.Zero(t, late.count(), "subscriber removed mid-delivery must not be called")
	require.Equal(t, 1, h.Subscribers("x"))
}

func TestHub_SubscribeDuringDelivery(t *testing.T) {
	h := newTestHub(t)

	added := &recorder{}
	once := sync.Once{}
	h.Subscribe("x", func(any) {
		once.Do(func() { h.Subscribe("x", added.handle) })
	})

	h.Publish("x", 1)
	require.Zero(t, added.count(), "subscriber added mid-delivery joins from the next publish")

	h.Publish("x", 2)
	require.Equal(t, []any{2}, added.snapshot())
}

func TestHub_ReentrantPublishKeepsOrder(t *testing.T) {
	h := newTestHub(t)

	rec := &recorder{}
	h.Subscribe("x", func(v any) {
		if v == 1 {
			h.Publish("x", 2)
			h.Publish("x", 3)
		}
	})
	h.Subscribe("x", rec.handle)

	h.Publish("x", 1)
	require.Equal(t, []any{1, 2, 3}, rec.snapshot())
}

func TestHub_ReentrantPublishOtherChannel(t *testing.T) {
	h := newTestHub(t)

	rec := &recorder{}
	h.Subscribe("y", rec.handle)
	h.Subscribe("x", func(v any) {
		h.Publish("y", v)
	})

	h.Publish("x", "forwarded")
	require.Equal(t, []any{"forwarded"}, rec.snapshot())
}

func TestHub_PanickingSubscriber(t *testing.T) {
	h := newTestHub(t)

	rec := &recorder{}
	h.Subscribe("x", func(any) { panic("boom") })
	h.Subscribe("x", rec.handle)

	require.NotPanics(t, func() { h.Publish("x", 1) })
	require.Equal(t, 1, rec.count())
}

func TestHub_ConcurrentPublish(t *testing.T) {
	h := newTestHub(t)

	a, b := &recorder{}, &recorder{}
	h.Subscribe("x", a.handle)
	h.Subscribe("x", b.handle)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Publish("x", i)
		}(i)
	}
	wg.Wait()

	require.Len(t, a.snapshot(), 50)
	require.Equal(t, a.snapshot(), b.snapshot(), "subscribers must observe the same order")
}

func TestHub_Close(t *testing.T) {
	h := NewHub(zap.NewNop())

	rec := &recorder{}
	h.Subscribe("x", rec.handle)

	require.NoError(t, h.Close())
	require.Error(t, h.Close())

	h.Publish("x", 1)
	require.Zero(t, rec.count())
	require.Error(t, h.StartRandomData("x", RandomDataOptions{Interval: 1, Generator: func() any { return 1 }}))
}

func TestHub_MetricLabelsAreBounded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	h := newTestHub(t, WithMetrics(m))

	for _, key := range []string{"a", "b", "c", "tvl", ChannelChartData} {
		h.Publish(key, 1)
	}

	expected := `
# HELP fargoat_feed_publishes_total Values published per channel.
# TYPE fargoat_feed_publishes_total counter
fargoat_feed_publishes_total{channel="chart-data"} 1
fargoat_feed_publishes_total{channel="other"} 3
fargoat_feed_publishes_total{channel="tvl"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fargoat_feed_publishes_total"))
}
