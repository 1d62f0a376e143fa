package worker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"fargoat/internal/feed"
	"fargoat/internal/metrics"
	"fargoat/internal/models"
)

// Constants for chart polling
const (
	DefaultPollInterval = 5 * time.Second
	PollTimeout         = 4 * time.Second
)

// ChartFetcher retrieves the current chart point
type ChartFetcher interface {
	FetchChartData(ctx context.Context) (*models.ChartData, error)
}

// Publisher delivers a value on a feed channel
type Publisher interface {
	Publish(channel string, value any)
}

// ChartPoller fetches chart data on a fixed cadence and republishes it on
// the chart-data channel
type ChartPoller struct {
	fetcher   ChartFetcher
	publisher Publisher
	clock     clockwork.Clock
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewChartPoller creates a poller. A non-positive interval uses DefaultPollInterval.
func NewChartPoller(
	fetcher ChartFetcher,
	publisher Publisher,
	clock clockwork.Clock,
	interval time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ChartPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ChartPoller{
		fetcher:   fetcher,
		publisher: publisher,
		clock:     clock,
		interval:  interval,
		metrics:   m,
		logger:    logger.Named("chart_poller"),
	}
}

// Run polls until ctx is cancelled. A failed poll is logged and skipped.
func (p *ChartPoller) Run(ctx context.Context) {
	p.logger.Info("Chart poller started",
		zap.Duration("poll_interval", p.interval))

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial poll
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Chart poller stopping")
			return
		case <-ticker.Chan():
			p.poll(ctx)
		}
	}
}

// poll executes one polling cycle
func (p *ChartPoller) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, PollTimeout)
	defer cancel()

	data, err := p.fetcher.FetchChartData(pollCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.RecordChartPoll(false)
		p.logger.Error("Failed to fetch chart data", zap.Error(err))
		return
	}
	p.metrics.RecordChartPoll(true)

	p.logger.Debug("Chart data fetched",
		zap.Int64("timestamp", data.Timestamp),
		zap.Float64("tvl", data.TVL))

	p.publisher.Publish(feed.ChannelChartData, *data)
}

// SyntheticChartSource produces chart points locally when no chart
// endpoint is configured
type SyntheticChartSource struct {
	generate feed.GeneratorFunc
}

func NewSyntheticChartSource(clock clockwork.Clock) *SyntheticChartSource {
	return &SyntheticChartSource{generate: feed.ChartGenerator(clock)}
}

// FetchChartData implements ChartFetcher
func (s *SyntheticChartSource) FetchChartData(ctx context.Context) (*models.ChartData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := s.generate().(models.ChartData)
	return &data, nil
}
