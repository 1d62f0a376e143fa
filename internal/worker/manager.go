package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fargoat/internal/config"
	"fargoat/internal/feed"
	"fargoat/internal/metrics"
)

// WorkerManager owns the feed background work: the chart poller and the
// boot-time synthetic generators
type WorkerManager struct {
	cfg    *config.FeedConfig
	hub    *feed.Hub
	logger *zap.Logger

	poller   *ChartPoller
	channels []string

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewWorkerManager creates a worker manager. The manager closes hub on Shutdown.
func NewWorkerManager(
	cfg *config.FeedConfig,
	hub *feed.Hub,
	fetcher ChartFetcher,
	clock clockwork.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *WorkerManager {
	logger = logger.Named("worker")

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	return &WorkerManager{
		cfg:    cfg,
		hub:    hub,
		logger: logger,
		poller: NewChartPoller(fetcher, hub, clock, cfg.PollInterval, m, logger),
		ctx:    ctx,
		cancel: cancel,
		group:  group,
	}
}

// Start starts the poller and the configured random data channels
func (wm *WorkerManager) Start() error {
	wm.logger.Info("Starting worker manager",
		zap.Duration("poll_interval", wm.poller.interval),
		zap.Strings("random_channels", wm.cfg.RandomChannels))

	for _, channel := range wm.cfg.RandomChannels {
		gen, err := wm.hub.SyntheticGenerator(channel)
		if err != nil {
			return fmt.Errorf("failed to resolve generator for %s: %w", channel, err)
		}
		if err := wm.hub.StartRandomData(channel, feed.RandomDataOptions{
			Interval:  wm.cfg.RandomInterval,
			Generator: gen,
		}); err != nil {
			return fmt.Errorf("failed to start generator for %s: %w", channel, err)
		}
		wm.channels = append(wm.channels, channel)
	}

	// Start poller goroutine
	wm.group.Go(func() error {
		wm.poller.Run(wm.ctx)
		return nil
	})

	wm.logger.Info("Worker manager started")
	return nil
}

// Shutdown stops the poller, waits up to timeout and closes the hub
func (wm *WorkerManager) Shutdown(timeout time.Duration) error {
	wm.logger.Info("Shutting down worker manager")

	// Signal workers to stop
	wm.cancel()

	var err error

	// Wait for workers to finish with timeout
	done := make(chan error, 1)
	go func() {
		done <- wm.group.Wait()
	}()

	select {
	case waitErr := <-done:
		err = multierr.Append(err, waitErr)
		wm.logger.Info("Workers stopped gracefully")
	case <-time.After(timeout):
		err = multierr.Append(err, fmt.Errorf("worker shutdown timed out after %s", timeout))
		wm.logger.Warn("Worker shutdown timed out")
	}

	for _, channel := range wm.channels {
		wm.hub.StopRandomData(channel)
	}
	err = multierr.Append(err, wm.hub.Close())

	wm.logger.Info("Worker manager shutdown complete")
	return err
}
