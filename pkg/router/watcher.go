package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratus-cloud/stratus/pkg/health"
	"github.com/stratus-cloud/stratus/pkg/log"
	"github.com/stratus-cloud/stratus/pkg/metrics"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// DefaultGracePeriod is how long a draining target keeps finishing in-flight
// requests before it is removed.
const DefaultGracePeriod = 30 * time.Second

// Watcher polls target health on one independent timer per target and drives
// the tracker's state machine from the results. A slow probe on one target
// never delays probes on another.
type Watcher struct {
	tracker *Tracker
	grace   time.Duration
	logger  zerolog.Logger

	mu        sync.Mutex
	cancelFns map[string]context.CancelFunc
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// targetMonitor carries the probe loop state for one target.
type targetMonitor struct {
	target  string
	checker health.Checker
	status  *health.Status
	config  health.Config
}

// NewWatcher creates a watcher that reports into the given tracker.
func NewWatcher(tracker *Tracker) *Watcher {
	return &Watcher{
		tracker:   tracker,
		grace:     DefaultGracePeriod,
		logger:    log.WithComponent("router"),
		cancelFns: make(map[string]context.CancelFunc),
		stopCh:    make(chan struct{}),
	}
}

// WithGracePeriod sets the draining grace period.
func (w *Watcher) WithGracePeriod(grace time.Duration) *Watcher {
	w.grace = grace
	return w
}

// Watch registers a target and starts its probe loop. The target moves to
// health_unknown immediately; the first successful probe moves it to healthy.
func (w *Watcher) Watch(target string, checker health.Checker, config health.Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.cancelFns[target]; exists {
		return fmt.Errorf("target %s is already being watched", target)
	}

	if config.Interval <= 0 {
		config.Interval = health.DefaultConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = health.DefaultConfig().Timeout
	}
	if config.Retries <= 0 {
		config.Retries = health.DefaultConfig().Retries
	}

	w.tracker.Add(target)
	if err := w.tracker.Transition(target, types.TargetHealthUnknown); err != nil {
		return err
	}

	monitor := &targetMonitor{
		target:  target,
		checker: checker,
		status:  health.NewStatus(),
		config:  config,
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancelFns[target] = cancel

	w.wg.Add(1)
	go w.pollLoop(ctx, monitor)

	w.logger.Debug().
		Str("target", target).
		Dur("interval", config.Interval).
		Msg("Health polling started")

	return nil
}

// Deregister stops probing a target and drains it. The target finishes
// in-flight requests for the grace period, then is removed.
func (w *Watcher) Deregister(target string) error {
	w.mu.Lock()
	if cancel, exists := w.cancelFns[target]; exists {
		cancel()
		delete(w.cancelFns, target)
	}
	w.mu.Unlock()

	if err := w.tracker.Transition(target, types.TargetDraining); err != nil {
		return err
	}

	time.AfterFunc(w.grace, func() {
		if err := w.tracker.Transition(target, types.TargetRemoved); err != nil {
			w.logger.Warn().
				Str("target", target).
				Err(err).
				Msg("Failed to remove drained target")
		}
	})
	return nil
}

// Stop cancels every probe loop and waits for them to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)

	w.mu.Lock()
	for target, cancel := range w.cancelFns {
		cancel()
		delete(w.cancelFns, target)
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// pollLoop probes one target on its own ticker until cancelled.
func (w *Watcher) pollLoop(ctx context.Context, monitor *targetMonitor) {
	defer w.wg.Done()

	ticker := time.NewTicker(monitor.config.Interval)
	defer ticker.Stop()

	// First probe runs immediately so a ready target starts receiving
	// traffic without waiting a full interval.
	w.probe(ctx, monitor)

	for {
		select {
		case <-ticker.C:
			w.probe(ctx, monitor)
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

// probe runs a single health check and applies the verdict to the tracker.
func (w *Watcher) probe(ctx context.Context, monitor *targetMonitor) {
	checkCtx, cancel := context.WithTimeout(ctx, monitor.config.Timeout)
	defer cancel()

	result := monitor.checker.Check(checkCtx)
	monitor.status.Update(result, monitor.config)

	outcome := "success"
	if !result.Healthy {
		outcome = "failure"
	}
	metrics.HealthChecksTotal.WithLabelValues(monitor.target, outcome).Inc()

	state, ok := w.tracker.State(monitor.target)
	if !ok {
		return
	}

	switch {
	case monitor.status.Healthy && state == types.TargetHealthUnknown:
		if err := w.tracker.Transition(monitor.target, types.TargetHealthy); err != nil {
			w.logger.Warn().
				Str("target", monitor.target).
				Err(err).
				Msg("Failed to mark target healthy")
		}
	case !monitor.status.Healthy && state == types.TargetHealthy:
		w.logger.Warn().
			Str("target", monitor.target).
			Int("consecutive_failures", monitor.status.ConsecutiveFailures).
			Str("message", monitor.status.LastResult.Message).
			Msg("Target failed health threshold")
		if err := w.tracker.Transition(monitor.target, types.TargetHealthUnknown); err != nil {
			w.logger.Warn().
				Str("target", monitor.target).
				Err(err).
				Msg("Failed to mark target unhealthy")
		}
	}
}
