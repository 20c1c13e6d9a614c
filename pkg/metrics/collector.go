package metrics

import (
	"time"

	"github.com/stratus-cloud/stratus/pkg/types"
)

// TargetLister exposes the current lifecycle state of every route target.
// Implemented by the router table so the collector never imports it.
type TargetLister interface {
	TargetStates() map[string]types.TargetState
}

// Collector periodically snapshots route target states into gauges
type Collector struct {
	targets TargetLister
	stopCh  chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(targets TargetLister) *Collector {
	return &Collector{
		targets: targets,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	counts := map[types.TargetState]int{
		types.TargetDefined:       0,
		types.TargetHealthUnknown: 0,
		types.TargetHealthy:       0,
		types.TargetDraining:      0,
		types.TargetRemoved:       0,
	}
	for _, state := range c.targets.TargetStates() {
		counts[state]++
	}
	// Every known state is set so stale gauges drop back to zero.
	for state, count := range counts {
		TargetsTotal.WithLabelValues(string(state)).Set(float64(count))
	}
}

// SnapshotDeployment records the shape of a compiled deployment
func SnapshotDeployment(d *types.Deployment) {
	segments := map[types.VisibilityClass]int{}
	for _, seg := range d.Network.Segments {
		segments[seg.Class]++
	}
	for _, class := range types.VisibilityClasses() {
		SegmentsTotal.WithLabelValues(string(class)).Set(float64(segments[class]))
	}

	PlacementsTotal.Set(float64(len(d.Placements)))
	RoutesTotal.Set(float64(len(d.Routes)))
}
