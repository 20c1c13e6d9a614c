/*
Package metrics provides Prometheus instrumentation for Stratus.

All metrics use the stratus_ prefix and are registered at package init.
Three groups are exported:

  - Topology: segment/placement/route gauges and assembly counters,
    refreshed by SnapshotDeployment after each compilation
  - Artifact: publish outcomes and durations, bundle object upload/skip
    counts, and the content-type fallback counter
  - Edge: request counters and durations per target, target lifecycle
    gauges maintained by the Collector, and health check results

The Collector polls a TargetLister on a fixed interval so target state
gauges track the live route table; everything else is recorded inline at
the call site. Handler exposes the standard /metrics endpoint.
*/
package metrics
