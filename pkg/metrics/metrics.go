package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Topology metrics
	SegmentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stratus_segments_total",
			Help: "Total number of network segments by visibility class",
		},
		[]string{"class"},
	)

	PlacementsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratus_placements_total",
			Help: "Total number of compute placements in the compiled deployment",
		},
	)

	RoutesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratus_routes_total",
			Help: "Total number of declared routes",
		},
	)

	AssembliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratus_assemblies_total",
			Help: "Total number of topology assemblies by outcome",
		},
		[]string{"outcome"},
	)

	AssemblyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratus_assembly_duration_seconds",
			Help:    "Time taken to assemble the topology in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Artifact metrics
	PublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratus_publishes_total",
			Help: "Total number of artifact publishes by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	PublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratus_publish_duration_seconds",
			Help:    "Artifact publish duration in seconds by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	BundleObjectsUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratus_bundle_objects_uploaded_total",
			Help: "Total number of bundle objects uploaded",
		},
	)

	BundleObjectsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratus_bundle_objects_skipped_total",
			Help: "Total number of bundle objects skipped because content was unchanged",
		},
	)

	ContentTypeFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratus_content_type_fallbacks_total",
			Help: "Total number of bundle objects uploaded with the generic binary content type",
		},
	)

	// Edge metrics
	EdgeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratus_edge_requests_total",
			Help: "Total number of edge requests by target and status",
		},
		[]string{"target", "status"},
	)

	EdgeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratus_edge_request_duration_seconds",
			Help:    "Edge request duration in seconds by target",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	TargetsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stratus_targets_total",
			Help: "Total number of route targets by state",
		},
		[]string{"state"},
	)

	HealthChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratus_health_checks_total",
			Help: "Total number of health checks by target and result",
		},
		[]string{"target", "result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(SegmentsTotal)
	prometheus.MustRegister(PlacementsTotal)
	prometheus.MustRegister(RoutesTotal)
	prometheus.MustRegister(AssembliesTotal)
	prometheus.MustRegister(AssemblyDuration)
	prometheus.MustRegister(PublishesTotal)
	prometheus.MustRegister(PublishDuration)
	prometheus.MustRegister(BundleObjectsUploaded)
	prometheus.MustRegister(BundleObjectsSkipped)
	prometheus.MustRegister(ContentTypeFallbacks)
	prometheus.MustRegister(EdgeRequestsTotal)
	prometheus.MustRegister(EdgeRequestDuration)
	prometheus.MustRegister(TargetsTotal)
	prometheus.MustRegister(HealthChecksTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
