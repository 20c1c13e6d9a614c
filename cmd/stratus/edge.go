package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratus-cloud/stratus/pkg/assembler"
	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/events"
	"github.com/stratus-cloud/stratus/pkg/health"
	"github.com/stratus-cloud/stratus/pkg/manifest"
	"github.com/stratus-cloud/stratus/pkg/metrics"
	"github.com/stratus-cloud/stratus/pkg/objstore"
	"github.com/stratus-cloud/stratus/pkg/router"
	"github.com/stratus-cloud/stratus/pkg/types"
)

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Serve the compiled routes locally with health gating",
	Long: `Serve a compiled deployment's routes on a local port.

Placement routes reverse-proxy to the upstream addresses given with
--upstream, gated by each placement's declared health check. Bundle
routes serve straight from the object store. Responses carry the route's
cache policy, so this previews exactly what the real edge does with the
plan.

Prometheus metrics and a liveness endpoint are served on the admin
address.

Examples:
  # Serve a compiled plan
  stratus edge --plan plan.json --listen :8000 --upstream api=localhost:3000

  # Compile the manifest in memory and serve it
  stratus edge -f stratus.yaml --upstream api=localhost:3000`,
	RunE: runEdge,
}

func init() {
	edgeCmd.Flags().StringP("file", "f", "stratus.yaml", "Deployment manifest, compiled in memory when --plan is not given")
	edgeCmd.Flags().String("plan", "", "Compiled plan file from up or plan")
	edgeCmd.Flags().String("listen", ":8000", "Address the edge serves on")
	edgeCmd.Flags().String("admin", ":9000", "Address for metrics and edge health")
	edgeCmd.Flags().StringToString("upstream", nil, "Placement upstream address as name=host:port (repeatable)")
	addBackendFlags(edgeCmd)

	rootCmd.AddCommand(edgeCmd)
}

func runEdge(cmd *cobra.Command, args []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	admin, _ := cmd.Flags().GetString("admin")
	upstreams, _ := cmd.Flags().GetStringToString("upstream")

	deployment, err := loadDeployment(cmd)
	if err != nil {
		return err
	}

	routes := make([]types.Route, 0, len(deployment.Routes))
	for _, r := range deployment.Routes {
		routes = append(routes, *r)
	}
	table, err := router.NewTable(routes)
	if err != nil {
		return err
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	tracker := router.NewTracker().WithEvents(broker)
	watcher := router.NewWatcher(tracker)
	defer watcher.Stop()
	edge := router.NewEdge(table, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if hasBundleRoutes(deployment) {
		store, closeStore, err := newBundleStore(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeStore()
		edge.WithBundleStore(store)
	}

	for name, addr := range upstreams {
		if err := edge.SetUpstream(name, addr); err != nil {
			return err
		}
	}

	fmt.Printf("Serving %s on %s\n", deployment.Name, listen)

	if err := watchPlacements(deployment, upstreams, tracker, watcher); err != nil {
		return err
	}

	collector := metrics.NewCollector(tracker)
	collector.Start()
	defer collector.Stop()

	metrics.SetCriticalComponents("router", "watcher")
	metrics.ReportComponent("router", true, "")
	metrics.ReportComponent("watcher", true, "")

	errCh := make(chan error, 2)

	// Admin endpoints live on their own listener so routes can never
	// shadow them.
	adminSrv := newAdminServer(admin)
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	go func() {
		errCh <- edge.Serve(ctx, listen)
	}()

	fmt.Println()
	fmt.Println("Edge is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
		cancel()
		if err := <-errCh; err != nil {
			return err
		}
	case err := <-errCh:
		cancel()
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = adminSrv.Shutdown(shutdownCtx)

	fmt.Println("✓ Edge stopped")
	return nil
}

// loadDeployment reads a compiled plan, or compiles one in memory from the
// manifest when no plan file is given.
func loadDeployment(cmd *cobra.Command) (*types.Deployment, error) {
	planFile, _ := cmd.Flags().GetString("plan")
	if planFile == "" {
		file, _ := cmd.Flags().GetString("file")
		m, err := manifest.Load(file)
		if err != nil {
			return nil, err
		}
		artifacts, err := deriveArtifacts(m)
		if err != nil {
			return nil, err
		}
		cfg, err := assembleConfig(m, artifacts)
		if err != nil {
			return nil, err
		}
		return assembler.New().Assemble(m.Name, cfg)
	}

	data, err := os.ReadFile(planFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.New(errdefs.CodeInputNotFound, planFile, "plan file not found")
		}
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var deployment types.Deployment
	if err := json.Unmarshal(data, &deployment); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return &deployment, nil
}

// watchPlacements starts health polling for every placement with an
// upstream. Placements without one are registered but never become
// healthy, so the edge refuses their traffic instead of proxying blind.
func watchPlacements(deployment *types.Deployment, upstreams map[string]string,
	tracker *router.Tracker, watcher *router.Watcher) error {

	for _, p := range deployment.Placements {
		target := types.RouteTarget{Kind: types.TargetPlacement, Name: p.Name}.String()

		addr, ok := upstreams[p.Name]
		if !ok {
			tracker.Add(target)
			fmt.Printf("  %s has no --upstream; its routes will answer 503\n", p.Name)
			continue
		}

		if p.HealthCheck == nil {
			// No declared probe: trust the upstream.
			tracker.Add(target)
			if err := tracker.Transition(target, types.TargetHealthUnknown); err != nil {
				return err
			}
			if err := tracker.Transition(target, types.TargetHealthy); err != nil {
				return err
			}
			fmt.Printf("  %s -> %s (no health check)\n", p.Name, addr)
			continue
		}

		resolved := *p.HealthCheck
		resolved.Endpoint = probeEndpoint(addr, p.HealthCheck)
		checker, config := health.FromSpec(&resolved)
		if err := watcher.Watch(target, checker, config); err != nil {
			return err
		}
		fmt.Printf("  %s -> %s (probing %s)\n", p.Name, addr, resolved.Endpoint)
	}
	return nil
}

// probeEndpoint resolves a declared ":port/path" probe against the
// upstream's host.
func probeEndpoint(upstream string, hc *types.HealthCheck) string {
	host := upstream
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	endpoint := host + hc.Endpoint
	if hc.Type == types.HealthCheckHTTP {
		endpoint = "http://" + endpoint
	}
	return endpoint
}

// newBundleStore opens the object store bundle routes serve from.
func newBundleStore(ctx context.Context, cmd *cobra.Command) (objstore.Store, func(), error) {
	backend, _ := cmd.Flags().GetString("backend")

	switch backend {
	case "local":
		dataDir, _ := cmd.Flags().GetString("data-dir")
		store, err := objstore.NewLocal(dataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case "remote":
		bucket, _ := cmd.Flags().GetString("bucket")
		if bucket == "" {
			return nil, nil, fmt.Errorf("--bucket is required with the remote backend")
		}
		store, err := objstore.NewS3(ctx, bucket)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want local or remote)", backend)
	}
}

func hasBundleRoutes(d *types.Deployment) bool {
	for _, r := range d.Routes {
		if r.Target.Kind == types.TargetBundle {
			return true
		}
	}
	return false
}

// newAdminServer serves Prometheus metrics and the edge's own health and
// readiness endpoints.
func newAdminServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())
	return &http.Server{Addr: addr, Handler: mux}
}
