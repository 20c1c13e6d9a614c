package router

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/log"
	"github.com/stratus-cloud/stratus/pkg/metrics"
	"github.com/stratus-cloud/stratus/pkg/objstore"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// bundleIndexObject is served for the bare path and as the fallback for
// unmatched bundle keys, so client-side routed applications deep-link
// correctly.
const bundleIndexObject = "index.html"

// Edge serves compiled routes over HTTP: placement routes are reverse-proxied
// to their upstream while healthy, the default route is served straight from
// the bundle's object store, and every response carries the route's cache
// policy. This is the local preview of the edge layer the plan describes.
type Edge struct {
	table   *Table
	tracker *Tracker
	store   objstore.Store
	logger  zerolog.Logger

	mu        sync.RWMutex
	upstreams map[string]*url.URL

	server *http.Server
}

// NewEdge creates an edge over a compiled route table and target tracker.
func NewEdge(table *Table, tracker *Tracker) *Edge {
	return &Edge{
		table:     table,
		tracker:   tracker,
		logger:    log.WithComponent("edge"),
		upstreams: make(map[string]*url.URL),
	}
}

// WithBundleStore sets the object store bundle routes are served from.
func (e *Edge) WithBundleStore(store objstore.Store) *Edge {
	e.store = store
	return e
}

// SetUpstream binds a placement target to the address its instances answer
// on. The apply engine reports these back once placements are running.
func (e *Edge) SetUpstream(placement, addr string) error {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	target, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("invalid upstream address %q for %s: %w", addr, placement, err)
	}

	e.mu.Lock()
	e.upstreams[placement] = target
	e.mu.Unlock()
	return nil
}

// ServeHTTP resolves the request path against the route table and serves
// from the winning route's target.
func (e *Edge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer()
	route := e.table.Resolve(r.URL.Path)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	e.logger.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("target", route.Target.String()).
		Msg("Edge request")

	switch route.Target.Kind {
	case types.TargetPlacement:
		e.servePlacement(rec, r, route)
	case types.TargetBundle:
		e.serveBundle(rec, r, route)
	default:
		http.Error(rec, "Unknown target kind", http.StatusInternalServerError)
	}

	metrics.EdgeRequestsTotal.WithLabelValues(route.Target.String(), strconv.Itoa(rec.status)).Inc()
	timer.ObserveDurationVec(metrics.EdgeRequestDuration, route.Target.String())
}

// servePlacement proxies the request to the placement's upstream, refusing
// targets that are not currently healthy. The tracker is keyed by the
// target's kind/name form.
func (e *Edge) servePlacement(w http.ResponseWriter, r *http.Request, route *types.Route) {
	key := route.Target.String()

	if !e.tracker.Healthy(key) {
		state, _ := e.tracker.State(key)
		e.logger.Warn().
			Str("target", route.Target.String()).
			Str("state", string(state)).
			Msg("Refusing traffic to unhealthy target")
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	e.mu.RLock()
	upstream, ok := e.upstreams[route.Target.Name]
	e.mu.RUnlock()
	if !ok {
		e.logger.Error().
			Str("target", route.Target.String()).
			Msg("No upstream address for healthy target")
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	// The cache policy applies only to responses the upstream actually
	// produced; refusals above must stay uncacheable.
	w.Header().Set("Cache-Control", CacheControl(route.Cache))

	proxy := httputil.NewSingleHostReverseProxy(upstream)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		// Preserve the original Host header for virtual hosting
		req.Host = r.Host
		req.Header.Set("X-Forwarded-For", r.RemoteAddr)
		req.Header.Set("X-Forwarded-Proto", "http")
		req.Header.Set("X-Forwarded-Host", r.Host)
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		e.logger.Error().
			Str("upstream", upstream.Host).
			Err(err).
			Msg("Proxy error")
		w.Header().Del("Cache-Control")
		http.Error(w, "Bad gateway", http.StatusBadGateway)
	}

	proxy.ServeHTTP(w, r)
}

// serveBundle streams the requested object from the bundle store. The bare
// path serves the index object, and unknown keys fall back to it once.
func (e *Edge) serveBundle(w http.ResponseWriter, r *http.Request, route *types.Route) {
	if e.store == nil {
		http.Error(w, "No bundle store configured", http.StatusNotFound)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/")
	if key == "" {
		key = bundleIndexObject
	}

	obj, body, err := e.store.Get(r.Context(), key)
	if err != nil && errdefs.IsInputNotFound(err) && key != bundleIndexObject {
		obj, body, err = e.store.Get(r.Context(), bundleIndexObject)
	}
	if err != nil {
		if errdefs.IsInputNotFound(err) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		e.logger.Error().
			Str("key", key).
			Err(err).
			Msg("Bundle read failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Cache-Control", CacheControl(route.Cache))
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if _, err := io.Copy(w, body); err != nil {
		e.logger.Warn().
			Str("key", obj.Key).
			Err(err).
			Msg("Bundle write interrupted")
	}
}

// Serve runs the edge server on addr until the context is cancelled, then
// shuts down gracefully.
func (e *Edge) Serve(ctx context.Context, addr string) error {
	e.server = &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	e.logger.Info().
		Str("addr", addr).
		Msg("Edge listening")

	errCh := make(chan error, 1)
	go func() {
		if err := e.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	e.logger.Info().Msg("Shutting down edge")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.server.Shutdown(shutdownCtx)
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
