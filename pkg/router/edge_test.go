package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-cloud/stratus/pkg/objstore"
	"github.com/stratus-cloud/stratus/pkg/types"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable([]types.Route{
		{Prefix: "/api/*", Target: types.RouteTarget{Kind: types.TargetPlacement, Name: "api"}},
		{Prefix: "", Target: types.RouteTarget{Kind: types.TargetBundle, Name: "site"}},
	})
	require.NoError(t, err)
	return table
}

func testBundleStore(t *testing.T) *objstore.Local {
	t.Helper()
	store, err := objstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Put(ctx,
		objstore.Object{Key: "index.html", ContentType: "text/html; charset=utf-8"},
		strings.NewReader("<html>home</html>")))
	require.NoError(t, store.Put(ctx,
		objstore.Object{Key: "assets/app.js", ContentType: "text/javascript; charset=utf-8"},
		strings.NewReader("console.log('hi')")))
	return store
}

func healthyTracker() *Tracker {
	tr := NewTracker()
	tr.Add("placement/api")
	tr.Transition("placement/api", types.TargetHealthUnknown)
	tr.Transition("placement/api", types.TargetHealthy)
	return tr
}

func TestEdgeProxiesHealthyPlacement(t *testing.T) {
	var gotPath, gotForwardedHost string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotForwardedHost = r.Header.Get("X-Forwarded-Host")
		w.Write([]byte("api response"))
	}))
	defer backend.Close()

	edge := NewEdge(testTable(t), healthyTracker())
	require.NoError(t, edge.SetUpstream("api", backend.URL))

	rec := httptest.NewRecorder()
	edge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "api response", rec.Body.String())
	assert.Equal(t, "/api/posts", gotPath)
	assert.NotEmpty(t, gotForwardedHost)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestEdgeRefusesUnhealthyPlacement(t *testing.T) {
	tr := NewTracker()
	tr.Add("placement/api")
	tr.Transition("placement/api", types.TargetHealthUnknown)

	edge := NewEdge(testTable(t), tr)
	require.NoError(t, edge.SetUpstream("api", "127.0.0.1:1"))

	rec := httptest.NewRecorder()
	edge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"), "refusals must not carry the route's cache policy")
}

func TestEdgeRefusesPlacementWithoutUpstream(t *testing.T) {
	edge := NewEdge(testTable(t), healthyTracker())

	rec := httptest.NewRecorder()
	edge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEdgeServesBundleIndex(t *testing.T) {
	edge := NewEdge(testTable(t), NewTracker()).WithBundleStore(testBundleStore(t))

	rec := httptest.NewRecorder()
	edge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>home</html>", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
}

func TestEdgeServesBundleObject(t *testing.T) {
	edge := NewEdge(testTable(t), NewTracker()).WithBundleStore(testBundleStore(t))

	rec := httptest.NewRecorder()
	edge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log('hi')", rec.Body.String())
	assert.Equal(t, "text/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestEdgeUnknownKeyFallsBackToIndex(t *testing.T) {
	edge := NewEdge(testTable(t), NewTracker()).WithBundleStore(testBundleStore(t))

	rec := httptest.NewRecorder()
	edge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/42", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>home</html>", rec.Body.String())
}

func TestEdgeWithoutBundleStore(t *testing.T) {
	edge := NewEdge(testTable(t), NewTracker())

	rec := httptest.NewRecorder()
	edge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEdgeBundleErrorsNotCacheable(t *testing.T) {
	// Empty store: no index object exists, so every bundle request is a 404.
	store, err := objstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	edge := NewEdge(testTable(t), NewTracker()).WithBundleStore(store)

	rec := httptest.NewRecorder()
	edge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.css", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"), "error responses must not carry the static cache policy")
}

func TestEdgeServeShutsDownOnCancel(t *testing.T) {
	edge := NewEdge(testTable(t), NewTracker()).WithBundleStore(testBundleStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- edge.Serve(ctx, "127.0.0.1:0")
	}()

	cancel()
	err := <-done
	assert.NoError(t, err)
}

func TestEdgeProxyBadUpstream(t *testing.T) {
	edge := NewEdge(testTable(t), healthyTracker())
	// Nothing listens here; the proxy must answer 502, not hang.
	require.NoError(t, edge.SetUpstream("api", "127.0.0.1:1"))

	rec := httptest.NewRecorder()
	edge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "Bad gateway")
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}
