package router

import (
	"testing"
	"time"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/types"
)

func apiTarget() types.RouteTarget {
	return types.RouteTarget{Kind: types.TargetPlacement, Name: "api"}
}

func siteTarget() types.RouteTarget {
	return types.RouteTarget{Kind: types.TargetBundle, Name: "site"}
}

// TestTableResolve tests longest-prefix resolution with a default route
func TestTableResolve(t *testing.T) {
	table, err := NewTable([]types.Route{
		{Prefix: "/api/*", Target: apiTarget()},
		{Prefix: "", Target: siteTarget()},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "api path resolves to placement",
			path:     "/api/posts",
			expected: "placement/api",
		},
		{
			name:     "api root with slash resolves to placement",
			path:     "/api/",
			expected: "placement/api",
		},
		{
			name:     "bare api prefix falls through to default",
			path:     "/api",
			expected: "bundle/site",
		},
		{
			name:     "unrelated path resolves to default",
			path:     "/anything",
			expected: "bundle/site",
		},
		{
			name:     "root resolves to default",
			path:     "/",
			expected: "bundle/site",
		},
		{
			name:     "similar prefix does not match",
			path:     "/apiv2/posts",
			expected: "bundle/site",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := table.Resolve(tt.path)
			if got := route.Target.String(); got != tt.expected {
				t.Errorf("Resolve(%q) = %s, want %s", tt.path, got, tt.expected)
			}
		})
	}
}

// TestTableLongestPrefixWins tests that more specific prefixes win
func TestTableLongestPrefixWins(t *testing.T) {
	table, err := NewTable([]types.Route{
		{Prefix: "/api/*", Target: apiTarget()},
		{Prefix: "/api/v2/*", Target: types.RouteTarget{Kind: types.TargetPlacement, Name: "api-v2"}},
		{Prefix: "", Target: siteTarget()},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	if got := table.Resolve("/api/v2/posts").Target.Name; got != "api-v2" {
		t.Errorf("Resolve(/api/v2/posts) = %s, want api-v2", got)
	}
	if got := table.Resolve("/api/v1/posts").Target.Name; got != "api" {
		t.Errorf("Resolve(/api/v1/posts) = %s, want api", got)
	}
}

// TestTablePriorityTieBreak tests that lower priority wins between equal prefixes
func TestTablePriorityTieBreak(t *testing.T) {
	table, err := NewTable([]types.Route{
		{Prefix: "/api/*", Priority: 20, Target: apiTarget()},
		{Prefix: "/api/*", Priority: 10, Target: types.RouteTarget{Kind: types.TargetPlacement, Name: "api-canary"}},
		{Prefix: "", Target: siteTarget()},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	if got := table.Resolve("/api/posts").Target.Name; got != "api-canary" {
		t.Errorf("Resolve(/api/posts) = %s, want api-canary (priority 10 beats 20)", got)
	}
}

// TestTableDeclarationOrderIrrelevant tests that resolution ignores input order
func TestTableDeclarationOrderIrrelevant(t *testing.T) {
	routes := []types.Route{
		{Prefix: "", Target: siteTarget()},
		{Prefix: "/api/v2/*", Target: types.RouteTarget{Kind: types.TargetPlacement, Name: "api-v2"}},
		{Prefix: "/api/*", Target: apiTarget()},
	}
	reversed := []types.Route{routes[2], routes[1], routes[0]}

	a, err := NewTable(routes)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	b, err := NewTable(reversed)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	for _, path := range []string{"/", "/api/posts", "/api/v2/posts", "/about"} {
		if ta, tb := a.Resolve(path).Target, b.Resolve(path).Target; ta != tb {
			t.Errorf("Resolve(%q) differs by declaration order: %s vs %s", path, ta, tb)
		}
	}
}

// TestTableNoDefaultRoute tests that a missing default fails at build time
func TestTableNoDefaultRoute(t *testing.T) {
	_, err := NewTable([]types.Route{
		{Prefix: "/api/*", Target: apiTarget()},
	})
	if err == nil {
		t.Fatal("expected error for missing default route")
	}
	if !errdefs.IsNoDefaultRoute(err) {
		t.Errorf("expected NoDefaultRoute, got %v", err)
	}

	_, err = NewTable(nil)
	if !errdefs.IsNoDefaultRoute(err) {
		t.Errorf("expected NoDefaultRoute for empty routes, got %v", err)
	}
}

// TestTableValidation tests build-time rejection of malformed route sets
func TestTableValidation(t *testing.T) {
	tests := []struct {
		name   string
		routes []types.Route
	}{
		{
			name: "two default routes",
			routes: []types.Route{
				{Prefix: "", Target: siteTarget()},
				{Prefix: "/*", Target: siteTarget()},
			},
		},
		{
			name: "default targets a placement",
			routes: []types.Route{
				{Prefix: "", Target: apiTarget()},
			},
		},
		{
			name: "prefix without leading slash",
			routes: []types.Route{
				{Prefix: "api/*", Target: apiTarget()},
				{Prefix: "", Target: siteTarget()},
			},
		},
		{
			name: "negative priority",
			routes: []types.Route{
				{Prefix: "/api/*", Priority: -1, Target: apiTarget()},
				{Prefix: "", Target: siteTarget()},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.routes); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// TestTableCacheDefaults tests the per-kind cache policy defaults
func TestTableCacheDefaults(t *testing.T) {
	table, err := NewTable([]types.Route{
		{Prefix: "/api/*", Target: apiTarget()},
		{Prefix: "", Target: siteTarget()},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	api := table.Resolve("/api/posts")
	if api.Cache == nil || api.Cache.MaxTTL != time.Second {
		t.Errorf("placement route cache = %+v, want dynamic policy", api.Cache)
	}

	site := table.Resolve("/")
	if site.Cache == nil || site.Cache.DefaultTTL != 24*time.Hour {
		t.Errorf("default route cache = %+v, want static policy", site.Cache)
	}
}

// TestTableDefaultPriorityApplied tests that unset priorities get the default
func TestTableDefaultPriorityApplied(t *testing.T) {
	table, err := NewTable([]types.Route{
		{Prefix: "/api/*", Target: apiTarget()},
		{Prefix: "", Target: siteTarget()},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	for _, r := range table.Routes() {
		if r.Priority != types.DefaultRoutePriority {
			t.Errorf("route %q priority = %d, want %d", r.Prefix, r.Priority, types.DefaultRoutePriority)
		}
	}
}

// TestCacheControl tests header rendering from cache policies
func TestCacheControl(t *testing.T) {
	if got := CacheControl(DynamicCachePolicy()); got != "no-cache" {
		t.Errorf("dynamic policy = %q, want no-cache", got)
	}
	if got := CacheControl(StaticCachePolicy()); got != "public, max-age=86400" {
		t.Errorf("static policy = %q, want public, max-age=86400", got)
	}
	if got := CacheControl(nil); got != "no-cache" {
		t.Errorf("nil policy = %q, want no-cache", got)
	}
}
