package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// Table is an immutable, pre-sorted route table. Resolution is
// longest-prefix-wins with an explicit priority tie-break, and the default
// route always matches last, so Resolve returns exactly one route for any
// path.
type Table struct {
	routes []types.Route
}

// NewTable validates and sorts the declared routes.
//
// Exactly one default route (empty prefix or "/*") must be present and it
// must target the static bundle. A missing default fails with NoDefaultRoute
// here, before any traffic flows, never at request time. Routes with no
// declared priority get DefaultRoutePriority.
func NewTable(routes []types.Route) (*Table, error) {
	if len(routes) == 0 {
		return nil, errdefs.New(errdefs.CodeNoDefaultRoute, "routes", "no routes declared")
	}

	var defaults int
	sorted := make([]types.Route, 0, len(routes))
	for _, r := range routes {
		if r.Priority < 0 {
			return nil, fmt.Errorf("route %q: priority must not be negative", r.Prefix)
		}
		if r.Priority == 0 {
			r.Priority = types.DefaultRoutePriority
		}

		if r.IsDefault() {
			defaults++
			if r.Target.Kind != types.TargetBundle {
				return nil, fmt.Errorf("default route must target a bundle, got %s", r.Target)
			}
			if r.Cache == nil {
				r.Cache = StaticCachePolicy()
			}
		} else {
			if !strings.HasPrefix(r.Prefix, "/") {
				return nil, fmt.Errorf("route prefix %q must start with /", r.Prefix)
			}
			if r.Cache == nil {
				if r.Target.Kind == types.TargetPlacement {
					r.Cache = DynamicCachePolicy()
				} else {
					r.Cache = StaticCachePolicy()
				}
			}
		}
		sorted = append(sorted, r)
	}

	if defaults == 0 {
		return nil, errdefs.New(errdefs.CodeNoDefaultRoute, "routes",
			"no default route declared; one route must use an empty prefix")
	}
	if defaults > 1 {
		return nil, fmt.Errorf("%d default routes declared, want exactly one", defaults)
	}

	// Longest literal prefix first, then declared priority, then prefix text.
	// The order is total, so resolution never depends on declaration order.
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := sorted[i].MatchLen(), sorted[j].MatchLen()
		if li != lj {
			return li > lj
		}
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Prefix < sorted[j].Prefix
	})

	return &Table{routes: sorted}, nil
}

// Resolve returns the single route that wins for the given request path.
// The table always holds a default route, so resolution cannot miss.
func (t *Table) Resolve(path string) *types.Route {
	for i := range t.routes {
		if matchPrefix(&t.routes[i], path) {
			return &t.routes[i]
		}
	}
	// Unreachable: NewTable guarantees a default route and the default
	// matches every path.
	return &t.routes[len(t.routes)-1]
}

// Routes returns the table's routes in resolution order.
func (t *Table) Routes() []types.Route {
	out := make([]types.Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// matchPrefix checks a request path against one route's prefix. A trailing
// "*" is a wildcard: "/api/*" matches "/api/" and everything under it, but
// not "/api" itself.
func matchPrefix(r *types.Route, path string) bool {
	pattern := strings.TrimSuffix(r.Prefix, "*")
	if pattern == "" || pattern == "/" {
		return true
	}

	if !strings.HasPrefix(path, pattern) {
		return false
	}
	if len(path) == len(pattern) {
		return true
	}
	if pattern[len(pattern)-1] == '/' {
		return true
	}
	return path[len(pattern)] == '/'
}
