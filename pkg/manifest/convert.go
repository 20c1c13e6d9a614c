package manifest

import (
	"fmt"
	"strings"

	"github.com/stratus-cloud/stratus/pkg/network"
	"github.com/stratus-cloud/stratus/pkg/router"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// envRefPrefix marks an environment value as a deferred reference to another
// entity's output, e.g. "ref:db.endpoint".
const envRefPrefix = "ref:"

// ParseEnvValue turns a manifest env string into a typed value. Strings
// with the ref: prefix become deferred references; everything else is a
// literal.
func ParseEnvValue(raw string) (types.EnvValue, error) {
	if !strings.HasPrefix(raw, envRefPrefix) {
		return types.EnvLiteral(raw), nil
	}

	ref := strings.TrimPrefix(raw, envRefPrefix)
	entity, output, ok := strings.Cut(ref, ".")
	if !ok || entity == "" || output == "" {
		return types.EnvValue{}, fmt.Errorf("invalid reference %q, want ref:entity.output", raw)
	}
	return types.EnvFromOutput(entity, output), nil
}

// ParseTarget parses a kind/name route target string.
func ParseTarget(raw string) (types.RouteTarget, error) {
	kind, name, ok := strings.Cut(raw, "/")
	if !ok || name == "" {
		return types.RouteTarget{}, fmt.Errorf("invalid route target %q, want kind/name", raw)
	}

	switch types.TargetKind(kind) {
	case types.TargetPlacement, types.TargetBundle:
		return types.RouteTarget{Kind: types.TargetKind(kind), Name: name}, nil
	default:
		return types.RouteTarget{}, fmt.Errorf("unknown route target kind %q", kind)
	}
}

// NetworkConfig derives the topology builder input.
func (m *Manifest) NetworkConfig() network.Config {
	return network.Config{
		Name:         m.Name,
		CIDR:         m.Network.CIDR,
		Zones:        m.Network.Zones,
		SharedEgress: m.Network.SharedEgress,
	}
}

// Edges derives the typed access edges. Protocol defaults to tcp.
func (m *Manifest) Edges() []types.AccessEdge {
	edges := make([]types.AccessEdge, 0, len(m.AccessEdges))
	for _, e := range m.AccessEdges {
		protocol := types.Protocol(e.Protocol)
		if e.Protocol == "" {
			protocol = types.ProtocolTCP
		}
		edges = append(edges, types.AccessEdge{
			Source:      e.From,
			Destination: e.To,
			Port:        e.Port,
			Protocol:    protocol,
		})
	}
	return edges
}

// EnvValues derives the typed environment for a placement. Validate has
// already checked parseability, so malformed values cannot reach here.
func (p *PlacementSpec) EnvValues() map[string]types.EnvValue {
	if len(p.Env) == 0 {
		return nil
	}
	env := make(map[string]types.EnvValue, len(p.Env))
	for key, raw := range p.Env {
		value, err := ParseEnvValue(raw)
		if err != nil {
			continue
		}
		env[key] = value
	}
	return env
}

// Shape derives the placement's resource shape; zero fields take defaults
// downstream.
func (p *PlacementSpec) Shape() types.ResourceShape {
	if p.Resources == nil {
		return types.ResourceShape{}
	}
	return types.ResourceShape{
		CPUUnits:  p.Resources.CPU,
		MemoryMiB: p.Resources.Memory,
	}
}

// ToHealthCheck derives the typed probe declaration. The endpoint is stored
// as ":port/path" relative to wherever an instance answers; consumers
// prepend the instance address.
func (h *HealthSpec) ToHealthCheck() *types.HealthCheck {
	if h == nil {
		return nil
	}

	checkType := types.HealthCheckType(h.Type)
	if h.Type == "" {
		checkType = types.HealthCheckHTTP
	}

	endpoint := fmt.Sprintf(":%d", h.Port)
	if checkType == types.HealthCheckHTTP {
		path := h.Path
		if path == "" {
			path = "/"
		}
		endpoint += path
	}

	return &types.HealthCheck{
		Type:     checkType,
		Endpoint: endpoint,
		Interval: h.Interval.Std(),
		Timeout:  h.Timeout.Std(),
		Retries:  h.Retries,
	}
}

// ToRoute derives the typed route. Preset cache names resolve to the
// standard policies; explicit TTL mappings are carried as declared.
func (r *RouteSpec) ToRoute() (types.Route, error) {
	target, err := ParseTarget(r.Target)
	if err != nil {
		return types.Route{}, err
	}

	route := types.Route{
		Prefix:   r.Prefix,
		Target:   target,
		Priority: r.Priority,
	}

	if r.Cache != nil {
		switch r.Cache.Preset {
		case "static":
			route.Cache = router.StaticCachePolicy()
		case "dynamic":
			route.Cache = router.DynamicCachePolicy()
		default:
			route.Cache = &types.CachePolicy{
				MinTTL:     r.Cache.MinTTL.Std(),
				DefaultTTL: r.Cache.DefaultTTL.Std(),
				MaxTTL:     r.Cache.MaxTTL.Std(),
			}
		}
	}
	return route, nil
}

// ToRoutes derives all typed routes.
func (m *Manifest) ToRoutes() ([]types.Route, error) {
	routes := make([]types.Route, 0, len(m.Routes))
	for i := range m.Routes {
		route, err := m.Routes[i].ToRoute()
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// GroupClasses derives the typed group-to-visibility-class mapping.
func (m *Manifest) GroupClasses() map[string]types.VisibilityClass {
	if len(m.Groups) == 0 {
		return nil
	}
	classes := make(map[string]types.VisibilityClass, len(m.Groups))
	for group, class := range m.Groups {
		classes[group] = types.VisibilityClass(class)
	}
	return classes
}
