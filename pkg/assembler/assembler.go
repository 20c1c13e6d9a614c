package assembler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/events"
	"github.com/stratus-cloud/stratus/pkg/graph"
	"github.com/stratus-cloud/stratus/pkg/log"
	"github.com/stratus-cloud/stratus/pkg/metrics"
	"github.com/stratus-cloud/stratus/pkg/network"
	"github.com/stratus-cloud/stratus/pkg/placement"
	"github.com/stratus-cloud/stratus/pkg/policy"
	"github.com/stratus-cloud/stratus/pkg/router"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// PlacementConfig is the declared input for one placement, before its
// artifact reference and environment are resolved.
type PlacementConfig struct {
	Name        string
	Artifact    string
	AccessGroup string
	Replicas    int
	Env         map[string]types.EnvValue
	Resources   types.ResourceShape
	HealthCheck *types.HealthCheck
	DependsOn   []string
}

// Config carries every input Assemble composes: the address space, the
// declared edges and group classes, the published artifacts, the placement
// and route declarations, and the collaborator outputs that deferred
// environment references resolve against. Tags are threaded to the plan
// from this one value.
type Config struct {
	BaseDomain   string
	Tags         map[string]string
	Network      network.Config
	Edges        []types.AccessEdge
	StrictEgress []string
	GroupClasses map[string]types.VisibilityClass
	Artifacts    []*types.Artifact
	Placements   []PlacementConfig
	Routes       []types.Route
	Outputs      map[string]string
}

// Assembler compiles deployments. It is stateless; each Assemble call is a
// pure single pass over its inputs.
type Assembler struct {
	broker *events.Broker
}

// New creates an assembler.
func New() *Assembler {
	return &Assembler{}
}

// WithEvents publishes assembly lifecycle events to the broker.
func (a *Assembler) WithEvents(broker *events.Broker) *Assembler {
	a.broker = broker
	return a
}

// Assemble validates the declared topology and compiles the deployment.
//
// Validation is a single pass that collects every violation before failing:
// unpublished placement artifacts, unknown route targets, access groups
// absent from the derived policy, unresolvable environment references,
// public-to-data edges, a missing default route, and dependency cycles all
// surface together in one TopologyInvalid error. On success the deployment
// carries the resolved placements, the compiled routes, the ordered plan,
// and the single externally reachable endpoint.
func (a *Assembler) Assemble(name string, cfg Config) (*types.Deployment, error) {
	timer := metrics.NewTimer()
	logger := log.WithDeployment(name)

	if name == "" {
		return nil, fmt.Errorf("deployment name is required")
	}
	if cfg.BaseDomain == "" {
		return nil, fmt.Errorf("deployment %s: base domain is required", name)
	}

	topology, err := network.Build(cfg.Network)
	if err != nil {
		return nil, err
	}

	var opts []policy.Option
	if len(cfg.StrictEgress) > 0 {
		opts = append(opts, policy.WithStrictEgress(cfg.StrictEgress...))
	}
	policyGraph, err := policy.Derive(cfg.Edges, opts...)
	if err != nil {
		return nil, err
	}

	var violations []errdefs.Violation
	addViolation := func(entity, format string, args ...interface{}) {
		violations = append(violations, errdefs.Violation{
			Entity: entity,
			Reason: fmt.Sprintf(format, args...),
		})
	}

	artifacts := indexArtifacts(cfg.Artifacts)
	a.checkEdgeClasses(cfg, addViolation)
	a.checkPlacements(cfg, artifacts, policyGraph, addViolation)
	table := a.checkRoutes(cfg, addViolation)
	depGraph := a.buildGraph(name, topology, policyGraph, cfg)
	order, err := depGraph.Sort()
	if err != nil {
		addViolation("deployment/"+name, "%v", err)
	}

	if len(violations) > 0 {
		metrics.AssembliesTotal.WithLabelValues("invalid").Inc()
		timer.ObserveDuration(metrics.AssemblyDuration)

		topoErr := &errdefs.TopologyError{Violations: violations}
		logger.Error().
			Int("violations", len(violations)).
			Msg("Topology validation failed")
		if a.broker != nil {
			a.broker.Publish(events.New(events.EventTopologyInvalid,
				fmt.Sprintf("Deployment %s has %d topology violation(s)", name, len(violations))).
				WithMeta("deployment", name).
				WithMeta("violations", fmt.Sprintf("%d", len(violations))))
		}
		return nil, topoErr
	}

	placements, err := a.definePlacements(cfg)
	if err != nil {
		return nil, err
	}

	deployment := &types.Deployment{
		Name:       name,
		BaseDomain: cfg.BaseDomain,
		Endpoint:   fmt.Sprintf("https://%s.%s", name, cfg.BaseDomain),
		Tags:       cfg.Tags,
		Network:    topology,
		Policy:     policyGraph.Policy(),
		Artifacts:  sortedArtifacts(cfg.Artifacts),
		Placements: placements,
		Routes:     tableRoutes(table),
		Plan:       planSteps(depGraph, order),
		CreatedAt:  time.Now(),
	}

	metrics.AssembliesTotal.WithLabelValues("success").Inc()
	timer.ObserveDuration(metrics.AssemblyDuration)
	metrics.SnapshotDeployment(deployment)

	logger.Info().
		Str("endpoint", deployment.Endpoint).
		Int("plan_steps", len(deployment.Plan)).
		Int("placements", len(deployment.Placements)).
		Msg("Topology assembled")

	if a.broker != nil {
		a.broker.Publish(events.New(events.EventTopologyAssembled,
			fmt.Sprintf("Deployment %s assembled at %s", name, deployment.Endpoint)).
			WithMeta("deployment", name).
			WithMeta("endpoint", deployment.Endpoint))
	}

	return deployment, nil
}

// checkEdgeClasses rejects declared edges from public groups straight into
// data groups. Data segments are reachable only through private peers.
func (a *Assembler) checkEdgeClasses(cfg Config, addViolation func(string, string, ...interface{})) {
	if len(cfg.GroupClasses) == 0 {
		return
	}
	for _, e := range cfg.Edges {
		from, fromKnown := cfg.GroupClasses[e.Source]
		to, toKnown := cfg.GroupClasses[e.Destination]
		if fromKnown && toKnown && from == types.VisibilityPublic && to == types.VisibilityData {
			addViolation("edge/"+e.String(),
				"data group %s must not be reachable from public group %s", e.Destination, e.Source)
		}
	}
}

// checkPlacements validates artifact readiness, group membership, and
// environment reference resolvability for every placement.
func (a *Assembler) checkPlacements(cfg Config, artifacts map[string]*types.Artifact,
	policyGraph *policy.Graph, addViolation func(string, string, ...interface{})) {

	names := make(map[string]bool, len(cfg.Placements))
	for _, p := range cfg.Placements {
		names[p.Name] = true
	}

	for _, p := range cfg.Placements {
		entity := "placement/" + p.Name

		artifact, ok := artifacts[p.Artifact]
		switch {
		case !ok:
			addViolation(entity, "references unknown artifact %q", p.Artifact)
		case !artifact.Published:
			addViolation(entity, "artifact %q has not been published", p.Artifact)
		}

		if p.AccessGroup == "" {
			addViolation(entity, "declares no access group")
		} else if !policyGraph.HasGroup(p.AccessGroup) {
			addViolation(entity, "access group %q is not in the derived policy graph", p.AccessGroup)
		}

		for _, key := range sortedKeys(p.Env) {
			value := p.Env[key]
			if !value.IsRef() {
				continue
			}
			ref := value.Ref.Entity + "." + value.Ref.Output
			if _, ok := cfg.Outputs[ref]; !ok {
				addViolation(entity, "env %s references unknown output %s", key, ref)
			}
		}

		for _, dep := range p.DependsOn {
			if !names[dep] {
				addViolation(entity, "depends on unknown placement %q", dep)
			}
		}
	}
}

// checkRoutes compiles the route table and validates target references.
// Table build failures, including a missing default route, are collected as
// violations rather than returned directly.
func (a *Assembler) checkRoutes(cfg Config, addViolation func(string, string, ...interface{})) *router.Table {
	placements := make(map[string]bool, len(cfg.Placements))
	for _, p := range cfg.Placements {
		placements[p.Name] = true
	}
	bundles := make(map[string]bool)
	for _, art := range cfg.Artifacts {
		if art.Kind == types.ArtifactBundle {
			bundles[art.Name] = true
		}
	}

	for _, r := range cfg.Routes {
		entity := "route/" + routeSlug(&r)
		switch r.Target.Kind {
		case types.TargetPlacement:
			if !placements[r.Target.Name] {
				addViolation(entity, "targets unknown placement %q", r.Target.Name)
			}
		case types.TargetBundle:
			if !bundles[r.Target.Name] {
				addViolation(entity, "targets unknown bundle %q", r.Target.Name)
			}
		default:
			addViolation(entity, "unknown target kind %q", r.Target.Kind)
		}
	}

	table, err := router.NewTable(cfg.Routes)
	if err != nil {
		addViolation("routes", "%v", err)
		return nil
	}
	return table
}

// buildGraph makes every must-happen-before relation an explicit edge: the
// network precedes its segments and egress paths, policy groups precede the
// placements that join them, artifacts precede their placements, placements
// precede the routes that target them, and every route precedes the public
// endpoint.
func (a *Assembler) buildGraph(name string, topology *types.NetworkTopology,
	policyGraph *policy.Graph, cfg Config) *graph.Graph {

	g := graph.New()
	networkID := "network/" + name
	endpointID := "endpoint/" + name
	g.AddNode(networkID)

	for _, seg := range topology.Segments {
		g.AddDependency("segment/"+seg.Name, networkID)
	}
	for _, egress := range topology.Egress {
		g.AddDependency("egress/"+egress.Name, networkID)
	}
	for _, group := range policyGraph.Groups() {
		g.AddDependency("policy/"+group, networkID)
	}
	for _, art := range cfg.Artifacts {
		g.AddNode("artifact/" + art.Name)
	}

	for _, p := range cfg.Placements {
		id := "placement/" + p.Name
		g.AddDependency(id, "artifact/"+p.Artifact)
		if p.AccessGroup != "" {
			g.AddDependency(id, "policy/"+p.AccessGroup)
		}
		for _, seg := range topology.SegmentsByClass(a.placementClass(cfg, p)) {
			g.AddDependency(id, "segment/"+seg.Name)
		}
		for _, dep := range p.DependsOn {
			g.AddDependency(id, "placement/"+dep)
		}
	}

	for i := range cfg.Routes {
		r := &cfg.Routes[i]
		id := "route/" + routeSlug(r)
		switch r.Target.Kind {
		case types.TargetPlacement:
			g.AddDependency(id, "placement/"+r.Target.Name)
		case types.TargetBundle:
			g.AddDependency(id, "artifact/"+r.Target.Name)
		}
		g.AddDependency(endpointID, id)
	}

	return g
}

// placementClass resolves which segment class a placement lands in. Groups
// without a declared class default to private.
func (a *Assembler) placementClass(cfg Config, p PlacementConfig) types.VisibilityClass {
	if class, ok := cfg.GroupClasses[p.AccessGroup]; ok {
		return class
	}
	return types.VisibilityPrivate
}

// definePlacements resolves environments and derives the final placement
// records. Validation has already run, so definition failures here indicate
// a bug, not bad input.
func (a *Assembler) definePlacements(cfg Config) ([]*types.Placement, error) {
	artifacts := indexArtifacts(cfg.Artifacts)

	sorted := make([]PlacementConfig, len(cfg.Placements))
	copy(sorted, cfg.Placements)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	placements := make([]*types.Placement, 0, len(sorted))
	for _, p := range sorted {
		env := make(map[string]types.EnvValue, len(p.Env))
		for key, value := range p.Env {
			if value.IsRef() {
				resolved := cfg.Outputs[value.Ref.Entity+"."+value.Ref.Output]
				env[key] = types.EnvLiteral(resolved)
				continue
			}
			env[key] = value
		}

		defined, err := placement.Define(placement.Spec{
			Name:        p.Name,
			Artifact:    artifacts[p.Artifact],
			Env:         env,
			AccessGroup: p.AccessGroup,
			Replicas:    p.Replicas,
			Resources:   p.Resources,
			HealthCheck: p.HealthCheck,
		})
		if err != nil {
			return nil, fmt.Errorf("define placement %s: %w", p.Name, err)
		}
		placements = append(placements, defined)
	}
	return placements, nil
}

// routeSlug derives a stable plan identifier from a route's prefix.
func routeSlug(r *types.Route) string {
	if r.IsDefault() {
		return "default"
	}
	slug := strings.Trim(strings.TrimSuffix(r.Prefix, "*"), "/")
	slug = strings.ReplaceAll(slug, "/", "-")
	if slug == "" {
		return "default"
	}
	return slug
}

// planSteps renders the sorted graph as plan steps with their direct
// dependencies.
func planSteps(g *graph.Graph, order []string) []*types.PlanStep {
	steps := make([]*types.PlanStep, 0, len(order))
	for _, id := range order {
		steps = append(steps, &types.PlanStep{
			Resource:  id,
			DependsOn: g.DependenciesOf(id),
		})
	}
	return steps
}

func indexArtifacts(artifacts []*types.Artifact) map[string]*types.Artifact {
	index := make(map[string]*types.Artifact, len(artifacts))
	for _, a := range artifacts {
		index[a.Name] = a
	}
	return index
}

func sortedArtifacts(artifacts []*types.Artifact) []*types.Artifact {
	out := make([]*types.Artifact, len(artifacts))
	copy(out, artifacts)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func tableRoutes(table *router.Table) []*types.Route {
	if table == nil {
		return nil
	}
	routes := table.Routes()
	out := make([]*types.Route, 0, len(routes))
	for i := range routes {
		r := routes[i]
		out = append(out, &r)
	}
	return out
}

func sortedKeys(m map[string]types.EnvValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
