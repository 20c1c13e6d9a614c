package types

import (
	"fmt"
	"strings"
	"time"
)

// FingerprintAlgorithm is the digest algorithm used for content fingerprints.
const FingerprintAlgorithm = "sha256"

// ShortFingerprintLen is the number of hex characters used when a fingerprint
// is embedded in a human-facing identifier such as an artifact reference.
const ShortFingerprintLen = 12

// Fingerprint pins a tracked input tree to its exact content and the version
// its authors declared. Two trees with identical bytes and identical declared
// versions always produce the same fingerprint regardless of where or when
// they were walked.
type Fingerprint struct {
	Algorithm string `json:"algorithm"`
	Hex       string `json:"hex"`
	Version   string `json:"version"`
}

// IsZero reports whether the fingerprint has been computed.
func (f Fingerprint) IsZero() bool {
	return f.Hex == ""
}

// Equal reports whether two fingerprints identify the same content and
// declared version.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Algorithm == other.Algorithm && f.Hex == other.Hex && f.Version == other.Version
}

// String returns the canonical algorithm-prefixed digest form.
func (f Fingerprint) String() string {
	return f.Algorithm + ":" + f.Hex
}

// Short returns the truncated hex digest used in artifact references.
func (f Fingerprint) Short() string {
	if len(f.Hex) < ShortFingerprintLen {
		return f.Hex
	}
	return f.Hex[:ShortFingerprintLen]
}

// VisibilityClass partitions a network topology by exposure. Every segment
// belongs to exactly one class.
type VisibilityClass string

const (
	// VisibilityPublic segments carry internet-facing entry points.
	VisibilityPublic VisibilityClass = "public"
	// VisibilityPrivate segments carry workloads reachable only from inside
	// the topology.
	VisibilityPrivate VisibilityClass = "private"
	// VisibilityData segments carry stateful backends and are never directly
	// reachable from public segments.
	VisibilityData VisibilityClass = "data"
)

// VisibilityClasses returns all classes in their canonical carve order.
// Address blocks are assigned to classes in this order, so changing it
// changes every derived CIDR.
func VisibilityClasses() []VisibilityClass {
	return []VisibilityClass{VisibilityPublic, VisibilityPrivate, VisibilityData}
}

// Valid reports whether the class is one of the known visibility classes.
func (c VisibilityClass) Valid() bool {
	switch c {
	case VisibilityPublic, VisibilityPrivate, VisibilityData:
		return true
	}
	return false
}

// NetworkSegment is one carved address block: a visibility class pinned to a
// single availability zone.
type NetworkSegment struct {
	Name  string          `json:"name"`
	Class VisibilityClass `json:"class"`
	Zone  int             `json:"zone"` // 1-based zone ordinal
	CIDR  string          `json:"cidr"`
}

// EgressPath is an outbound gateway for private and data segments. With
// shared egress a single path in zone 1 serves the whole topology; otherwise
// each zone gets its own.
type EgressPath struct {
	Name   string `json:"name"`
	Zone   int    `json:"zone"`
	Shared bool   `json:"shared"`
}

// NetworkTopology is the fully carved address plan for one deployment.
type NetworkTopology struct {
	Name      string            `json:"name"`
	CIDR      string            `json:"cidr"`
	Zones     int               `json:"zones"`
	Segments  []*NetworkSegment `json:"segments"`
	Egress    []*EgressPath     `json:"egress"`
	CreatedAt time.Time         `json:"created_at"`
}

// SegmentsByClass returns the segments of one visibility class in zone order.
func (t *NetworkTopology) SegmentsByClass(class VisibilityClass) []*NetworkSegment {
	var out []*NetworkSegment
	for _, s := range t.Segments {
		if s.Class == class {
			out = append(out, s)
		}
	}
	return out
}

// Segment returns the segment for a class and zone, or nil if the topology
// does not contain it.
func (t *NetworkTopology) Segment(class VisibilityClass, zone int) *NetworkSegment {
	for _, s := range t.Segments {
		if s.Class == class && s.Zone == zone {
			return s
		}
	}
	return nil
}

// Protocol is a transport protocol permitted on an access edge.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"

	// ProtocolAll appears only on derived rules such as the default
	// allow-all egress entry. It is never valid on a declared edge.
	ProtocolAll Protocol = "all"
)

// Valid reports whether the protocol is supported on edges.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolTCP, ProtocolUDP, ProtocolICMP:
		return true
	}
	return false
}

// AccessEdge declares that one named group may reach another on a single
// port and protocol. Edges are the only input to policy derivation.
type AccessEdge struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Port        int      `json:"port"`
	Protocol    Protocol `json:"protocol"`
}

// String renders the edge in source->destination:port/protocol form, which is
// how edges are reported in violations and logs.
func (e AccessEdge) String() string {
	return fmt.Sprintf("%s->%s:%d/%s", e.Source, e.Destination, e.Port, e.Protocol)
}

// RuleDirection distinguishes inbound from outbound rules on a group.
type RuleDirection string

const (
	DirectionIngress RuleDirection = "ingress"
	DirectionEgress  RuleDirection = "egress"
)

// PeerAny is the wildcard peer used by the default allow-all egress rule.
const PeerAny = "*"

// AccessRule is one normalized entry in a group's rule set. Peer names the
// group on the other side of the original edge, or PeerAny for the default
// egress rule.
type AccessRule struct {
	Direction RuleDirection `json:"direction"`
	Peer      string        `json:"peer"`
	Port      int           `json:"port"`
	Protocol  Protocol      `json:"protocol"`
}

// AccessGroup is a named security boundary with its derived rules. Rules are
// kept sorted and deduplicated so repeated derivation yields identical
// groups.
type AccessGroup struct {
	Name    string        `json:"name"`
	Ingress []*AccessRule `json:"ingress"`
	Egress  []*AccessRule `json:"egress"`
}

// AccessPolicy is the complete derived rule set for a deployment, with
// groups in lexical order.
type AccessPolicy struct {
	Groups []*AccessGroup `json:"groups"`
}

// Group returns the named group, or nil if the policy does not contain it.
func (p *AccessPolicy) Group(name string) *AccessGroup {
	for _, g := range p.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// ArtifactKind distinguishes the two deployable artifact forms.
type ArtifactKind string

const (
	// ArtifactImage is a container image built from the input tree and pushed
	// to an image registry.
	ArtifactImage ArtifactKind = "image"
	// ArtifactBundle is a static file tree synchronized object by object into
	// an object store.
	ArtifactBundle ArtifactKind = "bundle"
)

// Valid reports whether the kind is a known artifact kind.
func (k ArtifactKind) Valid() bool {
	return k == ArtifactImage || k == ArtifactBundle
}

// Artifact is a deployable unit derived from a tracked input tree. Reference
// and Published are set by the first successful publish and never change for
// a given fingerprint.
type Artifact struct {
	Kind        ArtifactKind `json:"kind"`
	Name        string       `json:"name"`
	ContentPath string       `json:"content_path"`
	Fingerprint Fingerprint  `json:"fingerprint"`
	Reference   string       `json:"reference,omitempty"`
	Published   bool         `json:"published"`
	PublishedAt time.Time    `json:"published_at,omitempty"`
}

// EnvValue is a single environment entry for a placement. It is either a
// literal string or a deferred reference to another resource's output that
// is resolved by the execution engine, never by the compiler.
type EnvValue struct {
	Literal string     `json:"literal,omitempty"`
	Ref     *OutputRef `json:"ref,omitempty"`
}

// OutputRef names an output of another resource, such as a database
// endpoint, that only exists after that resource is provisioned.
type OutputRef struct {
	Entity string `json:"entity"`
	Output string `json:"output"`
}

// EnvLiteral returns an environment value carrying a literal string.
func EnvLiteral(v string) EnvValue {
	return EnvValue{Literal: v}
}

// EnvFromOutput returns a deferred environment value referencing an output
// of another resource.
func EnvFromOutput(entity, output string) EnvValue {
	return EnvValue{Ref: &OutputRef{Entity: entity, Output: output}}
}

// IsRef reports whether the value is deferred.
func (v EnvValue) IsRef() bool {
	return v.Ref != nil
}

// String renders the value for plans and logs. Deferred values render as an
// opaque ref token so literals and references are never confused.
func (v EnvValue) String() string {
	if v.Ref != nil {
		return "ref:" + v.Ref.Entity + "." + v.Ref.Output
	}
	return v.Literal
}

// Default resource allotment for placements that do not specify a shape.
const (
	DefaultCPUUnits  = 256
	DefaultMemoryMiB = 512
)

// ResourceShape is the compute allotment for a placement.
type ResourceShape struct {
	CPUUnits  int `json:"cpu_units"`
	MemoryMiB int `json:"memory_mib"`
}

// DefaultResources returns the shape applied when a placement declares none.
func DefaultResources() ResourceShape {
	return ResourceShape{CPUUnits: DefaultCPUUnits, MemoryMiB: DefaultMemoryMiB}
}

// Role is a named grant of actions assumed by platform machinery on behalf
// of a placement.
type Role struct {
	Name    string   `json:"name"`
	Actions []string `json:"actions"`
}

// ExecutionIdentity separates the credentials used to fetch a placement's
// artifact from the credentials its code runs with. The two are distinct
// roles so a workload can never use pull credentials at runtime.
type ExecutionIdentity struct {
	Pull    *Role `json:"pull"`
	Runtime *Role `json:"runtime"`
}

// HealthCheckType selects the probe mechanism for a placement.
type HealthCheckType string

const (
	HealthCheckHTTP HealthCheckType = "http"
	HealthCheckTCP  HealthCheckType = "tcp"
)

// HealthCheck configures the probe that gates a route target into service.
type HealthCheck struct {
	Type     HealthCheckType `json:"type"`
	Endpoint string          `json:"endpoint"`
	Interval time.Duration   `json:"interval"`
	Timeout  time.Duration   `json:"timeout"`
	Retries  int             `json:"retries"`
}

// Placement is a compute workload: a published artifact bound to an access
// group with its environment, scale, and identity.
type Placement struct {
	Name        string              `json:"name"`
	Artifact    *Artifact           `json:"artifact"`
	Env         map[string]EnvValue `json:"env,omitempty"`
	AccessGroup string              `json:"access_group"`
	Replicas    int                 `json:"replicas"`
	Resources   ResourceShape       `json:"resources"`
	Identity    *ExecutionIdentity  `json:"identity"`
	HealthCheck *HealthCheck        `json:"health_check,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// TargetKind distinguishes the two things a route can forward to.
type TargetKind string

const (
	TargetPlacement TargetKind = "placement"
	TargetBundle    TargetKind = "bundle"
)

// RouteTarget names the backend a route forwards matching requests to.
type RouteTarget struct {
	Kind TargetKind `json:"kind"`
	Name string     `json:"name"`
}

// String renders the target in kind/name form.
func (t RouteTarget) String() string {
	return string(t.Kind) + "/" + t.Name
}

// DefaultRoutePriority is applied to routes that declare no priority. Lower
// values win ties between equal-length prefixes.
const DefaultRoutePriority = 100

// CachePolicy sets the edge cache TTL bounds for responses on a route.
type CachePolicy struct {
	MinTTL     time.Duration `json:"min_ttl"`
	DefaultTTL time.Duration `json:"default_ttl"`
	MaxTTL     time.Duration `json:"max_ttl"`
}

// Route maps a path prefix to a target. The empty prefix is the default
// route; a pattern ending in "/*" matches everything under it.
type Route struct {
	Prefix   string       `json:"prefix"`
	Target   RouteTarget  `json:"target"`
	Priority int          `json:"priority"`
	Cache    *CachePolicy `json:"cache,omitempty"`
}

// IsDefault reports whether the route is the catch-all default.
func (r *Route) IsDefault() bool {
	return r.Prefix == "" || r.Prefix == "/*"
}

// MatchLen returns the length of the literal prefix used for longest-prefix
// comparison, with the trailing wildcard stripped.
func (r *Route) MatchLen() int {
	return len(strings.TrimSuffix(r.Prefix, "*"))
}

// TargetState is the lifecycle of a route target behind the edge. Targets
// only receive traffic while Healthy.
type TargetState string

const (
	// TargetDefined means the route exists but no probe has run yet.
	TargetDefined TargetState = "defined"
	// TargetHealthUnknown means probing has started without a verdict, or a
	// previously healthy target has started failing probes.
	TargetHealthUnknown TargetState = "health_unknown"
	// TargetHealthy means the target passed its probe and receives traffic.
	TargetHealthy TargetState = "healthy"
	// TargetDraining means the target is being retired and finishes in-flight
	// requests but accepts no new ones.
	TargetDraining TargetState = "draining"
	// TargetRemoved is terminal.
	TargetRemoved TargetState = "removed"
)

// PlanStep is one node of the ordered provisioning plan handed to the
// execution engine. Resource is a kind/name identifier and DependsOn lists
// the identifiers that must be provisioned first.
type PlanStep struct {
	Resource  string   `json:"resource"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// Deployment is the compiled output for one application: every derived
// resource plus the ordered plan and the single public endpoint. Tags apply
// to every resource the plan provisions.
type Deployment struct {
	Name       string            `json:"name"`
	BaseDomain string            `json:"base_domain"`
	Endpoint   string            `json:"endpoint"`
	Tags       map[string]string `json:"tags,omitempty"`
	Network    *NetworkTopology  `json:"network"`
	Policy     *AccessPolicy     `json:"policy"`
	Artifacts  []*Artifact       `json:"artifacts"`
	Placements []*Placement      `json:"placements"`
	Routes     []*Route          `json:"routes"`
	Plan       []*PlanStep       `json:"plan"`
	CreatedAt  time.Time         `json:"created_at"`
}
