package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// Manifest is the deployment declaration read from stratus.yaml. It is the
// single input to the compiler: everything else is derived from it.
type Manifest struct {
	Name        string            `yaml:"name"`
	BaseDomain  string            `yaml:"baseDomain"`
	Tags        map[string]string `yaml:"tags,omitempty"`
	Network     NetworkSpec       `yaml:"network"`
	Groups      map[string]string `yaml:"groups,omitempty"`
	AccessEdges []EdgeSpec        `yaml:"accessEdges,omitempty"`
	// StrictEgress names groups whose outbound traffic must come only from
	// declared edges; they never receive the default allow-all egress rule.
	StrictEgress []string          `yaml:"strictEgress,omitempty"`
	Image        *ImageSpec        `yaml:"image,omitempty"`
	Bundle       *BundleSpec       `yaml:"bundle,omitempty"`
	Placements   []PlacementSpec   `yaml:"placements,omitempty"`
	Routes       []RouteSpec       `yaml:"routes,omitempty"`
	Outputs      map[string]string `yaml:"outputs,omitempty"`
}

// NetworkSpec declares the address space the deployment carves up.
type NetworkSpec struct {
	CIDR         string `yaml:"cidr"`
	Zones        int    `yaml:"zones,omitempty"`
	SharedEgress bool   `yaml:"sharedEgress,omitempty"`
}

// EdgeSpec declares one permitted communication path between two groups.
type EdgeSpec struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol,omitempty"`
}

// ImageSpec declares the container image artifact.
type ImageSpec struct {
	Name     string `yaml:"name"`
	Context  string `yaml:"context"`
	Registry string `yaml:"registry"`
}

// BundleSpec declares the static bundle artifact.
type BundleSpec struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir"`
}

// PlacementSpec declares one compute workload. DependsOn lists placements
// that must be provisioned first, on top of the implicit artifact and
// network ordering.
type PlacementSpec struct {
	Name      string            `yaml:"name"`
	Artifact  string            `yaml:"artifact"`
	Group     string            `yaml:"group"`
	Replicas  int               `yaml:"replicas,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	Resources *ResourcesSpec    `yaml:"resources,omitempty"`
	Health    *HealthSpec       `yaml:"health,omitempty"`
	DependsOn []string          `yaml:"dependsOn,omitempty"`
}

// ResourcesSpec overrides the default compute shape.
type ResourcesSpec struct {
	CPU    int `yaml:"cpu,omitempty"`
	Memory int `yaml:"memory,omitempty"`
}

// HealthSpec declares the probe that gates a placement into routing.
type HealthSpec struct {
	Type     string   `yaml:"type,omitempty"`
	Path     string   `yaml:"path,omitempty"`
	Port     int      `yaml:"port"`
	Interval Duration `yaml:"interval,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
	Retries  int      `yaml:"retries,omitempty"`
}

// RouteSpec declares one externally visible path prefix.
type RouteSpec struct {
	Prefix   string     `yaml:"prefix,omitempty"`
	Target   string     `yaml:"target"`
	Priority int        `yaml:"priority,omitempty"`
	Cache    *CacheSpec `yaml:"cache,omitempty"`
}

// Duration unmarshals YAML scalars like "30s" or "5m" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// CacheSpec is either a preset name ("static" or "dynamic") or an explicit
// TTL mapping.
type CacheSpec struct {
	Preset     string
	MinTTL     Duration
	DefaultTTL Duration
	MaxTTL     Duration
}

func (c *CacheSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var preset string
		if err := value.Decode(&preset); err != nil {
			return err
		}
		c.Preset = preset
		return nil
	}

	var raw struct {
		MinTTL     Duration `yaml:"minTTL"`
		DefaultTTL Duration `yaml:"defaultTTL"`
		MaxTTL     Duration `yaml:"maxTTL"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.MinTTL, c.DefaultTTL, c.MaxTTL = raw.MinTTL, raw.DefaultTTL, raw.MaxTTL
	return nil
}

// Load reads, parses, and validates a manifest file. Unknown YAML fields are
// rejected so typos surface instead of silently dropping configuration.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.New(errdefs.CodeInputNotFound, path, "manifest file not found")
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks required fields, enum values, and reference syntax. It
// does not check cross-entity consistency (unknown route targets, missing
// groups); the assembler collects those as topology violations.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if m.BaseDomain == "" {
		return fmt.Errorf("manifest: baseDomain is required")
	}
	if m.Network.CIDR == "" {
		return fmt.Errorf("manifest: network.cidr is required")
	}
	if m.Network.Zones < 0 {
		return fmt.Errorf("manifest: network.zones must not be negative")
	}
	if m.Network.Zones == 0 {
		m.Network.Zones = 1
	}

	for group, class := range m.Groups {
		if !types.VisibilityClass(class).Valid() {
			return fmt.Errorf("manifest: group %q has unknown visibility class %q", group, class)
		}
	}

	for i, e := range m.AccessEdges {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("manifest: accessEdges[%d]: from and to are required", i)
		}
	}

	for i, g := range m.StrictEgress {
		if g == "" {
			return fmt.Errorf("manifest: strictEgress[%d]: group name must not be empty", i)
		}
	}

	if m.Image != nil {
		if m.Image.Name == "" || m.Image.Context == "" || m.Image.Registry == "" {
			return fmt.Errorf("manifest: image requires name, context, and registry")
		}
	}
	if m.Bundle != nil {
		if m.Bundle.Name == "" || m.Bundle.Dir == "" {
			return fmt.Errorf("manifest: bundle requires name and dir")
		}
	}

	for i, p := range m.Placements {
		if p.Name == "" {
			return fmt.Errorf("manifest: placements[%d]: name is required", i)
		}
		if p.Artifact == "" {
			return fmt.Errorf("manifest: placement %s: artifact is required", p.Name)
		}
		if p.Group == "" {
			return fmt.Errorf("manifest: placement %s: group is required", p.Name)
		}
		for key, value := range p.Env {
			if _, err := ParseEnvValue(value); err != nil {
				return fmt.Errorf("manifest: placement %s: env %s: %w", p.Name, key, err)
			}
		}
		if p.Health != nil {
			switch p.Health.Type {
			case "", string(types.HealthCheckHTTP), string(types.HealthCheckTCP):
			default:
				return fmt.Errorf("manifest: placement %s: unknown health check type %q", p.Name, p.Health.Type)
			}
			if p.Health.Port <= 0 || p.Health.Port > 65535 {
				return fmt.Errorf("manifest: placement %s: health port %d out of range", p.Name, p.Health.Port)
			}
		}
		for _, dep := range p.DependsOn {
			if dep == p.Name {
				return fmt.Errorf("manifest: placement %s depends on itself", p.Name)
			}
		}
	}

	for i, r := range m.Routes {
		if _, err := ParseTarget(r.Target); err != nil {
			return fmt.Errorf("manifest: routes[%d]: %w", i, err)
		}
		if r.Cache != nil && r.Cache.Preset != "" &&
			r.Cache.Preset != "static" && r.Cache.Preset != "dynamic" {
			return fmt.Errorf("manifest: routes[%d]: unknown cache preset %q", i, r.Cache.Preset)
		}
	}

	for key := range m.Outputs {
		if !strings.Contains(key, ".") {
			return fmt.Errorf("manifest: output key %q must use entity.output form", key)
		}
	}

	return nil
}
