package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/types"
)

const fullManifest = `
name: blogapp
baseDomain: example.dev
tags:
  team: platform
network:
  cidr: 10.0.0.0/16
  zones: 2
  sharedEgress: true
groups:
  edge: public
  backend: private
  db: data
accessEdges:
  - from: edge
    to: backend
    port: 8080
  - from: backend
    to: db
    port: 5432
image:
  name: api
  context: ./backend
  registry: registry.example.com/blog/api
bundle:
  name: site
  dir: ./frontend/dist
placements:
  - name: api
    artifact: api
    group: backend
    replicas: 2
    env:
      LOG_LEVEL: info
      DATABASE_URL: ref:db.endpoint
    health:
      type: http
      path: /healthz
      port: 8080
      interval: 10s
      retries: 2
routes:
  - prefix: /api/*
    target: placement/api
    priority: 10
    cache: dynamic
  - target: bundle/site
outputs:
  db.endpoint: db.internal:5432
`

func TestParseFullManifest(t *testing.T) {
	m, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	assert.Equal(t, "blogapp", m.Name)
	assert.Equal(t, "example.dev", m.BaseDomain)
	assert.Equal(t, "platform", m.Tags["team"])
	assert.Equal(t, 2, m.Network.Zones)
	assert.True(t, m.Network.SharedEgress)
	assert.Len(t, m.AccessEdges, 2)
	require.NotNil(t, m.Image)
	assert.Equal(t, "registry.example.com/blog/api", m.Image.Registry)
	require.NotNil(t, m.Bundle)
	assert.Equal(t, "./frontend/dist", m.Bundle.Dir)
	require.Len(t, m.Placements, 1)
	assert.Equal(t, 2, m.Placements[0].Replicas)
	require.Len(t, m.Routes, 2)
	assert.Equal(t, "db.internal:5432", m.Outputs["db.endpoint"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errdefs.IsInputNotFound(err))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stratus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullManifest), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "blogapp", m.Name)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
name: blogapp
baseDomain: example.dev
netwrok:
  cidr: 10.0.0.0/16
`))
	require.Error(t, err, "typoed field must not be silently dropped")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Manifest)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(m *Manifest) { m.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "missing base domain",
			mutate:  func(m *Manifest) { m.BaseDomain = "" },
			wantErr: "baseDomain is required",
		},
		{
			name:    "missing cidr",
			mutate:  func(m *Manifest) { m.Network.CIDR = "" },
			wantErr: "network.cidr is required",
		},
		{
			name:    "negative zones",
			mutate:  func(m *Manifest) { m.Network.Zones = -1 },
			wantErr: "zones",
		},
		{
			name:    "unknown group class",
			mutate:  func(m *Manifest) { m.Groups["edge"] = "dmz" },
			wantErr: "visibility class",
		},
		{
			name:    "edge missing endpoint",
			mutate:  func(m *Manifest) { m.AccessEdges[0].To = "" },
			wantErr: "from and to are required",
		},
		{
			name:    "placement without group",
			mutate:  func(m *Manifest) { m.Placements[0].Group = "" },
			wantErr: "group is required",
		},
		{
			name:    "malformed env reference",
			mutate:  func(m *Manifest) { m.Placements[0].Env["BAD"] = "ref:nodot" },
			wantErr: "ref:entity.output",
		},
		{
			name:    "unknown health type",
			mutate:  func(m *Manifest) { m.Placements[0].Health.Type = "grpc" },
			wantErr: "health check type",
		},
		{
			name:    "health port out of range",
			mutate:  func(m *Manifest) { m.Placements[0].Health.Port = 70000 },
			wantErr: "out of range",
		},
		{
			name:    "malformed route target",
			mutate:  func(m *Manifest) { m.Routes[0].Target = "api" },
			wantErr: "route target",
		},
		{
			name:    "unknown cache preset",
			mutate:  func(m *Manifest) { m.Routes[0].Cache.Preset = "forever" },
			wantErr: "cache preset",
		},
		{
			name:    "output key without dot",
			mutate:  func(m *Manifest) { m.Outputs["db"] = "x" },
			wantErr: "entity.output form",
		},
		{
			name:    "placement depends on itself",
			mutate:  func(m *Manifest) { m.Placements[0].DependsOn = []string{"api"} },
			wantErr: "depends on itself",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(fullManifest))
			require.NoError(t, err)

			tt.mutate(m)
			err = m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDefaultsZones(t *testing.T) {
	m, err := Parse([]byte(`
name: app
baseDomain: example.dev
network:
  cidr: 10.0.0.0/16
`))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Network.Zones)
}

func TestParseEnvValue(t *testing.T) {
	literal, err := ParseEnvValue("info")
	require.NoError(t, err)
	assert.False(t, literal.IsRef())
	assert.Equal(t, "info", literal.Literal)

	ref, err := ParseEnvValue("ref:db.endpoint")
	require.NoError(t, err)
	require.True(t, ref.IsRef())
	assert.Equal(t, "db", ref.Ref.Entity)
	assert.Equal(t, "endpoint", ref.Ref.Output)

	_, err = ParseEnvValue("ref:db")
	assert.Error(t, err)

	_, err = ParseEnvValue("ref:.endpoint")
	assert.Error(t, err)
}

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("placement/api")
	require.NoError(t, err)
	assert.Equal(t, types.TargetPlacement, target.Kind)
	assert.Equal(t, "api", target.Name)

	_, err = ParseTarget("api")
	assert.Error(t, err)

	_, err = ParseTarget("service/api")
	assert.Error(t, err)
}

func TestConvertEdgesDefaultProtocol(t *testing.T) {
	m, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	edges := m.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, types.ProtocolTCP, edges[0].Protocol)
	assert.Equal(t, "edge", edges[0].Source)
	assert.Equal(t, "backend", edges[0].Destination)
	assert.Equal(t, 8080, edges[0].Port)
}

func TestConvertEnvValues(t *testing.T) {
	m, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	env := m.Placements[0].EnvValues()
	assert.Equal(t, "info", env["LOG_LEVEL"].Literal)
	assert.True(t, env["DATABASE_URL"].IsRef())
}

func TestConvertHealthCheck(t *testing.T) {
	m, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	hc := m.Placements[0].Health.ToHealthCheck()
	require.NotNil(t, hc)
	assert.Equal(t, types.HealthCheckHTTP, hc.Type)
	assert.Equal(t, ":8080/healthz", hc.Endpoint)
	assert.Equal(t, 10*time.Second, hc.Interval)
	assert.Equal(t, 2, hc.Retries)
}

func TestConvertHealthCheckTCP(t *testing.T) {
	h := &HealthSpec{Type: "tcp", Port: 5432}
	hc := h.ToHealthCheck()
	require.NotNil(t, hc)
	assert.Equal(t, types.HealthCheckTCP, hc.Type)
	assert.Equal(t, ":5432", hc.Endpoint)
}

func TestConvertRoutes(t *testing.T) {
	m, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	routes, err := m.ToRoutes()
	require.NoError(t, err)
	require.Len(t, routes, 2)

	api := routes[0]
	assert.Equal(t, "/api/*", api.Prefix)
	assert.Equal(t, types.TargetPlacement, api.Target.Kind)
	assert.Equal(t, 10, api.Priority)
	require.NotNil(t, api.Cache)
	assert.Equal(t, time.Second, api.Cache.MaxTTL)

	site := routes[1]
	assert.True(t, site.IsDefault())
	assert.Nil(t, site.Cache, "unset cache is defaulted by the route table")
}

func TestConvertRouteExplicitCache(t *testing.T) {
	m, err := Parse([]byte(`
name: app
baseDomain: example.dev
network:
  cidr: 10.0.0.0/16
routes:
  - prefix: /img/*
    target: bundle/site
    cache:
      minTTL: 1m
      defaultTTL: 1h
      maxTTL: 24h
`))
	require.NoError(t, err)

	routes, err := m.ToRoutes()
	require.NoError(t, err)
	require.NotNil(t, routes[0].Cache)
	assert.Equal(t, time.Minute, routes[0].Cache.MinTTL)
	assert.Equal(t, time.Hour, routes[0].Cache.DefaultTTL)
	assert.Equal(t, 24*time.Hour, routes[0].Cache.MaxTTL)
}

func TestGroupClasses(t *testing.T) {
	m, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	classes := m.GroupClasses()
	assert.Equal(t, types.VisibilityPublic, classes["edge"])
	assert.Equal(t, types.VisibilityPrivate, classes["backend"])
	assert.Equal(t, types.VisibilityData, classes["db"])
}

func TestNetworkConfig(t *testing.T) {
	m, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	cfg := m.NetworkConfig()
	assert.Equal(t, "blogapp", cfg.Name)
	assert.Equal(t, "10.0.0.0/16", cfg.CIDR)
	assert.Equal(t, 2, cfg.Zones)
	assert.True(t, cfg.SharedEgress)
}
