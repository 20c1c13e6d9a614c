package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-cloud/stratus/pkg/assembler"
	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/manifest"
	"github.com/stratus-cloud/stratus/pkg/types"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// testManifest builds a compilable manifest over real fixture trees.
func testManifest(t *testing.T) *manifest.Manifest {
	t.Helper()

	appDir := t.TempDir()
	writeTree(t, appDir, map[string]string{
		"VERSION":    "1.2.0\n",
		"Dockerfile": "FROM scratch\n",
		"main.go":    "package main\n",
	})
	siteDir := t.TempDir()
	writeTree(t, siteDir, map[string]string{
		"index.html": "<html></html>",
	})

	return &manifest.Manifest{
		Name:       "blog",
		BaseDomain: "example.dev",
		Tags:       map[string]string{"team": "platform"},
		Network:    manifest.NetworkSpec{CIDR: "10.0.0.0/16", Zones: 2, SharedEgress: true},
		Groups: map[string]string{
			"edge":    "public",
			"backend": "private",
		},
		AccessEdges: []manifest.EdgeSpec{
			{From: "edge", To: "backend", Port: 8080},
		},
		Image:  &manifest.ImageSpec{Name: "api", Context: appDir, Registry: "registry.example.com/blog/api"},
		Bundle: &manifest.BundleSpec{Name: "site", Dir: siteDir},
		Placements: []manifest.PlacementSpec{
			{
				Name:     "api",
				Artifact: "api",
				Group:    "backend",
				Env:      map[string]string{"LOG_LEVEL": "info"},
			},
		},
		Routes: []manifest.RouteSpec{
			{Prefix: "/api/*", Target: "placement/api"},
			{Target: "bundle/site"},
		},
	}
}

func TestDeriveArtifacts(t *testing.T) {
	m := testManifest(t)

	artifacts, err := deriveArtifacts(m)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	image := artifacts[0]
	assert.Equal(t, types.ArtifactImage, image.Kind)
	assert.Equal(t, "api", image.Name)
	assert.True(t, image.Published)
	assert.Equal(t, "1.2.0", image.Fingerprint.Version)
	assert.Equal(t, "registry.example.com/blog/api:1.2.0-"+image.Fingerprint.Short(), image.Reference)

	bundle := artifacts[1]
	assert.Equal(t, types.ArtifactBundle, bundle.Kind)
	assert.True(t, bundle.Published)
	assert.Empty(t, bundle.Reference, "bundle references are bound at publish")
	assert.False(t, bundle.Fingerprint.IsZero())
}

func TestDeriveArtifactsMissingVersion(t *testing.T) {
	m := testManifest(t)
	unversioned := t.TempDir()
	writeTree(t, unversioned, map[string]string{"Dockerfile": "FROM scratch\n"})
	m.Image.Context = unversioned

	_, err := deriveArtifacts(m)
	require.Error(t, err)
	assert.True(t, errdefs.IsInputNotFound(err))
}

func TestAssembleConfig(t *testing.T) {
	m := testManifest(t)
	artifacts, err := deriveArtifacts(m)
	require.NoError(t, err)

	cfg, err := assembleConfig(m, artifacts)
	require.NoError(t, err)

	assert.Equal(t, "example.dev", cfg.BaseDomain)
	assert.Equal(t, map[string]string{"team": "platform"}, cfg.Tags)
	assert.Equal(t, types.VisibilityPublic, cfg.GroupClasses["edge"])

	require.Len(t, cfg.Edges, 1)
	assert.Equal(t, types.ProtocolTCP, cfg.Edges[0].Protocol)

	require.Len(t, cfg.Placements, 1)
	assert.Equal(t, "backend", cfg.Placements[0].AccessGroup)
	assert.Equal(t, "info", cfg.Placements[0].Env["LOG_LEVEL"].Literal)

	assert.Len(t, cfg.Routes, 2)
}

func TestPlanCompiles(t *testing.T) {
	m := testManifest(t)
	artifacts, err := deriveArtifacts(m)
	require.NoError(t, err)
	cfg, err := assembleConfig(m, artifacts)
	require.NoError(t, err)

	deployment, err := assembler.New().Assemble(m.Name, cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.dev", deployment.Endpoint)
	assert.NotEmpty(t, deployment.Plan)
}

func TestWriteDeploymentRoundTrip(t *testing.T) {
	m := testManifest(t)
	artifacts, err := deriveArtifacts(m)
	require.NoError(t, err)
	cfg, err := assembleConfig(m, artifacts)
	require.NoError(t, err)
	deployment, err := assembler.New().Assemble(m.Name, cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, writeDeployment(deployment, path))

	loaded, err := readPlanFile(t, path)
	require.NoError(t, err)
	assert.Equal(t, deployment.Name, loaded.Name)
	assert.Equal(t, deployment.Endpoint, loaded.Endpoint)
	assert.Len(t, loaded.Routes, len(deployment.Routes))
	assert.Len(t, loaded.Plan, len(deployment.Plan))
}
