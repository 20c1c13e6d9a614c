package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/types"
)

func publishedArtifact() *types.Artifact {
	return &types.Artifact{
		Kind:      types.ArtifactImage,
		Name:      "api",
		Reference: "registry.example.com/api:1.2.0-deadbeef0123",
		Published: true,
	}
}

func TestDefineDefaults(t *testing.T) {
	p, err := Define(Spec{
		Name:        "api",
		Artifact:    publishedArtifact(),
		AccessGroup: "backend",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, p.Replicas)
	assert.Equal(t, types.DefaultCPUUnits, p.Resources.CPUUnits)
	assert.Equal(t, types.DefaultMemoryMiB, p.Resources.MemoryMiB)
	assert.Nil(t, p.HealthCheck)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestDefinePartialResources(t *testing.T) {
	p, err := Define(Spec{
		Name:        "api",
		Artifact:    publishedArtifact(),
		AccessGroup: "backend",
		Resources:   types.ResourceShape{CPUUnits: 1024},
	})
	require.NoError(t, err)

	assert.Equal(t, 1024, p.Resources.CPUUnits)
	assert.Equal(t, types.DefaultMemoryMiB, p.Resources.MemoryMiB)
}

func TestDefineIdentityRoles(t *testing.T) {
	p, err := Define(Spec{
		Name:        "worker",
		Artifact:    publishedArtifact(),
		AccessGroup: "backend",
	})
	require.NoError(t, err)
	require.NotNil(t, p.Identity)
	require.NotNil(t, p.Identity.Pull)
	require.NotNil(t, p.Identity.Runtime)

	assert.Equal(t, "worker-pull", p.Identity.Pull.Name)
	assert.Equal(t, "worker-runtime", p.Identity.Runtime.Name)

	assert.Contains(t, p.Identity.Pull.Actions, "artifact:pull")
	assert.Contains(t, p.Identity.Pull.Actions, "logs:write")

	assert.NotContains(t, p.Identity.Runtime.Actions, "artifact:pull",
		"runtime role must not be able to pull artifacts")
	assert.Contains(t, p.Identity.Runtime.Actions, "logs:write")
}

func TestDefineUnpublishedArtifact(t *testing.T) {
	art := publishedArtifact()
	art.Published = false

	_, err := Define(Spec{
		Name:        "api",
		Artifact:    art,
		AccessGroup: "backend",
	})
	require.Error(t, err)
	assert.True(t, errdefs.IsArtifactNotReady(err))
}

func TestDefineArtifactWithoutReference(t *testing.T) {
	art := publishedArtifact()
	art.Reference = ""

	_, err := Define(Spec{
		Name:        "api",
		Artifact:    art,
		AccessGroup: "backend",
	})
	require.Error(t, err)
	assert.True(t, errdefs.IsArtifactNotReady(err))
}

func TestDefineNilArtifact(t *testing.T) {
	_, err := Define(Spec{Name: "api", AccessGroup: "backend"})
	require.Error(t, err)
	assert.True(t, errdefs.IsArtifactNotReady(err))
}

func TestDefineValidation(t *testing.T) {
	_, err := Define(Spec{AccessGroup: "backend", Artifact: publishedArtifact()})
	assert.Error(t, err, "missing name")

	_, err = Define(Spec{Name: "api", Artifact: publishedArtifact()})
	assert.Error(t, err, "missing access group")
}

func TestDefineEnvPassedThroughOpaquely(t *testing.T) {
	env := map[string]types.EnvValue{
		"LOG_LEVEL":    types.EnvLiteral("debug"),
		"DATABASE_URL": types.EnvFromOutput("db", "endpoint"),
	}

	p, err := Define(Spec{
		Name:        "api",
		Artifact:    publishedArtifact(),
		Env:         env,
		AccessGroup: "backend",
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", p.Env["LOG_LEVEL"].Literal)
	assert.False(t, p.Env["LOG_LEVEL"].IsRef())

	ref := p.Env["DATABASE_URL"]
	require.True(t, ref.IsRef(), "deferred reference must survive unresolved")
	assert.Equal(t, "db", ref.Ref.Entity)
	assert.Equal(t, "endpoint", ref.Ref.Output)
	assert.Equal(t, "ref:db.endpoint", ref.String())
}

func TestDefineCopiesEnv(t *testing.T) {
	env := map[string]types.EnvValue{"KEY": types.EnvLiteral("one")}

	p, err := Define(Spec{
		Name:        "api",
		Artifact:    publishedArtifact(),
		Env:         env,
		AccessGroup: "backend",
	})
	require.NoError(t, err)

	env["KEY"] = types.EnvLiteral("two")
	assert.Equal(t, "one", p.Env["KEY"].Literal)
}

func TestDefineHealthCheckCarried(t *testing.T) {
	hc := &types.HealthCheck{Type: types.HealthCheckHTTP, Endpoint: "/healthz"}

	p, err := Define(Spec{
		Name:        "api",
		Artifact:    publishedArtifact(),
		AccessGroup: "backend",
		HealthCheck: hc,
	})
	require.NoError(t, err)
	assert.Equal(t, hc, p.HealthCheck)
}
