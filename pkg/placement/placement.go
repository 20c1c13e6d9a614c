package placement

import (
	"fmt"
	"time"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/log"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// Spec declares one compute placement.
type Spec struct {
	// Name identifies the placement within its deployment
	Name string
	// Artifact is the published artifact the placement runs
	Artifact *types.Artifact
	// Env is the workload's environment; values may be literals or
	// deferred references to other resources' outputs
	Env map[string]types.EnvValue
	// AccessGroup is the policy group the placement joins
	AccessGroup string
	// Replicas is the desired instance count (default 1)
	Replicas int
	// Resources is the compute shape (defaults applied per field)
	Resources types.ResourceShape
	// HealthCheck gates the placement into routing when set
	HealthCheck *types.HealthCheck
}

// Define validates the spec and derives the placement record, including its
// execution identity.
//
// The artifact must already be published; Define fails with ArtifactNotReady
// otherwise. The assembler orders artifact publishes before placement
// definition, so hitting that failure indicates a wiring bug rather than a
// runtime race.
//
// Deferred environment references are passed through opaquely. They are
// resolved by the execution engine once the referenced resource exists,
// never here.
func Define(spec Spec) (*types.Placement, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("placement name is required")
	}
	if spec.AccessGroup == "" {
		return nil, fmt.Errorf("placement %s: access group is required", spec.Name)
	}
	if spec.Artifact == nil {
		return nil, errdefs.New(errdefs.CodeArtifactNotReady, spec.Name, "placement references no artifact")
	}
	if !spec.Artifact.Published || spec.Artifact.Reference == "" {
		return nil, errdefs.New(errdefs.CodeArtifactNotReady, spec.Name,
			"artifact %q has not completed publishing", spec.Artifact.Name)
	}

	replicas := spec.Replicas
	if replicas < 1 {
		replicas = 1
	}

	resources := spec.Resources
	if resources.CPUUnits == 0 {
		resources.CPUUnits = types.DefaultCPUUnits
	}
	if resources.MemoryMiB == 0 {
		resources.MemoryMiB = types.DefaultMemoryMiB
	}

	env := make(map[string]types.EnvValue, len(spec.Env))
	for k, v := range spec.Env {
		env[k] = v
	}

	p := &types.Placement{
		Name:        spec.Name,
		Artifact:    spec.Artifact,
		Env:         env,
		AccessGroup: spec.AccessGroup,
		Replicas:    replicas,
		Resources:   resources,
		Identity:    deriveIdentity(spec.Name),
		HealthCheck: spec.HealthCheck,
		CreatedAt:   time.Now(),
	}

	logger := log.WithPlacement(spec.Name)
	logger.Debug().
		Str("artifact", spec.Artifact.Reference).
		Str("access_group", spec.AccessGroup).
		Int("replicas", replicas).
		Msg("Placement defined")

	return p, nil
}

// deriveIdentity builds the placement's two execution roles. The pull role
// fetches the artifact and writes logs; the runtime role only writes logs.
// Keeping them separate means a compromised running instance holds no
// credential that can pull or modify artifacts.
func deriveIdentity(name string) *types.ExecutionIdentity {
	return &types.ExecutionIdentity{
		Pull: &types.Role{
			Name:    name + "-pull",
			Actions: []string{"artifact:pull", "logs:write"},
		},
		Runtime: &types.Role{
			Name:    name + "-runtime",
			Actions: []string{"logs:write"},
		},
	}
}
