package builder

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/log"
)

// Docker builds and pushes images by shelling out to the docker CLI. The
// daemon handles layer caching, so repeated builds of an unchanged context
// are cheap even before the publisher's fingerprint skip kicks in.
type Docker struct {
	// Binary is the docker executable (default: "docker")
	Binary string

	// BuildArgs are passed to the build as --build-arg key=value
	BuildArgs map[string]string

	logger zerolog.Logger
}

// NewDocker creates a docker CLI builder
func NewDocker() *Docker {
	return &Docker{
		Binary:    "docker",
		BuildArgs: make(map[string]string),
		logger:    log.WithComponent("builder"),
	}
}

// WithBinary overrides the docker executable path
func (d *Docker) WithBinary(binary string) *Docker {
	d.Binary = binary
	return d
}

// WithBuildArg adds a build argument
func (d *Docker) WithBuildArg(key, value string) *Docker {
	d.BuildArgs[key] = value
	return d
}

// BuildAndPush builds contextDir into an image tagged reference and pushes
// it. Build and push failures carry the tool output so operators can act
// without rerunning.
func (d *Docker) BuildAndPush(ctx context.Context, contextDir, reference string) error {
	args := []string{"build", "-t", reference}
	keys := make([]string, 0, len(d.BuildArgs))
	for k := range d.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, d.BuildArgs[k]))
	}
	args = append(args, contextDir)

	d.logger.Info().
		Str("reference", reference).
		Str("context", contextDir).
		Msg("Building image")

	build := exec.CommandContext(ctx, d.Binary, args...)
	if output, err := build.CombinedOutput(); err != nil {
		return errdefs.New(errdefs.CodeBuildFailed, reference,
			"docker build failed: %v (output: %s)", err, strings.TrimSpace(string(output)))
	}

	d.logger.Info().
		Str("reference", reference).
		Msg("Pushing image")

	push := exec.CommandContext(ctx, d.Binary, "push", reference)
	if output, err := push.CombinedOutput(); err != nil {
		return errdefs.New(errdefs.CodePushFailed, reference,
			"docker push failed: %v (output: %s)", err, strings.TrimSpace(string(output)))
	}

	return nil
}
