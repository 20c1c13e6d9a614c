package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratus-cloud/stratus/pkg/artifact"
	"github.com/stratus-cloud/stratus/pkg/assembler"
	"github.com/stratus-cloud/stratus/pkg/fingerprint"
	"github.com/stratus-cloud/stratus/pkg/manifest"
	"github.com/stratus-cloud/stratus/pkg/types"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compile the manifest without publishing anything",
	Long: `Compile a deployment manifest into its provisioning plan.

Artifacts are fingerprinted but never built or uploaded, so the command
has no side effects. The image reference is derived from the current
content and matches what publish would produce; bundle references are
bound to the object store at publish time and stay empty in a pure plan.

Examples:
  # Review the compiled topology
  stratus plan -f stratus.yaml

  # Write the plan for the execution engine
  stratus plan -f stratus.yaml -o plan.json`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringP("file", "f", "stratus.yaml", "Deployment manifest")
	planCmd.Flags().StringP("output", "o", "", "Write the compiled deployment to a file")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	output, _ := cmd.Flags().GetString("output")

	m, err := manifest.Load(file)
	if err != nil {
		return err
	}

	artifacts, err := deriveArtifacts(m)
	if err != nil {
		return err
	}

	cfg, err := assembleConfig(m, artifacts)
	if err != nil {
		return err
	}

	deployment, err := assembler.New().Assemble(m.Name, cfg)
	if err != nil {
		return err
	}

	printDeployment(deployment)

	if output != "" {
		if err := writeDeployment(deployment, output); err != nil {
			return err
		}
		fmt.Printf("\n✓ Plan written to %s\n", output)
	}
	return nil
}

// deriveArtifacts fingerprints the declared artifacts without publishing
// them. Bundle references depend on the object store and are left empty.
func deriveArtifacts(m *manifest.Manifest) ([]*types.Artifact, error) {
	var artifacts []*types.Artifact

	if m.Image != nil {
		fp, err := fingerprint.Compute(m.Image.Context)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, &types.Artifact{
			Kind:        types.ArtifactImage,
			Name:        m.Image.Name,
			ContentPath: m.Image.Context,
			Fingerprint: fp,
			Reference:   artifact.ImageReference(m.Image.Registry, fp),
			Published:   true,
		})
	}
	if m.Bundle != nil {
		fp, err := fingerprint.Tree(m.Bundle.Dir, "")
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, &types.Artifact{
			Kind:        types.ArtifactBundle,
			Name:        m.Bundle.Name,
			ContentPath: m.Bundle.Dir,
			Fingerprint: fp,
			Published:   true,
		})
	}
	return artifacts, nil
}

// assembleConfig maps the manifest onto the assembler's input.
func assembleConfig(m *manifest.Manifest, artifacts []*types.Artifact) (assembler.Config, error) {
	routes, err := m.ToRoutes()
	if err != nil {
		return assembler.Config{}, err
	}

	placements := make([]assembler.PlacementConfig, 0, len(m.Placements))
	for i := range m.Placements {
		p := &m.Placements[i]
		placements = append(placements, assembler.PlacementConfig{
			Name:        p.Name,
			Artifact:    p.Artifact,
			AccessGroup: p.Group,
			Replicas:    p.Replicas,
			Env:         p.EnvValues(),
			Resources:   p.Shape(),
			HealthCheck: p.Health.ToHealthCheck(),
			DependsOn:   p.DependsOn,
		})
	}

	return assembler.Config{
		BaseDomain:   m.BaseDomain,
		Tags:         m.Tags,
		Network:      m.NetworkConfig(),
		Edges:        m.Edges(),
		StrictEgress: m.StrictEgress,
		GroupClasses: m.GroupClasses(),
		Artifacts:    artifacts,
		Placements:   placements,
		Routes:       routes,
		Outputs:      m.Outputs,
	}, nil
}

func printDeployment(d *types.Deployment) {
	fmt.Printf("Deployment: %s\n", d.Name)
	fmt.Printf("  Endpoint: %s\n", d.Endpoint)
	fmt.Printf("  Network:  %s across %d zone(s), %d segment(s)\n",
		d.Network.CIDR, d.Network.Zones, len(d.Network.Segments))
	fmt.Printf("  Policy:   %d access group(s)\n", len(d.Policy.Groups))
	fmt.Println()

	if len(d.Artifacts) > 0 {
		fmt.Println("Artifacts:")
		for _, a := range d.Artifacts {
			reference := a.Reference
			if reference == "" {
				reference = "(bound at publish)"
			}
			fmt.Printf("  %-6s %-12s %s  %s\n", a.Kind, a.Name, a.Fingerprint.Short(), reference)
		}
		fmt.Println()
	}

	fmt.Printf("Plan (%d steps):\n", len(d.Plan))
	for i, step := range d.Plan {
		if len(step.DependsOn) > 0 {
			fmt.Printf("  %2d. %-24s after %s\n", i+1, step.Resource, strings.Join(step.DependsOn, ", "))
		} else {
			fmt.Printf("  %2d. %s\n", i+1, step.Resource)
		}
	}
}

func writeDeployment(d *types.Deployment, path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}
