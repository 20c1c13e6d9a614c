package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stratus-cloud/stratus/pkg/assembler"
	"github.com/stratus-cloud/stratus/pkg/events"
	"github.com/stratus-cloud/stratus/pkg/manifest"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Publish artifacts and compile the deployment plan",
	Long: `Publish the manifest's artifacts, then compile the full topology
and write the provisioning plan.

This is publish followed by plan, except the compiled deployment carries
the real published references. The plan file is the hand-off to the
execution engine; stratus itself provisions nothing.

Examples:
  stratus up -f stratus.yaml
  stratus up -f stratus.yaml --backend remote --bucket my-site-assets -o plan.json`,
	RunE: runUp,
}

func init() {
	upCmd.Flags().StringP("file", "f", "stratus.yaml", "Deployment manifest")
	upCmd.Flags().StringP("output", "o", "plan.json", "File the compiled plan is written to")
	addBackendFlags(upCmd)
	upCmd.Flags().Bool("plain-http", false, "Talk to the image registry without TLS")

	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	output, _ := cmd.Flags().GetString("output")

	m, err := manifest.Load(file)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	pub, cleanup, err := newPublisher(ctx, cmd, broker, m)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Publishing artifacts from %s...\n", file)
	artifacts, err := publishArtifacts(ctx, pub, broker, m)
	if err != nil {
		return err
	}
	fmt.Println()

	cfg, err := assembleConfig(m, artifacts)
	if err != nil {
		return err
	}

	deployment, err := assembler.New().WithEvents(broker).Assemble(m.Name, cfg)
	if err != nil {
		return err
	}

	printDeployment(deployment)

	if err := writeDeployment(deployment, output); err != nil {
		return err
	}

	fmt.Printf("\n✓ Plan written to %s\n", output)
	fmt.Printf("✓ %s will be served at %s\n", m.Name, deployment.Endpoint)
	return nil
}
