package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stratus-cloud/stratus/pkg/artifact"
	"github.com/stratus-cloud/stratus/pkg/builder"
	"github.com/stratus-cloud/stratus/pkg/events"
	"github.com/stratus-cloud/stratus/pkg/manifest"
	"github.com/stratus-cloud/stratus/pkg/objstore"
	"github.com/stratus-cloud/stratus/pkg/registry"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// eventPublishComplete marks the end of a publish run on the event stream,
// so the outcome printer knows it has seen everything.
const eventPublishComplete events.EventType = "publish.complete"

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Build and publish the manifest's artifacts",
	Long: `Build and publish the artifacts a manifest declares.

The image is fingerprinted, built, and pushed unless its reference
already exists; bundle files are synchronized object by object, skipping
unchanged content. Re-running publish over unchanged trees does nothing.

The local backend records image pushes in a file-backed index and keeps
bundle objects in a local store. The remote backend resolves references
against the OCI registry itself and synchronizes bundles into an S3
bucket.

Examples:
  # Publish into the local development backend
  stratus publish -f stratus.yaml

  # Publish against the real registry and bucket
  stratus publish -f stratus.yaml --backend remote --bucket my-site-assets`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringP("file", "f", "stratus.yaml", "Deployment manifest")
	addBackendFlags(publishCmd)
	publishCmd.Flags().Bool("plain-http", false, "Talk to the image registry without TLS")

	rootCmd.AddCommand(publishCmd)
}

// addBackendFlags registers the flags that select where artifacts land.
func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "local", "Artifact backend: local or remote")
	cmd.Flags().String("data-dir", "./stratus-data", "Data directory for the local backend")
	cmd.Flags().String("bucket", "", "S3 bucket for bundle objects (remote backend)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")

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

	fmt.Printf("\n✓ %d artifact(s) up to date\n", len(artifacts))
	return nil
}

// newPublisher wires the publish collaborators selected by the backend
// flags. The returned cleanup closes any file-backed stores.
func newPublisher(ctx context.Context, cmd *cobra.Command, broker *events.Broker, m *manifest.Manifest) (*artifact.Publisher, func(), error) {
	backend, _ := cmd.Flags().GetString("backend")

	switch backend {
	case "local":
		dataDir, _ := cmd.Flags().GetString("data-dir")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		reg, err := registry.NewLocal(dataDir)
		if err != nil {
			return nil, nil, err
		}
		store, err := objstore.NewLocal(dataDir)
		if err != nil {
			reg.Close()
			return nil, nil, err
		}
		cleanup := func() {
			store.Close()
			reg.Close()
		}
		pub := artifact.NewPublisher(builder.NewDocker(), reg, store, artifact.WithEvents(broker))
		return pub, cleanup, nil

	case "remote":
		reg := registry.NewRemote()
		if plainHTTP, _ := cmd.Flags().GetBool("plain-http"); plainHTTP {
			reg.WithPlainHTTP()
		}

		var store objstore.Store
		if bucket, _ := cmd.Flags().GetString("bucket"); bucket != "" {
			s3, err := objstore.NewS3(ctx, bucket)
			if err != nil {
				return nil, nil, err
			}
			store = s3
		} else if m.Bundle != nil {
			return nil, nil, fmt.Errorf("--bucket is required to publish bundle %q with the remote backend", m.Bundle.Name)
		}

		pub := artifact.NewPublisher(builder.NewDocker(), reg, store, artifact.WithEvents(broker))
		return pub, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want local or remote)", backend)
	}
}

// publishArtifacts runs the manifest's publishes in parallel and prints
// each outcome as the publisher reports it.
func publishArtifacts(ctx context.Context, pub *artifact.Publisher, broker *events.Broker, m *manifest.Manifest) ([]*types.Artifact, error) {
	sub := broker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range sub {
			switch event.Type {
			case events.EventArtifactPublished:
				fmt.Printf("✓ Published %s: %s\n", event.Metadata["artifact"], event.Metadata["reference"])
			case events.EventArtifactSkipped:
				fmt.Printf("✓ Unchanged %s: %s\n", event.Metadata["artifact"], event.Metadata["reference"])
			case events.EventBundleSynced:
				fmt.Printf("✓ Synchronized %s: %s\n", event.Metadata["artifact"], event.Metadata["reference"])
			case eventPublishComplete:
				return
			}
		}
	}()

	var (
		mu        sync.Mutex
		artifacts []*types.Artifact
	)
	collect := func(a *types.Artifact) {
		mu.Lock()
		artifacts = append(artifacts, a)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	if m.Image != nil {
		g.Go(func() error {
			a, err := pub.PublishImage(gctx, artifact.ImageSpec{
				Name:             m.Image.Name,
				ContextDir:       m.Image.Context,
				RegistryEndpoint: m.Image.Registry,
			})
			if err != nil {
				return err
			}
			collect(a)
			return nil
		})
	}
	if m.Bundle != nil {
		g.Go(func() error {
			a, err := pub.PublishBundle(gctx, artifact.BundleSpec{
				Name:       m.Bundle.Name,
				ContentDir: m.Bundle.Dir,
			})
			if err != nil {
				return err
			}
			collect(a)
			return nil
		})
	}
	err := g.Wait()

	// The broker delivers in order, so by the time the completion marker
	// reaches the printer every outcome has been printed.
	broker.Publish(events.New(eventPublishComplete, "publish run finished"))
	<-done
	broker.Unsubscribe(sub)

	if err != nil {
		return nil, err
	}
	return artifacts, nil
}
