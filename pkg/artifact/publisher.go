package artifact

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stratus-cloud/stratus/pkg/builder"
	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/events"
	"github.com/stratus-cloud/stratus/pkg/fingerprint"
	"github.com/stratus-cloud/stratus/pkg/log"
	"github.com/stratus-cloud/stratus/pkg/metrics"
	"github.com/stratus-cloud/stratus/pkg/objstore"
	"github.com/stratus-cloud/stratus/pkg/registry"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// DefaultUploadConcurrency bounds parallel bundle object uploads.
const DefaultUploadConcurrency = 8

// ImageSpec declares one container image publish.
type ImageSpec struct {
	// Name is the artifact name used in events and violations
	Name string
	// ContextDir is the build context, fingerprinted with its declared
	// version
	ContextDir string
	// RegistryEndpoint is the repository the image is pushed to, without a
	// tag
	RegistryEndpoint string
}

// BundleSpec declares one static bundle publish.
type BundleSpec struct {
	// Name is the artifact name used in events and violations
	Name string
	// ContentDir is the tree of files to synchronize
	ContentDir string
	// Prefix places objects under a key prefix in the store
	Prefix string
}

// Publisher builds and publishes content-addressed artifacts. Publishing is
// idempotent: an image whose reference already exists remotely is skipped,
// and bundle objects whose stored hash matches the local file are skipped.
// Publishes of the same reference are serialized; distinct references may
// run in parallel.
type Publisher struct {
	builder  builder.Builder
	registry registry.Registry
	store    objstore.Store
	broker   *events.Broker

	contentTypes map[string]string
	strictTypes  bool
	concurrency  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	logger zerolog.Logger
}

// Option adjusts publisher behavior.
type Option func(*Publisher)

// WithEvents emits lifecycle events to the broker.
func WithEvents(broker *events.Broker) Option {
	return func(p *Publisher) { p.broker = broker }
}

// WithStrictContentTypes makes an extension outside the allow-list a
// publish failure instead of falling back to a sniffed or generic type.
func WithStrictContentTypes() Option {
	return func(p *Publisher) { p.strictTypes = true }
}

// WithContentType extends the extension allow-list.
func WithContentType(ext, contentType string) Option {
	return func(p *Publisher) { p.contentTypes[strings.ToLower(ext)] = contentType }
}

// WithUploadConcurrency bounds parallel bundle uploads.
func WithUploadConcurrency(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// ImageReference derives the content-addressed reference an image publish
// of this fingerprint produces. The same content and declared version
// always map to the same reference.
func ImageReference(registryEndpoint string, fp types.Fingerprint) string {
	return registryEndpoint + ":" + fp.Version + "-" + fp.Short()
}

// NewPublisher creates a publisher over the given collaborators
func NewPublisher(b builder.Builder, r registry.Registry, s objstore.Store, opts ...Option) *Publisher {
	p := &Publisher{
		builder:      b,
		registry:     r,
		store:        s,
		contentTypes: defaultContentTypes(),
		concurrency:  DefaultUploadConcurrency,
		locks:        make(map[string]*sync.Mutex),
		logger:       log.WithComponent("artifact"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishImage fingerprints the build context, derives the content-addressed
// reference, and builds and pushes only when that reference is not already
// in the registry. The returned artifact carries the same reference whether
// the publish built or skipped.
func (p *Publisher) PublishImage(ctx context.Context, spec ImageSpec) (*types.Artifact, error) {
	timer := metrics.NewTimer()

	fp, err := fingerprint.Compute(spec.ContextDir)
	if err != nil {
		return nil, err
	}
	reference := ImageReference(spec.RegistryEndpoint, fp)

	unlock := p.lockReference(reference)
	defer unlock()

	logger := p.logger.With().Str("artifact", spec.Name).Str("reference", reference).Logger()

	exists, err := p.registry.Exists(ctx, reference)
	if err != nil {
		metrics.PublishesTotal.WithLabelValues(string(types.ArtifactImage), "failed").Inc()
		return nil, err
	}

	artifact := &types.Artifact{
		Kind:        types.ArtifactImage,
		Name:        spec.Name,
		ContentPath: spec.ContextDir,
		Fingerprint: fp,
		Reference:   reference,
		Published:   true,
		PublishedAt: time.Now(),
	}

	if exists {
		logger.Info().Msg("Image already published, skipping build")
		metrics.PublishesTotal.WithLabelValues(string(types.ArtifactImage), "skipped").Inc()
		p.emit(events.New(events.EventArtifactSkipped, "image already published").
			WithMeta("artifact", spec.Name).
			WithMeta("reference", reference))
		return artifact, nil
	}

	if err := p.builder.BuildAndPush(ctx, spec.ContextDir, reference); err != nil {
		metrics.PublishesTotal.WithLabelValues(string(types.ArtifactImage), "failed").Inc()
		p.emit(events.New(events.EventArtifactFailed, "image publish failed").
			WithMeta("artifact", spec.Name).
			WithMeta("reference", reference))
		if errdefs.GetCode(err) != "" {
			return nil, err
		}
		return nil, errdefs.Wrap(errdefs.CodeBuildFailed, spec.Name, err)
	}
	if err := p.registry.Record(ctx, reference); err != nil {
		metrics.PublishesTotal.WithLabelValues(string(types.ArtifactImage), "failed").Inc()
		return nil, errdefs.Wrap(errdefs.CodePushFailed, spec.Name, err)
	}

	timer.ObserveDurationVec(metrics.PublishDuration, string(types.ArtifactImage))
	metrics.PublishesTotal.WithLabelValues(string(types.ArtifactImage), "published").Inc()
	logger.Info().
		Str("version", fp.Version).
		Str("fingerprint", fp.Short()).
		Msg("Image published")
	p.emit(events.New(events.EventArtifactPublished, "image published").
		WithMeta("artifact", spec.Name).
		WithMeta("reference", reference))

	return artifact, nil
}

// PublishBundle synchronizes a static file tree into the object store. Each
// file is uploaded under its relative path with its content hash as
// metadata; files whose stored hash already matches are skipped. Uploads
// run in a bounded pool and the first failure cancels the rest, so a
// consumer never sees the artifact until every object landed.
func (p *Publisher) PublishBundle(ctx context.Context, spec BundleSpec) (*types.Artifact, error) {
	timer := metrics.NewTimer()

	// Bundles declare no version; the fingerprint is content only.
	fp, err := fingerprint.Tree(spec.ContentDir, "")
	if err != nil {
		return nil, err
	}

	reference := p.store.Endpoint()
	if prefix := strings.Trim(spec.Prefix, "/"); prefix != "" {
		reference += "/" + prefix
	}

	unlock := p.lockReference(reference)
	defer unlock()

	logger := p.logger.With().Str("artifact", spec.Name).Str("reference", reference).Logger()

	files, err := enumerate(spec.ContentDir)
	if err != nil {
		return nil, err
	}

	var uploaded, skipped int64
	var counters sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, rel := range files {
		rel := rel
		g.Go(func() error {
			filePath := filepath.Join(spec.ContentDir, filepath.FromSlash(rel))
			hash, err := fingerprint.File(filePath)
			if err != nil {
				return err
			}
			key := objectKey(spec.Prefix, rel)

			existing, ok, err := p.store.Stat(gctx, key)
			if err != nil {
				return errdefs.Wrap(errdefs.CodePushFailed, key, err)
			}
			if ok && existing.Hash == hash.String() {
				counters.Lock()
				skipped++
				counters.Unlock()
				metrics.BundleObjectsSkipped.Inc()
				return nil
			}

			contentType, err := p.contentTypeFor(filePath)
			if err != nil {
				return err
			}

			f, err := os.Open(filePath)
			if err != nil {
				return errdefs.Wrap(errdefs.CodeInputNotFound, rel, err)
			}
			defer f.Close()

			obj := objstore.Object{Key: key, ContentType: contentType, Hash: hash.String()}
			if err := p.store.Put(gctx, obj, f); err != nil {
				return errdefs.Wrap(errdefs.CodePushFailed, key, err)
			}
			counters.Lock()
			uploaded++
			counters.Unlock()
			metrics.BundleObjectsUploaded.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.PublishesTotal.WithLabelValues(string(types.ArtifactBundle), "failed").Inc()
		p.emit(events.New(events.EventArtifactFailed, "bundle publish failed").
			WithMeta("artifact", spec.Name))
		return nil, err
	}

	outcome := "published"
	if uploaded == 0 {
		outcome = "skipped"
	}
	timer.ObserveDurationVec(metrics.PublishDuration, string(types.ArtifactBundle))
	metrics.PublishesTotal.WithLabelValues(string(types.ArtifactBundle), outcome).Inc()
	logger.Info().
		Int64("uploaded", uploaded).
		Int64("skipped", skipped).
		Str("fingerprint", fp.Short()).
		Msg("Bundle synchronized")
	p.emit(events.New(events.EventBundleSynced, "bundle synchronized").
		WithMeta("artifact", spec.Name).
		WithMeta("reference", reference))

	return &types.Artifact{
		Kind:        types.ArtifactBundle,
		Name:        spec.Name,
		ContentPath: spec.ContentDir,
		Fingerprint: fp,
		Reference:   reference,
		Published:   true,
		PublishedAt: time.Now(),
	}, nil
}

// lockReference serializes publishes of one reference. Distinct references
// proceed in parallel.
func (p *Publisher) lockReference(reference string) func() {
	p.mu.Lock()
	m, ok := p.locks[reference]
	if !ok {
		m = &sync.Mutex{}
		p.locks[reference] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (p *Publisher) emit(event *events.Event) {
	if p.broker != nil {
		p.broker.Publish(event)
	}
}

// enumerate returns slash-separated relative paths of all regular files
// under root in sorted order.
func enumerate(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeInputNotFound, root, err)
	}
	sort.Strings(files)
	return files, nil
}

func objectKey(prefix, rel string) string {
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		return path.Join(prefix, rel)
	}
	return rel
}
