package registry

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"oras.land/oras-go/v2/errdef"
	orasregistry "oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/log"
)

// Remote checks reference existence against a real OCI registry over the
// distribution API.
type Remote struct {
	// PlainHTTP talks to the registry without TLS (local registries)
	PlainHTTP bool

	// Username and Password authenticate against the registry when set
	Username string
	Password string

	logger zerolog.Logger
}

// NewRemote creates an OCI registry client
func NewRemote() *Remote {
	return &Remote{
		logger: log.WithComponent("registry"),
	}
}

// WithPlainHTTP disables TLS for local registries
func (r *Remote) WithPlainHTTP() *Remote {
	r.PlainHTTP = true
	return r
}

// WithCredentials sets basic auth credentials
func (r *Remote) WithCredentials(username, password string) *Remote {
	r.Username = username
	r.Password = password
	return r
}

// Exists resolves the reference's tag on the remote registry. A missing tag
// is not an error, it is the signal that a publish must actually build.
func (r *Remote) Exists(ctx context.Context, reference string) (bool, error) {
	ref, err := orasregistry.ParseReference(reference)
	if err != nil {
		return false, errdefs.Wrap(errdefs.CodePushFailed, reference, err)
	}

	repo, err := remote.NewRepository(ref.Registry + "/" + ref.Repository)
	if err != nil {
		return false, errdefs.Wrap(errdefs.CodePushFailed, reference, err)
	}
	repo.PlainHTTP = r.PlainHTTP
	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
	}
	if r.Username != "" {
		client.Credential = auth.StaticCredential(ref.Registry, auth.Credential{
			Username: r.Username,
			Password: r.Password,
		})
	}
	repo.Client = client

	desc, err := repo.Resolve(ctx, ref.Reference)
	if err != nil {
		if errors.Is(err, errdef.ErrNotFound) {
			return false, nil
		}
		return false, errdefs.Wrap(errdefs.CodePushFailed, reference, err)
	}

	r.logger.Debug().
		Str("reference", reference).
		Str("digest", desc.Digest.String()).
		Msg("Reference already present in registry")
	return true, nil
}

// Record is a no-op: a successful push leaves the tag on the registry
// itself.
func (r *Remote) Record(ctx context.Context, reference string) error {
	return nil
}
