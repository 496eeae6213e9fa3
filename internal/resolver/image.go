// Package resolver turns an image profile into the concrete image reference
// a container is created from.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/distribution/reference"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/logger"
)

// ErrUnresolved is returned when no usable image reference can be produced.
var ErrUnresolved = errors.New("image could not be resolved")

// ImageResolver resolves an image profile to an image reference.
type ImageResolver interface {
	Resolve(ctx context.Context, img config.ImageConfig) (string, error)
}

// Func adapts a function to ImageResolver.
type Func func(ctx context.Context, img config.ImageConfig) (string, error)

func (f Func) Resolve(ctx context.Context, img config.ImageConfig) (string, error) {
	return f(ctx, img)
}

// RemoteLookup checks that ref exists in its registry.
type RemoteLookup func(ctx context.Context, ref name.Reference, opts ...remote.Option) error

func headLookup(ctx context.Context, ref name.Reference, opts ...remote.Option) error {
	_, err := remote.Head(ref, append(opts, remote.WithContext(ctx))...)
	return err
}

// RegistryResolver normalizes image references and can optionally confirm
// they exist in the registry before any engine call is made.
type RegistryResolver struct {
	// DefaultImage is used when a profile names no image.
	DefaultImage string
	// VerifyRemote makes Resolve fail for references the registry doesn't know.
	VerifyRemote bool
	// Lookup overrides the registry manifest HEAD request.
	Lookup RemoteLookup
}

var _ ImageResolver = (*RegistryResolver)(nil)

// NewRegistryResolver returns a resolver that falls back to defaultImage.
func NewRegistryResolver(defaultImage string, verifyRemote bool) *RegistryResolver {
	return &RegistryResolver{DefaultImage: defaultImage, VerifyRemote: verifyRemote}
}

// Resolve returns the fully qualified reference for img.
func (r *RegistryResolver) Resolve(ctx context.Context, img config.ImageConfig) (string, error) {
	res, err := r.ResolveWithSource(ctx, img)
	if err != nil {
		return "", err
	}
	return res.Reference, nil
}

// ResolveWithSource resolves img and reports where the reference came from.
// Resolution order:
// 1. The image named by the profile
// 2. DefaultImage
func (r *RegistryResolver) ResolveWithSource(ctx context.Context, img config.ImageConfig) (*ResolvedImage, error) {
	raw, source := strings.TrimSpace(img.Image), ImageSourceExplicit
	if raw == "" {
		raw, source = strings.TrimSpace(r.DefaultImage), ImageSourceDefault
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: profile %q names no image and no default is configured", ErrUnresolved, img.Profile)
	}

	ref, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	if r.VerifyRemote {
		if err := r.verify(ctx, ref, img.Credentials); err != nil {
			return nil, err
		}
	}

	logger.Debug().Str("image", ref).Str("source", string(source)).Msg("image resolved")
	return &ResolvedImage{Reference: ref, Source: source}, nil
}

func (r *RegistryResolver) verify(ctx context.Context, ref string, creds *config.RegistryCredentials) error {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnresolved, ref, err)
	}

	var opts []remote.Option
	if creds != nil {
		opts = append(opts, remote.WithAuth(authn.FromConfig(authn.AuthConfig{
			Username: creds.Username,
			Password: creds.Password,
		})))
	} else {
		opts = append(opts, remote.WithAuthFromKeychain(authn.DefaultKeychain))
	}

	lookup := r.Lookup
	if lookup == nil {
		lookup = headLookup
	}
	if err := lookup(ctx, parsed, opts...); err != nil {
		return fmt.Errorf("%w: %s not found in registry: %w", ErrUnresolved, ref, err)
	}
	return nil
}

// Normalize expands a short reference (alpine, org/app:1) to its fully
// qualified form, adding the latest tag when neither tag nor digest is set.
func Normalize(raw string) (string, error) {
	named, err := reference.ParseNormalizedNamed(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnresolved, raw, err)
	}
	return reference.TagNameOnly(named).String(), nil
}
