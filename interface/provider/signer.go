package provider

import (
	"context"
	"fmt"
)

// Signer turns the href of an asset into a URL that can be read by GDAL
type Signer interface {
	// Sign returns a (short-lived) readable URL of the asset.
	// If fresh is true, a new signature must be issued, even if a cached one has not expired yet.
	Sign(ctx context.Context, href string, fresh bool) (string, error)
	// Supports returns true if the Signer can sign the href
	Supports(href string) bool
	// Name of the signer
	Name() string
}

// Passthrough is a Signer that returns the href unchanged (public assets)
type Passthrough struct{}

// Name implements Signer
func (Passthrough) Name() string { return "Passthrough" }

// Supports implements Signer
func (Passthrough) Supports(href string) bool { return true }

// Sign implements Signer
func (Passthrough) Sign(ctx context.Context, href string, fresh bool) (string, error) {
	return href, nil
}

// Router is a Signer that delegates to the first signer supporting the href
type Router []Signer

// Name implements Signer
func (r Router) Name() string { return "Router" }

// Supports implements Signer
func (r Router) Supports(href string) bool {
	return r.signer(href) != nil
}

// Sign implements Signer
func (r Router) Sign(ctx context.Context, href string, fresh bool) (string, error) {
	s := r.signer(href)
	if s == nil {
		return "", fmt.Errorf("Sign: no signer supports %s", href)
	}
	url, err := s.Sign(ctx, href, fresh)
	if err != nil {
		return "", fmt.Errorf("Sign(%s).%w", s.Name(), err)
	}
	return url, nil
}

func (r Router) signer(href string) Signer {
	for _, s := range r {
		if s.Supports(href) {
			return s
		}
	}
	return nil
}
