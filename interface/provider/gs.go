package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage/gcs"

	"github.com/airbusgeo/s2-truecolor/service"
)

// GSSigner turns gs://bucket/object hrefs into V4 signed URLs
type GSSigner struct {
	Expires time.Duration
	mu      sync.Mutex
	client  *storage.Client
}

// NewGSSigner creates a signer using the default credentials (a service account able to sign blobs)
func NewGSSigner(expires time.Duration) *GSSigner {
	return &GSSigner{Expires: expires}
}

// Name implements Signer
func (s *GSSigner) Name() string {
	return "GoogleStorage"
}

// Supports implements Signer
func (s *GSSigner) Supports(href string) bool {
	return strings.HasPrefix(href, "gs://")
}

// Sign implements Signer
func (s *GSSigner) Sign(ctx context.Context, href string, fresh bool) (string, error) {
	bucket, object, err := gcs.Parse(href)
	if err != nil {
		return "", service.MakeFatal(fmt.Errorf("GS.Sign.Parse: %w", err))
	}
	client, err := s.storageClient(ctx)
	if err != nil {
		return "", fmt.Errorf("GS.Sign.%w", err)
	}
	url, err := client.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(s.Expires),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("GS.Sign.SignedURL: %w", err)
	}
	return url, nil
}

func (s *GSSigner) storageClient(ctx context.Context) (*storage.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("storageClient: %w", err)
		}
		s.client = client
	}
	return s.client, nil
}
