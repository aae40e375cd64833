package downloader

import (
	"context"
	"fmt"
	"time"

	"github.com/airbusgeo/s2-truecolor/interface/provider"
	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/airbusgeo/s2-truecolor/service/log"
	"github.com/airbusgeo/s2-truecolor/service/raster"
	"go.uber.org/zap"
)

// BandReader reads a window of a raster
type BandReader interface {
	// ReadWindow reads the window (expressed in the CRS epsg of the raster)
	ReadWindow(ctx context.Context, href string, window geometry.Bounds, epsg int) (*raster.Buffer, error)
}

// Window is a bounding box in the CRS of the raster
type Window struct {
	Bounds geometry.Bounds
	EPSG   int
}

// RetryState is the state of a FetchBand call
type RetryState struct {
	Attempt int
	LastErr error
	// Href is the signed URL of the current attempt
	Href string
}

// BandFetchError is returned when the band cannot be fetched
type BandFetchError struct {
	Href     string
	Attempts int
	Err      error
}

func (e *BandFetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.Href, e.Attempts, e.Err)
}

func (e *BandFetchError) Unwrap() error {
	return e.Err
}

// Fetcher fetches windows of remote bands, retrying and re-signing the href on failure
type Fetcher struct {
	Reader BandReader
	// Signer signs the href before each attempt (default: Passthrough)
	Signer provider.Signer
	Policy service.RetryPolicy
}

// NewFetcher creates a Fetcher with the default retry policy
func NewFetcher(reader BandReader, signer provider.Signer) *Fetcher {
	return &Fetcher{Reader: reader, Signer: signer, Policy: service.DefaultRetryPolicy()}
}

// FetchBand reads the window of the band.
// The href is signed before the first attempt and re-signed (fresh) before each retry.
// Fatal errors (window outside the raster) and context cancellation are not retried.
// On failure, a *BandFetchError wrapping the last error is returned.
func (f *Fetcher) FetchBand(ctx context.Context, href string, window Window) (*raster.Buffer, error) {
	signer := f.Signer
	if signer == nil {
		signer = provider.Passthrough{}
	}
	state := RetryState{Href: href}

	policy := f.Policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Logger(ctx).Sugar().Warnf("fetch %s: attempt %d failed (%v): retrying in %v", href, attempt, err, delay)
		if f.Policy.OnRetry != nil {
			f.Policy.OnRetry(attempt, delay, err)
		}
	}

	var buf *raster.Buffer
	err := policy.Do(ctx, func(attempt int) error {
		state.Attempt = attempt
		signed, err := signer.Sign(ctx, href, attempt > 1)
		if err != nil {
			state.LastErr = fmt.Errorf("Sign.%w", err)
			return state.LastErr
		}
		state.Href = signed
		b, err := f.Reader.ReadWindow(ctx, signed, window.Bounds, window.EPSG)
		if err != nil {
			state.LastErr = fmt.Errorf("ReadWindow.%w", err)
			return state.LastErr
		}
		buf = b
		return nil
	})
	if err != nil {
		log.Logger(ctx).Debug("fetch failed", zap.String("href", href), zap.Int("attempts", state.Attempt), zap.Error(err))
		return nil, &BandFetchError{Href: href, Attempts: state.Attempt, Err: err}
	}
	return buf, nil
}
