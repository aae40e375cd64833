package downloader

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/airbusgeo/s2-truecolor/service/raster"
)

// countingSigner appends the signature number to the href
type countingSigner struct {
	n     int
	fresh []bool
}

func (s *countingSigner) Name() string              { return "counting" }
func (s *countingSigner) Supports(href string) bool { return true }
func (s *countingSigner) Sign(ctx context.Context, href string, fresh bool) (string, error) {
	s.n++
	s.fresh = append(s.fresh, fresh)
	return fmt.Sprintf("%s?sig=%d", href, s.n), nil
}

// flakyReader fails the first failures calls
type flakyReader struct {
	failures int
	err      error
	hrefs    []string
}

func (r *flakyReader) ReadWindow(ctx context.Context, href string, window geometry.Bounds, epsg int) (*raster.Buffer, error) {
	r.hrefs = append(r.hrefs, href)
	if len(r.hrefs) <= r.failures {
		return nil, r.err
	}
	grid := raster.Grid{EPSG: epsg, Transform: raster.GeoTransform{window.MinX, 10, 0, window.MaxY, 0, -10}, Width: 2, Height: 2}
	return raster.NewBuffer(grid, 1, 0), nil
}

func testPolicy(sleeps *[]time.Duration) service.RetryPolicy {
	p := service.DefaultRetryPolicy()
	p.Jitter = func() float64 { return 0.5 }
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return p
}

var testWindow = Window{Bounds: geometry.Bounds{MinX: 0, MinY: 0, MaxX: 20, MaxY: 20}, EPSG: 32633}

func TestFetchBandRetry(t *testing.T) {
	var sleeps []time.Duration
	signer := &countingSigner{}
	reader := &flakyReader{failures: 2, err: errors.New("timeout")}
	f := Fetcher{Reader: reader, Signer: signer, Policy: testPolicy(&sleeps)}

	buf, err := f.FetchBand(context.Background(), "https://host/B04.tif", testWindow)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Width != 2 || buf.EPSG != 32633 {
		t.Errorf("unexpected buffer %v", buf.Grid)
	}
	if len(reader.hrefs) != 3 {
		t.Fatalf("expecting 3 attempts, got %d", len(reader.hrefs))
	}
	if reader.hrefs[2] == reader.hrefs[0] || reader.hrefs[2] != "https://host/B04.tif?sig=3" {
		t.Errorf("the third attempt must use a re-signed href, got %v", reader.hrefs)
	}
	if signer.fresh[0] || !signer.fresh[1] || !signer.fresh[2] {
		t.Errorf("retries must ask for a fresh signature: %v", signer.fresh)
	}
	if len(sleeps) != 2 || sleeps[0] != 2500*time.Millisecond {
		t.Errorf("unexpected delays %v", sleeps)
	}
}

func TestFetchBandExhausted(t *testing.T) {
	var sleeps []time.Duration
	cause := errors.New("connection reset")
	reader := &flakyReader{failures: 100, err: cause}
	f := Fetcher{Reader: reader, Signer: &countingSigner{}, Policy: testPolicy(&sleeps)}

	_, err := f.FetchBand(context.Background(), "https://host/B04.tif", testWindow)
	var bfe *BandFetchError
	if !errors.As(err, &bfe) {
		t.Fatalf("expecting a BandFetchError, got %v", err)
	}
	if bfe.Attempts != 3 || len(reader.hrefs) != 3 {
		t.Errorf("expecting 3 attempts, got %d (%d reads)", bfe.Attempts, len(reader.hrefs))
	}
	if !errors.Is(err, cause) {
		t.Errorf("BandFetchError must carry the last error, got %v", bfe.Err)
	}
	for _, d := range sleeps {
		if d < 2*time.Second || d > 3*time.Second {
			t.Errorf("delay %v out of [2s, 3s]", d)
		}
	}
}

func TestFetchBandFatal(t *testing.T) {
	var sleeps []time.Duration
	outside := service.MakeFatal(errors.New("outside"))
	reader := &flakyReader{failures: 100, err: outside}
	f := Fetcher{Reader: reader, Policy: testPolicy(&sleeps)}

	_, err := f.FetchBand(context.Background(), "/data/B04.tif", testWindow)
	var bfe *BandFetchError
	if !errors.As(err, &bfe) || bfe.Attempts != 1 {
		t.Fatalf("expecting a single attempt, got %v", err)
	}
	if reader.hrefs[0] != "/data/B04.tif" {
		t.Errorf("default signer must not change the href, got %s", reader.hrefs[0])
	}
	if len(sleeps) != 0 {
		t.Errorf("no retry expected")
	}
}

func TestFetchBandCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &flakyReader{failures: 100, err: errors.New("timeout")}
	policy := service.DefaultRetryPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	f := Fetcher{Reader: reader, Policy: policy}
	if _, err := f.FetchBand(ctx, "/data/B04.tif", testWindow); err == nil {
		t.Fatal("expecting an error")
	}
	if len(reader.hrefs) != 1 {
		t.Errorf("expecting 1 attempt, got %d", len(reader.hrefs))
	}
}
