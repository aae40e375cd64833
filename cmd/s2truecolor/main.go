package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/airbusgeo/s2-truecolor/catalog"
	"github.com/airbusgeo/s2-truecolor/downloader"
	icatalog "github.com/airbusgeo/s2-truecolor/interface/catalog"
	"github.com/airbusgeo/s2-truecolor/interface/catalog/stac"
	"github.com/airbusgeo/s2-truecolor/interface/provider"
	"github.com/airbusgeo/s2-truecolor/interface/raster/gdal"
	"github.com/airbusgeo/s2-truecolor/processor"
	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/log"
	"github.com/airbusgeo/s2-truecolor/service/raster"
	"github.com/airbusgeo/s2-truecolor/workflow"
)

type config struct {
	Config        string
	ProcessingDir string
	LogLevel      string
	Report        string
	DryRun        bool

	CatalogTimeout      time.Duration
	ReadTimeout         time.Duration
	PCSubscriptionKey   string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	SignedURLExpiration time.Duration
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.Config, "config", "config.yml", "yaml configuration of the run")
	flag.StringVar(&config.ProcessingDir, "workdir", os.TempDir(), "working directory to store intermediate results")
	flag.StringVar(&config.LogLevel, "log-level", "", "log level (debug, info, warn, error). Default: LOG_LEVEL or info")
	flag.StringVar(&config.Report, "report", "", "directory where report.json is written (default: none)")
	flag.BoolVar(&config.DryRun, "dry-run", false, "list the tile groups without processing them")

	flag.DurationVar(&config.CatalogTimeout, "catalog-timeout", time.Minute, "timeout of the requests to the catalog")
	flag.DurationVar(&config.ReadTimeout, "read-timeout", time.Minute, "timeout of the HTTP requests reading the bands")
	flag.StringVar(&config.PCSubscriptionKey, "pc-subscription-key", os.Getenv("PC_SDK_SUBSCRIPTION_KEY"), "planetary computer subscription key (optional)")
	flag.StringVar(&config.AWSRegion, "aws-region", "us-west-2", "region of the s3 assets")
	flag.StringVar(&config.AWSAccessKeyID, "aws-access-key-id", "", "aws access key id (optional: default credentials chain)")
	flag.StringVar(&config.AWSSecretAccessKey, "aws-secret-access-key", "", "aws secret access key (optional)")
	flag.DurationVar(&config.SignedURLExpiration, "signed-url-expiration", 15*time.Minute, "lifetime of the signed urls")
	flag.Parse()

	if config.Config == "" {
		return nil, fmt.Errorf("missing configuration file")
	}
	return &config, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx); err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	appConfig, err := newAppConfig()
	if err != nil {
		return err
	}
	if appConfig.LogLevel != "" {
		if err := log.SetLevel(appConfig.LogLevel); err != nil {
			return fmt.Errorf("log-level: %w", err)
		}
	}

	cfg, err := workflow.LoadConfig(appConfig.Config)
	if err != nil {
		return err
	}

	// Catalog
	stacProvider, err := stac.New(ctx, cfg.Sentinel2.Catalog, cfg.Sentinel2.TokenURL, cfg.Sentinel2.ClientID, cfg.Sentinel2.ClientSecret, appConfig.CatalogTimeout)
	if err != nil {
		return err
	}
	if cfg.Sentinel2.Catalog == stac.EarthSearch {
		stacProvider.Alternate = "s3"
	}
	c := &catalog.Catalog{Providers: []icatalog.ScenesProvider{stacProvider}, MaxCloudCover: cfg.Sentinel2.MaxCloudCover}

	// Band fetcher
	signer, err := newSigner(ctx, appConfig, cfg.Sentinel2.Catalog)
	if err != nil {
		return err
	}
	policy := cfg.Retry.Policy()
	fetcher := downloader.NewFetcher(gdal.Reader{Timeout: appConfig.ReadTimeout}, signer)
	fetcher.Policy = policy

	// Mosaic
	resampling, err := raster.ParseResampling(cfg.Output.Resampling)
	if err != nil {
		return err
	}
	mosaicker := processor.NewMosaicker(fetcher)
	mosaicker.Bands = cfg.Bands
	mosaicker.Resolution = cfg.Output.TargetResolution
	mosaicker.Resampling = resampling
	mosaicker.Gain = cfg.Output.Gain

	// Export
	storage, err := service.NewStorageStrategy(ctx, cfg.Output.URI)
	if err != nil {
		return err
	}
	exporter := workflow.NewStorageExporter(storage, cfg.Output, appConfig.ProcessingDir)

	wf := workflow.NewWorkflow(cfg, c, mosaicker, exporter)
	wf.DryRun = appConfig.DryRun

	jobs, aoiErrs := workflow.BuildJobs(ctx, cfg)
	for _, e := range aoiErrs {
		log.Logger(ctx).Error("invalid AOI", zap.String("aoi", e.Name), zap.Error(e.Err))
	}
	log.Logger(ctx).Sugar().Infof("%d AOI(s) to process", len(jobs))

	report := wf.Run(ctx, jobs)
	report.AddAOIErrors(aoiErrs)
	report.Log(ctx)
	if err := service.ToJSON(report, appConfig.Report, "report.json"); err != nil {
		return err
	}
	return ctx.Err()
}

// newSigner returns the signers of the assets of the catalog
func newSigner(ctx context.Context, appConfig *config, catalogName string) (provider.Signer, error) {
	var router provider.Router
	if catalogName == stac.PlanetaryComputer {
		router = append(router, provider.NewPlanetaryComputerSigner(appConfig.PCSubscriptionKey, appConfig.CatalogTimeout, 45*time.Minute))
	}
	s3Signer, err := provider.NewS3Signer(ctx, appConfig.AWSRegion, appConfig.AWSAccessKeyID, appConfig.AWSSecretAccessKey,
		catalogName == stac.EarthSearch, appConfig.SignedURLExpiration)
	if err != nil {
		return nil, err
	}
	router = append(router, s3Signer, provider.NewGSSigner(appConfig.SignedURLExpiration), provider.Passthrough{})
	return router, nil
}
