package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/airbusgeo/s2-truecolor/catalog"
	icatalog "github.com/airbusgeo/s2-truecolor/interface/catalog"
	"github.com/airbusgeo/s2-truecolor/interface/catalog/stac"
	"github.com/airbusgeo/s2-truecolor/service/log"
)

type config struct {
	Addr             string
	Catalog          string
	STACTokenURL     string
	STACClientID     string
	STACClientSecret string
	Timeout          time.Duration
	MaxCloudCover    float64
	BearerToken      string
	AllowedOrigins   string
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.Addr, "addr", ":8080", "address of the http server")
	flag.StringVar(&config.Catalog, "catalog", stac.PlanetaryComputer, "STAC catalog ("+stac.PlanetaryComputer+", "+stac.EarthSearch+" or url of a STAC API)")
	flag.StringVar(&config.STACTokenURL, "stac-token-url", "", "OAuth2 token url of the STAC API (optional)")
	flag.StringVar(&config.STACClientID, "stac-client-id", "", "OAuth2 client id")
	flag.StringVar(&config.STACClientSecret, "stac-client-secret", os.Getenv("STAC_CLIENT_SECRET"), "OAuth2 client secret")
	flag.DurationVar(&config.Timeout, "timeout", time.Minute, "timeout of the requests to the STAC API")
	flag.Float64Var(&config.MaxCloudCover, "max-cloud-cover", 100, "default maximum cloud cover (percent)")
	flag.StringVar(&config.BearerToken, "bearer-token", os.Getenv("CATALOG_TOKEN"), "token required to access the service (optional)")
	flag.StringVar(&config.AllowedOrigins, "allowed-origins", "*", "CORS allowed origins")
	flag.Parse()

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
	config, err := newAppConfig()
	if err != nil {
		return err
	}

	provider, err := stac.New(ctx, config.Catalog, config.STACTokenURL, config.STACClientID, config.STACClientSecret, config.Timeout)
	if err != nil {
		return err
	}
	c := catalog.Catalog{
		Providers:     []icatalog.ScenesProvider{provider},
		MaxCloudCover: config.MaxCloudCover,
	}

	bearerAuths = map[string]string{"default": config.BearerToken}

	// HTTP Server
	r := mux.NewRouter()
	c.AddHandler(r)
	r.Use(BearerAuthenticate)

	headersOk := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	originsOk := handlers.AllowedOrigins([]string{config.AllowedOrigins})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})

	s := http.Server{
		Addr:    config.Addr,
		Handler: handlers.CORS(originsOk, headersOk, methodsOk)(r),
	}

	go func() {
		log.Logger(ctx).Sugar().Infof("catalog: listening on %s (%s)", config.Addr, provider.Name())
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger(ctx).Fatal("catalog.ListenAndServe", zap.Error(err))
		}
	}()

	<-ctx.Done()
	sctx, cncl := context.WithTimeout(context.Background(), 30*time.Second)
	defer cncl()
	return s.Shutdown(sctx)
}
