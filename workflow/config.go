package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/yaml.v3"

	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/interface/catalog/stac"
	"github.com/airbusgeo/s2-truecolor/interface/shapefile"
	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/raster"
)

// Catalogs
const (
	CatalogPlanetaryComputer = stac.PlanetaryComputer
	CatalogEarthSearch       = stac.EarthSearch
)

// Config is the configuration of a run
type Config struct {
	Sentinel2      Sentinel2Config      `yaml:"sentinel2"`
	Bands          common.TrueColor     `yaml:"bands"`
	Output         OutputConfig         `yaml:"output"`
	Retry          RetryConfig          `yaml:"retry"`
	Workers        int                  `yaml:"workers"`
	ShapefileAOIs  []ShapefileAOIConfig `yaml:"shapefile_aois"`
	CoordinateAOIs *CoordinateAOIConfig `yaml:"coordinate_aois"`
}

// Sentinel2Config configures the catalog search and the selection of the scenes
type Sentinel2Config struct {
	Collection string `yaml:"collection"`
	// Percentages
	MaxCloudCover  float64 `yaml:"max_cloud_cover"`
	MinAOICoverage float64 `yaml:"min_aoi_coverage"`
	// Catalog is planetary-computer, earth-search or the url of a STAC API
	Catalog string `yaml:"catalog"`
	// OAuth2 client credentials of the STAC API (optional)
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// OutputConfig configures the outputs
type OutputConfig struct {
	URI              string  `yaml:"uri"`
	TifSubdir        string  `yaml:"tif_subdir"`
	JpgSubdir        string  `yaml:"jpg_subdir"`
	TargetResolution float64 `yaml:"target_resolution"`
	JpgQuality       int     `yaml:"jpg_quality"`
	Gain             float64 `yaml:"gain"`
	Resampling       string  `yaml:"resampling"`
}

// RetryConfig configures the retries of the band fetches
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// Policy returns the retry policy
func (r RetryConfig) Policy() service.RetryPolicy {
	return service.RetryPolicy{Attempts: r.Attempts, MinDelay: r.MinDelay, MaxDelay: r.MaxDelay}
}

// DateRangeConfig is an inclusive range of dates (any common layout)
type DateRangeConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Parse returns the DateRange
func (d DateRangeConfig) Parse() (common.DateRange, error) {
	start, err := dateparse.ParseAny(d.Start)
	if err != nil {
		return common.DateRange{}, fmt.Errorf("start date: %w", err)
	}
	end, err := dateparse.ParseAny(d.End)
	if err != nil {
		return common.DateRange{}, fmt.Errorf("end date: %w", err)
	}
	return common.NewDateRange(start, end)
}

// ShapefileAOIConfig defines AOIs from the polygons of a shapefile
type ShapefileAOIConfig struct {
	LocationName string          `yaml:"location_name"`
	AOIShapefile string          `yaml:"aoi_shapefile"`
	DateRange    DateRangeConfig `yaml:"date_range"`
	// ProcessAsSingle unifies all the polygons in one AOI (default), otherwise each feature is an AOI
	ProcessAsSingle *bool `yaml:"process_as_single"`
	// UseBoundingBox replaces the geometry by its bounding box
	UseBoundingBox bool    `yaml:"use_bounding_box"`
	IDField        string  `yaml:"id_field"`
	BufferMeters   float64 `yaml:"buffer_meters"`
	// SharedFolder stores the outputs of all the features in the folder location_name
	SharedFolder bool `yaml:"shared_folder"`
}

// Single returns true if the features are unified
func (s ShapefileAOIConfig) Single() bool {
	return s.ProcessAsSingle == nil || *s.ProcessAsSingle
}

// CoordinateAOIConfig defines square AOIs centered on coordinates
type CoordinateAOIConfig struct {
	LocationGroupName string  `yaml:"location_group_name"`
	SquareSizeMeters  float64 `yaml:"square_size_meters"`
	// Coordinates are [lat, lon] pairs
	Coordinates         [][]float64     `yaml:"coordinates"`
	DateRange           DateRangeConfig `yaml:"date_range"`
	ProcessOverall      *bool           `yaml:"process_overall"`
	OverallBufferMeters *float64        `yaml:"overall_buffer_meters"`
}

// Overall returns true if the overall bounding AOI must be processed
func (c CoordinateAOIConfig) Overall() bool {
	return c.ProcessOverall == nil || *c.ProcessOverall
}

// OverallBuffer returns the buffer of the overall bounding AOI (meters)
func (c CoordinateAOIConfig) OverallBuffer() float64 {
	if c.OverallBufferMeters == nil {
		return 500
	}
	return *c.OverallBufferMeters
}

// DefaultConfig returns the configuration with the default values
func DefaultConfig() Config {
	retry := service.DefaultRetryPolicy()
	return Config{
		Sentinel2: Sentinel2Config{
			Collection:     "sentinel-2-l2a",
			MaxCloudCover:  20,
			MinAOICoverage: 99.9,
			Catalog:        CatalogPlanetaryComputer,
		},
		Bands: common.DefaultTrueColor(),
		Output: OutputConfig{
			URI:              "output",
			TifSubdir:        "tif",
			JpgSubdir:        "jpg",
			TargetResolution: 10,
			JpgQuality:       95,
			Gain:             raster.DefaultGain,
			Resampling:       raster.Nearest.String(),
		},
		Retry:   RetryConfig{Attempts: retry.Attempts, MinDelay: retry.MinDelay, MaxDelay: retry.MaxDelay},
		Workers: 4,
	}
}

// LoadConfig reads and validates the yaml configuration.
// Relative shapefile paths are resolved from the directory of the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadConfig: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("LoadConfig(%s).%w", path, err)
	}
	for i, s := range cfg.ShapefileAOIs {
		if !filepath.IsAbs(s.AOIShapefile) {
			cfg.ShapefileAOIs[i].AOIShapefile = filepath.Join(filepath.Dir(path), s.AOIShapefile)
		}
	}
	return cfg, nil
}

// ParseConfig decodes the yaml configuration, applies the defaults and validates it
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ParseConfig.Unmarshal: %w", err)
	}
	if cfg.Sentinel2.ClientSecret == "" {
		cfg.Sentinel2.ClientSecret = os.Getenv("STAC_CLIENT_SECRET")
	}
	for i := range cfg.ShapefileAOIs {
		if cfg.ShapefileAOIs[i].IDField == "" {
			cfg.ShapefileAOIs[i].IDField = shapefile.DefaultIDField
		}
	}
	if c := cfg.CoordinateAOIs; c != nil && c.LocationGroupName == "" {
		c.LocationGroupName = "Coordinate"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ParseConfig.%w", err)
	}
	return &cfg, nil
}

// Validate checks the consistency of the configuration
func (cfg *Config) Validate() error {
	s2 := cfg.Sentinel2
	if s2.MaxCloudCover < 0 || s2.MaxCloudCover > 100 {
		return fmt.Errorf("Validate: max_cloud_cover must be in [0, 100]")
	}
	if s2.MinAOICoverage <= 0 || s2.MinAOICoverage > 100 {
		return fmt.Errorf("Validate: min_aoi_coverage must be in (0, 100]")
	}
	if s2.Collection == "" || s2.Catalog == "" {
		return fmt.Errorf("Validate: collection and catalog are required")
	}
	if cfg.Bands.Red == "" || cfg.Bands.Green == "" || cfg.Bands.Blue == "" {
		return fmt.Errorf("Validate: red, green and blue bands are required")
	}
	out := cfg.Output
	if out.TargetResolution <= 0 {
		return fmt.Errorf("Validate: target_resolution must be positive")
	}
	if out.JpgQuality < 1 || out.JpgQuality > 100 {
		return fmt.Errorf("Validate: jpg_quality must be in [1, 100]")
	}
	if out.Gain <= 0 {
		return fmt.Errorf("Validate: gain must be positive")
	}
	if _, err := raster.ParseResampling(out.Resampling); err != nil {
		return fmt.Errorf("Validate.%w", err)
	}
	if out.URI == "" {
		return fmt.Errorf("Validate: output uri is required")
	}
	if cfg.Retry.Attempts < 1 {
		return fmt.Errorf("Validate: retry attempts must be >= 1")
	}
	if cfg.Retry.MinDelay < 0 || cfg.Retry.MinDelay > cfg.Retry.MaxDelay {
		return fmt.Errorf("Validate: retry delays must satisfy 0 <= min_delay <= max_delay")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("Validate: workers must be >= 1")
	}

	for i, s := range cfg.ShapefileAOIs {
		if s.LocationName == "" || s.AOIShapefile == "" {
			return fmt.Errorf("Validate: shapefile_aois[%d]: location_name and aoi_shapefile are required", i)
		}
		if _, err := s.DateRange.Parse(); err != nil {
			return fmt.Errorf("Validate: shapefile_aois[%d]: %w", i, err)
		}
	}
	if c := cfg.CoordinateAOIs; c != nil {
		if c.SquareSizeMeters <= 0 {
			return fmt.Errorf("Validate: square_size_meters must be positive")
		}
		for i, coord := range c.Coordinates {
			if len(coord) != 2 {
				return fmt.Errorf("Validate: coordinates[%d] must be [lat, lon]", i)
			}
		}
		if _, err := c.DateRange.Parse(); err != nil {
			return fmt.Errorf("Validate: coordinate_aois: %w", err)
		}
	}
	if len(cfg.ShapefileAOIs) == 0 && (cfg.CoordinateAOIs == nil || len(cfg.CoordinateAOIs.Coordinates) == 0) {
		return fmt.Errorf("Validate: no AOI defined")
	}
	return nil
}
