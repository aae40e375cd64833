package common

// STAC item properties
const (
	PropDatetime           = "datetime"
	PropCloudCover         = "eo:cloud_cover"
	PropPlatform           = "platform"
	PropConstellation      = "constellation"
	PropOrbitState         = "sat:orbit_state"
	PropRelativeOrbit      = "sat:relative_orbit"
	PropProcessingBaseline = "s2:processing_baseline"
	PropMGRSTile           = "s2:mgrs_tile"
	PropDatatakeID         = "s2:datatake_id"
	PropProductURI         = "s2:product_uri"
	PropEPSG               = "proj:epsg"
	PropCode               = "proj:code"
)

// Scene tags
const (
	TagSourceID             = "sourceID"
	TagPlatform             = "platform"
	TagConstellation        = "constellation"
	TagOrbitDirection       = "orbitDirection"
	TagRelativeOrbit        = "relativeOrbit"
	TagProcessingBaseline   = "processingBaseline"
	TagMGRSTile             = "mgrsTile"
	TagCloudCoverPercentage = "cloudCoverPercentage"
	TagProductURI           = "productURI"
	TagAcquisitionDate      = "acquisitionDate"
)

// TrueColor maps the red, green and blue channels to the asset keys of the catalog
type TrueColor struct {
	Red   string `yaml:"red" json:"red"`
	Green string `yaml:"green" json:"green"`
	Blue  string `yaml:"blue" json:"blue"`
}

// DefaultTrueColor returns the Sentinel-2 10m true color bands
func DefaultTrueColor() TrueColor {
	return TrueColor{Red: "B04", Green: "B03", Blue: "B02"}
}

// Keys returns the asset keys in the order red, green, blue
func (t TrueColor) Keys() []string {
	return []string{t.Red, t.Green, t.Blue}
}
