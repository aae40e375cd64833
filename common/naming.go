package common

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Discriminator>[.SAFE] (product name)
// MMM_MSIXXX_YYYYMMDDTHHMMSS_ROOO_Txxxxx_<Processing time> (STAC item id)
var sentinel2Name = regexp.MustCompile(`^(S2([A-D]))_MSI(L1C|L2A)_((\d{4})(\d{2})(\d{2}))T((\d{2})(\d{2})(\d{2}))_(?:N(\d{4})_)?R(\d{3})_(T((\d{2})([A-Z])([A-Z]{2})))_(\d{8}T\d{6})`)

// Info parses a Sentinel-2 product name or STAC item id
func Info(sceneName string) (map[string]string, error) {
	m := sentinel2Name.FindStringSubmatch(sceneName)
	if m == nil {
		return nil, fmt.Errorf("invalid Sentinel2 name: %s", sceneName)
	}
	return map[string]string{
		"SCENE":           sceneName,
		"MISSION_ID":      m[1],
		"MISSION_VERSION": m[2],
		"PRODUCT_LEVEL":   m[3],
		"DATE":            m[4],
		"YEAR":            m[5],
		"MONTH":           m[6],
		"DAY":             m[7],
		"TIME":            m[8],
		"HOUR":            m[9],
		"MINUTE":          m[10],
		"SECOND":          m[11],
		"PDGS":            m[12],
		"ORBIT":           m[13],
		"TILE":            m[14],
		"LATITUDE_BAND":   m[16],
		"GRID_SQUARE":     m[17],
		"GRANULE_ID":      m[18],
		"PRODUCT_DISC":    m[19],
	}, nil
}

// ProductName returns the name of the acquisition, without the processing information.
// Two reprocessings of the same acquisition share the same ProductName.
func ProductName(sceneName string) string {
	info, err := Info(sceneName)
	if err != nil {
		return sceneName
	}
	return FormatBrackets("{MISSION_ID}_MSI{PRODUCT_LEVEL}_{DATE}T{TIME}_R{ORBIT}_{TILE}", info)
}

/**
 * FormatBrackets replaces in <str> all {keys} of <info> by the corresponding value
 * keys must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), PDGS, ORBIT, TILE (LATITUDE_BAND/GRID_SQUARE/GRANULE_ID)
 * or NAME, FOLDER for the outputs
 */
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}

// CoordinateName returns the name of the location: {group}_{lat}{N|S}_{lon}{E|W}, with 4 decimals and "." replaced by "_"
// e.g. Coordinate_50_0886N_16_9203E
func CoordinateName(group string, lat, lon float64) string {
	ns, ew := "N", "E"
	if lat < 0 {
		ns = "S"
	}
	if lon < 0 {
		ew = "W"
	}
	latStr := strings.ReplaceAll(fmt.Sprintf("%.4f", math.Abs(lat)), ".", "_")
	lonStr := strings.ReplaceAll(fmt.Sprintf("%.4f", math.Abs(lon)), ".", "_")
	return fmt.Sprintf("%s_%s%s_%s%s", group, latStr, ns, lonStr, ew)
}

// OverallName returns the name of the AOI encompassing all the locations of a group
func OverallName(group string) string {
	return group + "_overall"
}

// FeatureName returns the name of a feature of a shapefile
func FeatureName(location, featureID string) string {
	return fmt.Sprintf("%s_R%s", location, featureID)
}
