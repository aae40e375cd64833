package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/airbusgeo/s2-truecolor/service/log"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/gorilla/mux"
)

const maxAreaSize = 10 << 20

// DefaultMinCoverage is the minimum coverage of the AOI used if the area does not define it (percent)
const DefaultMinCoverage = 99.9

// DefaultMaxCloudCover is the maximum cloud cover used if the area does not define it (percent)
const DefaultMaxCloudCover = 20.

var areaName = regexp.MustCompile("^[a-zA-Z0-9-:_]+$")

func (c *Catalog) AddHandler(r *mux.Router) {
	r.HandleFunc("/catalog/scenes", c.ScenesHandler).Methods("POST")
	r.HandleFunc("/catalog/tilegroups", c.TileGroupsHandler).Methods("POST")
}

// loadArea decodes the json area of the request, and returns it with the corresponding AOI in UTM
func loadArea(req *http.Request) (entities.SearchArea, common.AreaOfInterest, common.DateRange, error) {
	area := entities.SearchArea{}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxAreaSize))
	if err != nil {
		return area, common.AreaOfInterest{}, common.DateRange{}, fmt.Errorf("loadArea: %w", err)
	}
	if err := json.Unmarshal(body, &area); err != nil {
		return area, common.AreaOfInterest{}, common.DateRange{}, fmt.Errorf("loadArea: %w\nJSON:\n%s", err, body)
	}
	if !areaName.MatchString(area.Name) {
		return area, common.AreaOfInterest{}, common.DateRange{}, fmt.Errorf("loadArea: wrong format for name (must be chars, numbers and -:_): '%s'", area.Name)
	}
	if area.AOI.Geometry == nil {
		return area, common.AreaOfInterest{}, common.DateRange{}, fmt.Errorf("loadArea: missing required field: 'geometry'")
	}
	dates, err := common.NewDateRange(area.StartTime, area.EndTime)
	if err != nil {
		return area, common.AreaOfInterest{}, common.DateRange{}, fmt.Errorf("loadArea.%w", err)
	}
	aoiWKT, err := wkt.EncodeString(area.AOI.Geometry)
	if err != nil {
		return area, common.AreaOfInterest{}, common.DateRange{}, fmt.Errorf("loadArea.EncodeString: %w", err)
	}
	aoi, err := geometry.NewAOI(area.Name, common.SourceShapefileUnion, aoiWKT, geometry.WGS84)
	if err != nil {
		return area, common.AreaOfInterest{}, common.DateRange{}, fmt.Errorf("loadArea.%w", err)
	}
	if aoi, err = geometry.ToUTM(aoi); err != nil {
		return area, common.AreaOfInterest{}, common.DateRange{}, fmt.Errorf("loadArea.%w", err)
	}
	return area, aoi, dates, nil
}

func percent(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// ScenesHandler lists the scenes covering a given area during an interval of time, sorted by priority
func (c *Catalog) ScenesHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	area, aoi, dates, err := loadArea(req)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}

	scenes, err := c.Search(ctx, aoi, dates, area.Collection)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("catalog.ScenesHandler.%v", err)
		w.WriteHeader(searchStatus(err))
		fmt.Fprintf(w, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(scenes); err != nil {
		log.Logger(ctx).Sugar().Warnf("catalog.ScenesHandler.%v", err)
	}
}

// TileGroupsHandler selects, for each date, the scenes covering a given area
func (c *Catalog) TileGroupsHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	area, aoi, dates, err := loadArea(req)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}

	scenes, err := c.Search(ctx, aoi, dates, area.Collection)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("catalog.TileGroupsHandler.%v", err)
		w.WriteHeader(searchStatus(err))
		fmt.Fprintf(w, "%v", err)
		return
	}

	groups, err := SelectTileGroups(scenes, aoi, percent(area.MinCoverage, DefaultMinCoverage)/100, percent(area.MaxCloudCover, DefaultMaxCloudCover))
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("catalog.TileGroupsHandler.%v", err)
		w.WriteHeader(500)
		fmt.Fprintf(w, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(groups.Sorted()); err != nil {
		log.Logger(ctx).Sugar().Warnf("catalog.TileGroupsHandler.%v", err)
	}
}

func searchStatus(err error) int {
	var cerr CatalogUnavailableError
	if errors.As(err, &cerr) {
		return http.StatusBadGateway
	}
	return 500
}
