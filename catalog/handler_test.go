package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	icatalog "github.com/airbusgeo/s2-truecolor/interface/catalog"
	"github.com/gorilla/mux"
)

const testArea = `{
	"name": "test-area",
	"geometry": {"type":"Polygon","coordinates":[[[16.9,50.0],[16.95,50.0],[16.95,50.05],[16.9,50.05],[16.9,50.0]]]},
	"start_time": "2024-06-01T00:00:00Z",
	"end_time": "2024-06-10T00:00:00Z",
	"max_cloud_cover": 30
}`

func serve(c *Catalog, path, body string) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	c.AddHandler(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestTileGroupsHandler(t *testing.T) {
	provider := &fakeProvider{name: "fake", scenes: entities.Scenes{
		{SourceID: "clear", CloudCover: 3, Date: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC), EPSG: 32633, GeometryWKT: "POLYGON ((16 49.5, 18 49.5, 18 51, 16 51, 16 49.5))"},
		{SourceID: "cloudy", CloudCover: 80, Date: time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC), EPSG: 32633, GeometryWKT: "POLYGON ((16 49.5, 18 49.5, 18 51, 16 51, 16 49.5))"},
	}}
	c := &Catalog{Providers: []icatalog.ScenesProvider{provider}}

	rec := serve(c, "/catalog/tilegroups", testArea)
	if rec.Code != 200 {
		t.Fatalf("expected 200, found %d: %s", rec.Code, rec.Body.String())
	}
	var groups []struct {
		Date     time.Time `json:"date"`
		Coverage float64   `json:"coverage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Coverage != 1 || !groups[0].Date.Equal(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("wrong groups: %s", rec.Body.String())
	}

	rec = serve(c, "/catalog/scenes", testArea)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "FeatureCollection") {
		t.Errorf("expected a FeatureCollection, found %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerErrors(t *testing.T) {
	c := &Catalog{Providers: []icatalog.ScenesProvider{&fakeProvider{name: "down", err: fmt.Errorf("connection refused")}}}

	if rec := serve(c, "/catalog/scenes", `{"name": "test"`); rec.Code != 400 {
		t.Errorf("expected 400, found %d", rec.Code)
	}
	if rec := serve(c, "/catalog/scenes", strings.Replace(testArea, "test-area", "test area", 1)); rec.Code != 400 {
		t.Errorf("expected 400, found %d", rec.Code)
	}
	if rec := serve(c, "/catalog/scenes", strings.Replace(testArea, "2024-06-10", "2024-05-10", 1)); rec.Code != 400 {
		t.Errorf("expected 400, found %d", rec.Code)
	}
	if rec := serve(c, "/catalog/tilegroups", testArea); rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, found %d", rec.Code)
	}
}
