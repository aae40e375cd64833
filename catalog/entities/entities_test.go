package entities

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/s2-truecolor/common"
)

func TestMarshallScenes(t *testing.T) {
	scenes := Scenes{
		{SourceID: "S2A_MSIL2A_20240601T100031_R122_T33UWR_20240601T155101", CloudCover: 5, EPSG: 32633, GeometryWKT: "POLYGON ((16.5 50.4, 18.0 50.4, 18.0 49.4, 16.5 49.4, 16.5 50.4))"},
		{SourceID: "S2B_MSIL2A_20240604T100559_R022_T33UWR_20240604T130116", CloudCover: 12.5, EPSG: 32633, GeometryWKT: "POLYGON ((16.5 50.4, 18.0 50.4, 18.0 49.4, 16.5 49.4, 16.5 50.4))"},
	}
	for _, s := range scenes {
		s.AutoFill()
	}
	b, err := json.Marshal(scenes)
	if err != nil {
		t.Fatal(err)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("wrong geojson got: %s", string(b))
	}
	for i, f := range fc.Features {
		if f.Geometry.Type != "Polygon" {
			t.Errorf("expected Polygon found %s", f.Geometry.Type)
		}
		if f.Properties["source_id"] != scenes[i].SourceID {
			t.Errorf("expected %s found %v", scenes[i].SourceID, f.Properties["source_id"])
		}
	}
}

func TestAutoFill(t *testing.T) {
	s := Scene{SourceID: "S2A_MSIL2A_20240601T100031_N0510_R122_T33UWR_20240601T155101.SAFE", CloudCover: 3.2}
	s.AutoFill()
	if s.ProductName != "S2A_MSIL2A_20240601T100031_R122_T33UWR" {
		t.Errorf("wrong product name: %s", s.ProductName)
	}
	if s.Tags[common.TagMGRSTile] != "T33UWR" {
		t.Errorf("wrong tile: %s", s.Tags[common.TagMGRSTile])
	}
	if s.Tags[common.TagCloudCoverPercentage] != "3.2" {
		t.Errorf("wrong cloud cover: %s", s.Tags[common.TagCloudCoverPercentage])
	}

	other := Scene{SourceID: "custom-item"}
	other.AutoFill()
	if other.ProductName != "custom-item" {
		t.Errorf("wrong product name: %s", other.ProductName)
	}
	if _, err := other.Asset("B04"); err == nil || !strings.Contains(err.Error(), "B04") {
		t.Errorf("expected a missing asset error, found %v", err)
	}
}

func TestTileGroups(t *testing.T) {
	d1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	tg := TileGroups{
		d1: {Date: d1, Scenes: Scenes{{SourceID: "a", CloudCover: 10, Tags: map[string]string{"k": "x"}}, {SourceID: "b", CloudCover: 3, Tags: map[string]string{"k": "x"}}}},
		d2: {Date: d2},
		d3: {Date: d3},
	}
	dates := tg.Dates()
	if len(dates) != 3 || !dates[0].Equal(d2) || !dates[1].Equal(d1) || !dates[2].Equal(d3) {
		t.Errorf("wrong order: %v", dates)
	}
	g := tg.Sorted()[1]
	if g.MaxCloudCover() != 10 {
		t.Errorf("expected 10 found %f", g.MaxCloudCover())
	}
	if ids := g.SourceIDs(); len(ids) != 2 || ids[0] != "a" {
		t.Errorf("wrong ids: %v", ids)
	}
	if tags := g.Tag("k"); len(tags) != 1 || tags[0] != "x" {
		t.Errorf("wrong tags: %v", tags)
	}
}
