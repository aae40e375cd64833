package catalog

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	icatalog "github.com/airbusgeo/s2-truecolor/interface/catalog"
	"github.com/airbusgeo/s2-truecolor/service"
)

func TestRemoveDoubleEntries(t *testing.T) {
	scenes := entities.Scenes{
		{SourceID: "S2A_MSIL2A_20240601T100031_R122_T33UWR_20240601T155101", Tags: map[string]string{common.TagProcessingBaseline: "05.10"}},
		{SourceID: "S2A_MSIL2A_20240601T100031_R122_T33UWR_20240901T120000", Tags: map[string]string{common.TagProcessingBaseline: "05.11"}},
		{SourceID: "S2A_MSIL2A_20240601T100031_R122_T33UWR_20240602T080000", Tags: map[string]string{common.TagProcessingBaseline: "05.10"}},
		{SourceID: "S2A_MSIL2A_20240601T100031_R122_T33UXR_20240601T155101", Tags: map[string]string{common.TagProcessingBaseline: "05.10"}},
	}
	for _, s := range scenes {
		s.AutoFill()
	}
	expected := []*entities.Scene{scenes[1], scenes[3]}

	newscenes := removeDoubleEntries(append(entities.Scenes{}, scenes...))
	if len(newscenes) != 2 {
		t.Fatalf("expecting 2, found %d scenes", len(newscenes))
	}
	for i := range expected {
		if newscenes[i] != expected[i] {
			t.Errorf("expecting scene %s found %s", expected[i].SourceID, newscenes[i].SourceID)
		}
	}
}

func TestSortScenes(t *testing.T) {
	d1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
	scenes := entities.Scenes{
		{SourceID: "u", CloudCover: entities.UnknownCloudCover, Date: d2},
		{SourceID: "e", CloudCover: 30, Date: d2},
		{SourceID: "c", CloudCover: 5, Date: d1},
		{SourceID: "b", CloudCover: 5, Date: d1},
		{SourceID: "d", CloudCover: 5, Date: d2},
		{SourceID: "a", CloudCover: 0.5, Date: d1},
	}
	SortScenes(scenes)
	var ids []string
	for _, s := range scenes {
		ids = append(ids, s.SourceID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "d", "b", "c", "e", "u"}) {
		t.Errorf("wrong order: %v", ids)
	}
}

type fakeProvider struct {
	name   string
	scenes entities.Scenes
	err    error
	calls  int
	query  entities.SearchQuery
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) SearchScenes(ctx context.Context, query entities.SearchQuery) (entities.Scenes, error) {
	p.calls++
	p.query = query
	return p.scenes, p.err
}

func testAOI() common.AreaOfInterest {
	return common.AreaOfInterest{Name: "test", Kind: common.SourceShapefileUnion, Geometry: "POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))", EPSG: 4326}
}

func TestSearch(t *testing.T) {
	dates, _ := common.NewDateRange(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))
	failing := &fakeProvider{name: "failing", err: service.MakeTemporary(fmt.Errorf("timeout"))}
	working := &fakeProvider{name: "working", scenes: entities.Scenes{
		{SourceID: "late", CloudCover: 1, Date: time.Date(2024, 6, 11, 10, 0, 0, 0, time.UTC), GeometryWKT: "POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))"},
		{SourceID: "outside", CloudCover: 1, Date: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC), GeometryWKT: "POLYGON ((5 5, 6 5, 6 6, 5 6, 5 5))"},
		{SourceID: "half", CloudCover: 10, Date: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC), GeometryWKT: "POLYGON ((0.5 -1, 2 -1, 2 2, 0.5 2, 0.5 -1))"},
		{SourceID: "full", CloudCover: 2, Date: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC), GeometryWKT: "POLYGON ((-1 -1, 2 -1, 2 2, -1 2, -1 -1))"},
	}}
	for _, s := range working.scenes {
		s.AutoFill()
	}

	c := Catalog{Providers: []icatalog.ScenesProvider{failing, working}}
	scenes, err := c.Search(context.Background(), testAOI(), dates, "")
	if err != nil {
		t.Fatal(err)
	}
	if failing.calls != 1 || working.calls != 1 {
		t.Errorf("each provider must be called once")
	}
	if len(scenes) != 2 || scenes[0].SourceID != "full" || scenes[1].SourceID != "half" {
		t.Fatalf("wrong scenes: %v", scenes)
	}
	if scenes[0].Coverage != 1 || scenes[1].Coverage < 0.499999 || scenes[1].Coverage > 0.500001 {
		t.Errorf("wrong coverages: %f %f", scenes[0].Coverage, scenes[1].Coverage)
	}

	c = Catalog{Providers: []icatalog.ScenesProvider{failing}}
	_, err = c.Search(context.Background(), testAOI(), dates, "")
	var cerr CatalogUnavailableError
	if !errors.As(err, &cerr) {
		t.Errorf("expected CatalogUnavailableError, found %v", err)
	}
}

func TestSearchMaxCloudCover(t *testing.T) {
	dates, _ := common.NewDateRange(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))
	for maxCloudCover, expected := range map[float64]float64{0: 0, 20: 20, 100: 100, -1: 100, 150: 100} {
		provider := &fakeProvider{name: "working"}
		c := Catalog{Providers: []icatalog.ScenesProvider{provider}, MaxCloudCover: maxCloudCover}
		if _, err := c.Search(context.Background(), testAOI(), dates, ""); err != nil {
			t.Fatal(err)
		}
		if provider.query.MaxCloudCover != expected {
			t.Errorf("MaxCloudCover=%g: expected %g forwarded, found %g", maxCloudCover, expected, provider.query.MaxCloudCover)
		}
	}
}
