package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/log"
)

const (
	PlanetaryComputerURL = "https://planetarycomputer.microsoft.com/api/stac/v1/search"
	EarthSearchURL       = "https://earth-search.aws.element84.com/v1/search"
	CollectionL2A        = "sentinel-2-l2a"
	DefaultPageSize      = 100
	DefaultMaxItems      = 2000
	// Cloud cover of the items that do not provide it
	UnknownCloudCover = entities.UnknownCloudCover
)

type SearchData struct {
	Features       []Feature `json:"features"`
	Links          []Link    `json:"links"`
	NumberMatched  int       `json:"numberMatched"`
	NumberReturned int       `json:"numberReturned"`
}

type Link struct {
	Body   map[string]interface{} `json:"body"`
	Href   string                 `json:"href"`
	Method string                 `json:"method"`
	Rel    string                 `json:"rel"`
	Merge  bool                   `json:"merge"`
}

type Feature struct {
	Id         string                 `json:"id"`
	Collection string                 `json:"collection"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Assets     map[string]Asset       `json:"assets"`
}

type Asset struct {
	Href      string               `json:"href"`
	Type      string               `json:"type"`
	Alternate map[string]Alternate `json:"alternate"`
}

type Alternate struct {
	Href string `json:"href"`
}

// Provider searches scenes in a STAC API
type Provider struct {
	ProviderName string
	URL          string
	Client       *http.Client
	// Limiter paces the requests (optional)
	Limiter  *rate.Limiter
	PageSize int
	MaxItems int
	// Alternate is the name of the alternate href to use instead of the main href of an asset (e.g "s3"), if it exists
	Alternate string
}

// NewPlanetaryComputer returns a provider for the Microsoft Planetary Computer STAC API
func NewPlanetaryComputer(timeout time.Duration) *Provider {
	return &Provider{
		ProviderName: "PlanetaryComputer",
		URL:          PlanetaryComputerURL,
		Client:       service.NewHTTPClient(timeout),
		Limiter:      rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// NewEarthSearch returns a provider for the Element84 Earth Search STAC API
func NewEarthSearch(timeout time.Duration) *Provider {
	return &Provider{
		ProviderName: "EarthSearch",
		URL:          EarthSearchURL,
		Client:       service.NewHTTPClient(timeout),
		Limiter:      rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// NewOAuth2Provider returns a provider for a STAC API authenticated with the OAuth2 client credentials flow
func NewOAuth2Provider(ctx context.Context, name, url, tokenURL, clientID, clientSecret string, timeout time.Duration) *Provider {
	conf := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	client := conf.Client(ctx)
	client.Timeout = timeout
	return &Provider{
		ProviderName: name,
		URL:          url,
		Client:       client,
	}
}

// Well-known catalogs
const (
	PlanetaryComputer = "planetary-computer"
	EarthSearch       = "earth-search"
)

// New returns the provider of a well-known catalog or of the STAC API at the url catalog.
// If tokenURL is not empty, the requests are authenticated with OAuth2 client credentials.
func New(ctx context.Context, catalog, tokenURL, clientID, clientSecret string, timeout time.Duration) (*Provider, error) {
	switch catalog {
	case PlanetaryComputer:
		return NewPlanetaryComputer(timeout), nil
	case EarthSearch:
		return NewEarthSearch(timeout), nil
	}
	if !strings.HasPrefix(catalog, "https://") && !strings.HasPrefix(catalog, "http://") {
		return nil, fmt.Errorf("New: unknown catalog '%s' (expecting %s, %s or the url of a STAC API)", catalog, PlanetaryComputer, EarthSearch)
	}
	url := strings.TrimSuffix(catalog, "/")
	if !strings.HasSuffix(url, "/search") {
		url += "/search"
	}
	if tokenURL != "" {
		return NewOAuth2Provider(ctx, catalog, url, tokenURL, clientID, clientSecret, timeout), nil
	}
	return &Provider{ProviderName: catalog, URL: url, Client: service.NewHTTPClient(timeout)}, nil
}

// Name implements ScenesProvider
func (p *Provider) Name() string {
	return p.ProviderName
}

// SearchScenes implements ScenesProvider
func (p *Provider) SearchScenes(ctx context.Context, query entities.SearchQuery) (entities.Scenes, error) {
	pageSize, maxItems := p.PageSize, p.MaxItems
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	collection := query.Collection
	if collection == "" {
		collection = CollectionL2A
	}

	aoi, err := wkt.DecodeString(query.AOI)
	if err != nil {
		return nil, fmt.Errorf("SearchScenes(%s).DecodeString: %w", p.ProviderName, err)
	}

	req := map[string]interface{}{
		"intersects":  geojson.Geometry{Geometry: aoi},
		"datetime":    query.Dates.Interval(),
		"collections": []string{collection},
		"limit":       pageSize,
	}
	if query.MaxCloudCover < 100 {
		req["query"] = map[string]interface{}{
			common.PropCloudCover: map[string]float64{"lte": query.MaxCloudCover},
		}
	}

	features, err := p.query(ctx, req, maxItems)
	if err != nil {
		return nil, fmt.Errorf("SearchScenes(%s).%w", p.ProviderName, err)
	}

	scenes := make(entities.Scenes, 0, len(features))
	for _, f := range features {
		scene, err := p.toScene(f)
		if err != nil {
			log.Logger(ctx).Sugar().Warnf("SearchScenes(%s): skip item %s: %v", p.ProviderName, f.Id, err)
			continue
		}
		scenes = append(scenes, scene)
	}
	log.Logger(ctx).Sugar().Debugf("SearchScenes(%s): %d items found", p.ProviderName, len(scenes))
	return scenes, nil
}

func (p *Provider) query(ctx context.Context, body map[string]interface{}, maxItems int) ([]Feature, error) {
	url, method := p.URL, http.MethodPost
	var features []Feature
	for {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("query.Wait: %w", err)
			}
		}
		search, err := p.do(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("query.%w", err)
		}
		features = append(features, search.Features...)
		if len(features) >= maxItems {
			log.Logger(ctx).Sugar().Warnf("query(%s): more than %d items, the search is truncated", p.ProviderName, maxItems)
			return features[:maxItems], nil
		}

		next := nextLink(search.Links)
		if next == nil || len(search.Features) == 0 {
			return features, nil
		}
		url = next.Href
		if next.Method != "" {
			method = strings.ToUpper(next.Method)
		} else {
			method = http.MethodGet
		}
		switch {
		case method == http.MethodGet:
			body = nil
		case next.Merge:
			if body == nil {
				body = map[string]interface{}{}
			}
			for k, v := range next.Body {
				body[k] = v
			}
		case next.Body != nil:
			body = next.Body
		}
	}
}

func (p *Provider) do(ctx context.Context, method, url string, body map[string]interface{}) (*SearchData, error) {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return nil, fmt.Errorf("do.Encode: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &reqBody)
	if err != nil {
		return nil, fmt.Errorf("do.NewRequest: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	respBody, err := service.DoBody(p.Client, req)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}
	search := &SearchData{}
	if err := json.Unmarshal(respBody, search); err != nil {
		return nil, fmt.Errorf("do: parse body (%s): %w", url, err)
	}
	return search, nil
}

func nextLink(links []Link) *Link {
	for i := range links {
		if links[i].Rel == "next" && links[i].Href != "" {
			return &links[i]
		}
	}
	return nil
}

func (p *Provider) toScene(f Feature) (*entities.Scene, error) {
	if f.Geometry == nil || f.Geometry.Geometry == nil {
		return nil, fmt.Errorf("missing geometry")
	}
	footprint, err := wkt.EncodeString(f.Geometry.Geometry)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	date, err := parseDatetime(f.Properties[common.PropDatetime])
	if err != nil {
		return nil, err
	}
	epsg, err := parseEPSG(f.Properties)
	if err != nil {
		return nil, err
	}
	cloudCover := UnknownCloudCover
	if cc, ok := f.Properties[common.PropCloudCover].(float64); ok {
		cloudCover = cc
	}

	assets := make(map[string]string, len(f.Assets))
	for k, a := range f.Assets {
		assets[k] = a.Href
		if alt, ok := a.Alternate[p.Alternate]; ok && p.Alternate != "" && alt.Href != "" {
			assets[k] = alt.Href
		}
	}

	tags := map[string]string{}
	for tag, prop := range map[string]string{
		common.TagPlatform:           common.PropPlatform,
		common.TagConstellation:      common.PropConstellation,
		common.TagOrbitDirection:     common.PropOrbitState,
		common.TagRelativeOrbit:      common.PropRelativeOrbit,
		common.TagProcessingBaseline: common.PropProcessingBaseline,
		common.TagMGRSTile:           common.PropMGRSTile,
		common.TagProductURI:         common.PropProductURI,
	} {
		if v, ok := f.Properties[prop]; ok && v != nil {
			tags[tag] = fmt.Sprintf("%v", v)
		}
	}

	scene := &entities.Scene{
		SourceID:    f.Id,
		Date:        date,
		EPSG:        epsg,
		CloudCover:  cloudCover,
		GeometryWKT: footprint,
		Assets:      assets,
		Tags:        tags,
	}
	// Reprocessings of the same acquisition share the same datatake and tile
	if dt, ok := f.Properties[common.PropDatatakeID].(string); ok && tags[common.TagMGRSTile] != "" {
		scene.ProductName = dt + "_" + tags[common.TagMGRSTile]
	}
	scene.AutoFill()
	return scene, nil
}

func parseDatetime(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, fmt.Errorf("missing %s", common.PropDatetime)
	}
	date, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if date, err = dateparse.ParseAny(s); err != nil {
			return time.Time{}, fmt.Errorf("parse %s: %w", common.PropDatetime, err)
		}
	}
	return date.UTC(), nil
}

func parseEPSG(props map[string]interface{}) (int, error) {
	if epsg, ok := props[common.PropEPSG].(float64); ok && epsg > 0 {
		return int(epsg), nil
	}
	if code, ok := props[common.PropCode].(string); ok {
		if epsg, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(code), "EPSG:")); err == nil {
			return epsg, nil
		}
	}
	return 0, fmt.Errorf("missing %s", common.PropEPSG)
}
