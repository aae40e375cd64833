package workflow

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/airbusgeo/s2-truecolor/catalog"
	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/processor"
	"github.com/airbusgeo/s2-truecolor/service/log"
	"github.com/airbusgeo/s2-truecolor/service/raster"
)

// SceneSearcher searches the candidate scenes of an AOI (catalog.Catalog)
type SceneSearcher interface {
	Search(ctx context.Context, aoi common.AreaOfInterest, dates common.DateRange, collection string) (entities.Scenes, error)
}

// GroupProcessor turns a tile group into a true-color image of the AOI (processor.Mosaicker)
type GroupProcessor interface {
	ProcessGroup(ctx context.Context, group *entities.TileGroup, aoi common.AreaOfInterest) (*raster.RGB8, error)
}

// Workflow processes AOIs: catalog search, selection of the tile groups, mosaic and export
type Workflow struct {
	Catalog    SceneSearcher
	Processor  GroupProcessor
	Exporter   Exporter
	Collection string
	// MinCoverage is a fraction in (0, 1], MaxCloudCover a percentage
	MinCoverage   float64
	MaxCloudCover float64
	Workers       int
	// DryRun lists the tile groups without processing them
	DryRun bool
}

// NewWorkflow creates a Workflow following the configuration
func NewWorkflow(cfg *Config, searcher SceneSearcher, proc GroupProcessor, exporter Exporter) *Workflow {
	return &Workflow{
		Catalog:       searcher,
		Processor:     proc,
		Exporter:      exporter,
		Collection:    cfg.Sentinel2.Collection,
		MinCoverage:   cfg.Sentinel2.MinAOICoverage / 100,
		MaxCloudCover: cfg.Sentinel2.MaxCloudCover,
		Workers:       cfg.Workers,
	}
}

// unit is an (AOI, date) to be processed
type unit struct {
	job   int
	group *entities.TileGroup
}

// Run processes the jobs. Failures are recorded in the report and never abort the run,
// unless the context is cancelled.
func (wf *Workflow) Run(ctx context.Context, jobs []Job) *Report {
	report := &Report{RunID: uuid.New().String(), Start: time.Now()}
	ctx = log.With(ctx, "run", report.RunID)
	workers := wf.Workers
	if workers <= 0 {
		workers = 1
	}

	// Search the catalog and select the tile groups of each AOI
	groups := make([][]*entities.TileGroup, len(jobs))
	searchResults := make([]*Result, len(jobs))
	wg := errgroup.Group{}
	wg.SetLimit(workers)
	for i, job := range jobs {
		wg.Go(func() error {
			groups[i], searchResults[i] = wf.selectGroups(log.With(ctx, "aoi", job.AOI.Name), job)
			return nil
		})
	}
	_ = wg.Wait()

	var units []unit
	for i := range jobs {
		if searchResults[i] != nil {
			report.Results = append(report.Results, *searchResults[i])
		}
		for _, g := range groups[i] {
			units = append(units, unit{job: i, group: g})
		}
	}

	// Process the (AOI, date) units
	results := make([]Result, len(units))
	wg = errgroup.Group{}
	wg.SetLimit(workers)
	for i, u := range units {
		wg.Go(func() error {
			job := jobs[u.job]
			uctx := log.With(log.With(ctx, "aoi", job.AOI.Name), "date", u.group.Date.Format(common.DateFormat))
			results[i] = wf.processUnit(uctx, job.AOI, u.group)
			return nil
		})
	}
	_ = wg.Wait()
	report.Results = append(report.Results, results...)

	report.End = time.Now()
	report.sort(jobs)
	return report
}

// selectGroups returns the tile groups of the job, most recent first, or a result if there is nothing to process
func (wf *Workflow) selectGroups(ctx context.Context, job Job) ([]*entities.TileGroup, *Result) {
	log.Logger(ctx).Sugar().Infof("searching scenes from %s", job.Dates)
	scenes, err := wf.Catalog.Search(ctx, job.AOI, job.Dates, wf.Collection)
	if err != nil {
		log.Logger(ctx).Error("catalog search failed", zap.Error(err))
		return nil, &Result{AOI: job.AOI.Name, Status: common.StatusFAILED, Error: err.Error()}
	}
	tileGroups, err := catalog.SelectTileGroups(scenes, job.AOI, wf.MinCoverage, wf.MaxCloudCover)
	if err != nil {
		log.Logger(ctx).Error("tile group selection failed", zap.Error(err))
		return nil, &Result{AOI: job.AOI.Name, Status: common.StatusFAILED, Error: err.Error()}
	}
	if len(tileGroups) == 0 {
		log.Logger(ctx).Sugar().Warnf("no usable imagery among %d scenes", len(scenes))
		return nil, &Result{AOI: job.AOI.Name, Status: common.StatusNOIMAGERY, Error: processor.ErrNoUsableImagery.Error()}
	}
	log.Logger(ctx).Sugar().Infof("%d scenes, %d dates", len(scenes), len(tileGroups))
	return tileGroups.Sorted(), nil
}

// processUnit processes the group of the AOI
func (wf *Workflow) processUnit(ctx context.Context, aoi common.AreaOfInterest, group *entities.TileGroup) Result {
	lg := log.Logger(ctx).Sugar()
	res := Result{
		AOI:      aoi.Name,
		Date:     group.Date.Format(common.DateFormat),
		Scenes:   group.SourceIDs(),
		Coverage: group.Coverage,
	}
	fail := func(status common.Status, err error) Result {
		res.Status, res.Error = status, err.Error()
		if status == common.StatusFAILED {
			lg.Errorf("%v", err)
		} else {
			lg.Warnf("%v", err)
		}
		return res
	}

	if wf.DryRun {
		res.Status = common.StatusPENDING
		return res
	}

	exists, err := wf.Exporter.Exists(ctx, aoi, group.Date)
	if err != nil {
		return fail(common.StatusFAILED, err)
	}
	if exists {
		lg.Infof("already exported: skipping")
		res.Status = common.StatusSKIPPED
		return res
	}

	lg.Infof("processing %d scene(s): %v", len(group.Scenes), res.Scenes)
	img, err := wf.Processor.ProcessGroup(ctx, group, aoi)
	if err != nil {
		if errors.Is(err, processor.ErrNoUsableImagery) {
			return fail(common.StatusNOIMAGERY, err)
		}
		return fail(common.StatusFAILED, err)
	}

	if res.Files, err = wf.Exporter.Export(ctx, aoi, group, img); err != nil {
		return fail(common.StatusFAILED, err)
	}
	lg.Infof("exported %v", res.Files)
	res.Status = common.StatusDONE
	return res
}

// Result is the outcome of the processing of an AOI at a date.
// Date is empty if the AOI failed before its dates were known.
type Result struct {
	AOI      string        `json:"aoi"`
	Date     string        `json:"date,omitempty"`
	Status   common.Status `json:"status"`
	Scenes   []string      `json:"scenes,omitempty"`
	Coverage float64       `json:"coverage,omitempty"`
	Files    []string      `json:"files,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Report summarizes a run
type Report struct {
	RunID   string    `json:"run_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Results []Result  `json:"results"`
}

// AddAOIErrors records the AOIs that could not be built
func (r *Report) AddAOIErrors(errs []AOIError) {
	for _, e := range errs {
		r.Results = append(r.Results, Result{AOI: e.Name, Status: common.StatusFAILED, Error: e.Err.Error()})
	}
}

// Count returns the number of results with this status
func (r *Report) Count(status common.Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Find returns the result of the AOI at the date (empty for the results without date)
func (r *Report) Find(aoi, date string) (Result, bool) {
	for _, res := range r.Results {
		if res.AOI == aoi && res.Date == date {
			return res, true
		}
	}
	return Result{}, false
}

// Log logs the summary of the run
func (r *Report) Log(ctx context.Context) {
	lg := log.Logger(ctx)
	for _, res := range r.Results {
		fields := []zap.Field{zap.String("aoi", res.AOI), zap.String("date", res.Date), zap.Stringer("status", res.Status)}
		if res.Error != "" {
			fields = append(fields, zap.String("error", res.Error))
		}
		lg.Info("result", fields...)
	}
	lg.Sugar().Infof("run %s done in %v: %d done, %d skipped, %d without imagery, %d failed", r.RunID, r.End.Sub(r.Start).Round(time.Second),
		r.Count(common.StatusDONE), r.Count(common.StatusSKIPPED), r.Count(common.StatusNOIMAGERY), r.Count(common.StatusFAILED))
}

// sort orders the results by job, then by date (most recent first)
func (r *Report) sort(jobs []Job) {
	order := map[string]int{}
	for i, job := range jobs {
		order[job.AOI.Name] = i
	}
	sort.SliceStable(r.Results, func(i, j int) bool {
		ri, rj := r.Results[i], r.Results[j]
		if oi, oj := order[ri.AOI], order[rj.AOI]; oi != oj {
			return oi < oj
		}
		return ri.Date > rj.Date
	})
}
