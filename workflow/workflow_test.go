package workflow_test

import (
	"context"
	"time"

	"github.com/airbusgeo/s2-truecolor/catalog"
	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/downloader"
	"github.com/airbusgeo/s2-truecolor/processor"
	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/geometry"
	"github.com/airbusgeo/s2-truecolor/workflow"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const footprint = "POLYGON((16 50,18 50,18 51,16 51,16 50))"

func newScene(id string, date time.Time, cloudCover float64) *entities.Scene {
	return &entities.Scene{
		SourceID:    id,
		Date:        date,
		EPSG:        32633,
		CloudCover:  cloudCover,
		GeometryWKT: footprint,
		Assets: map[string]string{
			"B04": "https://storage/" + id + "/B04.tif",
			"B03": "https://storage/" + id + "/B03.tif",
			"B02": "https://storage/" + id + "/B02.tif",
		},
		Tags: map[string]string{common.TagPlatform: "sentinel-2a", common.TagMGRSTile: "33UWR"},
	}
}

var _ = Describe("Workflow", func() {
	var (
		ctx         = context.Background()
		aoi         common.AreaOfInterest
		mokeCatalog *MokeCatalog
		reader      *MokeReader
		exporter    *MokeExporter
		wf          *workflow.Workflow
		report      *workflow.Report
		june1       = time.Date(2024, 6, 1, 10, 0, 31, 0, time.UTC)
		june4       = time.Date(2024, 6, 4, 10, 10, 21, 0, time.UTC)
	)

	BeforeEach(func() {
		var err error
		aoi, err = geometry.BufferPointToSquare(common.CoordinateName("Coordinate", 50.0886, 16.9203), 50.0886, 16.9203, 1000)
		Expect(err).NotTo(HaveOccurred())

		mokeCatalog = &MokeCatalog{}
		reader = &MokeReader{value: 1000}
		exporter = NewMokeExporter()

		policy := service.DefaultRetryPolicy()
		policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
		fetcher := &downloader.Fetcher{Reader: reader, Policy: policy}

		wf = &workflow.Workflow{
			Catalog:       mokeCatalog,
			Processor:     processor.NewMosaicker(fetcher),
			Exporter:      exporter,
			Collection:    "sentinel-2-l2a",
			MinCoverage:   0.999,
			MaxCloudCover: 20,
			Workers:       2,
		}
	})

	JustBeforeEach(func() {
		dates, err := common.NewDateRange(june1, june4)
		Expect(err).NotTo(HaveOccurred())
		report = wf.Run(ctx, []workflow.Job{{AOI: aoi, Dates: dates}})
	})

	Context("a 1 km square covered by a cloud-free scene", func() {
		BeforeEach(func() {
			mokeCatalog.scenes = entities.Scenes{newScene("S2A_MSIL2A_20240601T100031_R122_T33UWR", june1, 3.2)}
		})
		It("should export a 100x100 true-color image without nodata", func() {
			Expect(report.Results).To(HaveLen(1))
			res := report.Results[0]
			Expect(res.Status).To(Equal(common.StatusDONE), res.Error)
			Expect(res.Date).To(Equal("2024-06-01"))
			Expect(res.Scenes).To(Equal([]string{"S2A_MSIL2A_20240601T100031_R122_T33UWR"}))

			img := exporter.images[aoi.Name+"/2024-06-01"]
			Expect(img).NotTo(BeNil())
			Expect(img.Width).To(Equal(100))
			Expect(img.Height).To(Equal(100))
			Expect(img.Data).To(HaveLen(3 * 100 * 100))
			Expect(img.Data).NotTo(ContainElement(uint8(0)))
		})
	})

	Context("no scene in the catalog", func() {
		It("should report no usable imagery", func() {
			Expect(report.Results).To(HaveLen(1))
			Expect(report.Results[0].Status).To(Equal(common.StatusNOIMAGERY))
			Expect(report.Results[0].Date).To(BeEmpty())
			Expect(exporter.images).To(BeEmpty())
		})
	})

	Context("only cloudy scenes", func() {
		BeforeEach(func() {
			mokeCatalog.scenes = entities.Scenes{newScene("S2A_MSIL2A_20240601T100031_R122_T33UWR", june1, 80)}
		})
		It("should report no usable imagery", func() {
			Expect(report.Count(common.StatusNOIMAGERY)).To(Equal(1))
		})
	})

	Context("all the attempts fail for a date", func() {
		BeforeEach(func() {
			mokeCatalog.scenes = entities.Scenes{
				newScene("S2A_MSIL2A_20240601T100031_R122_T33UWR", june1, 1),
				newScene("S2B_MSIL2A_20240604T101021_R022_T33UWR", june4, 2),
			}
			reader.failing = []string{"https://storage/S2B_MSIL2A_20240604T101021"}
		})
		It("should fail the date and process the others", func() {
			Expect(report.Results).To(HaveLen(2))
			failed, ok := report.Find(aoi.Name, "2024-06-04")
			Expect(ok).To(BeTrue())
			Expect(failed.Status).To(Equal(common.StatusFAILED))
			Expect(failed.Error).To(ContainSubstring("mosaic unavailable"))

			done, ok := report.Find(aoi.Name, "2024-06-01")
			Expect(ok).To(BeTrue())
			Expect(done.Status).To(Equal(common.StatusDONE))

			// Most recent first
			Expect(report.Results[0].Date).To(Equal("2024-06-04"))
			// 3 attempts for the first band of the failing scene, 3 bands for the other one
			Expect(reader.reads).To(Equal(6))
		})
	})

	Context("the output already exists", func() {
		BeforeEach(func() {
			mokeCatalog.scenes = entities.Scenes{newScene("S2A_MSIL2A_20240601T100031_R122_T33UWR", june1, 3.2)}
			exporter.existing[aoi.Name+"/2024-06-01"] = true
		})
		It("should skip the date", func() {
			Expect(report.Results).To(HaveLen(1))
			Expect(report.Results[0].Status).To(Equal(common.StatusSKIPPED))
			Expect(reader.reads).To(BeZero())
		})
	})

	Context("the catalog is unavailable", func() {
		BeforeEach(func() {
			mokeCatalog.err = catalog.CatalogUnavailableError{Err: service.MakeTemporary(context.DeadlineExceeded)}
		})
		It("should fail the AOI", func() {
			Expect(report.Results).To(HaveLen(1))
			Expect(report.Results[0].Status).To(Equal(common.StatusFAILED))
			Expect(report.Results[0].Error).NotTo(BeEmpty())
		})
	})

	Context("dry run", func() {
		BeforeEach(func() {
			mokeCatalog.scenes = entities.Scenes{newScene("S2A_MSIL2A_20240601T100031_R122_T33UWR", june1, 3.2)}
			wf.DryRun = true
		})
		It("should only list the tile groups", func() {
			Expect(report.Results).To(HaveLen(1))
			Expect(report.Results[0].Status).To(Equal(common.StatusPENDING))
			Expect(report.Results[0].Coverage).To(BeNumerically("~", 1, 1e-9))
			Expect(reader.reads).To(BeZero())
		})
	})
})
