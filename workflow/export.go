package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/airbusgeo/s2-truecolor/catalog/entities"
	"github.com/airbusgeo/s2-truecolor/common"
	"github.com/airbusgeo/s2-truecolor/interface/raster/gdal"
	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/log"
	"github.com/airbusgeo/s2-truecolor/service/raster"
)

// Exporter persists the true-color images
type Exporter interface {
	// Exists returns true if the image of the AOI at this date has already been exported
	Exists(ctx context.Context, aoi common.AreaOfInterest, date time.Time) (bool, error)
	// Export persists the image and its metadata and returns their uris
	Export(ctx context.Context, aoi common.AreaOfInterest, group *entities.TileGroup, img *raster.RGB8) ([]string, error)
}

// StorageExporter exports a GeoTIFF, a JPEG and a metadata document to a Storage
type StorageExporter struct {
	Storage    service.Storage
	TifSubdir  string
	JpgSubdir  string
	JpgQuality int
	// Workdir is the local directory where the files are written before being saved
	Workdir string
}

// NewStorageExporter creates a StorageExporter following the output configuration
func NewStorageExporter(storage service.Storage, out OutputConfig, workdir string) *StorageExporter {
	return &StorageExporter{
		Storage:    storage,
		TifSubdir:  out.TifSubdir,
		JpgSubdir:  out.JpgSubdir,
		JpgQuality: out.JpgQuality,
		Workdir:    workdir,
	}
}

// OutputName returns the basename of the outputs of the AOI at this date
func OutputName(aoi common.AreaOfInterest, date time.Time) string {
	return fmt.Sprintf("%s_%s", aoi.Name, date.Format("20060102"))
}

func (e *StorageExporter) tifName(aoi common.AreaOfInterest, date time.Time) string {
	return path.Join(e.TifSubdir, aoi.OutputFolder(), OutputName(aoi, date)+".tif")
}

func (e *StorageExporter) jpgName(aoi common.AreaOfInterest, date time.Time) string {
	return path.Join(e.JpgSubdir, aoi.OutputFolder(), service.WithExt(OutputName(aoi, date), "jpg"))
}

func (e *StorageExporter) docName(aoi common.AreaOfInterest, date time.Time) string {
	return path.Join(e.TifSubdir, aoi.OutputFolder(), OutputName(aoi, date)+"_doc.txt")
}

// Exists implements Exporter
func (e *StorageExporter) Exists(ctx context.Context, aoi common.AreaOfInterest, date time.Time) (bool, error) {
	return e.Storage.Exists(ctx, e.tifName(aoi, date))
}

// Export implements Exporter
// The GeoTIFF is saved last: its presence means that the export is complete.
// If a file cannot be saved, the files already saved are deleted.
func (e *StorageExporter) Export(ctx context.Context, aoi common.AreaOfInterest, group *entities.TileGroup, img *raster.RGB8) ([]string, error) {
	workdir := filepath.Join(e.Workdir, uuid.New().String())
	if err := os.MkdirAll(workdir, 0766); err != nil {
		return nil, service.MakeTemporary(fmt.Errorf("make directory %s: %w", workdir, err))
	}
	defer os.RemoveAll(workdir)

	name := OutputName(aoi, group.Date)
	tif := filepath.Join(workdir, name+".tif")
	jpg := service.WithExt(tif, "jpg")
	doc := filepath.Join(workdir, name+"_doc.txt")
	if err := gdal.WriteGeoTIFF(tif, img); err != nil {
		return nil, fmt.Errorf("Export.%w", err)
	}
	if err := gdal.WriteJPEG(tif, jpg, e.JpgQuality); err != nil {
		return nil, fmt.Errorf("Export.%w", err)
	}
	if err := os.WriteFile(doc, []byte(Document(aoi, group, img)), 0644); err != nil {
		return nil, fmt.Errorf("Export.WriteFile: %w", err)
	}

	var uris, saved []string
	for _, f := range []struct{ local, name string }{
		{jpg, e.jpgName(aoi, group.Date)},
		{doc, e.docName(aoi, group.Date)},
		{tif, e.tifName(aoi, group.Date)},
	} {
		uri, err := e.Storage.Save(ctx, f.local, f.name)
		if err != nil {
			e.rollback(ctx, saved)
			return nil, fmt.Errorf("Export.%w", err)
		}
		uris, saved = append(uris, uri), append(saved, f.name)
	}
	return uris, nil
}

func (e *StorageExporter) rollback(ctx context.Context, names []string) {
	for _, name := range names {
		if err := e.Storage.Delete(ctx, name); err != nil && !errors.As(err, &service.ErrFileNotFound{}) {
			log.Logger(ctx).Sugar().Warnf("Export: unable to delete %s: %v", name, err)
		}
	}
}

// Document returns the metadata document of the image
func Document(aoi common.AreaOfInterest, group *entities.TileGroup, img *raster.RGB8) string {
	res, _ := img.Resolution()
	join := func(key string) string {
		return strings.Join(group.Tag(key), ", ")
	}
	lines := []string{
		fmt.Sprintf("Location: %s", aoi.Name),
		fmt.Sprintf("Source: %s", aoi.Kind),
		fmt.Sprintf("Date: %s", group.Date.Format(common.DateFormat)),
		fmt.Sprintf("Scenes: %s", strings.Join(group.SourceIDs(), ", ")),
		fmt.Sprintf("Platform: %s", join(common.TagPlatform)),
		fmt.Sprintf("Orbit state: %s", join(common.TagOrbitDirection)),
		fmt.Sprintf("Relative orbit: %s", join(common.TagRelativeOrbit)),
		fmt.Sprintf("Processing baseline: %s", join(common.TagProcessingBaseline)),
		fmt.Sprintf("MGRS tiles: %s", join(common.TagMGRSTile)),
		fmt.Sprintf("Cloud cover: %.2f%%", group.MaxCloudCover()),
		fmt.Sprintf("CRS: EPSG:%d", img.EPSG),
		fmt.Sprintf("Resolution: %gm", res),
		fmt.Sprintf("Size: %dx%d", img.Width, img.Height),
		fmt.Sprintf("AOI coverage: %.2f%%", group.Coverage*100),
	}
	return strings.Join(lines, "\n") + "\n"
}
