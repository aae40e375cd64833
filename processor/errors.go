package processor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/airbusgeo/s2-truecolor/common"
)

// ErrNoUsableImagery is returned when no scene provides valid pixels over the AOI
var ErrNoUsableImagery = errors.New("no usable imagery")

// MosaicUnavailableError is returned when all the tiles of a group failed to be fetched
type MosaicUnavailableError struct {
	Date time.Time
	// Errs are the errors of the tiles, in the priority order of the group
	Errs []error
}

func (e *MosaicUnavailableError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("mosaic unavailable for %s: all the tiles failed [%s]", e.Date.Format(common.DateFormat), strings.Join(msgs, "; "))
}

// Unwrap returns the errors of the tiles
func (e *MosaicUnavailableError) Unwrap() []error {
	return e.Errs
}
