// file: internal/metadata/merge.go
// version: 1.0.0
// guid: 11619c6a-e8ab-48e0-ac83-e740780ea424

package metadata

import (
	"context"
	"fmt"

	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/models"
)

// Extractor produces a partial record from one structured source. It may read
// the current target to skip redundant work but must not modify it.
type Extractor struct {
	Name    string
	Extract func(current *models.Record) (*models.Record, error)
}

// Merge applies extractors to target in priority order. Only fields that are
// still unset on target are filled, so an earlier extractor always wins. A
// failing or panicking extractor is logged and skipped.
func Merge(ctx context.Context, target *models.Record, extractors ...Extractor) *models.Record {
	if target == nil {
		target = &models.Record{}
	}
	trail := logger.TrailFrom(ctx)
	for _, ex := range extractors {
		partial, err := runExtractor(ex, target)
		if err != nil {
			trail.Warn("extractor failed", map[string]interface{}{
				"extractor": ex.Name,
				"error":     err.Error(),
			})
			continue
		}
		if partial == nil {
			continue
		}
		filled := FillFrom(target, partial)
		if filled > 0 {
			trail.Info("extractor filled fields", map[string]interface{}{
				"extractor": ex.Name,
				"fields":    filled,
			})
		}
	}
	return target
}

func runExtractor(ex Extractor, current *models.Record) (rec *models.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor %s panicked: %v", ex.Name, r)
		}
	}()
	if ex.Extract == nil {
		return nil, nil
	}
	snapshot := *current
	return ex.Extract(&snapshot)
}

// FillFrom copies every field of src into dst where dst's field is unset.
// It returns the number of fields written.
func FillFrom(dst, src *models.Record) int {
	if dst == nil || src == nil {
		return 0
	}
	n := 0
	n += fillString(&dst.ID, src.ID)
	n += fillString(&dst.APIID, src.APIID)
	n += fillString(&dst.GoogleVolumeID, src.GoogleVolumeID)
	n += fillString(&dst.AudiobookID, src.AudiobookID)
	n += fillString(&dst.Title, src.Title)
	n += fillSlice(&dst.Authors, src.Authors)
	n += fillSlice(&dst.Narrators, src.Narrators)
	n += fillString(&dst.CoverURL, src.CoverURL)
	n += fillString(&dst.Description, src.Description)
	n += fillString(&dst.Format, src.Format)
	n += fillPtr(&dst.PageCount, src.PageCount)
	n += fillPtr(&dst.DurationMS, src.DurationMS)
	n += fillString(&dst.Publisher, src.Publisher)
	n += fillString(&dst.ReleaseDate, src.ReleaseDate)
	n += fillString(&dst.ISBN10, src.ISBN10)
	n += fillString(&dst.ISBN13, src.ISBN13)
	n += fillPtr(&dst.Rating, src.Rating)
	n += fillSlice(&dst.Genres, src.Genres)
	if dst.Series == nil && src.Series != nil {
		s := *src.Series
		dst.Series = &s
		n++
	}
	n += fillString(&dst.Source, src.Source)
	n += fillString(&dst.SourceURL, src.SourceURL)
	n += fillPtr(&dst.FetchedAt, src.FetchedAt)
	return n
}

func fillString(dst **string, src *string) int {
	return fillPtr(dst, src)
}

func fillPtr[T any](dst **T, src *T) int {
	if *dst != nil || src == nil {
		return 0
	}
	v := *src
	*dst = &v
	return 1
}

func fillSlice(dst *[]string, src []string) int {
	if *dst != nil || src == nil {
		return 0
	}
	*dst = append(make([]string, 0, len(src)), src...)
	return 1
}
