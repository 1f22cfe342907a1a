// file: internal/resolver/search.go
// version: 1.0.0
// guid: 0d04da4d-be2d-4523-980d-e220559391fc

package resolver

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/matcher"
	"github.com/jdfalk/bookmeta/internal/metrics"
	"github.com/jdfalk/bookmeta/internal/models"
)

// SearchStrategy is one source of search results.
type SearchStrategy struct {
	Name string
	Run  func(ctx context.Context) ([]models.Record, error)
}

// SearchAll runs every strategy in parallel and waits for all of them. A
// failing strategy contributes nothing. Results are concatenated in strategy
// order and deduplicated.
func SearchAll(ctx context.Context, op string, timeout time.Duration, strategies ...SearchStrategy) []models.Record {
	if timeout <= 0 {
		timeout = DefaultStrategyTimeout
	}
	trail := logger.TrailFrom(ctx)
	lists := make([][]models.Record, len(strategies))

	var g errgroup.Group
	for i, s := range strategies {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			recs, err := runSearch(sctx, s)
			if err != nil {
				metrics.IncStrategy(op, s.Name, "failure")
				trail.Warn("search strategy failed", map[string]interface{}{
					"strategy": s.Name,
					"error":    err.Error(),
				})
				return nil
			}
			metrics.IncStrategy(op, s.Name, "success")
			trail.Info("search strategy returned", map[string]interface{}{
				"strategy": s.Name,
				"results":  len(recs),
			})
			lists[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	var all []models.Record
	for _, l := range lists {
		all = append(all, l...)
	}
	out := Dedup(all)
	metrics.ObserveSearchResults(op, len(out))
	return out
}

func runSearch(ctx context.Context, s SearchStrategy) (recs []models.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{name: s.Name, value: r}
		}
	}()
	if s.Run == nil {
		return nil, nil
	}
	return s.Run(ctx)
}

// Richness scores how complete a record is for deduplication.
func Richness(r *models.Record) int {
	score := 0
	if r.Rating != nil {
		score++
	}
	if r.CoverURL != nil && *r.CoverURL != "" {
		score++
	}
	return score
}

// Dedup collapses records sharing a normalized title and primary author. The
// richer record survives in the slot of the first one seen; ties keep the
// first. Records without a title are never merged.
func Dedup(records []models.Record) []models.Record {
	out := make([]models.Record, 0, len(records))
	seen := make(map[matcher.DedupKey]int, len(records))
	for _, r := range records {
		key := matcher.KeyOf(r.TitleOrEmpty(), r.PrimaryAuthor())
		if key.Title == "" {
			out = append(out, r)
			continue
		}
		if i, ok := seen[key]; ok {
			if Richness(&r) > Richness(&out[i]) {
				out[i] = r
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}
	return out
}
