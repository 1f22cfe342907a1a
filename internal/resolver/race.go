// file: internal/resolver/race.go
// version: 1.1.0
// guid: 378f491d-5329-492f-8254-ae0d51a9043e

package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/metrics"
)

// DefaultStrategyTimeout bounds each outbound strategy of a race.
const DefaultStrategyTimeout = 12 * time.Second

// DefaultWriteBackTimeout bounds a detached cache write-back.
const DefaultWriteBackTimeout = 10 * time.Second

// Strategy is one way of producing a value. Run must return an error when it
// has nothing to offer; a nil error always counts as success.
type Strategy[T any] struct {
	Name   string
	Cached bool
	Run    func(ctx context.Context) (T, error)
}

// Outcome describes the winner of a race.
type Outcome[T any] struct {
	Value    T
	Strategy string
	Cached   bool
	Elapsed  time.Duration
}

type attempt[T any] struct {
	index   int
	value   T
	err     error
	elapsed time.Duration
}

// FirstSuccess runs every strategy concurrently and returns the first one to
// succeed. The remaining strategies keep running against their own timeout
// but their results are discarded. When every strategy fails the returned
// error is an *apperr.ResolutionError naming identifier and each strategy.
func FirstSuccess[T any](ctx context.Context, identifier string, timeout time.Duration, strategies ...Strategy[T]) (Outcome[T], error) {
	var zero Outcome[T]
	if len(strategies) == 0 {
		return zero, &apperr.ResolutionError{Identifier: identifier}
	}
	if timeout <= 0 {
		timeout = DefaultStrategyTimeout
	}

	// Buffered so that late finishers never block after a winner returned.
	results := make(chan attempt[T], len(strategies))
	for i, s := range strategies {
		go func(i int, s Strategy[T]) {
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			v, err := runStrategy(sctx, s)
			results <- attempt[T]{index: i, value: v, err: err, elapsed: time.Since(start)}
		}(i, s)
	}

	failures := make([]attempt[T], 0, len(strategies))
	for range strategies {
		select {
		case a := <-results:
			if a.err == nil {
				s := strategies[a.index]
				return Outcome[T]{Value: a.value, Strategy: s.Name, Cached: s.Cached, Elapsed: a.elapsed}, nil
			}
			failures = append(failures, a)
		case <-ctx.Done():
			return zero, apperr.Transient(ctx.Err(), "resolution of %s interrupted", identifier)
		}
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
	rerr := &apperr.ResolutionError{Identifier: identifier}
	for _, f := range failures {
		rerr.Failures = append(rerr.Failures, apperr.StrategyFailure{
			Strategy: strategies[f.index].Name,
			Cached:   strategies[f.index].Cached,
			Err:      f.err,
		})
	}
	return zero, rerr
}

func runStrategy[T any](ctx context.Context, s Strategy[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{name: s.Name, value: r}
		}
	}()
	if s.Run == nil {
		return v, fmt.Errorf("strategy %s has no runner", s.Name)
	}
	return s.Run(ctx)
}

// Background tracks detached work such as cache write-backs so that a
// shutting down process can wait for it.
type Background struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewBackground creates a tracker whose tasks are each bounded by timeout.
func NewBackground(timeout time.Duration) *Background {
	if timeout <= 0 {
		timeout = DefaultWriteBackTimeout
	}
	return &Background{timeout: timeout}
}

// Go runs fn detached from ctx's cancellation. Errors are only logged.
func (b *Background) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if b == nil {
		b = NewBackground(0)
	}
	dctx := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		tctx, cancel := context.WithTimeout(dctx, b.timeout)
		defer cancel()
		if err := fn(tctx); err != nil {
			logger.FromContext(dctx).Warn("background task failed", map[string]interface{}{
				"task":  name,
				"error": err.Error(),
			})
		}
	}()
}

// Wait blocks until every task started with Go has finished.
func (b *Background) Wait() {
	if b != nil {
		b.wg.Wait()
	}
}

// Race resolves identifier with FirstSuccess and, when the winner is not a
// cache strategy, schedules writeBack with the winning value. The caller does
// not wait for the write-back.
func Race[T any](ctx context.Context, bg *Background, op, identifier string, timeout time.Duration, writeBack func(ctx context.Context, v T) error, strategies ...Strategy[T]) (Outcome[T], error) {
	start := time.Now()
	trail := logger.TrailFrom(ctx)
	out, err := FirstSuccess(ctx, identifier, timeout, strategies...)
	metrics.ObserveResolveDuration(op, time.Since(start))
	if err != nil {
		for _, s := range strategies {
			metrics.IncStrategy(op, s.Name, "failure")
		}
		trail.Warn("all strategies failed", map[string]interface{}{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return out, err
	}

	metrics.IncStrategy(op, out.Strategy, "win")
	trail.Info("resolved", map[string]interface{}{
		"identifier": identifier,
		"strategy":   out.Strategy,
		"elapsed_ms": out.Elapsed.Milliseconds(),
	})
	if !out.Cached && writeBack != nil {
		v := out.Value
		bg.Go(ctx, op+" write-back", func(wctx context.Context) error {
			if err := writeBack(wctx, v); err != nil {
				metrics.IncCacheWriteFailure(op)
				return apperr.CacheWrite(err, "write-back for %s", identifier)
			}
			return nil
		})
	}
	return out, nil
}

type panicError struct {
	name  string
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("strategy %s panicked: %v", e.name, e.value)
}
