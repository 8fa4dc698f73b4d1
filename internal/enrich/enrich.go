// Package enrich runs scenario generation for ranked items on a bounded
// pool of workers.
package enrich

import (
	"context"

	"golang.org/x/sync/errgroup"

	"reelscope/pkg/logger"
	"reelscope/pkg/ranking"
	"reelscope/pkg/scenario"
)

// Generator produces a scenario result for one item
type Generator interface {
	Generate(ctx context.Context, req scenario.Request) *scenario.Result
}

// Enricher fans ranked items out to the scenario pipeline. Items share
// no state, so runs are independent and results keep input order.
type Enricher struct {
	pipeline Generator
	workers  int
	logger   logger.Logger
}

// New creates an enricher running at most workers pipelines at once
func New(pipeline Generator, workers int, log logger.Logger) *Enricher {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Enricher{
		pipeline: pipeline,
		workers:  workers,
		logger:   log,
	}
}

// EnrichBatch generates scenarios for every item. The result slice is
// index-aligned with items. Pipeline failures are carried inside each
// result, never returned as errors.
func (e *Enricher) EnrichBatch(ctx context.Context, items []ranking.RankedItem, userID, contextID int64) []*scenario.Result {
	e.logger.InfoWithFields("enriching batch with scenarios", map[string]interface{}{
		"items":   len(items),
		"workers": e.workers,
	})

	results := make([]*scenario.Result, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, item := range items {
		g.Go(func() error {
			results[i] = e.pipeline.Generate(ctx, scenario.Request{
				Item:      item,
				UserID:    userID,
				ContextID: contextID,
			})
			return nil
		})
	}

	// Generate never returns an error; Wait only joins the workers
	_ = g.Wait()

	return results
}
