package enrich

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelscope/pkg/logger"
	"reelscope/pkg/ranking"
	"reelscope/pkg/scenario"
)

// trackingGenerator records concurrency while producing canned results
type trackingGenerator struct {
	mu          sync.Mutex
	inFlight    int32
	maxInFlight int32
	seen        []string
}

func (g *trackingGenerator) Generate(_ context.Context, req scenario.Request) *scenario.Result {
	current := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)

	g.mu.Lock()
	if current > g.maxInFlight {
		g.maxInFlight = current
	}
	g.seen = append(g.seen, req.Item.ID)
	g.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	return &scenario.Result{
		ItemID:   req.Item.ID,
		Original: scenario.Success("script for " + req.Item.ID),
	}
}

func testItems(n int) []ranking.RankedItem {
	items := make([]ranking.RankedItem, n)
	for i := range items {
		items[i] = ranking.RankedItem{ID: fmt.Sprintf("item-%d", i)}
	}
	return items
}

func TestEnrichBatchKeepsOrder(t *testing.T) {
	gen := &trackingGenerator{}
	e := New(gen, 3, logger.NewNopLogger())

	items := testItems(10)
	results := e.EnrichBatch(context.Background(), items, 42, 7)

	if len(results) != 10 {
		t.Fatalf("Expected 10 results, got %d", len(results))
	}
	for i, result := range results {
		if result == nil {
			t.Fatalf("Result %d is nil", i)
		}
		if result.ItemID != items[i].ID {
			t.Errorf("Result %d: expected %s, got %s", i, items[i].ID, result.ItemID)
		}
	}
}

func TestEnrichBatchBoundsConcurrency(t *testing.T) {
	gen := &trackingGenerator{}
	e := New(gen, 2, logger.NewNopLogger())

	e.EnrichBatch(context.Background(), testItems(8), 42, 0)

	if gen.maxInFlight > 2 {
		t.Errorf("Expected at most 2 concurrent pipelines, saw %d", gen.maxInFlight)
	}
	if len(gen.seen) != 8 {
		t.Errorf("Expected all 8 items processed, got %d", len(gen.seen))
	}
}

func TestEnrichBatchEmptyInput(t *testing.T) {
	e := New(&trackingGenerator{}, 3, logger.NewNopLogger())

	results := e.EnrichBatch(context.Background(), nil, 42, 0)

	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestNewClampsWorkerCount(t *testing.T) {
	gen := &trackingGenerator{}
	e := New(gen, 0, logger.NewNopLogger())

	results := e.EnrichBatch(context.Background(), testItems(3), 1, 0)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if gen.maxInFlight != 1 {
		t.Errorf("Expected serial execution with clamped workers, saw %d", gen.maxInFlight)
	}
}
