package ranking

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"reelscope/pkg/config"
	"reelscope/pkg/logger"
	"reelscope/pkg/scrapejob"
)

var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func testRanker() *Ranker {
	r := NewRanker(
		config.RankingConfig{
			FallbackMinimum:  3,
			TopHashtags:      10,
			CTAThresholdER:   5.0,
			CostPerItemUSD:   0.00025,
			ShortDurationSec: 15,
			LongDurationSec:  30,
		},
		config.PricingConfig{USDToRUB: 90, Markup: 2},
		logger.NewNopLogger(),
	)
	r.now = func() time.Time { return testNow }
	return r
}

func testQuery(periodDays, sample int) scrapejob.Query {
	return scrapejob.NewAccountQuery(&config.JobConfig{
		SampleCeiling:      10,
		AccountFetchFactor: 2,
		AccountFetchCap:    20,
	}, "creator", periodDays, sample)
}

func video(id string, views, likes int64, postedAt time.Time) scrapejob.RawItem {
	v := views
	return scrapejob.RawItem{
		ID:             id,
		Type:           "Video",
		VideoViewCount: &v,
		LikesCount:     likes,
		Timestamp:      postedAt.Format(time.RFC3339),
		OwnerUsername:  "creator",
		OwnerFullName:  "Creator",
		URL:            "https://instagram.com/reel/" + id,
	}
}

func TestEligibilityFilter(t *testing.T) {
	views := int64(100)
	items := []scrapejob.RawItem{
		{ID: "typed", Type: "Video"},
		{ID: "flagged", IsVideo: true},
		{ID: "clips", ProductType: "clips"},
		{ID: "igtv", ProductType: "igtv"},
		{ID: "reel", ProductType: "reel"},
		{ID: "feed-with-views", ProductType: "feed", VideoViewCount: &views},
		{ID: "feed-no-views", ProductType: "feed"},
		{ID: "image", Type: "Image"},
	}

	eligible := testRanker().filterEligible(items)

	got := make(map[string]bool)
	for _, item := range eligible {
		got[item.ID] = true
	}
	for _, want := range []string{"typed", "flagged", "clips", "igtv", "reel", "feed-with-views"} {
		if !got[want] {
			t.Errorf("Expected %s to be eligible", want)
		}
	}
	if got["feed-no-views"] || got["image"] {
		t.Error("Feed without view count and images must be excluded")
	}
}

func TestSortByPopularity(t *testing.T) {
	playCountOnly := scrapejob.RawItem{ID: "plays", Type: "Video", VideoPlayCount: 900, LikesCount: 1}
	items := []scrapejob.RawItem{
		video("low", 100, 50, testNow),
		video("high", 1000, 10, testNow),
		playCountOnly,
		video("tie-more-likes", 100, 80, testNow),
	}

	sortByPopularity(items)

	wantOrder := []string{"high", "plays", "tie-more-likes", "low"}
	for i, want := range wantOrder {
		if items[i].ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, items[i].ID)
		}
	}
}

func TestNormalizeEngagementRate(t *testing.T) {
	r := testRanker()

	item := video("er", 1000, 80, testNow)
	item.CommentsCount = 20
	ranked := r.normalize(item)
	if ranked.EngagementRate != 10.0 {
		t.Errorf("Expected ER 10.0, got %f", ranked.EngagementRate)
	}

	// No views and no likes leaves ER at zero, never NaN
	zero := scrapejob.RawItem{ID: "zero", Type: "Video"}
	if got := r.normalize(zero).EngagementRate; got != 0 {
		t.Errorf("Expected ER 0 without views, got %f", got)
	}
}

func TestNormalizeEstimatesViewsFromLikes(t *testing.T) {
	item := scrapejob.RawItem{ID: "noviews", Type: "Video", LikesCount: 40}
	ranked := testRanker().normalize(item)

	if ranked.Views != 400 {
		t.Errorf("Expected estimated 400 views, got %d", ranked.Views)
	}
}

func TestNormalizeCaptionAndFallbackFields(t *testing.T) {
	r := testRanker()

	long := strings.Repeat("x", 150)
	item := scrapejob.RawItem{ID: "cap", Type: "Video", Caption: long, ShortCode: "abc123"}
	ranked := r.normalize(item)

	if len(ranked.Title) != 100 {
		t.Errorf("Expected caption truncated to 100, got %d", len(ranked.Title))
	}

	// Cyrillic captions are two bytes per character; truncation counts
	// characters and must never leave a broken trailing byte
	cyrillic := scrapejob.RawItem{ID: "cyr", Type: "Video", Caption: strings.Repeat("д", 120)}
	title := r.normalize(cyrillic).Title
	if !utf8.ValidString(title) {
		t.Errorf("Truncated title is not valid UTF-8: %q", title)
	}
	if got := utf8.RuneCountInString(title); got != 100 {
		t.Errorf("Expected 100 characters, got %d", got)
	}
	if ranked.URL != "https://instagram.com/p/abc123" {
		t.Errorf("Expected shortcode URL fallback, got %s", ranked.URL)
	}
	if ranked.Author != "Unknown" || ranked.AuthorUsername != "@unknown" {
		t.Errorf("Expected placeholder author, got %s / %s", ranked.Author, ranked.AuthorUsername)
	}

	empty := scrapejob.RawItem{ID: "nocap", Type: "Video"}
	if got := r.normalize(empty).Title; got != "No caption" {
		t.Errorf("Expected No caption placeholder, got %q", got)
	}
}

func TestRecencyFilterKeepsUnparseableTimestamps(t *testing.T) {
	r := testRanker()
	items := []scrapejob.RawItem{
		video("recent", 100, 10, testNow.AddDate(0, 0, -2)),
		video("old", 100, 10, testNow.AddDate(0, 0, -60)),
		{ID: "garbled", Type: "Video", Timestamp: "not-a-date"},
		{ID: "missing", Type: "Video"},
	}

	recent := r.filterRecent(items, 30)

	got := make(map[string]bool)
	for _, item := range recent {
		got[item.ID] = true
	}
	if !got["recent"] || !got["garbled"] {
		t.Errorf("Expected recent and garbled kept, got %v", got)
	}
	if got["old"] || got["missing"] {
		t.Errorf("Expected old and timestamp-less dropped, got %v", got)
	}
}

func TestRankFallbackWhenPeriodTooSparse(t *testing.T) {
	r := testRanker()

	// 9 eligible videos, only 2 inside the 30-day window
	var items []scrapejob.RawItem
	for i := 0; i < 2; i++ {
		items = append(items, video(fmt.Sprintf("recent-%d", i), int64(1000-i), 10, testNow.AddDate(0, 0, -5)))
	}
	for i := 0; i < 7; i++ {
		items = append(items, video(fmt.Sprintf("old-%d", i), int64(500-i), 10, testNow.AddDate(0, 0, -90)))
	}
	// Plus raw noise that never passes eligibility
	for i := 0; i < 21; i++ {
		items = append(items, scrapejob.RawItem{ID: fmt.Sprintf("img-%d", i), Type: "Image"})
	}

	batch := r.Rank(items, testQuery(30, 10))

	if !batch.Fallback {
		t.Fatal("Expected fallback batch")
	}
	if len(batch.Items) != 9 {
		t.Errorf("Expected all 9 eligible items, got %d", len(batch.Items))
	}
	if len(batch.Insights) == 0 || !strings.Contains(batch.Insights[0], "best available") {
		t.Errorf("Expected leading degradation insight, got %v", batch.Insights)
	}
	// Cost covers every raw item processed, eligible or not
	if batch.CostUSD != 30*0.00025 {
		t.Errorf("Expected cost for 30 raw items, got %f", batch.CostUSD)
	}
}

func TestRankFallbackBoundaryExactlyThreeRecent(t *testing.T) {
	r := testRanker()

	// Exactly 3 recent items meets the minimum: no fallback
	var items []scrapejob.RawItem
	for i := 0; i < 3; i++ {
		items = append(items, video(fmt.Sprintf("recent-%d", i), int64(1000-i), 10, testNow.AddDate(0, 0, -5)))
	}
	items = append(items, video("old", 99999, 10, testNow.AddDate(0, 0, -90)))

	batch := r.Rank(items, testQuery(30, 10))

	if batch.Fallback {
		t.Fatal("Expected no fallback with exactly 3 recent items")
	}
	if len(batch.Items) != 3 {
		t.Errorf("Expected 3 recent items, got %d", len(batch.Items))
	}
	for _, item := range batch.Items {
		if item.ID == "old" {
			t.Error("Out-of-window item must be excluded at the boundary")
		}
	}
}

func TestRankFallbackThresholdFollowsSmallSample(t *testing.T) {
	r := testRanker()

	// Sample size 2 lowers the minimum to 2: two recent items is enough
	recentPair := []scrapejob.RawItem{
		video("recent-0", 1000, 10, testNow.AddDate(0, 0, -5)),
		video("recent-1", 900, 10, testNow.AddDate(0, 0, -5)),
		video("old", 99999, 10, testNow.AddDate(0, 0, -90)),
	}
	batch := r.Rank(recentPair, testQuery(30, 2))
	if batch.Fallback {
		t.Fatal("Expected no fallback: 2 recent items cover a sample of 2")
	}
	if len(batch.Items) != 2 || batch.Items[0].ID != "recent-0" {
		t.Errorf("Expected the 2 recent items, got %+v", batch.Items)
	}

	// One recent item is below even the lowered minimum
	sparse := []scrapejob.RawItem{
		video("recent-0", 1000, 10, testNow.AddDate(0, 0, -5)),
		video("old", 99999, 10, testNow.AddDate(0, 0, -90)),
	}
	batch = r.Rank(sparse, testQuery(30, 2))
	if !batch.Fallback {
		t.Fatal("Expected fallback with a single recent item")
	}
}

func TestRankUsesRecentItemsWhenEnough(t *testing.T) {
	r := testRanker()

	var items []scrapejob.RawItem
	for i := 0; i < 5; i++ {
		items = append(items, video(fmt.Sprintf("recent-%d", i), int64(1000+i), 10, testNow.AddDate(0, 0, -3)))
	}
	items = append(items, video("old", 99999, 10, testNow.AddDate(0, 0, -90)))

	batch := r.Rank(items, testQuery(30, 10))

	if batch.Fallback {
		t.Fatal("Expected no fallback with 5 recent items")
	}
	if len(batch.Items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(batch.Items))
	}
	for _, item := range batch.Items {
		if item.ID == "old" {
			t.Error("Out-of-window item must be excluded when enough recent items exist")
		}
	}
}

func TestRankTruncatesToSampleSize(t *testing.T) {
	r := testRanker()

	var items []scrapejob.RawItem
	for i := 0; i < 8; i++ {
		items = append(items, video(fmt.Sprintf("v-%d", i), int64(1000-i), 10, testNow.AddDate(0, 0, -1)))
	}

	batch := r.Rank(items, testQuery(30, 3))

	if len(batch.Items) != 3 {
		t.Fatalf("Expected sample of 3, got %d", len(batch.Items))
	}
	// Truncation keeps the most popular items
	if batch.Items[0].ID != "v-0" || batch.Items[2].ID != "v-2" {
		t.Errorf("Expected top-3 by popularity, got %s..%s", batch.Items[0].ID, batch.Items[2].ID)
	}
}

func TestRankEmptyEligibleSet(t *testing.T) {
	r := testRanker()
	items := []scrapejob.RawItem{
		{ID: "img-1", Type: "Image"},
		{ID: "img-2", Type: "Image"},
	}

	batch := r.Rank(items, testQuery(30, 10))

	if len(batch.Items) != 0 {
		t.Fatalf("Expected empty batch, got %d items", len(batch.Items))
	}
	if len(batch.Insights) != 1 || !strings.Contains(batch.Insights[0], "No video content") {
		t.Errorf("Expected diagnostic insight, got %v", batch.Insights)
	}
	if batch.CostUSD != 2*0.00025 {
		t.Errorf("Expected cost for 2 raw items, got %f", batch.CostUSD)
	}
}

func TestPopularHashtags(t *testing.T) {
	r := testRanker()

	var items []scrapejob.RawItem
	captions := []string{
		"morning #Travel #sunrise",
		"later #TRAVEL #coffee",
		"again #travel",
	}
	for i, caption := range captions {
		item := video(fmt.Sprintf("v-%d", i), 100, 10, testNow)
		item.Caption = caption
		items = append(items, item)
	}

	batch := r.Rank(items, testQuery(0, 10))

	if len(batch.PopularHashtags) == 0 {
		t.Fatal("Expected hashtag stats")
	}
	top := batch.PopularHashtags[0]
	if top.Name != "#travel" || top.Count != 3 {
		t.Errorf("Expected case-insensitive #travel x3, got %s x%d", top.Name, top.Count)
	}
}

func TestCostConversion(t *testing.T) {
	r := testRanker()
	items := []scrapejob.RawItem{video("v", 100, 10, testNow)}

	batch := r.Rank(items, testQuery(0, 10))

	if batch.CostUSD != 0.00025 {
		t.Errorf("Expected 0.00025 USD, got %f", batch.CostUSD)
	}
	// 0.00025 * 90 RUB/USD * 2x markup
	if batch.CostRUB != 0.045 {
		t.Errorf("Expected 0.045 RUB, got %f", batch.CostRUB)
	}
}

func TestRecommendations(t *testing.T) {
	r := testRanker()

	short := video("short", 1000, 200, testNow)
	short.VideoDuration = 8
	short.Caption = "#one #two"

	batch := r.Rank([]scrapejob.RawItem{short}, testQuery(0, 10))

	joined := strings.Join(batch.Recommendations, "\n")
	if !strings.Contains(joined, "Use hashtags: #one, #two") {
		t.Errorf("Expected hashtag recommendation, got %v", batch.Recommendations)
	}
	if !strings.Contains(joined, "Try longer videos") {
		t.Errorf("Expected short-duration recommendation, got %v", batch.Recommendations)
	}
	// ER = (200+0)/1000*100 = 20 > 5 threshold
	if !strings.Contains(joined, "call to action") {
		t.Errorf("Expected CTA recommendation, got %v", batch.Recommendations)
	}
}

func TestAverageER(t *testing.T) {
	r := testRanker()

	a := video("a", 1000, 100, testNow) // ER 10
	b := video("b", 1000, 300, testNow) // ER 30

	batch := r.Rank([]scrapejob.RawItem{a, b}, testQuery(0, 10))

	if batch.AverageER != 20.0 {
		t.Errorf("Expected average ER 20, got %f", batch.AverageER)
	}
	if batch.TotalViews != 2000 {
		t.Errorf("Expected 2000 total views, got %d", batch.TotalViews)
	}
}
