package ranking

import "time"

// RankedItem is one normalized video item in an analysis batch
type RankedItem struct {
	ID              string
	Title           string
	Author          string
	AuthorUsername  string
	URL             string
	VideoURL        string
	ThumbnailURL    string
	AuthorAvatarURL string
	Views           int64
	Likes           int64
	Comments        int64
	Shares          int64
	Hashtags        []string
	EngagementRate  float64
	PostedAt        time.Time
	Transcript      string
	DurationSec     float64
}

// HashtagStat counts how often a hashtag appeared across the batch
type HashtagStat struct {
	Name  string
	Count int
}

// AnalysisBatch is the ranked and aggregated outcome of one analysis run
type AnalysisBatch struct {
	Query           string
	Items           []RankedItem
	TotalViews      int64
	AverageER       float64
	PopularHashtags []HashtagStat
	Insights        []string
	Recommendations []string
	CostUSD         float64
	CostRUB         float64
	// Fallback marks a batch ranked on popularity alone because too few
	// items survived the recency filter
	Fallback bool
}
