package ranking

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"reelscope/pkg/config"
	"reelscope/pkg/logger"
	"reelscope/pkg/scrapejob"
)

// maxTitleLength bounds how much of a caption becomes the item title
const maxTitleLength = 100

var hashtagPattern = regexp.MustCompile(`#\w+`)

// Ranker turns raw scraped posts into a ranked, aggregated analysis
// batch. The pipeline order is fixed: eligibility filter, popularity
// sort, recency filter, fallback, truncation, normalization, aggregation.
type Ranker struct {
	ranking config.RankingConfig
	pricing config.PricingConfig
	now     func() time.Time
	logger  logger.Logger
}

// NewRanker creates a ranker from configuration
func NewRanker(ranking config.RankingConfig, pricing config.PricingConfig, log logger.Logger) *Ranker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Ranker{
		ranking: ranking,
		pricing: pricing,
		now:     time.Now,
		logger:  log,
	}
}

// Rank processes one fetched dataset for a query. An empty or fully
// ineligible dataset is not an error: it produces an empty batch with a
// diagnostic insight so the caller can still render a report.
func (r *Ranker) Rank(items []scrapejob.RawItem, query scrapejob.Query) *AnalysisBatch {
	eligible := r.filterEligible(items)
	r.logger.InfoWithFields("filtered eligible items", map[string]interface{}{
		"query":    query.Label(),
		"raw":      len(items),
		"eligible": len(eligible),
	})

	if len(eligible) == 0 {
		return r.emptyBatch(query, len(items))
	}

	sortByPopularity(eligible)

	selected := eligible
	fallback := false
	if query.PeriodDays() > 0 {
		recent := r.filterRecent(eligible, query.PeriodDays())
		if len(recent) >= minSample(query.SampleSize(), r.ranking.FallbackMinimum) {
			selected = recent
		} else {
			// Not enough recent items: rank everything on popularity alone
			fallback = true
			r.logger.InfoWithFields("recency filter too sparse, using best available", map[string]interface{}{
				"query":  query.Label(),
				"recent": len(recent),
				"period": query.PeriodDays(),
			})
		}
	}

	if len(selected) > query.SampleSize() {
		selected = selected[:query.SampleSize()]
	}

	ranked := make([]RankedItem, 0, len(selected))
	for _, item := range selected {
		ranked = append(ranked, r.normalize(item))
	}

	return r.aggregate(ranked, query, len(items), fallback)
}

// filterEligible keeps only video content. A post qualifies when any of
// the service's video markers is set; feed posts qualify only when a
// view count field is present at all.
func (r *Ranker) filterEligible(items []scrapejob.RawItem) []scrapejob.RawItem {
	eligible := make([]scrapejob.RawItem, 0, len(items))
	for _, item := range items {
		switch {
		case item.Type == "Video",
			item.IsVideo,
			item.ProductType == "clips",
			item.ProductType == "igtv",
			item.ProductType == "reel",
			item.ProductType == "feed" && item.VideoViewCount != nil:
			eligible = append(eligible, item)
		}
	}
	return eligible
}

// sortByPopularity orders items by views (falling back to play count)
// then likes, descending. The sort is stable so service ordering breaks
// ties.
func sortByPopularity(items []scrapejob.RawItem) {
	sort.SliceStable(items, func(i, j int) bool {
		vi, vj := popularityViews(items[i]), popularityViews(items[j])
		if vi != vj {
			return vi > vj
		}
		return items[i].LikesCount > items[j].LikesCount
	})
}

func popularityViews(item scrapejob.RawItem) int64 {
	if item.VideoViewCount != nil && *item.VideoViewCount > 0 {
		return *item.VideoViewCount
	}
	return item.VideoPlayCount
}

// filterRecent keeps items posted within the period. Items whose
// timestamp cannot be parsed are kept rather than silently dropped.
func (r *Ranker) filterRecent(items []scrapejob.RawItem, periodDays int) []scrapejob.RawItem {
	cutoff := r.now().AddDate(0, 0, -periodDays)

	recent := make([]scrapejob.RawItem, 0, len(items))
	for _, item := range items {
		if item.Timestamp == "" {
			continue
		}
		postedAt, err := time.Parse(time.RFC3339, item.Timestamp)
		if err != nil {
			recent = append(recent, item)
			continue
		}
		if postedAt.After(cutoff) {
			recent = append(recent, item)
		}
	}
	return recent
}

// normalize converts a raw post into a RankedItem with recomputed
// engagement metrics
func (r *Ranker) normalize(item scrapejob.RawItem) RankedItem {
	views := popularityViews(item)
	// The service omits view counts for some posts; estimate from likes
	// so engagement math stays meaningful
	if views == 0 && item.LikesCount > 0 {
		views = item.LikesCount * 10
	}

	title := "No caption"
	if item.Caption != "" {
		title = item.Caption
		// Truncate by runes, not bytes: captions are often Cyrillic and a
		// byte slice would cut a character in half
		if runes := []rune(title); len(runes) > maxTitleLength {
			title = string(runes[:maxTitleLength])
		}
	}

	url := item.URL
	if url == "" {
		url = "https://instagram.com/p/" + item.ShortCode
	}

	author := item.OwnerFullName
	if author == "" {
		author = "Unknown"
	}
	username := item.OwnerUsername
	if username == "" {
		username = "unknown"
	}

	avatar := item.OwnerProfilePicURL
	if avatar == "" {
		avatar = item.ProfilePictureURL
	}
	thumbnail := item.DisplayURL
	if thumbnail == "" {
		thumbnail = item.ThumbnailURL
	}

	postedAt, err := time.Parse(time.RFC3339, item.Timestamp)
	if err != nil {
		postedAt = r.now()
	}

	ranked := RankedItem{
		ID:              item.ID,
		Title:           title,
		Author:          author,
		AuthorUsername:  "@" + username,
		URL:             url,
		VideoURL:        item.VideoURL,
		ThumbnailURL:    thumbnail,
		AuthorAvatarURL: avatar,
		Views:           views,
		Likes:           item.LikesCount,
		Comments:        item.CommentsCount,
		Shares:          0,
		Hashtags:        extractHashtags(item.Caption),
		PostedAt:        postedAt,
		Transcript:      item.Alt,
		DurationSec:     item.VideoDuration,
	}

	// Engagement rate is always recomputed, never trusted from upstream
	if ranked.Views > 0 {
		ranked.EngagementRate = float64(ranked.Likes+ranked.Comments) / float64(ranked.Views) * 100
	}
	return ranked
}

// extractHashtags pulls lowercased hashtags out of a caption
func extractHashtags(text string) []string {
	raw := hashtagPattern.FindAllString(text, -1)
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		tags = append(tags, strings.ToLower(tag))
	}
	return tags
}

// aggregate computes batch totals, popular hashtags, insights and cost
func (r *Ranker) aggregate(items []RankedItem, query scrapejob.Query, rawCount int, fallback bool) *AnalysisBatch {
	var totalViews int64
	var totalER float64
	for _, item := range items {
		totalViews += item.Views
		totalER += item.EngagementRate
	}

	averageER := 0.0
	if len(items) > 0 {
		averageER = totalER / float64(len(items))
	}

	batch := &AnalysisBatch{
		Query:           query.Label(),
		Items:           items,
		TotalViews:      totalViews,
		AverageER:       averageER,
		PopularHashtags: r.popularHashtags(items),
		Insights:        r.insights(items, fallback),
		Recommendations: r.recommendations(items),
		CostUSD:         r.cost(rawCount),
		Fallback:        fallback,
	}
	batch.CostRUB = batch.CostUSD * r.pricing.USDToRUB * r.pricing.Markup
	return batch
}

// emptyBatch is returned when no eligible video content was found
func (r *Ranker) emptyBatch(query scrapejob.Query, rawCount int) *AnalysisBatch {
	batch := &AnalysisBatch{
		Query: query.Label(),
		Items: []RankedItem{},
		Insights: []string{
			"No video content found for this query. Try a different query or a longer period.",
		},
		Recommendations: []string{
			"Use more popular hashtags",
			"Try analyzing a different account",
		},
		CostUSD: r.cost(rawCount),
	}
	batch.CostRUB = batch.CostUSD * r.pricing.USDToRUB * r.pricing.Markup
	return batch
}

// popularHashtags returns the most frequent hashtags across the batch
func (r *Ranker) popularHashtags(items []RankedItem) []HashtagStat {
	counts := make(map[string]int)
	for _, item := range items {
		for _, tag := range item.Hashtags {
			counts[tag]++
		}
	}

	stats := make([]HashtagStat, 0, len(counts))
	for tag, count := range counts {
		stats = append(stats, HashtagStat{Name: tag, Count: count})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})

	if len(stats) > r.ranking.TopHashtags {
		stats = stats[:r.ranking.TopHashtags]
	}
	return stats
}

func (r *Ranker) insights(items []RankedItem, fallback bool) []string {
	var insights []string
	if fallback {
		insights = append(insights,
			"Showing the best available items: not enough recent content for the selected period")
	}
	if len(items) == 0 {
		return append(insights, "No matching video content found")
	}

	top := items[0]
	for _, item := range items[1:] {
		if item.Views > top.Views {
			top = item
		}
	}
	insights = append(insights, fmt.Sprintf("Top item: %d views, %d likes", top.Views, top.Likes))

	var sumViews, sumLikes int64
	for _, item := range items {
		sumViews += item.Views
		sumLikes += item.Likes
	}
	insights = append(insights, fmt.Sprintf("Average: %d views, %d likes",
		sumViews/int64(len(items)), sumLikes/int64(len(items))))

	if avg, ok := averageDuration(items); ok {
		insights = append(insights, fmt.Sprintf("Average duration: %d seconds", int(avg)))
	}

	insights = append(insights, "Best posting window: 19:00-21:00")
	return insights
}

func (r *Ranker) recommendations(items []RankedItem) []string {
	if len(items) == 0 {
		return []string{"Try different keywords or a longer period"}
	}

	var recs []string

	popular := r.popularHashtags(items)
	if len(popular) > 0 {
		limit := 5
		if len(popular) < limit {
			limit = len(popular)
		}
		names := make([]string, 0, limit)
		for _, stat := range popular[:limit] {
			names = append(names, stat.Name)
		}
		recs = append(recs, "Use hashtags: "+strings.Join(names, ", "))
	}

	if avg, ok := averageDuration(items); ok {
		switch {
		case avg < float64(r.ranking.ShortDurationSec):
			recs = append(recs, fmt.Sprintf("Try longer videos (%d-%d seconds)",
				r.ranking.ShortDurationSec, r.ranking.LongDurationSec))
		case avg > float64(r.ranking.LongDurationSec):
			recs = append(recs, fmt.Sprintf("Optimal duration is %d-%d seconds",
				r.ranking.ShortDurationSec, r.ranking.LongDurationSec))
		default:
			recs = append(recs, fmt.Sprintf("Keep durations around %d seconds", int(avg)))
		}
	}

	for _, item := range items {
		if item.EngagementRate > r.ranking.CTAThresholdER {
			recs = append(recs, "Add a call to action in the first 3 seconds")
			break
		}
	}
	return recs
}

func averageDuration(items []RankedItem) (float64, bool) {
	var sum float64
	count := 0
	for _, item := range items {
		if item.DurationSec > 0 {
			sum += item.DurationSec
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// cost estimates the provider charge for the raw items processed
func (r *Ranker) cost(rawCount int) float64 {
	return float64(rawCount) * r.ranking.CostPerItemUSD
}

func minSample(sample, floor int) int {
	if sample < floor {
		return sample
	}
	return floor
}
