package scrapejob

import (
	"fmt"
	"regexp"
	"strings"

	"reelscope/pkg/config"
	"reelscope/pkg/errors"
)

// Query describes one analysis request to the scraping service. Each
// variant builds its own run input, over-fetching raw posts so that
// eligibility and recency filtering still leave a full sample.
type Query interface {
	// Label names the query in reports and logs
	Label() string
	// PeriodDays is the recency window in days; 0 disables the filter
	PeriodDays() int
	// SampleSize is the requested sample, already clamped to the ceiling
	SampleSize() int
	// Input builds the run input payload for the scraping service
	Input() map[string]interface{}
}

// AccountQuery analyzes the recent reels of a single account
type AccountQuery struct {
	username   string
	periodDays int
	sample     int
	fetchLimit int
}

// NewAccountQuery builds an account query. Leading @ and whitespace are
// stripped from the username.
func NewAccountQuery(cfg *config.JobConfig, username string, periodDays, sampleSize int) AccountQuery {
	return AccountQuery{
		username:   strings.TrimSpace(strings.ReplaceAll(username, "@", "")),
		periodDays: periodDays,
		sample:     clampSample(sampleSize, cfg.SampleCeiling),
		fetchLimit: overFetch(clampSample(sampleSize, cfg.SampleCeiling), cfg.AccountFetchFactor, cfg.AccountFetchCap),
	}
}

func (q AccountQuery) Label() string   { return "@" + q.username }
func (q AccountQuery) PeriodDays() int { return q.periodDays }
func (q AccountQuery) SampleSize() int { return q.sample }

func (q AccountQuery) Input() map[string]interface{} {
	return map[string]interface{}{
		"directUrls":    []string{fmt.Sprintf("https://www.instagram.com/%s/reels/", q.username)},
		"resultsType":   "posts",
		"resultsLimit":  q.fetchLimit,
		"addParentData": true,
	}
}

// HashtagQuery analyzes reels posted under a hashtag. Hashtag feeds mix
// in many non-video posts, so this variant over-fetches more aggressively.
type HashtagQuery struct {
	tag        string
	periodDays int
	sample     int
	fetchLimit int
}

// NewHashtagQuery builds a hashtag query. A leading # is stripped.
func NewHashtagQuery(cfg *config.JobConfig, tag string, periodDays, sampleSize int) HashtagQuery {
	return HashtagQuery{
		tag:        strings.TrimSpace(strings.ReplaceAll(tag, "#", "")),
		periodDays: periodDays,
		sample:     clampSample(sampleSize, cfg.SampleCeiling),
		fetchLimit: overFetch(clampSample(sampleSize, cfg.SampleCeiling), cfg.HashtagFetchFactor, cfg.HashtagFetchCap),
	}
}

func (q HashtagQuery) Label() string   { return "#" + q.tag }
func (q HashtagQuery) PeriodDays() int { return q.periodDays }
func (q HashtagQuery) SampleSize() int { return q.sample }

func (q HashtagQuery) Input() map[string]interface{} {
	return map[string]interface{}{
		"hashtags":      []string{q.tag},
		"resultsType":   "posts",
		"resultsLimit":  q.fetchLimit,
		"addParentData": true,
	}
}

// LocationQuery analyzes reels tagged with a location
type LocationQuery struct {
	locationID string
	name       string
	periodDays int
	sample     int
	fetchLimit int
}

// NewLocationQuery builds a location query from a resolved location ID
func NewLocationQuery(cfg *config.JobConfig, locationID, name string, periodDays, sampleSize int) LocationQuery {
	return LocationQuery{
		locationID: locationID,
		name:       strings.TrimSpace(name),
		periodDays: periodDays,
		sample:     clampSample(sampleSize, cfg.SampleCeiling),
		fetchLimit: overFetch(clampSample(sampleSize, cfg.SampleCeiling), cfg.LocationFetchFactor, cfg.LocationFetchCap),
	}
}

func (q LocationQuery) Label() string   { return q.name }
func (q LocationQuery) PeriodDays() int { return q.periodDays }
func (q LocationQuery) SampleSize() int { return q.sample }

func (q LocationQuery) Input() map[string]interface{} {
	return map[string]interface{}{
		"locationIds":   []string{q.locationID},
		"resultsType":   "posts",
		"resultsLimit":  q.fetchLimit,
		"addParentData": true,
	}
}

// DirectItemQuery analyzes a single reel by URL
type DirectItemQuery struct {
	url       string
	shortcode string
}

var reelURLPattern = regexp.MustCompile(`/reel/([A-Za-z0-9_-]+)`)

// NewDirectItemQuery builds a query for one reel URL. The URL must
// contain a /reel/<shortcode> path segment.
func NewDirectItemQuery(url string) (DirectItemQuery, error) {
	match := reelURLPattern.FindStringSubmatch(url)
	if match == nil {
		return DirectItemQuery{}, errors.New(errors.ErrorTypeParsing, "not a valid reel URL", 0)
	}
	return DirectItemQuery{url: url, shortcode: match[1]}, nil
}

func (q DirectItemQuery) Label() string   { return "Reel " + q.shortcode }
func (q DirectItemQuery) PeriodDays() int { return 0 }
func (q DirectItemQuery) SampleSize() int { return 1 }

func (q DirectItemQuery) Input() map[string]interface{} {
	return map[string]interface{}{
		"directUrls":    []string{q.url},
		"resultsType":   "details",
		"resultsLimit":  1,
		"addParentData": true,
	}
}

func clampSample(sample, ceiling int) int {
	if sample < 1 {
		return 1
	}
	if sample > ceiling {
		return ceiling
	}
	return sample
}

// overFetch requests factor times the sample, bounded by cap, so the
// ranker has slack after dropping ineligible and out-of-window posts
func overFetch(sample, factor, ceiling int) int {
	limit := sample * factor
	if limit > ceiling {
		return ceiling
	}
	return limit
}
