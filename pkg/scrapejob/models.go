package scrapejob

// Status is the lifecycle state reported for a scrape job run
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusAborted   Status = "ABORTED"
	StatusTimedOut  Status = "TIMED-OUT"
)

// IsTerminal reports whether the job will make no further progress
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}

// JobHandle identifies a submitted scrape job. Status tracks the last
// observed lifecycle state; results may only be fetched once it is
// StatusSucceeded.
type JobHandle struct {
	ID     string
	Status Status
}

// RawItem is one post as returned by the scraping service's dataset.
// Field names mirror the service's JSON schema. VideoViewCount is a
// pointer because its presence (not just its value) decides eligibility
// for feed posts.
type RawItem struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	ShortCode      string  `json:"shortCode"`
	URL            string  `json:"url"`
	Caption        string  `json:"caption"`
	Timestamp      string  `json:"timestamp"`
	IsVideo        bool    `json:"isVideo"`
	ProductType    string  `json:"productType"`
	VideoViewCount *int64  `json:"videoViewCount,omitempty"`
	VideoPlayCount int64   `json:"videoPlayCount"`
	LikesCount     int64   `json:"likesCount"`
	CommentsCount  int64   `json:"commentsCount"`
	VideoDuration  float64 `json:"videoDuration"`
	VideoURL       string  `json:"videoUrl"`
	DisplayURL     string  `json:"displayUrl"`
	ThumbnailURL   string  `json:"thumbnailUrl"`
	Alt            string  `json:"alt"`

	OwnerID            string `json:"ownerId"`
	OwnerUsername      string `json:"ownerUsername"`
	OwnerFullName      string `json:"ownerFullName"`
	OwnerProfilePicURL string `json:"ownerProfilePicUrl"`
	ProfilePictureURL  string `json:"profilePictureUrl"`
}

// runEnvelope wraps run creation and run status responses
type runEnvelope struct {
	Data runData `json:"data"`
}

type runData struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}
