package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"reelscope/pkg/logger"
)

// Stage identifies one phase of an analysis run
type Stage string

const (
	StageInit       Stage = "init"
	StageSubmit     Stage = "submit"
	StageScrapeWait Stage = "scrape_wait"
	StageFetch      Stage = "fetch"
	StageProcess    Stage = "process"
	StageRender     Stage = "render"
	StageSave       Stage = "save"
)

// span maps a stage onto its slice of the overall percentage
type span struct {
	start int
	end   int
	label string
}

// Stage intervals are fixed; sub-progress interpolates inside them so the
// overall bar moves smoothly even though stages have very different
// durations. Scrape-wait dominates because the external job does.
var stageSpans = map[Stage]span{
	StageInit:       {0, 5, "Initializing request"},
	StageSubmit:     {5, 10, "Submitting scrape job"},
	StageScrapeWait: {10, 70, "Analyzing content"},
	StageFetch:      {70, 80, "Fetching results"},
	StageProcess:    {80, 85, "Processing data"},
	StageRender:     {85, 95, "Rendering report"},
	StageSave:       {95, 100, "Saving results"},
}

// barWidth is the character width of the rendered progress bar
const barWidth = 10

// Notifier delivers a rendered progress message to the user. Delivery
// failures never affect the run; the tracker logs and drops them.
type Notifier func(message string) error

// Tracker converts stage updates into percentage, bar and ETA messages.
// The percentage is monotonic: a late update for an earlier stage can
// never move the bar backwards.
type Tracker struct {
	mu      sync.Mutex
	notify  Notifier
	percent int
	started time.Time
	now     func() time.Time
	logger  logger.Logger
}

// NewTracker creates a tracker that reports through notify. A nil
// notifier is valid and makes the tracker a no-op sink.
func NewTracker(notify Notifier) *Tracker {
	return &Tracker{
		notify:  notify,
		started: time.Now(),
		now:     time.Now,
		logger:  logger.GetLogger(),
	}
}

// Update reports sub-progress within a stage, where sub is 0.0 to 1.0.
// Unknown stages and out-of-range sub values are clamped, not errors.
func (t *Tracker) Update(stage Stage, sub float64) {
	sp, ok := stageSpans[stage]
	if !ok {
		return
	}
	if sub < 0 {
		sub = 0
	}
	if sub > 1 {
		sub = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pct := sp.start + int(float64(sp.end-sp.start)*sub)
	if pct < t.percent {
		pct = t.percent
	}
	t.percent = pct

	t.send(t.render(sp.label, pct))
}

// Complete drives the bar to 100% and reports the total elapsed time
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.percent = 100
	elapsed := t.now().Sub(t.started)
	text := fmt.Sprintf("Analysis complete!\n%s 100%%\nTotal time: %s",
		renderBar(100), formatDuration(elapsed))
	t.send(text)
}

// Percent returns the current overall percentage
func (t *Tracker) Percent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

// render formats the in-flight progress message
func (t *Tracker) render(label string, pct int) string {
	return fmt.Sprintf("%s\nProgress: %d%%\n%s\nRemaining: %s",
		label, pct, renderBar(pct), t.remaining(pct))
}

// remaining estimates time left by linear extrapolation from elapsed time
func (t *Tracker) remaining(pct int) string {
	if pct <= 0 {
		return "estimating..."
	}
	elapsed := t.now().Sub(t.started)
	total := time.Duration(float64(elapsed) * 100 / float64(pct))
	return "~" + formatDuration(total-elapsed)
}

func (t *Tracker) send(text string) {
	if t.notify == nil {
		return
	}
	if err := t.notify(text); err != nil {
		// Stale-message and transport errors are expected noise
		t.logger.DebugWithFields("progress notification dropped", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// renderBar draws a fixed-width bar, e.g. [████░░░░░░]
func renderBar(pct int) string {
	filled := pct * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Repeat("█", filled))
	b.WriteString(strings.Repeat("░", barWidth-filled))
	b.WriteByte(']')
	return b.String()
}

// formatDuration renders a duration in coarse human units
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	}
}
