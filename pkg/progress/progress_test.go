package progress

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func collectingTracker() (*Tracker, *[]string) {
	var messages []string
	t := NewTracker(func(msg string) error {
		messages = append(messages, msg)
		return nil
	})
	return t, &messages
}

func TestUpdateInterpolatesWithinStage(t *testing.T) {
	tr, _ := collectingTracker()

	tr.Update(StageScrapeWait, 0.5)

	// scrape_wait spans 10-70, so halfway is 40
	if got := tr.Percent(); got != 40 {
		t.Errorf("Expected 40%%, got %d%%", got)
	}
}

func TestPercentIsMonotonic(t *testing.T) {
	tr, _ := collectingTracker()

	tr.Update(StageFetch, 1.0)
	if got := tr.Percent(); got != 80 {
		t.Fatalf("Expected 80%%, got %d%%", got)
	}

	// A straggler update for an earlier stage must not move the bar back
	tr.Update(StageSubmit, 0.0)
	if got := tr.Percent(); got != 80 {
		t.Errorf("Expected percentage to hold at 80%%, got %d%%", got)
	}
}

func TestUpdateClampsSubProgress(t *testing.T) {
	tr, _ := collectingTracker()

	tr.Update(StageInit, 7.5)
	if got := tr.Percent(); got != 5 {
		t.Errorf("Expected clamp to stage end 5%%, got %d%%", got)
	}

	tr2, _ := collectingTracker()
	tr2.Update(StageInit, -1)
	if got := tr2.Percent(); got != 0 {
		t.Errorf("Expected clamp to stage start 0%%, got %d%%", got)
	}
}

func TestUnknownStageIgnored(t *testing.T) {
	tr, messages := collectingTracker()

	tr.Update(Stage("warp_drive"), 0.5)

	if got := tr.Percent(); got != 0 {
		t.Errorf("Unknown stage must not change percentage, got %d%%", got)
	}
	if len(*messages) != 0 {
		t.Errorf("Unknown stage must not notify, got %d messages", len(*messages))
	}
}

func TestMessageFormat(t *testing.T) {
	tr, messages := collectingTracker()
	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	tr.started = start
	tr.now = func() time.Time { return start.Add(30 * time.Second) }

	tr.Update(StageScrapeWait, 0.5)

	if len(*messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(*messages))
	}
	msg := (*messages)[0]

	if !strings.Contains(msg, "Analyzing content") {
		t.Errorf("Expected stage label in message: %q", msg)
	}
	if !strings.Contains(msg, "Progress: 40%") {
		t.Errorf("Expected percentage in message: %q", msg)
	}
	if !strings.Contains(msg, "[████░░░░░░]") {
		t.Errorf("Expected 4/10 bar in message: %q", msg)
	}
	// 30s elapsed at 40% extrapolates to 75s total, 45s remaining
	if !strings.Contains(msg, "Remaining: ~45s") {
		t.Errorf("Expected ETA in message: %q", msg)
	}
}

func TestETABeforeAnyProgress(t *testing.T) {
	tr, messages := collectingTracker()

	tr.Update(StageInit, 0)

	if !strings.Contains((*messages)[0], "estimating...") {
		t.Errorf("Expected estimating placeholder at 0%%: %q", (*messages)[0])
	}
}

func TestComplete(t *testing.T) {
	tr, messages := collectingTracker()
	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	tr.started = start
	tr.now = func() time.Time { return start.Add(95 * time.Second) }

	tr.Update(StageSave, 0.5)
	tr.Complete()

	if got := tr.Percent(); got != 100 {
		t.Errorf("Expected 100%% after Complete, got %d%%", got)
	}

	last := (*messages)[len(*messages)-1]
	if !strings.Contains(last, "Analysis complete!") {
		t.Errorf("Expected completion text: %q", last)
	}
	if !strings.Contains(last, "[██████████] 100%") {
		t.Errorf("Expected full bar: %q", last)
	}
	if !strings.Contains(last, "Total time: 1m 35s") {
		t.Errorf("Expected total elapsed time: %q", last)
	}
}

func TestNotifierErrorsSwallowed(t *testing.T) {
	tr := NewTracker(func(string) error {
		return errors.New("message is not modified")
	})

	tr.Update(StageFetch, 0.5)
	tr.Complete()

	if got := tr.Percent(); got != 100 {
		t.Errorf("Notifier failures must not affect tracking, got %d%%", got)
	}
}

func TestNilNotifier(t *testing.T) {
	tr := NewTracker(nil)

	tr.Update(StageProcess, 1.0)
	tr.Complete()

	if got := tr.Percent(); got != 100 {
		t.Errorf("Expected nil notifier tracker to still track, got %d%%", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-5 * time.Second, "0s"},
		{42 * time.Second, "42s"},
		{150 * time.Second, "2m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
