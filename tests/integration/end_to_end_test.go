package integration

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"reelscope/internal/enrich"
	"reelscope/pkg/analyzer"
	"reelscope/pkg/config"
	"reelscope/pkg/errors"
	"reelscope/pkg/logger"
	"reelscope/pkg/quota"
	"reelscope/pkg/ranking"
	"reelscope/pkg/scenario"
	"reelscope/pkg/scrapejob"
	"reelscope/pkg/storage"
)

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Scrape.BaseURL = serverURL
	cfg.Scrape.Token = "integration-token"
	cfg.Job.PollInterval = 10 * time.Millisecond
	cfg.Job.MaxPollAttempts = 20
	cfg.Job.RetryDelay = 10 * time.Millisecond
	cfg.Quota.RollingLimit = 2
	cfg.Quota.RollingWindow = 24 * time.Hour
	cfg.Quota.MonthlyLimit = 5
	cfg.Database.Path = filepath.Join(t.TempDir(), "integration.db")
	return cfg
}

func buildAnalyzer(t *testing.T, cfg *config.Config, enricher analyzer.Enricher) (*analyzer.Analyzer, *storage.Store) {
	t.Helper()

	log := logger.NewNopLogger()
	store, err := storage.New(cfg.Database.Path, log)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	guard := quota.New(&cfg.Quota, quota.NewMemoryStore())
	client := scrapejob.NewClient(cfg, log)
	ranker := ranking.NewRanker(cfg.Ranking, cfg.Pricing, log)

	return analyzer.New(cfg, guard, client, ranker, store, enricher, log), store
}

func videoItem(id string, views int64, daysAgo int) scrapejob.RawItem {
	v := views
	return scrapejob.RawItem{
		ID:             id,
		Type:           "Video",
		ShortCode:      "sc" + id,
		Caption:        "clip " + id + " #travel",
		Timestamp:      time.Now().AddDate(0, 0, -daysAgo).Format(time.RFC3339),
		VideoViewCount: &v,
		LikesCount:     views / 10,
		CommentsCount:  views / 100,
		OwnerUsername:  "creator",
		VideoDuration:  20,
	}
}

var percentPattern = regexp.MustCompile(`Progress: (\d+)%`)

func TestFullAnalysisAgainstMockService(t *testing.T) {
	server := NewMockScrapeServer()
	defer server.Close()

	server.SetItems([]scrapejob.RawItem{
		videoItem("a", 9000, 2),
		videoItem("b", 4000, 3),
		videoItem("c", 12000, 1),
		{ID: "img", Type: "Image", Timestamp: time.Now().Format(time.RFC3339)},
	})

	cfg := testConfig(t, server.URL())
	a, store := buildAnalyzer(t, cfg, nil)

	var messages []string
	req := analyzer.Request{
		UserID:   500,
		Username: "integration",
		Query:    scrapejob.NewAccountQuery(&cfg.Job, "creator", 30, 3),
		Notify: func(message string) error {
			messages = append(messages, message)
			return nil
		},
	}

	outcome, err := a.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	// Image is filtered out, videos ranked by views
	if len(outcome.Batch.Items) != 3 {
		t.Fatalf("Expected 3 ranked items, got %d", len(outcome.Batch.Items))
	}
	if outcome.Batch.Items[0].ID != "c" || outcome.Batch.Items[1].ID != "a" {
		t.Errorf("Unexpected ranking order: %s, %s",
			outcome.Batch.Items[0].ID, outcome.Batch.Items[1].ID)
	}

	if server.Submits() != 1 {
		t.Errorf("Expected 1 submission, got %d", server.Submits())
	}
	if server.Polls() <= server.PollsUntilDone {
		t.Errorf("Expected polling until completion, got %d polls", server.Polls())
	}

	// Progress percentages never go backwards and end with completion
	last := -1
	for _, message := range messages {
		match := percentPattern.FindStringSubmatch(message)
		if match == nil {
			continue
		}
		pct, _ := strconv.Atoi(match[1])
		if pct < last {
			t.Errorf("Progress went backwards: %d after %d", pct, last)
		}
		last = pct
	}
	if len(messages) == 0 || !strings.Contains(messages[len(messages)-1], "Analysis complete!") {
		t.Error("Expected final completion message")
	}

	report, err := store.GetReport(context.Background(), outcome.ReportID)
	if err != nil {
		t.Fatalf("Failed to load report: %v", err)
	}
	if report.Status != storage.ReportCompleted {
		t.Errorf("Expected completed report, got %s", report.Status)
	}
	if report.CostUSD <= 0 {
		t.Errorf("Expected positive cost, got %f", report.CostUSD)
	}
}

func TestServiceQuotaErrorIsNotRetried(t *testing.T) {
	server := NewMockScrapeServer()
	defer server.Close()
	server.SubmitStatusCode = 403
	server.SubmitBody = `{"error":{"message":"Monthly usage hard limit exceeded"}}`

	cfg := testConfig(t, server.URL())
	a, store := buildAnalyzer(t, cfg, nil)

	ctx := context.Background()
	req := analyzer.Request{
		UserID:   501,
		Username: "integration",
		Query:    scrapejob.NewAccountQuery(&cfg.Job, "creator", 30, 3),
	}

	_, err := a.Analyze(ctx, req)
	if !errors.IsType(err, errors.ErrorTypeServiceQuota) {
		t.Fatalf("Expected service quota error, got %v", err)
	}
	if server.Submits() != 1 {
		t.Errorf("Service quota errors must not be retried, got %d submissions", server.Submits())
	}

	user, _ := store.GetOrCreateUser(ctx, req.UserID, req.Username, "", "")
	reports, _ := store.ListReports(ctx, user.ID, 10)
	if len(reports) != 1 || reports[0].Status != storage.ReportFailed {
		t.Errorf("Expected one failed report, got %+v", reports)
	}
}

func TestAbortedRunFailsAnalysis(t *testing.T) {
	server := NewMockScrapeServer()
	defer server.Close()
	server.FinalStatus = "ABORTED"

	cfg := testConfig(t, server.URL())
	a, _ := buildAnalyzer(t, cfg, nil)

	req := analyzer.Request{
		UserID:   502,
		Username: "integration",
		Query:    scrapejob.NewAccountQuery(&cfg.Job, "creator", 30, 3),
	}

	_, err := a.Analyze(context.Background(), req)
	if !errors.IsType(err, errors.ErrorTypeJobFailed) {
		t.Fatalf("Expected job failure, got %v", err)
	}
}

func TestUserQuotaBlocksThirdRequest(t *testing.T) {
	server := NewMockScrapeServer()
	defer server.Close()
	server.SetItems([]scrapejob.RawItem{videoItem("a", 1000, 1)})

	cfg := testConfig(t, server.URL())
	a, _ := buildAnalyzer(t, cfg, nil)

	ctx := context.Background()
	req := analyzer.Request{
		UserID:   503,
		Username: "integration",
		Query:    scrapejob.NewAccountQuery(&cfg.Job, "creator", 30, 3),
	}

	for i := 0; i < 2; i++ {
		if _, err := a.Analyze(ctx, req); err != nil {
			t.Fatalf("Run %d failed: %v", i+1, err)
		}
	}

	submitsBefore := server.Submits()
	_, err := a.Analyze(ctx, req)
	if !errors.IsType(err, errors.ErrorTypeQuotaRejected) {
		t.Fatalf("Expected quota rejection, got %v", err)
	}
	if server.Submits() != submitsBefore {
		t.Error("Rejected request must not reach the scraping service")
	}
}

// scriptedGen is a canned generation client for enrichment runs
type scriptedGen struct{}

func (s *scriptedGen) Complete(_ context.Context, _ string) (string, error) {
	return "generated script", nil
}

func (s *scriptedGen) CompleteWithFrames(_ context.Context, _ string, _ [][]byte) (string, error) {
	return "visual summary", nil
}

func (s *scriptedGen) Close() error { return nil }

func TestEnrichedAnalysisStoresScenarios(t *testing.T) {
	server := NewMockScrapeServer()
	defer server.Close()
	server.SetItems([]scrapejob.RawItem{
		videoItem("a", 9000, 2),
		videoItem("b", 4000, 3),
	})

	cfg := testConfig(t, server.URL())

	log := logger.NewNopLogger()
	store, err := storage.New(cfg.Database.Path, log)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	// No frame source and no transcriber: those stages degrade, the
	// text scenarios still come through
	pipeline := scenario.NewPipeline(&scriptedGen{}, nil, nil, store, log)
	enricher := enrich.New(pipeline, 2, log)

	guard := quota.New(&cfg.Quota, quota.NewMemoryStore())
	client := scrapejob.NewClient(cfg, log)
	ranker := ranking.NewRanker(cfg.Ranking, cfg.Pricing, log)
	a := analyzer.New(cfg, guard, client, ranker, store, enricher, log)

	ctx := context.Background()
	user, err := store.GetOrCreateUser(ctx, 504, "integration", "", "")
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	uc, err := store.CreateContext(ctx, user.ID, "channel", "", "cooking channel for students")
	if err != nil {
		t.Fatalf("Failed to create context: %v", err)
	}

	req := analyzer.Request{
		UserID:          504,
		Username:        "integration",
		Query:           scrapejob.NewAccountQuery(&cfg.Job, "creator", 30, 2),
		ContextID:       uc.ID,
		EnrichScenarios: true,
	}

	outcome, err := a.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(outcome.Scenarios) != 2 {
		t.Fatalf("Expected 2 scenario results, got %d", len(outcome.Scenarios))
	}
	for i, result := range outcome.Scenarios {
		if !result.Original.Succeeded() {
			t.Errorf("Scenario %d: expected original script, got %+v", i, result.Original)
		}
		if !result.Personalized.Succeeded() {
			t.Errorf("Scenario %d: expected personalized script with context", i)
		}
	}

	report, err := store.GetReport(ctx, outcome.ReportID)
	if err != nil {
		t.Fatalf("Failed to load report: %v", err)
	}
	if !strings.Contains(report.ResultJSON, `"scenarios"`) {
		t.Error("Expected scenarios persisted in the report payload")
	}
}
