// Package analyzer orchestrates a full analysis run: quota admission,
// scrape job lifecycle, ranking, optional scenario enrichment and
// report persistence, with progress reported throughout.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"reelscope/pkg/config"
	"reelscope/pkg/errors"
	"reelscope/pkg/logger"
	"reelscope/pkg/progress"
	"reelscope/pkg/quota"
	"reelscope/pkg/ranking"
	"reelscope/pkg/scenario"
	"reelscope/pkg/scrapejob"
	"reelscope/pkg/storage"
)

// JobClient is the scrape job lifecycle the analyzer drives
type JobClient interface {
	Submit(ctx context.Context, query scrapejob.Query) (*scrapejob.JobHandle, error)
	Poll(ctx context.Context, handle *scrapejob.JobHandle, onProgress scrapejob.ProgressFunc) (scrapejob.Status, error)
	Fetch(ctx context.Context, handle *scrapejob.JobHandle) ([]scrapejob.RawItem, error)
}

// Enricher generates scenarios for ranked items
type Enricher interface {
	EnrichBatch(ctx context.Context, items []ranking.RankedItem, userID, contextID int64) []*scenario.Result
}

// Request describes one analysis run for a user
type Request struct {
	// UserID is the external (frontend) user identity
	UserID    int64
	Username  string
	FirstName string
	LastName  string

	Query scrapejob.Query

	// ContextID selects a stored personalization context; 0 means none
	ContextID int64
	// EnrichScenarios switches on per-item scenario generation
	EnrichScenarios bool

	// Notify receives progress messages; nil disables reporting
	Notify progress.Notifier
}

// Outcome is the result of a completed analysis run
type Outcome struct {
	ReportID  string                 `json:"report_id"`
	Batch     *ranking.AnalysisBatch `json:"batch"`
	Scenarios []*scenario.Result     `json:"scenarios,omitempty"`
}

// reportPayload is what gets persisted as the report's result JSON
type reportPayload struct {
	Batch     *ranking.AnalysisBatch `json:"batch"`
	Scenarios []*scenario.Result     `json:"scenarios,omitempty"`
}

// Analyzer wires the collaborators of an analysis run
type Analyzer struct {
	cfg      *config.Config
	guard    *quota.Guard
	client   JobClient
	ranker   *ranking.Ranker
	store    *storage.Store
	enricher Enricher
	logger   logger.Logger
}

// New creates an analyzer. enricher may be nil when scenario generation
// is not configured.
func New(cfg *config.Config, guard *quota.Guard, client JobClient, ranker *ranking.Ranker, store *storage.Store, enricher Enricher, log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Analyzer{
		cfg:      cfg,
		guard:    guard,
		client:   client,
		ranker:   ranker,
		store:    store,
		enricher: enricher,
		logger:   log,
	}
}

// Analyze runs the full pipeline for one request. Quota is consumed up
// front and is not refunded when a later step fails: the external run
// is charged either way.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	user, err := a.store.GetOrCreateUser(ctx, req.UserID, req.Username, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}

	decision := a.guard.Admit(req.UserID)
	if !decision.Allowed {
		return nil, quotaError(decision)
	}

	tracker := progress.NewTracker(req.Notify)
	tracker.Update(progress.StageInit, 1)

	report, err := a.store.CreateReport(ctx, user.ID, req.Query.Label(), req.Query.PeriodDays(), req.Query.SampleSize())
	if err != nil {
		return nil, err
	}
	if err := a.store.MarkReportProcessing(ctx, report.ID); err != nil {
		return nil, err
	}

	a.logger.InfoWithFields("starting analysis", map[string]interface{}{
		"report_id": report.ID,
		"user_id":   req.UserID,
		"query":     req.Query.Label(),
	})

	outcome, err := a.run(ctx, req, user, report.ID, tracker)
	if err != nil {
		// Collapse every downstream failure into the stored report; the
		// caller still gets the typed error
		if failErr := a.store.FailReport(ctx, report.ID, err.Error()); failErr != nil {
			a.logger.ErrorWithFields("failed to record report failure", map[string]interface{}{
				"report_id": report.ID,
				"error":     failErr.Error(),
			})
		}
		return nil, err
	}

	outcome.ReportID = report.ID
	return outcome, nil
}

func (a *Analyzer) run(ctx context.Context, req Request, user *storage.User, reportID string, tracker *progress.Tracker) (*Outcome, error) {
	tracker.Update(progress.StageSubmit, 0)
	handle, err := a.client.Submit(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	tracker.Update(progress.StageSubmit, 1)

	if _, err := a.client.Poll(ctx, handle, func(sub float64) {
		tracker.Update(progress.StageScrapeWait, sub)
	}); err != nil {
		return nil, err
	}

	tracker.Update(progress.StageFetch, 0)
	items, err := a.client.Fetch(ctx, handle)
	if err != nil {
		return nil, err
	}
	tracker.Update(progress.StageFetch, 1)

	tracker.Update(progress.StageProcess, 0)
	batch := a.ranker.Rank(items, req.Query)
	tracker.Update(progress.StageProcess, 1)

	outcome := &Outcome{Batch: batch}

	if req.EnrichScenarios && a.enricher != nil && len(batch.Items) > 0 {
		tracker.Update(progress.StageRender, 0)
		outcome.Scenarios = a.enricher.EnrichBatch(ctx, batch.Items, user.ID, req.ContextID)
	}
	tracker.Update(progress.StageRender, 1)

	tracker.Update(progress.StageSave, 0)
	payload, err := json.Marshal(reportPayload{Batch: batch, Scenarios: outcome.Scenarios})
	if err != nil {
		return nil, fmt.Errorf("failed to encode report payload: %w", err)
	}
	if err := a.store.CompleteReport(ctx, reportID, string(payload), batch.CostUSD, batch.CostRUB); err != nil {
		return nil, err
	}
	if err := a.store.IncrementUserRequests(ctx, req.UserID); err != nil {
		return nil, err
	}
	tracker.Update(progress.StageSave, 1)
	tracker.Complete()

	a.logger.InfoWithFields("analysis completed", map[string]interface{}{
		"report_id": reportID,
		"items":     len(batch.Items),
		"fallback":  batch.Fallback,
		"cost_usd":  batch.CostUSD,
	})
	return outcome, nil
}

// Usage reports the user's current quota consumption without touching it
func (a *Analyzer) Usage(userID int64) quota.Usage {
	return a.guard.Usage(userID)
}

func quotaError(d quota.Decision) error {
	if d.Reason == quota.ReasonMonthlyExceeded {
		return errors.New(errors.ErrorTypeQuotaRejected,
			fmt.Sprintf("monthly limit reached (%d used); resets %s",
				d.MonthlyUsed, d.MonthResetDate.Format("2006-01-02")), 0)
	}
	return errors.New(errors.ErrorTypeQuotaRejected,
		fmt.Sprintf("request limit reached (%d used); try again after %s",
			d.RollingUsed, d.RollingResetAt.Format("15:04")), 0)
}
