package scenario

import (
	"context"
	"fmt"
	"time"

	"reelscope/pkg/generation"
	"reelscope/pkg/logger"
	"reelscope/pkg/ranking"
)

// Placeholder texts used when a supporting stage degrades
const (
	visionPlaceholder     = "Visual analysis unavailable"
	transcriptPlaceholder = "Audio transcription unavailable"
	scenarioPlaceholder   = "Scenario generation unavailable"
)

// FrameSource produces JPEG frames from a video URL for vision analysis
type FrameSource interface {
	Frames(ctx context.Context, videoURL string) ([][]byte, error)
}

// Transcriber produces a speech transcript from a video URL. The
// pipeline treats a nil Transcriber as a permanently degraded stage.
type Transcriber interface {
	Transcribe(ctx context.Context, videoURL string) (string, error)
}

// ContextProvider fetches a stored user context by ID
type ContextProvider interface {
	ContextData(ctx context.Context, userID, contextID int64) (string, error)
}

// Request asks for scenario generation for one ranked item. ContextID
// zero means no personalization context was selected.
type Request struct {
	Item      ranking.RankedItem
	UserID    int64
	ContextID int64
}

// Result carries all stage outcomes for one item. ErrorMessage is set
// only when the pipeline itself failed; individual stage failures
// degrade or skip their stage instead.
type Result struct {
	ItemID          string
	VisionAnalysis  StageResult
	AudioTranscript StageResult
	UserContext     StageResult
	Original        StageResult
	Variant         StageResult
	Personalized    StageResult
	ErrorMessage    string
	Elapsed         time.Duration
}

// Pipeline runs the four-prompt generation workflow over one item:
// vision analysis and transcript feed the original scenario, the
// original seeds a variant, and both seed a context-personalized
// version when the user selected a stored context.
type Pipeline struct {
	gen         generation.Client
	frames      FrameSource
	transcriber Transcriber
	contexts    ContextProvider
	now         func() time.Time
	logger      logger.Logger
}

// NewPipeline wires a pipeline. frames, transcriber and contexts may be
// nil; the corresponding stages then degrade or skip.
func NewPipeline(gen generation.Client, frames FrameSource, transcriber Transcriber, contexts ContextProvider, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pipeline{
		gen:         gen,
		frames:      frames,
		transcriber: transcriber,
		contexts:    contexts,
		now:         time.Now,
		logger:      log,
	}
}

// Generate runs all stages for one item. Stage failures are recovered
// locally; only a panic inside the pipeline sets ErrorMessage.
func (p *Pipeline) Generate(ctx context.Context, req Request) (result *Result) {
	start := p.now()
	result = &Result{ItemID: req.Item.ID}

	defer func() {
		result.Elapsed = p.now().Sub(start)
		if r := recover(); r != nil {
			result.ErrorMessage = fmt.Sprintf("scenario generation failed: %v", r)
			p.logger.ErrorWithFields("scenario pipeline panicked", map[string]interface{}{
				"item_id": req.Item.ID,
				"panic":   fmt.Sprintf("%v", r),
			})
		}
	}()

	result.VisionAnalysis = p.visionStage(ctx, req)
	result.AudioTranscript = p.transcriptStage(ctx, req)
	result.UserContext = p.contextStage(ctx, req)

	result.Original = p.originalStage(ctx, req, result)
	result.Variant = p.variantStage(ctx, req, result)
	result.Personalized = p.personalizedStage(ctx, req, result)

	return result
}

// visionStage analyzes sampled frames of the item's video. Without a
// video URL there is nothing to analyze; with one, any failure degrades
// to a placeholder so scenario generation can still proceed.
func (p *Pipeline) visionStage(ctx context.Context, req Request) StageResult {
	if req.Item.VideoURL == "" || p.frames == nil {
		return p.logged(req.Item.ID, "vision", Skipped(), nil)
	}

	frames, err := p.frames.Frames(ctx, req.Item.VideoURL)
	if err != nil || len(frames) == 0 {
		return p.logged(req.Item.ID, "vision", Degraded(visionPlaceholder), err)
	}

	text, err := p.gen.CompleteWithFrames(ctx, visionAnalysisPrompt, frames)
	if err != nil {
		return p.logged(req.Item.ID, "vision", Degraded(visionPlaceholder), err)
	}
	return p.logged(req.Item.ID, "vision", Success(text), nil)
}

func (p *Pipeline) transcriptStage(ctx context.Context, req Request) StageResult {
	if req.Item.VideoURL == "" {
		return p.logged(req.Item.ID, "transcript", Skipped(), nil)
	}
	if p.transcriber == nil {
		return p.logged(req.Item.ID, "transcript", Degraded(transcriptPlaceholder), nil)
	}

	text, err := p.transcriber.Transcribe(ctx, req.Item.VideoURL)
	if err != nil || text == "" {
		return p.logged(req.Item.ID, "transcript", Degraded(transcriptPlaceholder), err)
	}
	return p.logged(req.Item.ID, "transcript", Success(text), nil)
}

// contextStage fetches the user's stored context. A missing selection
// or a retrieval failure skips the stage, which in turn skips the
// personalized scenario.
func (p *Pipeline) contextStage(ctx context.Context, req Request) StageResult {
	if req.UserID == 0 || req.ContextID == 0 || p.contexts == nil {
		return p.logged(req.Item.ID, "context", Skipped(), nil)
	}

	data, err := p.contexts.ContextData(ctx, req.UserID, req.ContextID)
	if err != nil || data == "" {
		return p.logged(req.Item.ID, "context", Skipped(), err)
	}
	return p.logged(req.Item.ID, "context", Success(data), nil)
}

func (p *Pipeline) originalStage(ctx context.Context, req Request, r *Result) StageResult {
	prompt := fmt.Sprintf(originalScenarioPrompt,
		r.VisionAnalysis.TextOr(visionPlaceholder),
		r.AudioTranscript.TextOr(transcriptPlaceholder))

	text, err := p.gen.Complete(ctx, prompt)
	if err != nil {
		return p.logged(req.Item.ID, "original", Degraded(scenarioPlaceholder), err)
	}
	return p.logged(req.Item.ID, "original", Success(text), nil)
}

func (p *Pipeline) variantStage(ctx context.Context, req Request, r *Result) StageResult {
	if !r.Original.Succeeded() {
		return p.logged(req.Item.ID, "variant", Skipped(), nil)
	}

	prompt := fmt.Sprintf(variantScenarioPrompt,
		r.Original.Text,
		r.VisionAnalysis.TextOr(visionPlaceholder))

	text, err := p.gen.Complete(ctx, prompt)
	if err != nil {
		return p.logged(req.Item.ID, "variant", Degraded(scenarioPlaceholder), err)
	}
	return p.logged(req.Item.ID, "variant", Success(text), nil)
}

// personalizedStage runs only when context retrieval and both preceding
// scenarios genuinely succeeded
func (p *Pipeline) personalizedStage(ctx context.Context, req Request, r *Result) StageResult {
	if !r.UserContext.Succeeded() || !r.Original.Succeeded() || !r.Variant.Succeeded() {
		return p.logged(req.Item.ID, "personalized", Skipped(), nil)
	}

	prompt := fmt.Sprintf(personalizedScenarioPrompt,
		r.Original.Text,
		r.Variant.Text,
		r.UserContext.Text)

	text, err := p.gen.Complete(ctx, prompt)
	if err != nil {
		return p.logged(req.Item.ID, "personalized", Degraded(scenarioPlaceholder), err)
	}
	return p.logged(req.Item.ID, "personalized", Success(text), nil)
}

func (p *Pipeline) logged(itemID, stage string, result StageResult, err error) StageResult {
	logger.LogStageResult(itemID, stage, string(result.Outcome), err)
	return result
}
