package scenario

// Outcome classifies how a pipeline stage ended
type Outcome string

const (
	// OutcomeSuccess means the stage produced real generated text
	OutcomeSuccess Outcome = "success"
	// OutcomeDegraded means the stage failed and a placeholder stands in
	OutcomeDegraded Outcome = "degraded"
	// OutcomeSkipped means the stage's preconditions were not met
	OutcomeSkipped Outcome = "skipped"
)

// StageResult is the tagged outcome of one pipeline stage. Text carries
// the generated content on success or the placeholder on degradation;
// it is empty for skipped stages.
type StageResult struct {
	Outcome Outcome
	Text    string
}

// Success wraps real generated text
func Success(text string) StageResult {
	return StageResult{Outcome: OutcomeSuccess, Text: text}
}

// Degraded wraps a placeholder for a stage that failed
func Degraded(placeholder string) StageResult {
	return StageResult{Outcome: OutcomeDegraded, Text: placeholder}
}

// Skipped marks a stage whose preconditions were not met
func Skipped() StageResult {
	return StageResult{Outcome: OutcomeSkipped}
}

// Succeeded reports whether the stage produced real content
func (s StageResult) Succeeded() bool {
	return s.Outcome == OutcomeSuccess
}

// TextOr returns the stage text, or fallback for skipped stages
func (s StageResult) TextOr(fallback string) string {
	if s.Outcome == OutcomeSkipped || s.Text == "" {
		return fallback
	}
	return s.Text
}
