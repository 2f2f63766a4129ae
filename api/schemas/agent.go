package schemas

import (
	"encoding/json"
	"time"
)

// Fingerprint is the durable structural identity of an element across
// snapshots. Two fingerprints refer to the same logical element only when all
// three components match exactly; this is deliberate exact-match policy, not
// similarity scoring.
type Fingerprint struct {
	BranchPathHash string `json:"branch_path_hash"`
	AttributesHash string `json:"attributes_hash"`
	XPathHash      string `json:"xpath_hash"`
}

// Equal reports whether both fingerprints identify the same logical element.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.BranchPathHash == other.BranchPathHash &&
		f.AttributesHash == other.AttributesHash &&
		f.XPathHash == other.XPathHash
}

// Brain is the model's self-reported reasoning state for one step.
type Brain struct {
	EvaluationPreviousGoal string `json:"evaluation_previous_goal"`
	Memory                 string `json:"memory"`
	NextGoal               string `json:"next_goal"`
}

// ModelOutput is the parsed response of one model turn: the reasoning state
// plus an ordered batch of actions. RawActions preserves the untyped payloads
// so history can round-trip them without knowing the action vocabulary.
type ModelOutput struct {
	CurrentState Brain             `json:"current_state"`
	RawActions   []json.RawMessage `json:"action"`

	// Actions holds the typed views of RawActions, attached after parsing.
	// Excluded from serialization; RawActions is the wire form.
	Actions []Action `json:"-"`
}

// ActionResult is the outcome of dispatching a single action.
type ActionResult struct {
	// IsDone marks the terminal action of a run.
	IsDone bool `json:"is_done"`
	// Success is only meaningful when IsDone is set.
	Success          bool   `json:"success"`
	ExtractedContent string `json:"extracted_content,omitempty"`
	Error            string `json:"error,omitempty"`
	// IncludeInMemory controls whether the result text is carried into the
	// next conversation turn.
	IncludeInMemory bool `json:"include_in_memory"`
}

// BrowserStateRecord is the browser-side snapshot persisted with each step:
// enough to re-anchor a replay without keeping the element tree alive.
type BrowserStateRecord struct {
	URL                string         `json:"url"`
	Title              string         `json:"title"`
	Tabs               []TabInfo      `json:"tabs"`
	InteractedElements []*Fingerprint `json:"interacted_elements"`
	Screenshot         string         `json:"screenshot,omitempty"`
}

// StepMetadata captures timing and token accounting for one step.
type StepMetadata struct {
	StepNumber  int       `json:"step_number"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	InputTokens int       `json:"input_tokens"`
}

// StepRecord is one append-only entry of a run history. ModelOutput is nil
// for steps that failed before a valid model response was obtained.
type StepRecord struct {
	ModelOutput *ModelOutput       `json:"model_output"`
	Results     []ActionResult     `json:"result"`
	State       BrowserStateRecord `json:"state"`
	Metadata    *StepMetadata      `json:"metadata,omitempty"`
}

// ErrorText flattens the error strings of the step's results.
func (r StepRecord) ErrorText() []string {
	var errs []string
	for _, res := range r.Results {
		if res.Error != "" {
			errs = append(errs, res.Error)
		}
	}
	return errs
}
