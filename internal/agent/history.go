// File: internal/agent/history.go
package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/dom"
)

var jsonFast = jsoniter.ConfigCompatibleWithStandardLibrary

// History is the append-only record of a run, one StepRecord per loop
// iteration. It is serializable so a finished run can be replayed against a
// live session later.
type History struct {
	Steps []schemas.StepRecord `json:"history"`
}

// Recorder builds StepRecords, translating ephemeral selector-map indices
// into durable element fingerprints.
type Recorder struct {
	logger *zap.Logger
}

// NewRecorder creates a history recorder.
func NewRecorder(logger *zap.Logger) *Recorder {
	return &Recorder{logger: logger.Named("history")}
}

// Record assembles one step's record. For every action referencing an element
// index, the index is resolved through the snapshot that was current when the
// action executed and stored as a fingerprint; indices are meaningless
// outside their snapshot.
func (r *Recorder) Record(
	output *schemas.ModelOutput,
	snap *dom.Snapshot,
	info schemas.PageInfo,
	tabs []schemas.TabInfo,
	results []schemas.ActionResult,
	screenshot string,
	meta *schemas.StepMetadata,
) schemas.StepRecord {
	var interacted []*schemas.Fingerprint
	if output != nil && snap != nil {
		for _, action := range output.Actions {
			if !action.RequiresIndex() {
				interacted = append(interacted, nil)
				continue
			}
			el, ok := snap.Selector[action.Index()]
			if !ok {
				r.logger.Warn("Recorded action references unknown index",
					zap.String("kind", action.Kind()), zap.Int("index", action.Index()))
				interacted = append(interacted, nil)
				continue
			}
			fp := dom.FingerprintElement(el)
			interacted = append(interacted, &fp)
		}
	}

	return schemas.StepRecord{
		ModelOutput: output,
		Results:     results,
		State: schemas.BrowserStateRecord{
			URL:                info.URL,
			Title:              info.Title,
			Tabs:               tabs,
			InteractedElements: interacted,
			Screenshot:         screenshot,
		},
		Metadata: meta,
	}
}

// IsDone reports whether the run reached a terminal done result.
func (h *History) IsDone() bool {
	if len(h.Steps) == 0 {
		return false
	}
	last := h.Steps[len(h.Steps)-1]
	for _, res := range last.Results {
		if res.IsDone {
			return true
		}
	}
	return false
}

// FinalResult returns the extracted content of the terminal done result, if
// any.
func (h *History) FinalResult() string {
	if len(h.Steps) == 0 {
		return ""
	}
	last := h.Steps[len(h.Steps)-1]
	for _, res := range last.Results {
		if res.IsDone {
			return res.ExtractedContent
		}
	}
	return ""
}

// Save writes the history as JSON, creating parent directories as needed.
func (h *History) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	data, err := jsonFast.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// LoadHistory reads a history document back, re-parsing each step's raw
// actions into their typed variants via parse (typically
// controller.ParseActions).
func LoadHistory(path string, parse func([]json.RawMessage) ([]schemas.Action, error)) (*History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	var h History
	if err := jsonFast.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	for i := range h.Steps {
		out := h.Steps[i].ModelOutput
		if out == nil || len(out.RawActions) == 0 {
			continue
		}
		actions, err := parse(out.RawActions)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		out.Actions = actions
	}
	return &h, nil
}
