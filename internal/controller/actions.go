// File: internal/controller/actions.go
package controller

import (
	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// Action kind names as they appear on the wire.
const (
	KindClickElement   = "click_element"
	KindInputText      = "input_text"
	KindGoToURL        = "go_to_url"
	KindGoBack         = "go_back"
	KindScroll         = "scroll"
	KindSendKeys       = "send_keys"
	KindSwitchTab      = "switch_tab"
	KindOpenTab        = "open_tab"
	KindExtractContent = "extract_content"
	KindWait           = "wait"
	KindDone           = "done"
)

// noIndex is embedded by actions that do not reference a selector-map index.
type noIndex struct{}

func (noIndex) RequiresIndex() bool { return false }
func (noIndex) Index() int          { return -1 }
func (noIndex) SetIndex(int)        {}

// ClickElement clicks the element at a selector-map index.
type ClickElement struct {
	ElementIndex int `json:"index"`
}

func (a *ClickElement) Kind() string        { return KindClickElement }
func (a *ClickElement) RequiresIndex() bool { return true }
func (a *ClickElement) Index() int          { return a.ElementIndex }
func (a *ClickElement) SetIndex(i int)      { a.ElementIndex = i }

// InputText types text into the element at a selector-map index.
type InputText struct {
	ElementIndex int    `json:"index"`
	Text         string `json:"text"`
}

func (a *InputText) Kind() string        { return KindInputText }
func (a *InputText) RequiresIndex() bool { return true }
func (a *InputText) Index() int          { return a.ElementIndex }
func (a *InputText) SetIndex(i int)      { a.ElementIndex = i }

// GoToURL navigates the active tab.
type GoToURL struct {
	noIndex
	URL string `json:"url"`
}

func (a *GoToURL) Kind() string { return KindGoToURL }

// GoBack steps back in session history.
type GoBack struct {
	noIndex
}

func (a *GoBack) Kind() string { return KindGoBack }

// Scroll moves the page vertically. Amount is in pixels; 0 scrolls one
// viewport height.
type Scroll struct {
	noIndex
	Down   bool  `json:"down"`
	Amount int64 `json:"amount,omitempty"`
}

func (a *Scroll) Kind() string { return KindScroll }

// SendKeys dispatches raw keyboard input, e.g. "Enter".
type SendKeys struct {
	noIndex
	Keys string `json:"keys"`
}

func (a *SendKeys) Kind() string { return KindSendKeys }

// SwitchTab activates another open tab.
type SwitchTab struct {
	noIndex
	TabID int `json:"tab_id"`
}

func (a *SwitchTab) Kind() string { return KindSwitchTab }

// OpenTab opens a new tab at a URL.
type OpenTab struct {
	noIndex
	URL string `json:"url"`
}

func (a *OpenTab) Kind() string { return KindOpenTab }

// ExtractContent pulls the page's visible text for the given goal.
type ExtractContent struct {
	noIndex
	Goal string `json:"goal,omitempty"`
}

func (a *ExtractContent) Kind() string { return KindExtractContent }

// Wait pauses the loop for a number of seconds.
type Wait struct {
	noIndex
	Seconds int `json:"seconds"`
}

func (a *Wait) Kind() string { return KindWait }

// Done terminates the run, reporting success or failure with a final answer.
type Done struct {
	noIndex
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

func (a *Done) Kind() string { return KindDone }

// Interface conformance.
var (
	_ schemas.Action = (*ClickElement)(nil)
	_ schemas.Action = (*InputText)(nil)
	_ schemas.Action = (*GoToURL)(nil)
	_ schemas.Action = (*GoBack)(nil)
	_ schemas.Action = (*Scroll)(nil)
	_ schemas.Action = (*SendKeys)(nil)
	_ schemas.Action = (*SwitchTab)(nil)
	_ schemas.Action = (*OpenTab)(nil)
	_ schemas.Action = (*ExtractContent)(nil)
	_ schemas.Action = (*Wait)(nil)
	_ schemas.Action = (*Done)(nil)
)
