package schemas

import "context"

// -- Browser Capability --

// PageDriver is the capability the core uses to talk to the live browser.
// Implementations are expected to be safe to call repeatedly and to fail
// transiently; the core never assumes a call is cheap.
type PageDriver interface {
	// CaptureSnapshot runs the structural probe and returns the raw node
	// graph. A degraded payload (empty map, missing root) is returned rather
	// than an error wherever the page is still reachable.
	CaptureSnapshot(ctx context.Context, opts CaptureOptions) (*RawSnapshot, error)

	// Navigate loads a URL in the active tab and waits for load.
	Navigate(ctx context.Context, url string) error
	// GoBack navigates one step back in session history.
	GoBack(ctx context.Context) error

	// ClickElement clicks the element addressed by an absolute XPath.
	ClickElement(ctx context.Context, xpath string) error
	// TypeText focuses the element addressed by xpath and types text into it.
	TypeText(ctx context.Context, xpath, text string) error
	// SendKeys dispatches raw key input (e.g. "Enter") to the focused element.
	SendKeys(ctx context.Context, keys string) error
	// ScrollBy scrolls the page vertically by the given pixel amount.
	ScrollBy(ctx context.Context, pixels int64) error

	// ExtractText returns the page's visible text content.
	ExtractText(ctx context.Context) (string, error)
	// Screenshot captures the viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Info returns the active page's identity and scroll position.
	Info(ctx context.Context) (PageInfo, error)
	// Tabs enumerates the open tabs of the session.
	Tabs(ctx context.Context) ([]TabInfo, error)
	// SwitchTab activates the tab with the given id.
	SwitchTab(ctx context.Context, id int) error
	// OpenTab opens a new tab at url and activates it.
	OpenTab(ctx context.Context, url string) error

	// RemoveHighlights clears any probe-drawn overlays.
	RemoveHighlights(ctx context.Context) error
}

// -- Model Capability --

// InvokeOptions tunes a single model invocation.
type InvokeOptions struct {
	Temperature float64
	MaxTokens   int
	// ForceJSON requests a structured JSON response where the backend
	// supports it.
	ForceJSON bool
}

// ModelResponse is the raw outcome of one model call before output parsing.
type ModelResponse struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// ModelService abstracts the language model. Every call is treated as
// potentially slow, rate-limited, or malformed; callers validate the output
// before trusting it.
type ModelService interface {
	Invoke(ctx context.Context, messages []Message, opts InvokeOptions) (*ModelResponse, error)
	// Name identifies the backing model for logging.
	Name() string
}

// -- Action Vocabulary Contract --

// Action is the closed contract every concrete action variant satisfies.
// Element-dependent actions expose their index through Index/SetIndex so the
// replay mechanism can rewrite it without knowing the action's other
// semantics.
type Action interface {
	// Kind is the wire name of the action ("click_element", "done", ...).
	Kind() string
	// RequiresIndex reports whether the action references a selector-map
	// index.
	RequiresIndex() bool
	// Index returns the referenced element index; meaningless when
	// RequiresIndex is false.
	Index() int
	// SetIndex rewrites the referenced element index.
	SetIndex(i int)
}
