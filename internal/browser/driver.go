// File: internal/browser/driver.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

var jsonFast = jsoniter.ConfigCompatibleWithStandardLibrary

// tab tracks one chromedp target context owned by the driver.
type tab struct {
	id     int
	ctx    context.Context
	cancel context.CancelFunc
}

// Driver implements schemas.PageDriver on top of a chromedp-managed Chrome
// instance. It owns the allocator, the browser context, and every tab it
// opens; the core treats the whole session as exclusively owned for the
// duration of a run.
type Driver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	cancelAlloc context.CancelFunc

	mu        sync.Mutex
	tabs      []*tab
	active    *tab
	nextTabID int
	closed    bool
}

var _ schemas.PageDriver = (*Driver)(nil)

// NewDriver launches a browser and opens the initial tab.
func NewDriver(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.DisableCache {
		opts = append(opts, chromedp.Flag("disable-application-cache", true))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	d := &Driver{
		cfg:         cfg,
		logger:      logger.Named("browser").With(zap.String("session_id", uuid.NewString())),
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
	}

	first, err := d.newTab(allocCtx)
	if err != nil {
		cancelAlloc()
		return nil, fmt.Errorf("failed to open initial tab: %w", err)
	}
	d.active = first

	d.logger.Info("Browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.Int("width", cfg.WindowWidth),
		zap.Int("height", cfg.WindowHeight))
	return d, nil
}

// newTab creates a chromedp context and forces target creation so the tab is
// immediately usable. Caller holds no lock; newTab takes it.
func (d *Driver) newTab(parent context.Context) (*tab, error) {
	tabCtx, cancel := chromedp.NewContext(parent)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect tab target: %w", err)
	}

	d.mu.Lock()
	t := &tab{id: d.nextTabID, ctx: tabCtx, cancel: cancel}
	d.nextTabID++
	d.tabs = append(d.tabs, t)
	d.mu.Unlock()
	return t, nil
}

// activeCtx returns the chromedp context of the active tab, bounded by the
// caller's context for cancellation.
func (d *Driver) activeCtx() (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("browser session is closed")
	}
	if d.active == nil {
		return nil, fmt.Errorf("no active tab")
	}
	return d.active.ctx, nil
}

// run executes chromedp actions on the active tab, honoring the caller's
// deadline/cancellation.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	tabCtx, err := d.activeCtx()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(tabCtx, actions...) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// CaptureSnapshot runs the structural probe in the active tab.
func (d *Driver) CaptureSnapshot(ctx context.Context, opts schemas.CaptureOptions) (*schemas.RawSnapshot, error) {
	args, err := jsonFast.Marshal(map[string]any{
		"doHighlight":       opts.Highlight,
		"focusIndex":        opts.FocusIndex,
		"viewportExpansion": opts.ViewportExpansion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal probe arguments: %w", err)
	}

	script := fmt.Sprintf("(%s)(%s)", domProbeJS, string(args))
	var raw schemas.RawSnapshot
	if err := d.run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, fmt.Errorf("structural probe failed: %w", err)
	}
	return &raw, nil
}

// Navigate loads url in the active tab and waits for the load event plus the
// configured post-load settle time.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	navCtx := ctx
	if d.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, d.cfg.NavigationTimeout)
		defer cancel()
	}
	if err := d.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return d.settle(ctx)
}

// GoBack steps back in session history.
func (d *Driver) GoBack(ctx context.Context) error {
	if err := d.run(ctx, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("history back failed: %w", err)
	}
	return d.settle(ctx)
}

// settle waits the configured post-load duration, honoring cancellation.
func (d *Driver) settle(ctx context.Context) error {
	if d.cfg.PostLoadWait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.cfg.PostLoadWait):
		return nil
	}
}

// ClickElement clicks the element addressed by an absolute XPath.
func (d *Driver) ClickElement(ctx context.Context, xpath string) error {
	if err := d.run(ctx,
		chromedp.WaitVisible(xpath, chromedp.BySearch),
		chromedp.Click(xpath, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("click %s: %w", xpath, err)
	}
	return d.settle(ctx)
}

// TypeText clears the element addressed by xpath and types text into it.
func (d *Driver) TypeText(ctx context.Context, xpath, text string) error {
	if err := d.run(ctx,
		chromedp.WaitVisible(xpath, chromedp.BySearch),
		chromedp.Clear(xpath, chromedp.BySearch),
		chromedp.SendKeys(xpath, text, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("type into %s: %w", xpath, err)
	}
	return nil
}

// namedKeys maps the wire key names the model uses to chromedp key runes.
var namedKeys = map[string]string{
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"Escape":    kb.Escape,
	"Backspace": kb.Backspace,
	"Delete":    kb.Delete,
	"ArrowUp":   kb.ArrowUp,
	"ArrowDown": kb.ArrowDown,
	"PageUp":    kb.PageUp,
	"PageDown":  kb.PageDown,
}

// SendKeys dispatches raw key input to the focused element.
func (d *Driver) SendKeys(ctx context.Context, keys string) error {
	if mapped, ok := namedKeys[keys]; ok {
		keys = mapped
	}
	if err := d.run(ctx, chromedp.KeyEvent(keys)); err != nil {
		return fmt.Errorf("send keys: %w", err)
	}
	return nil
}

// ScrollBy scrolls the page vertically by pixels (negative scrolls up).
func (d *Driver) ScrollBy(ctx context.Context, pixels int64) error {
	script := fmt.Sprintf("window.scrollBy(0, %d)", pixels)
	if err := d.run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// ExtractText returns the page's visible text content.
func (d *Driver) ExtractText(ctx context.Context) (string, error) {
	var text string
	if err := d.run(ctx, chromedp.Evaluate("document.body.innerText", &text)); err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

// Screenshot captures the viewport as PNG bytes.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	})); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// scrollState mirrors the probe-independent scroll metrics query.
type scrollState struct {
	Above int64 `json:"above"`
	Below int64 `json:"below"`
}

// Info returns the active page's identity and scroll position.
func (d *Driver) Info(ctx context.Context) (schemas.PageInfo, error) {
	var info schemas.PageInfo
	var scroll scrollState
	err := d.run(ctx,
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
		chromedp.Evaluate(`({
			above: Math.round(window.scrollY),
			below: Math.max(0, Math.round(document.documentElement.scrollHeight - window.scrollY - window.innerHeight)),
		})`, &scroll),
	)
	if err != nil {
		return schemas.PageInfo{}, fmt.Errorf("page info: %w", err)
	}
	info.PixelsAbove = scroll.Above
	info.PixelsBelow = scroll.Below
	return info, nil
}

// Tabs enumerates the open tabs of this session.
func (d *Driver) Tabs(ctx context.Context) ([]schemas.TabInfo, error) {
	d.mu.Lock()
	tabs := make([]*tab, len(d.tabs))
	copy(tabs, d.tabs)
	d.mu.Unlock()

	infos := make([]schemas.TabInfo, 0, len(tabs))
	for _, t := range tabs {
		var url, title string
		// A tab that fails to respond is reported with empty fields rather
		// than failing the whole enumeration.
		tctx, cancel := context.WithTimeout(t.ctx, 3*time.Second)
		_ = chromedp.Run(tctx, chromedp.Location(&url), chromedp.Title(&title))
		cancel()
		infos = append(infos, schemas.TabInfo{ID: t.id, URL: url, Title: title})
	}
	return infos, nil
}

// SwitchTab activates the tab with the given id.
func (d *Driver) SwitchTab(ctx context.Context, id int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tabs {
		if t.id == id {
			d.active = t
			d.logger.Debug("Switched active tab", zap.Int("tab_id", id))
			return nil
		}
	}
	return fmt.Errorf("no tab with id %d", id)
}

// OpenTab opens a new tab at url and activates it. Deriving the new context
// from an existing tab keeps the target inside the same browser process.
func (d *Driver) OpenTab(ctx context.Context, url string) error {
	d.mu.Lock()
	parent := d.allocCtx
	if len(d.tabs) > 0 {
		parent = d.tabs[0].ctx
	}
	d.mu.Unlock()

	t, err := d.newTab(parent)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.active = t
	d.mu.Unlock()
	return d.Navigate(ctx, url)
}

// RemoveHighlights clears probe-drawn overlays in the active tab.
func (d *Driver) RemoveHighlights(ctx context.Context) error {
	return d.run(ctx, chromedp.Evaluate(removeHighlightsJS, nil))
}

// Close tears down every tab and the browser process.
func (d *Driver) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	tabs := d.tabs
	d.tabs = nil
	d.active = nil
	d.mu.Unlock()

	for _, t := range tabs {
		t.cancel()
	}
	d.cancelAlloc()
	d.logger.Info("Browser session closed")
}
