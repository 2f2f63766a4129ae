// File: internal/controller/dispatch_test.go
package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/dom"
)

// fakeDriver records calls and returns scripted failures.
type fakeDriver struct {
	calls    []string
	failWith error

	clickedXPath string
	typedText    string
	scrolled     int64
	pageText     string
}

func (f *fakeDriver) record(name string) error {
	f.calls = append(f.calls, name)
	return f.failWith
}

func (f *fakeDriver) CaptureSnapshot(ctx context.Context, opts schemas.CaptureOptions) (*schemas.RawSnapshot, error) {
	return nil, f.record("capture")
}
func (f *fakeDriver) Navigate(ctx context.Context, url string) error { return f.record("navigate") }
func (f *fakeDriver) GoBack(ctx context.Context) error               { return f.record("goback") }
func (f *fakeDriver) ClickElement(ctx context.Context, xpath string) error {
	f.clickedXPath = xpath
	return f.record("click")
}
func (f *fakeDriver) TypeText(ctx context.Context, xpath, text string) error {
	f.typedText = text
	return f.record("type")
}
func (f *fakeDriver) SendKeys(ctx context.Context, keys string) error { return f.record("sendkeys") }
func (f *fakeDriver) ScrollBy(ctx context.Context, pixels int64) error {
	f.scrolled = pixels
	return f.record("scroll")
}
func (f *fakeDriver) ExtractText(ctx context.Context) (string, error) {
	return f.pageText, f.record("extract")
}
func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, f.record("screenshot")
}
func (f *fakeDriver) Info(ctx context.Context) (schemas.PageInfo, error) {
	return schemas.PageInfo{}, f.record("info")
}
func (f *fakeDriver) Tabs(ctx context.Context) ([]schemas.TabInfo, error) {
	return nil, f.record("tabs")
}
func (f *fakeDriver) SwitchTab(ctx context.Context, id int) error  { return f.record("switchtab") }
func (f *fakeDriver) OpenTab(ctx context.Context, url string) error { return f.record("opentab") }
func (f *fakeDriver) RemoveHighlights(ctx context.Context) error    { return f.record("unhighlight") }

var _ schemas.PageDriver = (*fakeDriver)(nil)

func snapshotWithButton(t *testing.T) *dom.Snapshot {
	t.Helper()
	idx := 0
	raw := &schemas.RawSnapshot{
		RootID: "r",
		Map: map[string]schemas.RawNode{
			"r": {TagName: "BODY", XPath: "/body", Children: []string{"b"}},
			"b": {TagName: "BUTTON", XPath: "/body/button", HighlightIndex: &idx},
		},
	}
	return dom.NewBuilder(zap.NewNop()).Build(raw)
}

func TestExecuteClickResolvesIndexToXPath(t *testing.T) {
	driver := &fakeDriver{}
	d := NewDispatcher(driver, zap.NewNop())
	snap := snapshotWithButton(t)

	res, err := d.Execute(context.Background(), &ClickElement{ElementIndex: 0}, snap)
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, "/body/button", driver.clickedXPath)
	assert.Contains(t, res.ExtractedContent, "[0]")
	assert.True(t, res.IncludeInMemory)
}

func TestExecuteUnknownIndexFailsInResult(t *testing.T) {
	driver := &fakeDriver{}
	d := NewDispatcher(driver, zap.NewNop())
	snap := snapshotWithButton(t)

	res, err := d.Execute(context.Background(), &ClickElement{ElementIndex: 42}, snap)
	require.NoError(t, err)
	assert.Contains(t, res.Error, "index 42")
	assert.Empty(t, driver.calls)
}

func TestExecuteDriverFailureStaysInResult(t *testing.T) {
	driver := &fakeDriver{failWith: errors.New("node detached")}
	d := NewDispatcher(driver, zap.NewNop())
	snap := snapshotWithButton(t)

	res, err := d.Execute(context.Background(), &ClickElement{ElementIndex: 0}, snap)
	require.NoError(t, err)
	assert.Contains(t, res.Error, "node detached")
}

func TestExecuteCancelledContextReturnsError(t *testing.T) {
	driver := &fakeDriver{}
	d := NewDispatcher(driver, zap.NewNop())
	snap := snapshotWithButton(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Execute(ctx, &ClickElement{ElementIndex: 0}, snap)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteScrollDefaultsAndDirection(t *testing.T) {
	driver := &fakeDriver{}
	d := NewDispatcher(driver, zap.NewNop())
	snap := snapshotWithButton(t)

	_, err := d.Execute(context.Background(), &Scroll{Down: true}, snap)
	require.NoError(t, err)
	assert.Equal(t, int64(720), driver.scrolled)

	_, err = d.Execute(context.Background(), &Scroll{Down: false, Amount: 300}, snap)
	require.NoError(t, err)
	assert.Equal(t, int64(-300), driver.scrolled)
}

func TestExecuteDoneShortCircuits(t *testing.T) {
	driver := &fakeDriver{}
	d := NewDispatcher(driver, zap.NewNop())

	res, err := d.Execute(context.Background(), &Done{Success: true, Text: "all set"}, snapshotWithButton(t))
	require.NoError(t, err)
	assert.True(t, res.IsDone)
	assert.True(t, res.Success)
	assert.Equal(t, "all set", res.ExtractedContent)
	assert.Empty(t, driver.calls)
}

func TestExecuteExtractContent(t *testing.T) {
	driver := &fakeDriver{pageText: "Flight AA100 departs 9:15"}
	d := NewDispatcher(driver, zap.NewNop())

	res, err := d.Execute(context.Background(), &ExtractContent{Goal: "departure time"}, snapshotWithButton(t))
	require.NoError(t, err)
	assert.Equal(t, "Flight AA100 departs 9:15", res.ExtractedContent)
	assert.True(t, res.IncludeInMemory)
}

func TestExecuteTypeText(t *testing.T) {
	driver := &fakeDriver{}
	d := NewDispatcher(driver, zap.NewNop())

	res, err := d.Execute(context.Background(), &InputText{ElementIndex: 0, Text: "NYC"}, snapshotWithButton(t))
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, "NYC", driver.typedText)
}
