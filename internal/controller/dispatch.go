// File: internal/controller/dispatch.go
package controller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/dom"
)

// Dispatcher executes typed actions against the page driver, using the
// current snapshot's selector map to resolve element indices to live
// elements.
type Dispatcher struct {
	driver schemas.PageDriver
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher bound to a page driver.
func NewDispatcher(driver schemas.PageDriver, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		driver: driver,
		logger: logger.Named("dispatcher"),
	}
}

// Execute dispatches a single action. Element-resolution and navigation
// failures are returned inside the ActionResult, not as an error; only
// context cancellation propagates as an error so the loop can distinguish
// interruption from a failed action.
func (d *Dispatcher) Execute(ctx context.Context, action schemas.Action, snap *dom.Snapshot) (schemas.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return schemas.ActionResult{}, err
	}

	d.logger.Debug("Dispatching action", zap.String("kind", action.Kind()))

	var el *dom.ElementNode
	if action.RequiresIndex() {
		var ok bool
		el, ok = snap.Selector[action.Index()]
		if !ok {
			return failedResult(fmt.Sprintf("element with index %d not found in current selector map", action.Index())), nil
		}
	}

	switch a := action.(type) {
	case *ClickElement:
		if err := d.driver.ClickElement(ctx, el.XPath); err != nil {
			return failedResult(fmt.Sprintf("click on index %d failed: %v", a.ElementIndex, err)), ctxErr(ctx)
		}
		return memoResult(fmt.Sprintf("Clicked element [%d] <%s>", a.ElementIndex, el.TagName)), nil

	case *InputText:
		if err := d.driver.TypeText(ctx, el.XPath, a.Text); err != nil {
			return failedResult(fmt.Sprintf("input on index %d failed: %v", a.ElementIndex, err)), ctxErr(ctx)
		}
		return memoResult(fmt.Sprintf("Typed %q into element [%d]", a.Text, a.ElementIndex)), nil

	case *GoToURL:
		if err := d.driver.Navigate(ctx, a.URL); err != nil {
			return failedResult(fmt.Sprintf("navigation to %s failed: %v", a.URL, err)), ctxErr(ctx)
		}
		return memoResult(fmt.Sprintf("Navigated to %s", a.URL)), nil

	case *GoBack:
		if err := d.driver.GoBack(ctx); err != nil {
			return failedResult(fmt.Sprintf("go back failed: %v", err)), ctxErr(ctx)
		}
		return memoResult("Navigated back"), nil

	case *Scroll:
		amount := a.Amount
		if amount == 0 {
			amount = 720
		}
		if !a.Down {
			amount = -amount
		}
		if err := d.driver.ScrollBy(ctx, amount); err != nil {
			return failedResult(fmt.Sprintf("scroll failed: %v", err)), ctxErr(ctx)
		}
		return memoResult(fmt.Sprintf("Scrolled by %d pixels", amount)), nil

	case *SendKeys:
		if err := d.driver.SendKeys(ctx, a.Keys); err != nil {
			return failedResult(fmt.Sprintf("send keys %q failed: %v", a.Keys, err)), ctxErr(ctx)
		}
		return memoResult(fmt.Sprintf("Sent keys %q", a.Keys)), nil

	case *SwitchTab:
		if err := d.driver.SwitchTab(ctx, a.TabID); err != nil {
			return failedResult(fmt.Sprintf("switch to tab %d failed: %v", a.TabID, err)), ctxErr(ctx)
		}
		return memoResult(fmt.Sprintf("Switched to tab %d", a.TabID)), nil

	case *OpenTab:
		if err := d.driver.OpenTab(ctx, a.URL); err != nil {
			return failedResult(fmt.Sprintf("open tab %s failed: %v", a.URL, err)), ctxErr(ctx)
		}
		return memoResult(fmt.Sprintf("Opened new tab at %s", a.URL)), nil

	case *ExtractContent:
		text, err := d.driver.ExtractText(ctx)
		if err != nil {
			return failedResult(fmt.Sprintf("content extraction failed: %v", err)), ctxErr(ctx)
		}
		return schemas.ActionResult{
			ExtractedContent: text,
			IncludeInMemory:  true,
		}, nil

	case *Wait:
		seconds := a.Seconds
		if seconds <= 0 {
			seconds = 1
		}
		select {
		case <-ctx.Done():
			return schemas.ActionResult{}, ctx.Err()
		case <-time.After(time.Duration(seconds) * time.Second):
		}
		return memoResult(fmt.Sprintf("Waited %d seconds", seconds)), nil

	case *Done:
		return schemas.ActionResult{
			IsDone:           true,
			Success:          a.Success,
			ExtractedContent: a.Text,
			IncludeInMemory:  true,
		}, nil

	default:
		return failedResult(fmt.Sprintf("unhandled action kind %q", action.Kind())), nil
	}
}

// ctxErr surfaces cancellation as an error while leaving ordinary action
// failures inside the result.
func ctxErr(ctx context.Context) error {
	return ctx.Err()
}

func failedResult(msg string) schemas.ActionResult {
	return schemas.ActionResult{Error: msg, IncludeInMemory: true}
}

func memoResult(msg string) schemas.ActionResult {
	return schemas.ActionResult{ExtractedContent: msg, IncludeInMemory: true}
}
