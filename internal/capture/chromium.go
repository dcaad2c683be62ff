package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	appLog "schedgen/internal/log"
)

// Default capture parameters for the schedule page.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 1100
	DefaultTimeoutSec = 60
)

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// URL of the schedule page, e.g. "http://127.0.0.1:8080/".
	URL string

	// Query is typed into the course input and submitted before capturing.
	Query string

	// OutputPath is where the PNG screenshot will be written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero, a sane default
	// (DefaultTimeoutSec) is used.
	Timeout time.Duration
}

// CaptureSchedulePNG launches a headless Chromium instance via chromedp,
// opens the schedule page, submits opts.Query and captures a PNG of the
// first schedule once it is shown.
//
// Rendering-complete condition:
//   - The page sets data-ready="true" on <body> when a schedule is shown
//     and no submission is outstanding.
//   - A service or transport error leaves data-ready="false" and the capture
//     times out.
func CaptureSchedulePNG(parentCtx context.Context, opts CaptureOptions) error {
	if opts.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if opts.Query == "" {
		return fmt.Errorf("capture: Query is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`#query`, chromedp.ByQuery),
		chromedp.SetValue(`#query`, opts.Query, chromedp.ByQuery),
		chromedp.Click(`#submit`, chromedp.ByQuery),
		chromedp.WaitVisible(`body[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("schedule snapshot written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}
