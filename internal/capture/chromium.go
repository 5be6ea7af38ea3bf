package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "festcal/internal/log"
)

// Default capture parameters, sized for one day column of the /calendar
// page.
const (
	DefaultWidth      = 800
	DefaultHeight     = 1000
	DefaultTimeoutSec = 30
	readySelector     = `[data-ready="true"]`
)

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?day=2026-07-08".
	URL string

	// OutputPath is where the PNG screenshot will be written. Missing parent
	// directories are created.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration

	// Username / Password are sent as basic auth when set.
	Username string
	Password string
}

// normalize validates opts and fills in defaults.
func (o CaptureOptions) normalize() (CaptureOptions, error) {
	if o.URL == "" {
		return o, errors.New("capture: URL is required")
	}
	if _, err := url.ParseRequestURI(o.URL); err != nil {
		return o, fmt.Errorf("capture: invalid URL: %w", err)
	}
	if o.OutputPath == "" {
		return o, errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return o, nil
}

// targetURL embeds basic auth credentials into the URL when configured.
func (o CaptureOptions) targetURL() string {
	if o.Username == "" {
		return o.URL
	}
	u, err := url.Parse(o.URL)
	if err != nil {
		return o.URL
	}
	u.User = url.UserPassword(o.Username, o.Password)
	return u.String()
}

// CaptureCalendarPNG starts a headless Chromium via chromedp, opens the
// calendar page, waits until the root element reports data-ready="true"
// and writes a full-page PNG screenshot to opts.OutputPath.
func CaptureCalendarPNG(parentCtx context.Context, opts CaptureOptions) error {
	opts, err := opts.normalize()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.targetURL()),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if dir := filepath.Dir(opts.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("capture: failed to create output dir: %w", err)
		}
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("calendar captured",
		"out", opts.OutputPath,
		"bytes", len(png),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
