package capture

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/sigmapips/chart-capture/pkg/model"
)

// pngMagic is the fixed 8-byte PNG file signature.
var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Capturer drives a browser session through the full capture sequence:
// build URL, open page, wait for the chart to render, screenshot, close.
type Capturer struct {
	driver          Driver
	baseURL         string
	defaultExchange string
}

// NewCapturer creates a capture orchestrator on top of a browser driver.
func NewCapturer(driver Driver, baseURL, defaultExchange string) *Capturer {
	return &Capturer{
		driver:          driver,
		baseURL:         baseURL,
		defaultExchange: defaultExchange,
	}
}

// CaptureChart renders the chart for a request and returns PNG bytes.
// The browser session is released on every exit path, including failure.
func (c *Capturer) CaptureChart(ctx context.Context, req *model.ChartRequest) ([]byte, error) {
	chartURL, err := BuildChartURL(c.baseURL, c.defaultExchange, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart URL: %w", err)
	}
	log.Printf("[CAPTURE] Capturing %s %s via %s", req.Symbol, req.Timeframe, c.driver.Name())

	session, err := c.driver.Open(ctx, chartURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Printf("[CAPTURE] WARNING: failed to close session for %s: %v", req.Symbol, cerr)
		}
	}()

	if err := session.WaitRender(ctx); err != nil {
		return nil, fmt.Errorf("chart did not render: %w", err)
	}

	png, err := session.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if len(png) < len(pngMagic) || !bytes.Equal(png[:len(pngMagic)], pngMagic) {
		return nil, fmt.Errorf("output is not a PNG (got %d bytes)", len(png))
	}

	log.Printf("[CAPTURE] Captured %s %s (%d bytes)", req.Symbol, req.Timeframe, len(png))
	return png, nil
}

// Close releases the underlying browser driver.
func (c *Capturer) Close() error {
	return c.driver.Close()
}

// Name returns the active driver name.
func (c *Capturer) Name() string {
	return c.driver.Name()
}
