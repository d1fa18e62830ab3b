package capture

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/sigmapips/chart-capture/pkg/model"
)

// PlaywrightDriver opens chart pages using Chromium controlled via Playwright.
// Each session gets its own browser context so viewport and TLS settings are
// isolated per capture.
type PlaywrightDriver struct {
	cfg        model.CaptureConfig
	mu         sync.Mutex
	pw         *playwright.Playwright
	browser    playwright.Browser
	instanceID string
}

// NewPlaywrightDriver creates a new Playwright driver instance.
func NewPlaywrightDriver(cfg model.CaptureConfig) *PlaywrightDriver {
	cfg.ApplyDefaults()

	return &PlaywrightDriver{
		cfg:        cfg,
		pw:         nil, // Lazy initialization
		browser:    nil,
		instanceID: generateInstanceID(),
	}
}

// getBrowser initializes or returns the shared browser instance.
func (d *PlaywrightDriver) getBrowser() (playwright.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		return d.browser, nil
	}

	// Playwright needs a writable cache directory; home may be read-only in
	// container deployments.
	if os.Getenv("PLAYWRIGHT_BROWSERS_PATH") == "" {
		os.Setenv("PLAYWRIGHT_BROWSERS_PATH", "/tmp/.playwright-cache")
	}
	if err := os.MkdirAll(os.Getenv("PLAYWRIGHT_BROWSERS_PATH"), 0755); err != nil {
		log.Printf("[CAPTURE] WARNING: failed to create Playwright cache directory: %v", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start Playwright: %w (Playwright needs its Node.js driver; consider the chromium backend instead)", err)
	}
	d.pw = pw

	// Prefer a configured or system Chromium over Playwright's bundled build.
	chromiumPath := d.cfg.ChromiumPath
	if chromiumPath == "" {
		for _, path := range []string{
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
		} {
			if _, err := os.Stat(path); err == nil {
				chromiumPath = path
				break
			}
		}
	}

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.cfg.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--no-first-run",
			"--no-default-browser-check",
			"--disable-breakpad",
			"--hide-scrollbars",
		},
	}
	if chromiumPath != "" {
		launchOptions.ExecutablePath = playwright.String(chromiumPath)
		log.Printf("[CAPTURE] Using Chromium binary: %s", chromiumPath)
	}
	if d.cfg.SkipTLSVerify {
		launchOptions.Args = append(launchOptions.Args, "--ignore-certificate-errors")
		log.Printf("[CAPTURE] WARNING: TLS certificate verification disabled for renderer")
	}

	browser, err := d.pw.Chromium.Launch(launchOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chromium: %w", err)
	}

	d.browser = browser
	log.Printf("[CAPTURE] Playwright Chromium browser initialized (instance: %s)", d.instanceID)
	return browser, nil
}

// Open creates a browser context and page for the chart URL.
func (d *PlaywrightDriver) Open(ctx context.Context, chartURL string) (Session, error) {
	browser, err := d.getBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  d.cfg.ViewportWidth,
			Height: d.cfg.ViewportHeight,
		},
		DeviceScaleFactor: playwright.Float(d.cfg.DeviceScaleFactor),
		IgnoreHttpsErrors: playwright.Bool(d.cfg.SkipTLSVerify),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		browserContext.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(d.cfg.TimeoutMS))

	if _, err := page.Goto(chartURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		page.Close()
		browserContext.Close()
		return nil, fmt.Errorf("failed to navigate to chart: %w", err)
	}

	return &playwrightSession{browserContext: browserContext, page: page, cfg: d.cfg}, nil
}

// Close closes the shared browser and stops the Playwright driver.
func (d *PlaywrightDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		log.Printf("[CAPTURE] Closing Playwright browser (instance: %s)", d.instanceID)
		if err := d.browser.Close(); err != nil {
			return err
		}
		d.browser = nil
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			return err
		}
		d.pw = nil
	}
	return nil
}

// Name returns the driver name.
func (d *PlaywrightDriver) Name() string {
	return "playwright"
}

// playwrightSession is one browser context + page owned by one capture call.
type playwrightSession struct {
	browserContext playwright.BrowserContext
	page           playwright.Page
	cfg            model.CaptureConfig
}

// WaitRender waits for the chart container, hides the site UI and lets the
// page settle for the configured delay.
func (s *playwrightSession) WaitRender(ctx context.Context) error {
	found := false
	for _, selector := range []string{
		".chart-container",
		"div[class*='chart-container']",
		".chart-markup-table",
	} {
		if _, err := s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(20000),
			State:   playwright.WaitForSelectorStateVisible,
		}); err == nil {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("chart container not found")
	}

	if _, err := s.page.Evaluate(hideChartUIScript); err != nil {
		log.Printf("[CAPTURE] WARNING: failed to hide chart UI elements: %v", err)
	}

	_ = s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})

	if delay := time.Duration(s.cfg.DelayMS) * time.Millisecond; delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

// Screenshot captures the visible viewport as PNG.
func (s *playwrightSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
}

// Close releases the page and its browser context.
func (s *playwrightSession) Close() error {
	err := s.page.Close()
	if cerr := s.browserContext.Close(); err == nil {
		err = cerr
	}
	return err
}
