package capture

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/sigmapips/chart-capture/pkg/model"
)

// hideChartUIScript hides the chart site's toolbars and header so the
// screenshot contains only the chart itself.
const hideChartUIScript = `() => {
	const elementsToHide = [
		'.header-chart-panel',
		'.left-toolbar',
		'.right-toolbar',
		'.bottom-toolbar',
		'.layout__area--left',
		'.layout__area--right',
		'header',
		'.drawingToolbar',
		'.chart-controls-bar'
	];
	elementsToHide.forEach(selector => {
		document.querySelectorAll(selector).forEach(el => {
			if (el) el.style.display = 'none';
		});
	});
}`

// ChromiumDriver opens chart pages using a headless Chromium controlled via rod.
// The browser process is launched lazily and shared by all sessions; each
// session owns its own page.
type ChromiumDriver struct {
	cfg        model.CaptureConfig
	mu         sync.Mutex
	browser    *rod.Browser
	instanceID string // Unique ID for this driver instance
	profileDir string // Unique profile directory for this instance
}

// generateInstanceID creates a unique identifier for a driver instance.
func generateInstanceID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// NewChromiumDriver creates a new Chromium driver instance.
func NewChromiumDriver(cfg model.CaptureConfig) *ChromiumDriver {
	cfg.ApplyDefaults()

	instanceID := generateInstanceID()
	profileDir := fmt.Sprintf("/tmp/.chromium-profile-%s", instanceID)

	return &ChromiumDriver{
		cfg:        cfg,
		browser:    nil, // Lazy initialization
		instanceID: instanceID,
		profileDir: profileDir,
	}
}

// findChromeBinary tries to locate a Chrome binary in common locations.
func (d *ChromiumDriver) findChromeBinary() string {
	candidatePaths := []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",

		// macOS
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	}

	for _, path := range candidatePaths {
		if info, err := os.Stat(path); err == nil && info.Mode()&0111 != 0 {
			return path
		}
	}
	return ""
}

// getBrowser initializes or returns the shared browser instance.
func (d *ChromiumDriver) getBrowser() (*rod.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		return d.browser, nil
	}

	// Chrome's crashpad handler needs writable config/cache directories.
	os.Setenv("XDG_CONFIG_HOME", "/tmp/.chromium-config")
	os.Setenv("XDG_CACHE_HOME", "/tmp/.chromium-cache")
	os.MkdirAll("/tmp/.chromium-config", 0755)
	os.MkdirAll("/tmp/.chromium-cache", 0755)
	os.MkdirAll("/tmp/chrome-crashes", 0755)
	os.MkdirAll(d.profileDir, 0755)

	l := launcher.New()

	chromePath := d.cfg.ChromiumPath
	if chromePath == "" {
		chromePath = d.findChromeBinary()
		if chromePath != "" {
			log.Printf("[CAPTURE] Auto-detected Chrome binary at: %s", chromePath)
		}
	}
	if chromePath != "" {
		l = l.Bin(chromePath)
	} else {
		log.Printf("[CAPTURE] WARNING: No Chrome binary configured or found, attempting auto-download")
	}

	// Essential Chrome flags for server environments.
	l = l.Set("no-sandbox")               // Required for running as root or in Docker
	l = l.Set("disable-setuid-sandbox")   // Required for running as root or in Docker
	l = l.Set("disable-dev-shm-usage")    // Use /tmp instead of /dev/shm (prevents crashes in Docker)
	l = l.Set("disable-gpu")              // Not available in headless
	l = l.Set("no-first-run")             // Skip first-run wizards
	l = l.Set("no-default-browser-check") // Don't check if Chrome is default browser
	l = l.Set("disable-extensions")
	l = l.Set("disable-notifications")
	l = l.Set("hide-scrollbars") // Keep scrollbars out of screenshots

	// Crashpad handler configuration.
	l = l.Set("crash-dumps-dir", "/tmp/chrome-crashes")
	l = l.Set("disable-breakpad")

	// User data directory must be writable and unique per instance to avoid
	// SingletonLock conflicts when multiple service instances run on one host.
	l = l.Set("user-data-dir", d.profileDir)

	l = l.Headless(d.cfg.Headless)
	if d.cfg.Headless {
		l = l.Set("headless", "new")
	}

	if d.cfg.SkipTLSVerify {
		l = l.Set("ignore-certificate-errors")
		log.Printf("[CAPTURE] WARNING: TLS certificate verification disabled for renderer")
	}

	launchURL, err := l.Launch()
	if err != nil {
		if chromePath == "" {
			return nil, fmt.Errorf("failed to launch browser: %w (no Chrome/Chromium binary found; install chromium or set renderer.chromium_path)", err)
		}
		return nil, fmt.Errorf("failed to launch browser at '%s': %w", chromePath, err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	d.browser = browser
	log.Printf("[CAPTURE] Chromium browser initialized (instance: %s, profile: %s)", d.instanceID, d.profileDir)
	return browser, nil
}

// Open creates a page for the chart URL and starts navigation.
func (d *ChromiumDriver) Open(ctx context.Context, chartURL string) (Session, error) {
	browser, err := d.getBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.ViewportWidth,
		Height:            d.cfg.ViewportHeight,
		DeviceScaleFactor: d.cfg.DeviceScaleFactor,
		Mobile:            false,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	// Timeout wrapper bounds every subsequent page operation.
	page = page.Context(ctx).Timeout(time.Duration(d.cfg.TimeoutMS) * time.Millisecond)

	if err := page.Navigate(chartURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to navigate to chart: %w", err)
	}

	return &chromiumSession{page: page, cfg: d.cfg}, nil
}

// Close closes the shared browser instance.
func (d *ChromiumDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser == nil {
		return nil
	}

	log.Printf("[CAPTURE] Closing Chromium browser (instance: %s)", d.instanceID)
	err := d.browser.Close()
	d.browser = nil

	// Clean up the profile directory to free disk space.
	if d.profileDir != "" {
		os.RemoveAll(d.profileDir)
	}
	return err
}

// Name returns the driver name.
func (d *ChromiumDriver) Name() string {
	return "chromium"
}

// chromiumSession is a single rod page owned by one capture call.
type chromiumSession struct {
	page *rod.Page
	cfg  model.CaptureConfig
}

// WaitRender waits for the chart container to appear, hides the site UI and
// lets the page settle for the configured delay.
func (s *chromiumSession) WaitRender(ctx context.Context) error {
	if err := s.page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}

	// Wait for the chart container (selector varies between site versions).
	_, err := s.page.Timeout(20 * time.Second).Race().
		Element(".chart-container").
		Element("div[class*='chart-container']").
		Element(".chart-markup-table").
		Do()
	if err != nil {
		return fmt.Errorf("chart container not found: %w", err)
	}

	if _, err := s.page.Eval(hideChartUIScript); err != nil {
		log.Printf("[CAPTURE] WARNING: failed to hide chart UI elements: %v", err)
	}

	// Let network settle, then apply the configured render delay.
	delay := time.Duration(s.cfg.DelayMS) * time.Millisecond
	s.page.WaitIdle(delay)
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

// Screenshot captures the visible viewport as PNG.
func (s *chromiumSession) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close releases the page.
func (s *chromiumSession) Close() error {
	return s.page.Close()
}
