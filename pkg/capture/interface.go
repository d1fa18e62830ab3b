package capture

import (
	"context"
	"fmt"

	"github.com/sigmapips/chart-capture/pkg/model"
)

// Backend is the capture orchestrator exposed to the HTTP facade.
type Backend interface {
	// CaptureChart renders the chart for a validated request and returns PNG bytes.
	CaptureChart(ctx context.Context, req *model.ChartRequest) ([]byte, error)

	// Close cleans up resources used by the backend.
	Close() error

	// Name returns the name of the backend.
	Name() string
}

// Driver opens automated browser sessions against a chart URL.
type Driver interface {
	Open(ctx context.Context, url string) (Session, error)
	Close() error
	Name() string
}

// Session is a single browser page holding one loading chart. It is owned by
// exactly one capture call and must be closed on every exit path.
type Session interface {
	// WaitRender blocks until the chart is rendered (or the driver times out).
	WaitRender(ctx context.Context) error

	// Screenshot captures the visible viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	Close() error
}

// NewDriver creates a browser driver for the configured backend.
func NewDriver(cfg model.CaptureConfig) (Driver, error) {
	cfg.ApplyDefaults()
	switch cfg.Backend {
	case "chromium":
		return NewChromiumDriver(cfg), nil
	case "playwright":
		return NewPlaywrightDriver(cfg), nil
	default:
		return nil, fmt.Errorf("unknown renderer backend '%s' (supported: chromium, playwright)", cfg.Backend)
	}
}
