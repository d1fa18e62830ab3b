package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sigmapips/chart-capture/pkg/model"
)

// validPNG is the smallest payload that passes the PNG signature check.
var validPNG = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, []byte("fake image data")...)

// fakeSession implements Session and records whether it was released.
type fakeSession struct {
	driver    *fakeDriver
	renderErr error
	shotErr   error
	png       []byte

	mu     sync.Mutex
	closed bool
}

func (s *fakeSession) WaitRender(ctx context.Context) error { return s.renderErr }

func (s *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	if s.shotErr != nil {
		return nil, s.shotErr
	}
	return s.png, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.driver.sessionClosed()
	return nil
}

// fakeDriver implements Driver and tracks concurrently open sessions.
type fakeDriver struct {
	openErr   error
	renderErr error
	shotErr   error
	png       []byte

	mu       sync.Mutex
	lastURL  string
	sessions []*fakeSession
	open     int
	maxOpen  int
}

func (d *fakeDriver) Open(ctx context.Context, url string) (Session, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastURL = url
	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	s := &fakeSession{driver: d, renderErr: d.renderErr, shotErr: d.shotErr, png: d.png}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDriver) sessionClosed() {
	d.mu.Lock()
	d.open--
	d.mu.Unlock()
}

func (d *fakeDriver) Close() error { return nil }
func (d *fakeDriver) Name() string { return "fake" }

func TestCapturerCaptureChart_Success(t *testing.T) {
	driver := &fakeDriver{png: validPNG}
	capturer := NewCapturer(driver, "https://chart.example.com", "FX")

	req := &model.ChartRequest{Symbol: "BTCUSD", Timeframe: "4h"}
	png, err := capturer.CaptureChart(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("expected non-empty PNG payload")
	}
	if !strings.Contains(driver.lastURL, "interval=240") {
		t.Errorf("expected interval=240 in opened URL, got %q", driver.lastURL)
	}
	if len(driver.sessions) != 1 || !driver.sessions[0].closed {
		t.Error("expected the session to be closed after a successful capture")
	}
}

func TestCapturerCaptureChart_Failures(t *testing.T) {
	tests := []struct {
		name          string
		driver        *fakeDriver
		request       model.ChartRequest
		errorContains string
		expectSession bool
	}{
		{
			name:          "invalid timeframe fails before opening a session",
			driver:        &fakeDriver{png: validPNG},
			request:       model.ChartRequest{Symbol: "BTCUSD", Timeframe: "9h"},
			errorContains: "unsupported timeframe",
		},
		{
			name:          "driver open failure",
			driver:        &fakeDriver{openErr: errors.New("launch failed")},
			request:       model.ChartRequest{Symbol: "BTCUSD", Timeframe: "4h"},
			errorContains: "failed to open browser session",
		},
		{
			name:          "render timeout closes session",
			driver:        &fakeDriver{renderErr: errors.New("timeout waiting for selector")},
			request:       model.ChartRequest{Symbol: "BTCUSD", Timeframe: "4h"},
			errorContains: "chart did not render",
			expectSession: true,
		},
		{
			name:          "screenshot failure closes session",
			driver:        &fakeDriver{shotErr: errors.New("target crashed")},
			request:       model.ChartRequest{Symbol: "BTCUSD", Timeframe: "4h"},
			errorContains: "failed to capture screenshot",
			expectSession: true,
		},
		{
			name:          "non-PNG output rejected and session closed",
			driver:        &fakeDriver{png: []byte("<html>error page</html>")},
			request:       model.ChartRequest{Symbol: "BTCUSD", Timeframe: "4h"},
			errorContains: "not a PNG",
			expectSession: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capturer := NewCapturer(tt.driver, "https://chart.example.com", "")

			png, err := capturer.CaptureChart(context.Background(), &tt.request)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if png != nil {
				t.Error("expected nil payload on failure")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("expected error containing %q, got %q", tt.errorContains, err.Error())
			}

			if tt.expectSession {
				if len(tt.driver.sessions) != 1 {
					t.Fatalf("expected exactly one session, got %d", len(tt.driver.sessions))
				}
				if !tt.driver.sessions[0].closed {
					t.Error("expected the session to be closed on the failure path")
				}
			} else if len(tt.driver.sessions) != 0 {
				t.Errorf("expected no session to be opened, got %d", len(tt.driver.sessions))
			}
		})
	}
}

// TestCapturerCaptureChart_NoSessionLeak verifies the one liveness property
// worth testing: no monotonic growth in open sessions across sequential calls,
// whether captures succeed or fail.
func TestCapturerCaptureChart_NoSessionLeak(t *testing.T) {
	driver := &fakeDriver{png: validPNG}
	capturer := NewCapturer(driver, "https://chart.example.com", "FX")

	for i := 0; i < 20; i++ {
		req := &model.ChartRequest{Symbol: "EURUSD", Timeframe: "1h"}
		if i%3 == 0 {
			driver.shotErr = errors.New("intermittent crash")
		} else {
			driver.shotErr = nil
		}
		_, _ = capturer.CaptureChart(context.Background(), req)
	}

	driver.mu.Lock()
	defer driver.mu.Unlock()
	if driver.open != 0 {
		t.Errorf("expected 0 open sessions after 20 sequential captures, got %d", driver.open)
	}
	for i, s := range driver.sessions {
		if !s.closed {
			t.Errorf("session %d was never closed", i)
		}
	}
}

func TestNewDriver(t *testing.T) {
	tests := []struct {
		backend     string
		expectName  string
		expectError bool
	}{
		{backend: "", expectName: "chromium"},
		{backend: "chromium", expectName: "chromium"},
		{backend: "playwright", expectName: "playwright"},
		{backend: "selenium", expectError: true},
	}

	for _, tt := range tests {
		t.Run("backend_"+tt.backend, func(t *testing.T) {
			driver, err := NewDriver(model.CaptureConfig{Backend: tt.backend})
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error for unknown backend, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if driver.Name() != tt.expectName {
				t.Errorf("driver name = %q, expected %q", driver.Name(), tt.expectName)
			}
		})
	}
}
