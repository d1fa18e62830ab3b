package model

// ChartRequest is the input for a single chart capture.
type ChartRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Theme     string `json:"theme,omitempty"`   // "dark" (default) or "light"
	ChatID    string `json:"chat_id,omitempty"` // optional Telegram delivery target
}

// Capture status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ChartResult is the outcome of a capture call. Image is base64-encoded PNG
// and null when Status is "error".
type ChartResult struct {
	Status  string  `json:"status"`
	Image   *string `json:"image"`
	Message string  `json:"message"`
}

// CaptureConfig holds renderer configuration. It is passed explicitly to the
// capture backend at construction; there is no ambient global state.
type CaptureConfig struct {
	Backend           string  `json:"backend" yaml:"backend"` // "chromium" (default) or "playwright"
	ChromiumPath      string  `json:"chromium_path" yaml:"chromium_path"`
	Headless          bool    `json:"headless" yaml:"headless"`
	TimeoutMS         int     `json:"timeout_ms" yaml:"timeout_ms"`
	DelayMS           int     `json:"delay_ms" yaml:"delay_ms"` // extra settle time after the chart container appears
	ViewportWidth     int     `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int     `json:"viewport_height" yaml:"viewport_height"`
	DeviceScaleFactor float64 `json:"device_scale_factor" yaml:"device_scale_factor"`
	SkipTLSVerify     bool    `json:"skip_tls_verify" yaml:"skip_tls_verify"`
}

// ApplyDefaults fills zero-valued fields with server-safe defaults.
func (c *CaptureConfig) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = "chromium"
	}
	if c.ViewportWidth == 0 {
		c.ViewportWidth = 1920
	}
	if c.ViewportHeight == 0 {
		c.ViewportHeight = 1080
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 30000
	}
	if c.DelayMS == 0 {
		c.DelayMS = 5000
	}
	if c.DeviceScaleFactor == 0 {
		c.DeviceScaleFactor = 1.0
	}
}

// SuccessResult builds a ChartResult carrying an encoded image.
func SuccessResult(imageB64 string) ChartResult {
	return ChartResult{
		Status:  StatusSuccess,
		Image:   &imageB64,
		Message: "Chart captured successfully",
	}
}

// ErrorResult builds a ChartResult with no image payload.
func ErrorResult(message string) ChartResult {
	return ChartResult{
		Status:  StatusError,
		Image:   nil,
		Message: message,
	}
}
