package capture

import (
	"net/url"
	"strings"
	"testing"

	"github.com/sigmapips/chart-capture/pkg/model"
)

func TestBuildChartURL(t *testing.T) {
	tests := []struct {
		name            string
		baseURL         string
		defaultExchange string
		request         model.ChartRequest
		expectSymbol    string
		expectInterval  string
		expectTheme     string
		expectPath      string
		expectError     bool
	}{
		{
			name:            "plain symbol gets default exchange",
			baseURL:         "https://chart.example.com",
			defaultExchange: "FX",
			request:         model.ChartRequest{Symbol: "EURUSD", Timeframe: "1h"},
			expectSymbol:    "FX:EURUSD",
			expectInterval:  "60",
			expectTheme:     "dark",
			expectPath:      "/chart/",
		},
		{
			name:            "qualified symbol is not double-prefixed",
			baseURL:         "https://chart.example.com",
			defaultExchange: "FX",
			request:         model.ChartRequest{Symbol: "BINANCE:BTCUSD", Timeframe: "4h"},
			expectSymbol:    "BINANCE:BTCUSD",
			expectInterval:  "240",
			expectTheme:     "dark",
			expectPath:      "/chart/",
		},
		{
			name:           "no default exchange leaves symbol untouched",
			baseURL:        "https://chart.example.com",
			request:        model.ChartRequest{Symbol: "BTCUSD", Timeframe: "1d"},
			expectSymbol:   "BTCUSD",
			expectInterval: "D",
			expectTheme:    "dark",
			expectPath:     "/chart/",
		},
		{
			name:           "explicit theme preserved",
			baseURL:        "https://chart.example.com",
			request:        model.ChartRequest{Symbol: "BTCUSD", Timeframe: "1m", Theme: "light"},
			expectSymbol:   "BTCUSD",
			expectInterval: "1",
			expectTheme:    "light",
			expectPath:     "/chart/",
		},
		{
			name:           "base URL subpath preserved",
			baseURL:        "https://example.com/tv",
			request:        model.ChartRequest{Symbol: "BTCUSD", Timeframe: "1w"},
			expectSymbol:   "BTCUSD",
			expectInterval: "W",
			expectTheme:    "dark",
			expectPath:     "/tv/chart/",
		},
		{
			name:        "missing scheme rejected",
			baseURL:     "chart.example.com",
			request:     model.ChartRequest{Symbol: "BTCUSD", Timeframe: "4h"},
			expectError: true,
		},
		{
			name:        "unsupported timeframe rejected",
			baseURL:     "https://chart.example.com",
			request:     model.ChartRequest{Symbol: "BTCUSD", Timeframe: "3h"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildChartURL(tt.baseURL, tt.defaultExchange, &tt.request)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got URL %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			u, err := url.Parse(got)
			if err != nil {
				t.Fatalf("built URL does not parse: %v", err)
			}
			if u.Path != tt.expectPath {
				t.Errorf("path = %q, expected %q", u.Path, tt.expectPath)
			}
			q := u.Query()
			if q.Get("symbol") != tt.expectSymbol {
				t.Errorf("symbol = %q, expected %q", q.Get("symbol"), tt.expectSymbol)
			}
			if q.Get("interval") != tt.expectInterval {
				t.Errorf("interval = %q, expected %q", q.Get("interval"), tt.expectInterval)
			}
			if q.Get("theme") != tt.expectTheme {
				t.Errorf("theme = %q, expected %q", q.Get("theme"), tt.expectTheme)
			}
		})
	}
}

func TestBuildChartURL_EncodesExchangeQualifier(t *testing.T) {
	req := model.ChartRequest{Symbol: "EURUSD", Timeframe: "1h"}
	got, err := BuildChartURL("https://chart.example.com", "FX", &req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The colon in the qualified symbol must be percent-encoded in the raw URL.
	if !strings.Contains(got, "symbol=FX%3AEURUSD") {
		t.Errorf("expected encoded symbol FX%%3AEURUSD in %q", got)
	}
}
