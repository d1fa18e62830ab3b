package model

import (
	"fmt"
	"strings"
)

// timeframeIntervals maps the supported timeframes to the charting site's
// interval codes. Minute-based timeframes use the bare minute count, hour-based
// the minute equivalent, and day/week the site's letter codes.
var timeframeIntervals = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"1d":  "D",
	"1w":  "W",
}

// Themes accepted by the chart site.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// ValidateTimeframe checks that a timeframe belongs to the fixed allowed set.
func ValidateTimeframe(timeframe string) error {
	if timeframe == "" {
		return fmt.Errorf("timeframe is required")
	}
	if _, ok := timeframeIntervals[timeframe]; !ok {
		return fmt.Errorf("unsupported timeframe '%s' (supported: %s)", timeframe, strings.Join(SupportedTimeframes(), ", "))
	}
	return nil
}

// IntervalCode returns the chart site's interval code for a supported timeframe.
func IntervalCode(timeframe string) (string, error) {
	code, ok := timeframeIntervals[timeframe]
	if !ok {
		return "", fmt.Errorf("unsupported timeframe '%s'", timeframe)
	}
	return code, nil
}

// SupportedTimeframes returns the allowed timeframes in display order.
func SupportedTimeframes() []string {
	return []string{"1m", "5m", "15m", "30m", "1h", "2h", "4h", "1d", "1w"}
}

// ValidateSymbol checks that a symbol looks like an instrument identifier,
// optionally exchange-qualified (e.g. "EURUSD" or "BINANCE:BTCUSD").
func ValidateSymbol(symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	parts := strings.Split(symbol, ":")
	if len(parts) > 2 {
		return fmt.Errorf("invalid symbol '%s': at most one exchange qualifier allowed", symbol)
	}
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("invalid symbol '%s': empty segment", symbol)
		}
		if !isSymbolSegment(part) {
			return fmt.Errorf("invalid symbol '%s': only A-Z, 0-9, '.', '_' and '-' are allowed", symbol)
		}
	}
	return nil
}

// isSymbolSegment reports whether a symbol segment contains only characters
// the chart site accepts in instrument identifiers.
func isSymbolSegment(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// ValidateTheme checks the requested chart theme. An empty theme is allowed
// and resolved to the configured default later.
func ValidateTheme(theme string) error {
	switch theme {
	case "", ThemeDark, ThemeLight:
		return nil
	default:
		return fmt.Errorf("unsupported theme '%s' (supported: dark, light)", theme)
	}
}

// Validate checks all fields of a ChartRequest. Symbols are normalized to
// upper case before validation so clients may send lower-case identifiers.
func (r *ChartRequest) Validate() error {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if err := ValidateSymbol(r.Symbol); err != nil {
		return err
	}
	if err := ValidateTimeframe(r.Timeframe); err != nil {
		return err
	}
	return ValidateTheme(r.Theme)
}
