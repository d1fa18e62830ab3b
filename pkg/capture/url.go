package capture

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sigmapips/chart-capture/pkg/model"
)

// BuildChartURL constructs the deterministic chart page URL for a request.
// Symbols without an exchange qualifier get the configured default prefix
// (e.g. "FX" turns "EURUSD" into "FX:EURUSD").
func BuildChartURL(baseURL, defaultExchange string, req *model.ChartRequest) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid chart base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid chart base URL '%s': scheme and host are required", baseURL)
	}

	interval, err := model.IntervalCode(req.Timeframe)
	if err != nil {
		return "", err
	}

	symbol := req.Symbol
	if !strings.Contains(symbol, ":") && defaultExchange != "" {
		symbol = defaultExchange + ":" + symbol
	}

	theme := req.Theme
	if theme == "" {
		theme = model.ThemeDark
	}

	// Preserve any subpath from the base URL.
	basePath := strings.TrimSuffix(u.Path, "/")
	u.Path = basePath + "/chart/"

	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("theme", theme)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
