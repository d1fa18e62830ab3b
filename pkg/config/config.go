// Package config loads service configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorhill/cronexpr"
	"gopkg.in/yaml.v3"

	"github.com/sigmapips/chart-capture/pkg/model"
	"github.com/sigmapips/chart-capture/pkg/sched"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Chart struct {
		BaseURL         string `yaml:"base_url"`
		DefaultExchange string `yaml:"default_exchange"`
	} `yaml:"chart"`
	Renderer model.CaptureConfig `yaml:"renderer"`
	Cache    struct {
		RedisAddr     string   `yaml:"redis_addr"`
		RedisPassword string   `yaml:"redis_password"`
		RedisDB       int      `yaml:"redis_db"`
		TTL           Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Warmup struct {
		Cron          string       `yaml:"cron"`
		MaxConcurrent int          `yaml:"max_concurrent"`
		Pairs         []sched.Pair `yaml:"pairs"`
	} `yaml:"warmup"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"telegram"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error; the service can run
// entirely from environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CHART_BASE_URL"); v != "" {
		cfg.Chart.BaseURL = v
	}
	if v := os.Getenv("CHART_DEFAULT_EXCHANGE"); v != "" {
		cfg.Chart.DefaultExchange = v
	}
	if v := os.Getenv("RENDERER_BACKEND"); v != "" {
		cfg.Renderer.Backend = v
	}
	if v := os.Getenv("CHROMIUM_PATH"); v != "" {
		cfg.Renderer.ChromiumPath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = Duration(d)
		}
	}
	if v := os.Getenv("WARMUP_CRON"); v != "" {
		cfg.Warmup.Cron = v
	}
	if v := os.Getenv("WARMUP_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Warmup.MaxConcurrent = n
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Chart.BaseURL == "" {
		cfg.Chart.BaseURL = "https://www.tradingview.com"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(5 * time.Minute)
	}
	if cfg.Warmup.Cron == "" {
		cfg.Warmup.Cron = "*/5 * * * *"
	}
	if cfg.Warmup.MaxConcurrent == 0 {
		cfg.Warmup.MaxConcurrent = 2
	}
	// The renderer always runs headless in server deployments; RENDERER_HEADFUL
	// exists for local debugging only.
	cfg.Renderer.Headless = !envBool("RENDERER_HEADFUL", false)
	cfg.Renderer.ApplyDefaults()

	return cfg, nil
}

func envBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Chart.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("chart.base_url must be an absolute http(s) URL, got %q", c.Chart.BaseURL)
	}

	switch c.Renderer.Backend {
	case "chromium", "playwright":
	default:
		return fmt.Errorf("renderer.backend must be 'chromium' or 'playwright', got %q", c.Renderer.Backend)
	}

	if len(c.Warmup.Pairs) > 0 {
		if _, err := cronexpr.Parse(c.Warmup.Cron); err != nil {
			return fmt.Errorf("warmup.cron %q is not a valid cron expression: %w", c.Warmup.Cron, err)
		}
		for _, p := range c.Warmup.Pairs {
			req := model.ChartRequest{Symbol: p.Symbol, Timeframe: p.Timeframe, Theme: p.Theme}
			if err := req.Validate(); err != nil {
				return fmt.Errorf("warmup pair %s/%s: %w", p.Symbol, p.Timeframe, err)
			}
		}
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("warmup.pairs configured but cache.redis_addr is empty")
		}
	}

	if time.Duration(c.Cache.TTL) < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	return nil
}
