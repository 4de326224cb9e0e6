// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/linkcard/linkcard/internal/card"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig           `mapstructure:"server"`
	Auth       AuthConfig             `mapstructure:"auth"`
	Logging    LoggingConfig          `mapstructure:"logging"`
	Proxy      ProxyConfig            `mapstructure:"proxy"`
	Favicon    FaviconConfig          `mapstructure:"favicon"`
	Metadata   MetadataConfig         `mapstructure:"metadata"`
	Screenshot ScreenshotConfig       `mapstructure:"screenshot"`
	QR         QRConfig               `mapstructure:"qr"`
	Render     RenderConfig           `mapstructure:"render"`
	Export     ExportConfig           `mapstructure:"export"`
	Viewports  []card.ViewportProfile `mapstructure:"viewports"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// BaseURL is the address this process reaches itself on; the exporter
	// points its browser at it. Defaults to localhost on the server port.
	BaseURL string `mapstructure:"base_url"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProxyConfig points at the relay used for cross-origin asset fetches.
type ProxyConfig struct {
	Base string `mapstructure:"base"`
}

// FaviconService is one icon provider endpoint.
type FaviconService struct {
	Name        string `mapstructure:"name"`
	URLTemplate string `mapstructure:"url_template"`
}

// FaviconConfig governs the icon acquisition chain.
type FaviconConfig struct {
	Services       []FaviconService `mapstructure:"services"`
	MinIconBytes   int              `mapstructure:"min_icon_bytes"`
	MaxIconBytes   int              `mapstructure:"max_icon_bytes"`
	TimeoutSeconds int              `mapstructure:"timeout_seconds"`
	HostQPS        float64          `mapstructure:"host_qps"`
}

// AIConfig points at the metadata summarizer endpoint.
type AIConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ScrapeConfig governs the page-scrape metadata strategy.
type ScrapeConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// MetadataConfig combines the metadata strategies.
type MetadataConfig struct {
	AI     AIConfig     `mapstructure:"ai"`
	Scrape ScrapeConfig `mapstructure:"scrape"`
}

// ScreenshotConfig points at the capture services.
type ScreenshotConfig struct {
	PrimaryBase   string  `mapstructure:"primary_base"`
	PrimaryKey    string  `mapstructure:"primary_key"`
	BackupBase    string  `mapstructure:"backup_base"`
	DeviceScale   float64 `mapstructure:"device_scale"`
	SettleDelayMS int     `mapstructure:"settle_delay_ms"`
}

// QRConfig sizes the generated code.
type QRConfig struct {
	Size int `mapstructure:"size"`
}

// RenderConfig governs the card view surface.
type RenderConfig struct {
	ProbeTimeoutSeconds int `mapstructure:"probe_timeout_seconds"`
}

// ExportConfig configures the headless capture subsystem.
type ExportConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	SettleDelayMS int     `mapstructure:"settle_delay_ms"`
	DownloadScale float64 `mapstructure:"download_scale"`
	PreviewScale  float64 `mapstructure:"preview_scale"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKCARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("proxy.base", "https://api.allorigins.win/raw")
	v.SetDefault("favicon.services", []map[string]any{
		{
			"name":         "gstatic-social",
			"url_template": "https://t3.gstatic.com/faviconV2?client=SOCIAL&type=FAVICON&fallback_opts=TYPE,SIZE,URL&url={url}&size=128",
		},
		{
			"name":         "google-s2",
			"url_template": "https://www.google.com/s2/favicons?domain={domain}&sz=128",
		},
		{
			"name":         "duckduckgo",
			"url_template": "https://icons.duckduckgo.com/ip3/{domain}.ico",
		},
	})
	v.SetDefault("favicon.min_icon_bytes", 120)
	v.SetDefault("favicon.max_icon_bytes", 1<<20)
	v.SetDefault("favicon.timeout_seconds", 10)
	v.SetDefault("favicon.host_qps", 2.0)
	v.SetDefault("metadata.ai.timeout_seconds", 15)
	v.SetDefault("metadata.scrape.timeout_seconds", 12)
	v.SetDefault("metadata.scrape.user_agent", "linkcard/1.0 (+https://github.com/linkcard/linkcard)")
	v.SetDefault("screenshot.primary_base", "https://api.screenshotone.com/take")
	v.SetDefault("screenshot.backup_base", "https://image.thum.io/get")
	v.SetDefault("screenshot.device_scale", 2.0)
	v.SetDefault("screenshot.settle_delay_ms", 1500)
	v.SetDefault("qr.size", 256)
	v.SetDefault("render.probe_timeout_seconds", 8)
	v.SetDefault("export.enabled", true)
	v.SetDefault("export.max_parallel", 1)
	v.SetDefault("export.nav_timeout_seconds", 30)
	v.SetDefault("export.settle_delay_ms", 500)
	v.SetDefault("export.download_scale", 2.0)
	v.SetDefault("export.preview_scale", 0.75)
	v.SetDefault("viewports", []map[string]any{
		{"id": "desktop", "label": "Desktop", "width": 1280, "height": 800},
		{"id": "tablet", "label": "Tablet", "width": 768, "height": 1024},
		{"id": "phone", "label": "Phone", "width": 375, "height": 812},
	})
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Proxy.Base == "" {
		return fmt.Errorf("proxy.base must be set")
	}
	if len(c.Favicon.Services) == 0 {
		return fmt.Errorf("favicon.services must list at least one provider")
	}
	for i, svc := range c.Favicon.Services {
		if svc.Name == "" || svc.URLTemplate == "" {
			return fmt.Errorf("favicon.services[%d] must set name and url_template", i)
		}
	}
	if c.Screenshot.PrimaryBase == "" {
		return fmt.Errorf("screenshot.primary_base must be set")
	}
	if len(c.Viewports) == 0 {
		return fmt.Errorf("viewports must list at least one profile")
	}
	for i, vp := range c.Viewports {
		if vp.ID == "" || vp.Width <= 0 || vp.Height <= 0 {
			return fmt.Errorf("viewports[%d] must set id and positive dimensions", i)
		}
	}
	if c.Export.Enabled && c.Export.MaxParallel <= 0 {
		return fmt.Errorf("export.max_parallel must be > 0 when export is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FaviconTimeout converts the favicon timeout knob into a duration.
func (c Config) FaviconTimeout() time.Duration {
	return time.Duration(c.Favicon.TimeoutSeconds) * time.Second
}

// AITimeout converts the summarizer timeout knob into a duration.
func (c Config) AITimeout() time.Duration {
	return time.Duration(c.Metadata.AI.TimeoutSeconds) * time.Second
}

// ScrapeTimeout converts the scrape timeout knob into a duration.
func (c Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Metadata.Scrape.TimeoutSeconds) * time.Second
}

// ProbeTimeout converts the render probe knob into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Render.ProbeTimeoutSeconds) * time.Second
}

// ExportNavTimeout converts the export navigation knob into a duration.
func (c Config) ExportNavTimeout() time.Duration {
	return time.Duration(c.Export.NavTimeoutSec) * time.Second
}
