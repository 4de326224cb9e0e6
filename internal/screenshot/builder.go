// Package screenshot constructs candidate screenshot source URLs. Nothing
// here fetches: failure detection and fallback happen at the render surface.
package screenshot

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/proxy"
)

// Config parameterizes the two capture services.
type Config struct {
	// PrimaryBase is the full-fidelity capture service endpoint.
	PrimaryBase string
	// PrimaryKey is an optional access key for the primary service.
	PrimaryKey string
	// BackupBase is the lower-fidelity, higher-availability service. When
	// empty, records carry no backup reference.
	BackupBase string
	// DeviceScale is the device pixel scale requested from the primary.
	DeviceScale float64
	// SettleDelayMS lets the target page settle before the primary captures.
	SettleDelayMS int
}

// Builder implements card.ScreenshotBuilder.
type Builder struct {
	cfg      Config
	resolver *proxy.Resolver
}

// New builds a Builder.
func New(cfg Config, resolver *proxy.Resolver) *Builder {
	if cfg.DeviceScale <= 0 {
		cfg.DeviceScale = 2
	}
	if cfg.SettleDelayMS <= 0 {
		cfg.SettleDelayMS = 1500
	}
	return &Builder{cfg: cfg, resolver: resolver}
}

// Build computes the proxied primary and backup source URLs for one record.
// Each resolution carries its own cache-bust token, so switching themes or
// viewports always forces a fresh capture.
func (b *Builder) Build(rawURL string, viewport card.ViewportProfile, scheme card.ColorScheme) card.ScreenshotSources {
	primary := b.primaryURL(rawURL, viewport, scheme)
	sources := card.ScreenshotSources{
		Primary: b.resolver.Resolve(primary),
	}
	if b.cfg.BackupBase != "" {
		sources.Backup = b.resolver.Resolve(b.backupURL(rawURL, viewport))
	}
	return sources
}

func (b *Builder) primaryURL(rawURL string, viewport card.ViewportProfile, scheme card.ColorScheme) string {
	params := url.Values{}
	params.Set("url", rawURL)
	params.Set("viewport_width", fmt.Sprintf("%d", viewport.Width))
	params.Set("viewport_height", fmt.Sprintf("%d", viewport.Height))
	params.Set("device_scale_factor", strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", b.cfg.DeviceScale), "0"), "."))
	params.Set("dark_mode", fmt.Sprintf("%t", scheme == card.SchemeDark))
	params.Set("delay", fmt.Sprintf("%d", b.cfg.SettleDelayMS))
	params.Set("format", "png")
	if b.cfg.PrimaryKey != "" {
		params.Set("access_key", b.cfg.PrimaryKey)
	}
	return b.cfg.PrimaryBase + "?" + params.Encode()
}

func (b *Builder) backupURL(rawURL string, viewport card.ViewportProfile) string {
	base := strings.TrimRight(b.cfg.BackupBase, "/")
	return fmt.Sprintf("%s/width/%d/crop/%d/%s", base, viewport.Width, viewport.Height, rawURL)
}
