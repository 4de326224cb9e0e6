// Package card defines core types shared across the generation pipeline.
package card

import (
	"encoding/base64"
	"time"
)

// Status represents the process state of one generation attempt.
type Status string

// Status values reported while a card is being generated.
const (
	StatusIdle             Status = "idle"
	StatusFetchingMetadata Status = "fetching_metadata"
	StatusGeneratingQR     Status = "generating_qr"
	StatusCompleted        Status = "completed"
	StatusError            Status = "error"
)

// ColorScheme selects the website color scheme requested for screenshots.
type ColorScheme string

// Supported color schemes.
const (
	SchemeLight ColorScheme = "light"
	SchemeDark  ColorScheme = "dark"
)

// ViewportProfile names a simulated device size used for screenshot
// construction and export framing.
type ViewportProfile struct {
	ID     string `json:"id" mapstructure:"id"`
	Label  string `json:"label" mapstructure:"label"`
	Width  int    `json:"width" mapstructure:"width"`
	Height int    `json:"height" mapstructure:"height"`
}

// ScreenshotSources holds the two candidate screenshot URLs computed for a
// record. Neither is fetched eagerly; the render surface resolves them.
type ScreenshotSources struct {
	Primary string `json:"primary"`
	Backup  string `json:"backup,omitempty"`
}

// Metadata is the uniform shape every metadata strategy resolves to.
type Metadata struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Author        string   `json:"author,omitempty"`
	PublishedTime string   `json:"published_time,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
}

// Record is the assembled, immutable result of one generation cycle.
// Favicon and QR references are embedded data URIs; an empty Favicon is the
// explicit absent sentinel, never a dangling remote reference.
type Record struct {
	URL         string            `json:"url"`
	Domain      string            `json:"domain"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Author      string            `json:"author,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	Screenshots ScreenshotSources `json:"screenshots"`
	Favicon     string            `json:"favicon,omitempty"`
	QRCode      string            `json:"qr_code"`
	Viewport    ViewportProfile   `json:"viewport"`
	ColorScheme ColorScheme       `json:"color_scheme"`
	GeneratedAt string            `json:"generated_at"`
}

// Clock returns the current time (useful for testing and cache-bust tokens).
type Clock interface {
	Now() time.Time
}

// DataURI encodes raw bytes as an embedded base64 data URI.
func DataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
