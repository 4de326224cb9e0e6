package card

import "context"

// MetadataAcquirer resolves title/description metadata for a URL. It is
// total: every failure mode is absorbed into a locally derived fallback and
// never surfaces as an error.
type MetadataAcquirer interface {
	Acquire(ctx context.Context, rawURL, domain string) Metadata
}

// FaviconAcquirer fetches and embeds a favicon for a domain. The empty
// string is the explicit absent sentinel; acquisition never errors.
type FaviconAcquirer interface {
	Acquire(ctx context.Context, domain, rawURL string) string
}

// QREncoder encodes text as a scannable code image data URI.
type QREncoder interface {
	Encode(text string) (string, error)
}

// ScreenshotBuilder computes primary and backup screenshot source URLs.
// It never fetches; resolution happens lazily at render time.
type ScreenshotBuilder interface {
	Build(rawURL string, viewport ViewportProfile, scheme ColorScheme) ScreenshotSources
}
