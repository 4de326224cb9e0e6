package card

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL trims the raw input and ensures it is an absolute,
// scheme-prefixed URL. Inputs without a scheme are prefixed with https://.
// Every derived field of a Record is computed from the normalized form.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return u.String(), nil
}

// DisplayDomain derives the display domain from a normalized URL: the
// hostname with a leading www. stripped.
func DisplayDomain(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
