// Package favicon acquires site icons through an ordered fallback chain and
// embeds the first valid response as a self-contained data URI.
package favicon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/metrics"
	"github.com/linkcard/linkcard/internal/proxy"
)

// Service is one favicon source. The URL template may reference {domain}
// and {url}; candidates are priority-ordered, highest fidelity first.
type Service struct {
	Name        string `mapstructure:"name"`
	URLTemplate string `mapstructure:"url_template"`
}

// Config controls acquisition behavior.
type Config struct {
	Services     []Service
	MinIconBytes int
	MaxIconBytes int64
	Timeout      time.Duration
	HostQPS      float64
}

// Acquirer tries each configured service in order and returns the first
// response that plausibly is an image. Absence is a valid terminal state
// communicated by the empty sentinel; Acquire never errors.
type Acquirer struct {
	cfg          Config
	client       *http.Client
	resolver     *proxy.Resolver
	hostLimiters sync.Map
	logger       *zap.Logger
}

// New builds an Acquirer.
func New(cfg Config, resolver *proxy.Resolver, logger *zap.Logger) *Acquirer {
	if cfg.MinIconBytes <= 0 {
		cfg.MinIconBytes = 120
	}
	if cfg.MaxIconBytes <= 0 {
		cfg.MaxIconBytes = 1 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		resolver: resolver,
		logger:   logger,
	}
}

// Acquire resolves a favicon for the domain, or returns the absent sentinel
// once every candidate is exhausted. Candidates run strictly sequentially so
// an earlier success is never beaten by a racing later one.
func (a *Acquirer) Acquire(ctx context.Context, domain, rawURL string) string {
	start := time.Now()
	defer func() {
		metrics.ObserveAcquisitionDuration("favicon", time.Since(start))
	}()

	candidates := make([]card.Candidate[string], 0, len(a.cfg.Services))
	for _, svc := range a.cfg.Services {
		svc := svc
		candidates = append(candidates, card.Candidate[string]{
			Name: svc.Name,
			Run: func(ctx context.Context) (string, error) {
				uri, err := a.fetchCandidate(ctx, svc, domain, rawURL)
				if err != nil {
					metrics.ObserveAcquisition("favicon", svc.Name, "rejected")
					return "", err
				}
				metrics.ObserveAcquisition("favicon", svc.Name, "accepted")
				return uri, nil
			},
		})
	}

	uri, winner, err := card.TryInOrder(ctx, candidates)
	if err != nil {
		a.logger.Debug("favicon candidates exhausted",
			zap.String("domain", domain),
			zap.Error(err),
		)
		return ""
	}
	a.logger.Debug("favicon acquired",
		zap.String("domain", domain),
		zap.String("service", winner),
	)
	return uri
}

func (a *Acquirer) fetchCandidate(ctx context.Context, svc Service, domain, rawURL string) (string, error) {
	target := expandTemplate(svc.URLTemplate, domain, rawURL)
	proxied := a.resolver.Resolve(target)

	if err := a.waitHostBudget(ctx, target); err != nil {
		return "", fmt.Errorf("favicon rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxied, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch icon: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.cfg.MaxIconBytes))
	if err != nil {
		return "", fmt.Errorf("read icon body: %w", err)
	}
	if len(body) < a.cfg.MinIconBytes {
		return "", fmt.Errorf("body too small (%d bytes)", len(body))
	}

	contentType := sniffContentType(resp.Header.Get("Content-Type"), body)
	if isTextual(contentType) {
		// Services that fail often return an HTML error page with a 200.
		return "", fmt.Errorf("non-image content type %q", contentType)
	}

	return card.DataURI(contentType, body), nil
}

// waitHostBudget throttles requests per upstream host.
func (a *Acquirer) waitHostBudget(ctx context.Context, target string) error {
	if a.cfg.HostQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse target: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := a.hostLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(a.cfg.HostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func expandTemplate(tmpl, domain, rawURL string) string {
	out := strings.ReplaceAll(tmpl, "{domain}", url.QueryEscape(domain))
	return strings.ReplaceAll(out, "{url}", url.QueryEscape(rawURL))
}

func sniffContentType(declared string, body []byte) string {
	declared = strings.TrimSpace(strings.Split(declared, ";")[0])
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(body)
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "image/") {
		return false
	}
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html") || strings.Contains(ct, "json")
}
