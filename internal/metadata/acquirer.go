// Package metadata resolves title/description metadata for a URL through a
// fallback chain: AI summarization service, page scrape, then a locally
// derived deterministic fallback.
package metadata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/metrics"
)

// Acquirer implements card.MetadataAcquirer. It is total: whatever the
// remote services do, Acquire resolves to a uniformly shaped value.
type Acquirer struct {
	ai      *AIClient
	scraper *Scraper
	logger  *zap.Logger
}

// New builds an Acquirer. Either strategy may be nil; the deterministic
// fallback is always present.
func New(ai *AIClient, scraper *Scraper, logger *zap.Logger) *Acquirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{ai: ai, scraper: scraper, logger: logger}
}

// Acquire resolves metadata for rawURL. Failures of the remote strategies
// (network errors, malformed responses) are absorbed here and degrade to
// Fallback; no error ever reaches the assembler.
func (a *Acquirer) Acquire(ctx context.Context, rawURL, domain string) card.Metadata {
	start := time.Now()
	defer func() {
		metrics.ObserveAcquisitionDuration("metadata", time.Since(start))
	}()

	var candidates []card.Candidate[card.Metadata]
	if a.ai != nil {
		candidates = append(candidates, card.Candidate[card.Metadata]{
			Name: "summarizer",
			Run: func(ctx context.Context) (card.Metadata, error) {
				meta, err := a.ai.Summarize(ctx, rawURL)
				a.observe("summarizer", err)
				return meta, err
			},
		})
	}
	if a.scraper != nil {
		candidates = append(candidates, card.Candidate[card.Metadata]{
			Name: "scrape",
			Run: func(ctx context.Context) (card.Metadata, error) {
				meta, err := a.scraper.Scrape(ctx, rawURL)
				a.observe("scrape", err)
				return meta, err
			},
		})
	}

	meta, winner, err := card.TryInOrder(ctx, candidates)
	if err != nil {
		a.logger.Debug("metadata strategies exhausted, using local fallback",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		metrics.ObserveAcquisition("metadata", "fallback", "accepted")
		return Fallback(domain, rawURL)
	}
	a.logger.Debug("metadata acquired",
		zap.String("url", rawURL),
		zap.String("strategy", winner),
	)
	if meta.Description == "" {
		meta.Description = "Link to " + rawURL
	}
	return meta
}

// Fallback is the deterministic local result used when every remote
// strategy fails.
func Fallback(domain, rawURL string) card.Metadata {
	return card.Metadata{
		Title:       domain,
		Description: "Link to " + rawURL,
	}
}

func (a *Acquirer) observe(source string, err error) {
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	metrics.ObserveAcquisition("metadata", source, outcome)
}
