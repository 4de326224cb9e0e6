package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/linkcard/linkcard/internal/card"
)

// Scraper extracts title/description metadata directly from the target page.
// It sits between the AI service and the deterministic local fallback in the
// acquisition chain.
type Scraper struct {
	userAgent     string
	timeout       time.Duration
	baseCollector *colly.Collector
}

// ScraperConfig controls collector behavior.
type ScraperConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// NewScraper builds a Scraper.
func NewScraper(cfg ScraperConfig) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Scraper{
		userAgent:     cfg.UserAgent,
		timeout:       cfg.Timeout,
		// colly v2.1.0's Async option ignores its argument and always enables
		// async mode; the default collector is synchronous, which is what we want.
		baseCollector: colly.NewCollector(),
	}
}

// Scrape visits rawURL and extracts open-graph and standard meta tags.
// A page without a usable title is reported as a failure.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (card.Metadata, error) {
	collector := s.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(s.timeout)
	if s.userAgent != "" {
		collector.UserAgent = s.userAgent
	}

	var (
		meta     card.Metadata
		fetchErr error
	)

	collector.OnHTML("title", func(e *colly.HTMLElement) {
		if meta.Title == "" {
			meta.Title = strings.TrimSpace(e.Text)
		}
	})
	collector.OnHTML(`meta[property="og:title"]`, func(e *colly.HTMLElement) {
		if content := strings.TrimSpace(e.Attr("content")); content != "" {
			meta.Title = content
		}
	})
	collector.OnHTML(`meta[name="description"]`, func(e *colly.HTMLElement) {
		if meta.Description == "" {
			meta.Description = strings.TrimSpace(e.Attr("content"))
		}
	})
	collector.OnHTML(`meta[property="og:description"]`, func(e *colly.HTMLElement) {
		if content := strings.TrimSpace(e.Attr("content")); content != "" {
			meta.Description = content
		}
	})
	collector.OnHTML(`meta[name="author"]`, func(e *colly.HTMLElement) {
		meta.Author = strings.TrimSpace(e.Attr("content"))
	})
	collector.OnHTML(`meta[property="article:published_time"]`, func(e *colly.HTMLElement) {
		meta.PublishedTime = strings.TrimSpace(e.Attr("content"))
	})
	collector.OnHTML(`meta[name="keywords"]`, func(e *colly.HTMLElement) {
		meta.Keywords = splitKeywords(e.Attr("content"))
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := s.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return card.Metadata{}, err
	}
	if meta.Title == "" {
		return card.Metadata{}, fmt.Errorf("page %s has no usable title", rawURL)
	}
	return meta, nil
}

func (s *Scraper) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("scrape canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit page: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("page response: %w", *fetchErr)
		}
		return nil
	}
}

func splitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
