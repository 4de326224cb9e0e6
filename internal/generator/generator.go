// Package generator orchestrates card assembly: it races the independent
// asset acquisitions, merges the results into one immutable record, and
// publishes it to the store.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/metrics"
)

// ErrInvalidURL indicates the submitted input could not be normalized into
// an absolute URL.
var ErrInvalidURL = errors.New("invalid url")

// timestampLayout is the human-readable generation timestamp format.
const timestampLayout = "Jan 2, 2006 3:04 PM"

// Generator is the entry point of the generation pipeline.
type Generator struct {
	store       *card.Store
	metadata    card.MetadataAcquirer
	favicon     card.FaviconAcquirer
	qr          card.QREncoder
	screenshots card.ScreenshotBuilder
	clock       card.Clock
	viewports   []card.ViewportProfile
	logger      *zap.Logger
}

// Request captures one generation submission.
type Request struct {
	RawURL      string
	ViewportID  string
	ColorScheme card.ColorScheme
}

// New constructs a Generator.
func New(
	store *card.Store,
	metadata card.MetadataAcquirer,
	favicon card.FaviconAcquirer,
	qr card.QREncoder,
	screenshots card.ScreenshotBuilder,
	clock card.Clock,
	viewports []card.ViewportProfile,
	logger *zap.Logger,
) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		store:       store,
		metadata:    metadata,
		favicon:     favicon,
		qr:          qr,
		screenshots: screenshots,
		clock:       clock,
		viewports:   viewports,
		logger:      logger,
	}
}

// Viewports lists the selectable viewport profiles.
func (g *Generator) Viewports() []card.ViewportProfile {
	out := make([]card.ViewportProfile, len(g.viewports))
	copy(out, g.viewports)
	return out
}

// Generate runs one generation cycle. The three acquisitions are issued
// together and each absorbs its own failures, so the only ways to reach the
// error status are an unparseable input URL or an unexpected panic. A failed
// generation never unpublishes the previous record.
func (g *Generator) Generate(ctx context.Context, req Request) (rec card.Record, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("generation panicked", zap.Any("panic", r))
			g.store.SetStatus(card.StatusError, "unexpected failure during generation")
			metrics.ObserveGeneration(string(card.StatusError), time.Since(start))
			rec = card.Record{}
			err = fmt.Errorf("generation panic: %v", r)
		}
	}()

	normalized, nerr := card.NormalizeURL(req.RawURL)
	if nerr != nil {
		g.store.SetStatus(card.StatusError, "could not parse that URL")
		metrics.ObserveGeneration(string(card.StatusError), time.Since(start))
		return card.Record{}, fmt.Errorf("%w: %s", ErrInvalidURL, nerr)
	}
	domain := card.DisplayDomain(normalized)

	g.store.SetStatus(card.StatusFetchingMetadata, "")

	var (
		meta  card.Metadata
		icon  string
		qrURI string
	)
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		meta = g.metadata.Acquire(grpCtx, normalized, domain)
		return nil
	})
	grp.Go(func() error {
		icon = g.favicon.Acquire(grpCtx, domain, normalized)
		return nil
	})
	grp.Go(func() error {
		uri, qerr := g.qr.Encode(normalized)
		if qerr != nil {
			// Absorbed: a missing code degrades the card, never the pipeline.
			g.logger.Warn("qr encode failed", zap.String("url", normalized), zap.Error(qerr))
			return nil
		}
		qrURI = uri
		return nil
	})
	_ = grp.Wait() // every branch returns nil; failures are absorbed above

	g.store.SetStatus(card.StatusGeneratingQR, "")

	viewport := g.viewport(req.ViewportID)
	scheme := req.ColorScheme
	if scheme != card.SchemeDark {
		scheme = card.SchemeLight
	}
	sources := g.screenshots.Build(normalized, viewport, scheme)

	rec = card.Record{
		URL:         normalized,
		Domain:      domain,
		Title:       meta.Title,
		Description: meta.Description,
		Author:      meta.Author,
		Keywords:    meta.Keywords,
		Screenshots: sources,
		Favicon:     icon,
		QRCode:      qrURI,
		Viewport:    viewport,
		ColorScheme: scheme,
		GeneratedAt: g.clock.Now().Format(timestampLayout),
	}
	g.store.Replace(rec)
	metrics.ObserveGeneration(string(card.StatusCompleted), time.Since(start))
	g.logger.Info("card generated",
		zap.String("url", normalized),
		zap.String("domain", domain),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rec, nil
}

func (g *Generator) viewport(id string) card.ViewportProfile {
	for _, vp := range g.viewports {
		if vp.ID == id {
			return vp
		}
	}
	if len(g.viewports) > 0 {
		return g.viewports[0]
	}
	return card.ViewportProfile{ID: "desktop", Label: "Desktop", Width: 1280, Height: 800}
}
