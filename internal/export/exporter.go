// Package export captures the rendered card view with a headless browser
// and serves it as a downloadable image.
package export

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/metrics"
)

// ErrExportFailed is the terminal failure after every capture attempt,
// including the degraded fonts-off retry, has been exhausted.
var ErrExportFailed = fmt.Errorf("card export failed")

// Format selects the output envelope.
type Format string

// Variant selects the capture quality profile.
type Variant string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"

	VariantDownload Variant = "download"
	VariantPreview  Variant = "preview"
)

// fontBlockPatterns are the URL patterns blocked on the degraded retry.
// Webfont stalls are the dominant cause of capture timeouts.
var fontBlockPatterns = []string{
	"*fonts.googleapis.com*",
	"*fonts.gstatic.com*",
	"*.woff",
	"*.woff2",
	"*.ttf",
	"*.otf",
}

// Config controls the behavior of the exporter.
type Config struct {
	// ViewURL is the address of the card view this process serves.
	ViewURL           string
	MaxParallel       int
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	DownloadScale     float64
	PreviewScale      float64
}

// Options is one concrete capture attempt.
type Options struct {
	Width        int64
	Height       int64
	Scale        float64
	Transparent  bool
	IncludeFonts bool
}

// Exporter implements the capture pipeline with chromedp and headless
// Chrome. The browser allocator is shared; each capture gets its own tab.
type Exporter struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger

	// captureFn performs one capture attempt. It defaults to the chromedp
	// implementation; tests swap it to pin the pre-warm/retry wiring.
	captureFn func(ctx context.Context, opts Options) ([]byte, error)
}

// New creates an Exporter backed by a fresh exec allocator.
func New(cfg Config, logger *zap.Logger) (*Exporter, error) {
	if cfg.ViewURL == "" {
		return nil, fmt.Errorf("view url is required")
	}
	if _, err := url.Parse(cfg.ViewURL); err != nil {
		return nil, fmt.Errorf("parse view url: %w", err)
	}
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if cfg.DownloadScale <= 0 {
		cfg.DownloadScale = 2.0
	}
	if cfg.PreviewScale <= 0 {
		cfg.PreviewScale = 0.75
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	e := &Exporter{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}
	e.captureFn = e.capture
	return e, nil
}

// Close cancels the allocator context, tearing down the browser.
func (e *Exporter) Close() {
	e.allocCancel()
}

// Export captures the card view and returns the encoded bytes plus their
// content type. Every export starts with a discardable pre-warm capture that
// forces asset and layout settling; its outcome is ignored. Then a
// full-fidelity attempt runs; on failure one degraded attempt runs with
// webfonts blocked, and after that the error is terminal.
func (e *Exporter) Export(ctx context.Context, format Format, variant Variant) ([]byte, string, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, "", err
	}
	defer e.release()

	opts := e.variantOptions(variant)
	e.warm(ctx, opts)
	degraded := opts
	degraded.IncludeFonts = false

	start := time.Now()
	png, winner, err := card.TryInOrder(ctx, []card.Candidate[[]byte]{
		{Name: "styled", Run: func(ctx context.Context) ([]byte, error) {
			return e.captureFn(ctx, opts)
		}},
		{Name: "fonts_off", Run: func(ctx context.Context) ([]byte, error) {
			return e.captureFn(ctx, degraded)
		}},
	})
	if err != nil {
		metrics.ObserveExport(string(format), string(variant), "failed")
		e.logger.Error("export exhausted all attempts",
			zap.String("variant", string(variant)), zap.Error(err))
		return nil, "", fmt.Errorf("%w: %s", ErrExportFailed, err)
	}
	if winner == "fonts_off" {
		e.logger.Warn("export degraded to fonts-off capture", zap.String("variant", string(variant)))
	}
	metrics.ObserveExport(string(format), string(variant), winner)
	e.logger.Info("card exported",
		zap.String("format", string(format)),
		zap.String("variant", string(variant)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if format == FormatSVG {
		svg, serr := WrapSVG(png)
		if serr != nil {
			return nil, "", fmt.Errorf("wrap svg: %w", serr)
		}
		return svg, "image/svg+xml", nil
	}
	return png, "image/png", nil
}

// warm runs the discardable pre-warm capture. The first render after
// navigation settles assets and layout inconsistently, so the real capture
// never goes first. Result and failure are both ignored.
func (e *Exporter) warm(ctx context.Context, opts Options) {
	if _, err := e.captureFn(ctx, opts); err != nil {
		e.logger.Debug("pre-warm capture failed", zap.Error(err))
	}
}

func (e *Exporter) capture(ctx context.Context, opts Options) ([]byte, error) {
	taskCtx, taskCancel := chromedp.NewContext(e.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, e.cfg.NavigationTimeout)
	defer cancel()
	go func() {
		// Tear the tab down if the caller gives up first.
		select {
		case <-ctx.Done():
			taskCancel()
		case <-taskCtx.Done():
		}
	}()

	target, err := e.buildViewURL(opts.IncludeFonts)
	if err != nil {
		return nil, err
	}

	var buf []byte
	actions := []chromedp.Action{
		e.pageSetupAction(opts),
		chromedp.Navigate(target),
		chromedp.WaitReady("#card", chromedp.ByID),
		chromedp.Sleep(e.cfg.SettleDelay),
		chromedp.Screenshot("#card", &buf, chromedp.ByID),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("empty capture")
	}
	return buf, nil
}

func (e *Exporter) pageSetupAction(opts Options) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if !opts.IncludeFonts {
			if err := network.SetBlockedURLS(fontBlockPatterns).Do(ctx); err != nil {
				return fmt.Errorf("block font urls: %w", err)
			}
		}
		if err := emulation.SetDeviceMetricsOverride(opts.Width, opts.Height, opts.Scale, false).Do(ctx); err != nil {
			return fmt.Errorf("set device metrics: %w", err)
		}
		if opts.Transparent {
			transparent := &cdp.RGBA{R: 0, G: 0, B: 0, A: 0}
			if err := emulation.SetDefaultBackgroundColorOverride().WithColor(transparent).Do(ctx); err != nil {
				return fmt.Errorf("set background override: %w", err)
			}
		}
		return nil
	})
}

// buildViewURL appends the fonts switch the view honors on degraded runs.
func (e *Exporter) buildViewURL(includeFonts bool) (string, error) {
	u, err := url.Parse(e.cfg.ViewURL)
	if err != nil {
		return "", fmt.Errorf("parse view url: %w", err)
	}
	if !includeFonts {
		q := u.Query()
		q.Set("fonts", "off")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (e *Exporter) variantOptions(variant Variant) Options {
	opts := Options{
		Width:        760,
		Height:       1000,
		Scale:        e.cfg.DownloadScale,
		Transparent:  true,
		IncludeFonts: true,
	}
	if variant == VariantPreview {
		opts.Scale = e.cfg.PreviewScale
		opts.Transparent = false
	}
	return opts
}

func (e *Exporter) acquire(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	select {
	case e.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("export slot wait canceled: %w", ctx.Err())
	}
}

func (e *Exporter) release() {
	if e.limiter == nil {
		return
	}
	<-e.limiter
}
