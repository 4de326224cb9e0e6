package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/linkcard/linkcard/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error for missing view url")
	}
	if _, err := New(Config{ViewURL: "http://localhost:8080/card/view", MaxParallel: -1}, nil); err == nil {
		t.Fatal("expected error for negative max parallel")
	}

	e, err := New(Config{ViewURL: "http://localhost:8080/card/view", MaxParallel: 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Close()
	if cap(e.limiter) != 2 {
		t.Fatalf("expected limiter capacity 2, got %d", cap(e.limiter))
	}
	if e.cfg.NavigationTimeout != 45*time.Second {
		t.Fatalf("expected default navigation timeout, got %v", e.cfg.NavigationTimeout)
	}
	if e.cfg.DownloadScale != 2.0 || e.cfg.PreviewScale != 0.75 {
		t.Fatalf("unexpected default scales: %v %v", e.cfg.DownloadScale, e.cfg.PreviewScale)
	}
}

func TestVariantOptions(t *testing.T) {
	t.Parallel()

	e, err := New(Config{ViewURL: "http://localhost:8080/card/view"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Close()

	download := e.variantOptions(VariantDownload)
	if download.Scale != 2.0 || !download.Transparent || !download.IncludeFonts {
		t.Fatalf("unexpected download options: %+v", download)
	}

	preview := e.variantOptions(VariantPreview)
	if preview.Scale != 0.75 || preview.Transparent {
		t.Fatalf("unexpected preview options: %+v", preview)
	}
	if !preview.IncludeFonts {
		t.Fatal("preview must still try fonts on the first attempt")
	}
}

func TestBuildViewURL(t *testing.T) {
	t.Parallel()

	e, err := New(Config{ViewURL: "http://localhost:8080/card/view"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Close()

	full, err := e.buildViewURL(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(full, "fonts=") {
		t.Fatalf("full-fidelity url must not carry the fonts switch: %s", full)
	}

	degraded, err := e.buildViewURL(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(degraded, "fonts=off") {
		t.Fatalf("degraded url must carry fonts=off: %s", degraded)
	}
}

func TestBuildViewURLPreservesExistingQuery(t *testing.T) {
	t.Parallel()

	e, err := New(Config{ViewURL: "http://localhost:8080/card/view?theme=dark"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Close()

	degraded, err := e.buildViewURL(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(degraded, "theme=dark") || !strings.Contains(degraded, "fonts=off") {
		t.Fatalf("existing query lost: %s", degraded)
	}
}

// scriptedCaptures replaces the chromedp capture with a canned sequence of
// results and records the options each attempt received.
func scriptedCaptures(e *Exporter, calls *[]Options, results []error, body []byte) {
	e.captureFn = func(_ context.Context, opts Options) ([]byte, error) {
		i := len(*calls)
		*calls = append(*calls, opts)
		if i < len(results) && results[i] != nil {
			return nil, results[i]
		}
		return body, nil
	}
}

func TestExportPreWarmFailureIsIgnored(t *testing.T) {
	t.Parallel()

	e, err := New(Config{ViewURL: "http://localhost:8080/card/view"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Close()

	var calls []Options
	scriptedCaptures(e, &calls, []error{fmt.Errorf("cold browser"), nil}, []byte("captured"))

	body, contentType, err := e.Export(context.Background(), FormatPNG, VariantDownload)
	if err != nil {
		t.Fatalf("a failed pre-warm must not fail the export: %v", err)
	}
	if string(body) != "captured" || contentType != "image/png" {
		t.Fatalf("unexpected result: %q %q", body, contentType)
	}
	if len(calls) != 2 {
		t.Fatalf("expected pre-warm plus one real attempt, got %d calls", len(calls))
	}
	if !calls[0].IncludeFonts || !calls[1].IncludeFonts {
		t.Fatalf("pre-warm and first real attempt must run with fonts: %+v", calls)
	}
}

func TestExportRetriesExactlyOnceWithFontsOff(t *testing.T) {
	t.Parallel()

	e, err := New(Config{ViewURL: "http://localhost:8080/card/view"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Close()

	var calls []Options
	scriptedCaptures(e, &calls, []error{nil, fmt.Errorf("font stall"), nil}, []byte("degraded"))

	body, _, err := e.Export(context.Background(), FormatPNG, VariantDownload)
	if err != nil {
		t.Fatalf("the fonts-off retry must rescue the export: %v", err)
	}
	if string(body) != "degraded" {
		t.Fatalf("unexpected body: %q", body)
	}
	if len(calls) != 3 {
		t.Fatalf("expected pre-warm, styled, fonts-off, got %d calls", len(calls))
	}
	if !calls[1].IncludeFonts {
		t.Fatal("styled attempt must include fonts")
	}
	if calls[2].IncludeFonts {
		t.Fatal("retry must exclude fonts")
	}
}

func TestExportTerminalAfterBothAttemptsFail(t *testing.T) {
	t.Parallel()

	e, err := New(Config{ViewURL: "http://localhost:8080/card/view"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Close()

	var calls []Options
	scriptedCaptures(e, &calls,
		[]error{fmt.Errorf("warm"), fmt.Errorf("styled"), fmt.Errorf("fonts off")}, nil)

	_, _, err = e.Export(context.Background(), FormatPNG, VariantDownload)
	if !errors.Is(err, ErrExportFailed) {
		t.Fatalf("expected terminal ErrExportFailed, got %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("no further retries allowed after the fonts-off attempt, got %d calls", len(calls))
	}
}

func TestExportWrapsSVGFromCapture(t *testing.T) {
	t.Parallel()

	e, err := New(Config{ViewURL: "http://localhost:8080/card/view"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Close()

	img := image.NewRGBA(image.Rect(0, 0, 6, 3))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	var calls []Options
	scriptedCaptures(e, &calls, []error{nil, nil}, buf.Bytes())

	body, contentType, err := e.Export(context.Background(), FormatSVG, VariantPreview)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contentType != "image/svg+xml" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	if !strings.Contains(string(body), `width="6" height="3"`) {
		t.Fatalf("svg envelope not sized to the capture: %s", body)
	}
}

func TestWrapSVG(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	svg, err := WrapSVG(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := string(svg)
	if !strings.HasPrefix(doc, `<svg xmlns="http://www.w3.org/2000/svg"`) {
		t.Fatalf("unexpected document start: %.60s", doc)
	}
	if !strings.Contains(doc, `width="20" height="10"`) {
		t.Fatalf("envelope not sized to the capture: %s", doc)
	}
	if !strings.Contains(doc, "data:image/png;base64,") {
		t.Fatal("capture payload missing")
	}
}

func TestWrapSVGRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := WrapSVG([]byte("not a png")); err == nil {
		t.Fatal("expected error for non-png payload")
	}
}
