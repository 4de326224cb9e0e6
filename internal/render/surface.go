package render

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linkcard/linkcard/internal/card"
)

//go:embed card.html
var templates embed.FS

// Options adjusts one rendering of the surface.
type Options struct {
	// IncludeFonts controls whether the webfont stylesheet is linked. The
	// export retry path renders without it.
	IncludeFonts bool
}

// Surface renders the current card state as a standalone HTML document. The
// screenshot slot is resolved ahead of rendering by probing the proxied
// sources and driving the fallback machine with the outcomes.
type Surface struct {
	client *http.Client
	tmpl   *template.Template
	logger *zap.Logger
}

// NewSurface parses the embedded template and prepares the probe client.
func NewSurface(probeTimeout time.Duration, logger *zap.Logger) (*Surface, error) {
	if probeTimeout <= 0 {
		probeTimeout = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.ParseFS(templates, "card.html")
	if err != nil {
		return nil, fmt.Errorf("parse card template: %w", err)
	}
	return &Surface{
		client: &http.Client{Timeout: probeTimeout},
		tmpl:   tmpl,
		logger: logger,
	}, nil
}

// ResolveScreenshot walks the fallback machine for one record and returns
// the source that loaded, or empty with unavailable=true when both sources
// failed. A fresh machine is built per call, so a new record always starts
// over from the primary source.
func (s *Surface) ResolveScreenshot(ctx context.Context, sources card.ScreenshotSources) (src string, unavailable bool) {
	fb := NewFallback(sources)
	for fb.Pending() {
		active := fb.Active()
		if active == "" {
			fb.OnError()
			continue
		}
		if s.probe(ctx, active) {
			fb.OnLoad()
			continue
		}
		s.logger.Debug("screenshot source failed to load", zap.String("state", string(fb.State())))
		fb.OnError()
	}
	return fb.Active(), fb.Unavailable()
}

// probe loads one source far enough to know an <img> tag would succeed.
func (s *Surface) probe(ctx context.Context, src string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(resp.Body, head)
	if n == 0 {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(head[:n]), "image/")
}

// viewData is the template payload.
type viewData struct {
	Status       card.Status
	Message      string
	HasRecord    bool
	URL          string
	Domain       string
	Title        string
	Description  string
	Author       string
	Favicon      string
	QRCode       string
	Screenshot   string
	Unavailable  bool
	GeneratedAt  string
	Dark         bool
	IncludeFonts bool
}

// Render resolves the screenshot slot and writes the full document.
func (s *Surface) Render(ctx context.Context, w io.Writer, state card.State, opts Options) error {
	data := viewData{
		Status:       state.Status,
		Message:      state.Message,
		IncludeFonts: opts.IncludeFonts,
	}
	if rec := state.Record; rec != nil {
		src, unavailable := s.ResolveScreenshot(ctx, rec.Screenshots)
		data.HasRecord = true
		data.URL = rec.URL
		data.Domain = rec.Domain
		data.Title = rec.Title
		data.Description = rec.Description
		data.Author = rec.Author
		data.Favicon = rec.Favicon
		data.QRCode = rec.QRCode
		data.Screenshot = src
		data.Unavailable = unavailable
		data.GeneratedAt = rec.GeneratedAt
		data.Dark = rec.ColorScheme == card.SchemeDark
	}
	if err := s.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render card view: %w", err)
	}
	return nil
}
