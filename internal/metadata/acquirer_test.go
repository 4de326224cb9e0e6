package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linkcard/linkcard/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

func newAI(t *testing.T, handler http.HandlerFunc) (*AIClient, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewAIClient(AIConfig{Endpoint: srv.URL, APIKey: "test-key", Timeout: 2 * time.Second})
	require.NotNil(t, client)
	return client, srv.Close
}

func TestAISummarizeSuccess(t *testing.T) {
	t.Parallel()

	client, closeSrv := newAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"title": "Example Domain",
			"description": "Reserved for documentation.",
			"author": "IANA",
			"keywords": ["example", "docs"]
		}`))
	})
	defer closeSrv()

	meta, err := client.Summarize(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "Example Domain", meta.Title)
	require.Equal(t, "Reserved for documentation.", meta.Description)
	require.Equal(t, "IANA", meta.Author)
	require.Equal(t, []string{"example", "docs"}, meta.Keywords)
}

func TestAISummarizeMalformedJSON(t *testing.T) {
	t.Parallel()

	client, closeSrv := newAI(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title": "Example`))
	})
	defer closeSrv()

	_, err := client.Summarize(context.Background(), "https://example.com")
	require.Error(t, err)
}

func TestAISummarizeEmptyTitleIsShapeViolation(t *testing.T) {
	t.Parallel()

	client, closeSrv := newAI(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title": "  ", "description": "x"}`))
	})
	defer closeSrv()

	_, err := client.Summarize(context.Background(), "https://example.com")
	require.Error(t, err)
}

func TestScraperExtractsOpenGraph(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<title>Plain Title</title>
			<meta property="og:title" content="OG Title">
			<meta name="description" content="plain description">
			<meta property="og:description" content="og description">
			<meta name="author" content="Jane Writer">
			<meta name="keywords" content="a, b , ,c">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	s := NewScraper(ScraperConfig{UserAgent: "linkcard-test", Timeout: 2 * time.Second})
	meta, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "OG Title", meta.Title)
	require.Equal(t, "og description", meta.Description)
	require.Equal(t, "Jane Writer", meta.Author)
	require.Equal(t, []string{"a", "b", "c"}, meta.Keywords)
}

func TestScraperNoTitleFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>no head</body></html>`))
	}))
	defer srv.Close()

	s := NewScraper(ScraperConfig{Timeout: 2 * time.Second})
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestAcquireFallsBackDeterministically(t *testing.T) {
	t.Parallel()

	aiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer aiSrv.Close()
	pageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer pageSrv.Close()

	a := New(
		NewAIClient(AIConfig{Endpoint: aiSrv.URL, Timeout: 2 * time.Second}),
		NewScraper(ScraperConfig{Timeout: 2 * time.Second}),
		zap.NewNop(),
	)

	meta := a.Acquire(context.Background(), pageSrv.URL, "example.com")
	require.Equal(t, "example.com", meta.Title)
	require.Equal(t, "Link to "+pageSrv.URL, meta.Description)
}

func TestAcquireWithNoStrategiesUsesFallback(t *testing.T) {
	t.Parallel()

	a := New(nil, nil, zap.NewNop())
	meta := a.Acquire(context.Background(), "https://example.com", "example.com")
	require.Equal(t, Fallback("example.com", "https://example.com"), meta)
}

func TestFallbackShape(t *testing.T) {
	t.Parallel()

	meta := Fallback("example.com", "https://example.com")
	require.Equal(t, "example.com", meta.Title)
	require.Equal(t, "Link to https://example.com", meta.Description)
	require.Empty(t, meta.Author)
	require.Nil(t, meta.Keywords)
}
