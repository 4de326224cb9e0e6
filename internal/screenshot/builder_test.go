package screenshot

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/proxy"
)

type tickingClock struct{ now time.Time }

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newBuilder(cfg Config) *Builder {
	return New(cfg, proxy.NewResolver("https://relay.example/raw", &tickingClock{now: time.Unix(1700000000, 0)}))
}

func desktop() card.ViewportProfile {
	return card.ViewportProfile{ID: "desktop", Label: "Desktop", Width: 1280, Height: 800}
}

// unwrap extracts the proxied target from a resolved source URL.
func unwrap(t *testing.T, proxied string) *url.URL {
	t.Helper()
	outer, err := url.Parse(proxied)
	require.NoError(t, err)
	inner, err := url.Parse(outer.Query().Get("url"))
	require.NoError(t, err)
	return inner
}

func TestBuildPrimaryParameters(t *testing.T) {
	t.Parallel()

	b := newBuilder(Config{
		PrimaryBase:   "https://shots.example/take",
		PrimaryKey:    "key123",
		BackupBase:    "https://mirror.example/get",
		DeviceScale:   2,
		SettleDelayMS: 1500,
	})

	sources := b.Build("https://example.com", desktop(), card.SchemeDark)

	inner := unwrap(t, sources.Primary)
	q := inner.Query()
	require.Equal(t, "https://example.com", q.Get("url"))
	require.Equal(t, "1280", q.Get("viewport_width"))
	require.Equal(t, "800", q.Get("viewport_height"))
	require.Equal(t, "true", q.Get("dark_mode"))
	require.Equal(t, "2", q.Get("device_scale_factor"))
	require.Equal(t, "1500", q.Get("delay"))
	require.Equal(t, "key123", q.Get("access_key"))
}

func TestBuildBackupUsesSameDimensions(t *testing.T) {
	t.Parallel()

	b := newBuilder(Config{
		PrimaryBase: "https://shots.example/take",
		BackupBase:  "https://mirror.example/get",
	})

	sources := b.Build("https://example.com", desktop(), card.SchemeLight)
	require.NotEmpty(t, sources.Backup)

	inner := unwrap(t, sources.Backup)
	require.Contains(t, inner.Path, "/width/1280/")
	require.Contains(t, inner.Path, "/crop/800/")
}

func TestBuildDistinctCacheBustTokens(t *testing.T) {
	t.Parallel()

	b := newBuilder(Config{
		PrimaryBase: "https://shots.example/take",
		BackupBase:  "https://mirror.example/get",
	})

	sources := b.Build("https://example.com", desktop(), card.SchemeLight)

	primaryToken := outerToken(t, sources.Primary)
	backupToken := outerToken(t, sources.Backup)
	require.NotEqual(t, primaryToken, backupToken, "each source URL must carry its own cache-bust token")

	again := b.Build("https://example.com", desktop(), card.SchemeLight)
	require.NotEqual(t, outerToken(t, sources.Primary), outerToken(t, again.Primary),
		"rebuilding must force a fresh capture, not reuse a cached one")
}

func TestBuildWithoutBackupService(t *testing.T) {
	t.Parallel()

	b := newBuilder(Config{PrimaryBase: "https://shots.example/take"})
	sources := b.Build("https://example.com", desktop(), card.SchemeLight)
	require.NotEmpty(t, sources.Primary)
	require.Empty(t, sources.Backup)
}

func TestBuildLightSchemeNotDark(t *testing.T) {
	t.Parallel()

	b := newBuilder(Config{PrimaryBase: "https://shots.example/take"})
	sources := b.Build("https://example.com", desktop(), card.SchemeLight)
	require.Equal(t, "false", unwrap(t, sources.Primary).Query().Get("dark_mode"))
}

func outerToken(t *testing.T, proxied string) string {
	t.Helper()
	outer, err := url.Parse(proxied)
	require.NoError(t, err)
	return outer.Query().Get("t")
}
