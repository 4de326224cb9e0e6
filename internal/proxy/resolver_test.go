package proxy

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type tickingClock struct {
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func TestResolveEncodesTarget(t *testing.T) {
	t.Parallel()

	clk := &tickingClock{now: time.Unix(100, 0)}
	r := NewResolver("https://relay.example/raw", clk)

	got := r.Resolve("https://example.com/icon.png?size=64")

	require.True(t, strings.HasPrefix(got, "https://relay.example/raw?url="))
	u, err := url.Parse(got)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/icon.png?size=64", u.Query().Get("url"))
	require.NotEmpty(t, u.Query().Get("t"))
}

func TestResolveTokensNeverCollide(t *testing.T) {
	t.Parallel()

	clk := &tickingClock{now: time.Unix(100, 0)}
	r := NewResolver("https://relay.example/raw", clk)

	first := r.Resolve("https://example.com/a")
	second := r.Resolve("https://example.com/a")
	require.NotEqual(t, first, second, "repeated resolutions must carry distinct cache-bust tokens")

	t1, err := strconv.ParseInt(token(t, first), 10, 64)
	require.NoError(t, err)
	t2, err := strconv.ParseInt(token(t, second), 10, 64)
	require.NoError(t, err)
	require.Greater(t, t2, t1)
}

func TestResolveBaseWithExistingQuery(t *testing.T) {
	t.Parallel()

	clk := &tickingClock{now: time.Unix(100, 0)}
	r := NewResolver("https://relay.example/raw?key=abc", clk)

	got := r.Resolve("https://example.com")
	u, err := url.Parse(got)
	require.NoError(t, err)
	require.Equal(t, "abc", u.Query().Get("key"))
	require.Equal(t, "https://example.com", u.Query().Get("url"))
}

func token(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get("t")
}
