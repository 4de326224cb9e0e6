package render

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

func TestFallbackPrimaryLoads(t *testing.T) {
	t.Parallel()

	fb := NewFallback(card.ScreenshotSources{Primary: "p", Backup: "b"})
	require.Equal(t, StatePendingPrimary, fb.State())
	require.Equal(t, "p", fb.Active())
	require.True(t, fb.Pending())

	fb.OnLoad()
	require.Equal(t, StateLoaded, fb.State())
	require.Equal(t, "p", fb.Active())
	require.False(t, fb.Pending())
	require.False(t, fb.Unavailable())
}

func TestFallbackSwapsExactlyOnce(t *testing.T) {
	t.Parallel()

	fb := NewFallback(card.ScreenshotSources{Primary: "p", Backup: "b"})

	fb.OnError()
	require.Equal(t, StatePendingBackup, fb.State())
	require.Equal(t, "b", fb.Active())

	fb.OnError()
	require.Equal(t, StateUnavailable, fb.State())
	require.Empty(t, fb.Active())
	require.True(t, fb.Unavailable())
}

func TestFallbackBackupLoads(t *testing.T) {
	t.Parallel()

	fb := NewFallback(card.ScreenshotSources{Primary: "p", Backup: "b"})
	fb.OnError()
	fb.OnLoad()
	require.Equal(t, StateLoaded, fb.State())
	require.Equal(t, "b", fb.Active())
}

func TestFallbackWithoutBackupGoesStraightToUnavailable(t *testing.T) {
	t.Parallel()

	fb := NewFallback(card.ScreenshotSources{Primary: "p"})
	fb.OnError()
	require.Equal(t, StateUnavailable, fb.State())
}

func TestFallbackTerminalStatesAbsorbEvents(t *testing.T) {
	t.Parallel()

	loaded := NewFallback(card.ScreenshotSources{Primary: "p", Backup: "b"})
	loaded.OnLoad()
	loaded.OnError()
	require.Equal(t, StateLoaded, loaded.State(), "a late error must not disturb a loaded card")

	dead := NewFallback(card.ScreenshotSources{Primary: "p"})
	dead.OnError()
	dead.OnLoad()
	require.Equal(t, StateUnavailable, dead.State())
}
