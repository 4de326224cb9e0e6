package system

import (
	"testing"
	"time"

	"github.com/linkcard/linkcard/internal/card"
)

func TestClockSatisfiesCardClock(t *testing.T) {
	t.Parallel()

	var clk card.Clock = New()

	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestNowYieldsNonDecreasingTokens(t *testing.T) {
	t.Parallel()

	// Cache-bust tokens are derived from UnixNano; going backwards would
	// let a stale cached asset shadow a fresh capture.
	clk := New()
	first := clk.Now().UnixNano()
	second := clk.Now().UnixNano()
	if second < first {
		t.Fatalf("expected token %d to be >= %d", second, first)
	}
}
