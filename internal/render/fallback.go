// Package render owns the card view: the HTML surface a record is displayed
// on, and the runtime-only screenshot loading state scoped to it.
package render

import (
	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/metrics"
)

// State is one node of the screenshot fallback machine.
type State string

// Fallback machine states. Loaded and Unavailable are terminal.
const (
	StatePendingPrimary State = "pending_primary"
	StatePendingBackup  State = "pending_backup"
	StateLoaded         State = "loaded"
	StateUnavailable    State = "unavailable"
)

// Fallback manages the swap from the primary to the backup screenshot
// source on load failure, and the terminal unavailable state. It is local to
// one displayed record and is reset, never merged, when the record changes.
// It is independent of the generation status: a completed generation can
// still present unavailable imagery, which is expected rather than an error.
type Fallback struct {
	state        State
	primary      string
	backup       string
	loadedBackup bool
}

// NewFallback starts a machine for one record's sources: primary active,
// load pending, not failed.
func NewFallback(sources card.ScreenshotSources) *Fallback {
	return &Fallback{
		state:   StatePendingPrimary,
		primary: sources.Primary,
		backup:  sources.Backup,
	}
}

// State returns the current machine state.
func (f *Fallback) State() State { return f.state }

// Active returns the source currently being loaded or displayed. It is
// empty once the machine is unavailable.
func (f *Fallback) Active() string {
	switch f.state {
	case StatePendingBackup:
		return f.backup
	case StateUnavailable:
		return ""
	case StateLoaded:
		if f.backup != "" && f.loadedBackup {
			return f.backup
		}
		return f.primary
	default:
		return f.primary
	}
}

// Pending reports whether a load is still in flight.
func (f *Fallback) Pending() bool {
	return f.state == StatePendingPrimary || f.state == StatePendingBackup
}

// Unavailable reports whether the machine reached terminal failure.
func (f *Fallback) Unavailable() bool { return f.state == StateUnavailable }

// OnLoad records a successful load of the active source.
func (f *Fallback) OnLoad() {
	switch f.state {
	case StatePendingPrimary:
		f.state = StateLoaded
	case StatePendingBackup:
		f.loadedBackup = true
		f.state = StateLoaded
	}
}

// OnError records a failed load of the active source. The machine swaps to
// the backup exactly once; with no further fallback it goes unavailable and
// the surface shows a placeholder instead of a broken image.
func (f *Fallback) OnError() {
	switch f.state {
	case StatePendingPrimary:
		if f.backup != "" {
			f.state = StatePendingBackup
			metrics.ObserveFallbackSwap()
			return
		}
		f.state = StateUnavailable
	case StatePendingBackup:
		f.state = StateUnavailable
	}
}
