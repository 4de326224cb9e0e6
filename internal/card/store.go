package card

import "sync"

// State is a point-in-time snapshot of the single current record and the
// current generation status.
type State struct {
	Record  *Record `json:"record,omitempty"`
	Status  Status  `json:"status"`
	Message string  `json:"message,omitempty"`
}

// Store owns the process-wide current record and generation status behind a
// narrow read/replace interface. Records are replaced wholesale, never
// mutated field by field. Overlapping generations are not sequenced:
// last-to-resolve wins, which is a documented limitation rather than a
// correctness guarantee.
type Store struct {
	mu      sync.RWMutex
	record  *Record
	status  Status
	message string
}

// NewStore returns a Store in the idle state with no record.
func NewStore() *Store {
	return &Store{status: StatusIdle}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rec *Record
	if s.record != nil {
		cp := *s.record
		rec = &cp
	}
	return State{Record: rec, Status: s.status, Message: s.message}
}

// Replace publishes a new record and marks the generation completed.
func (s *Store) Replace(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = &rec
	s.status = StatusCompleted
	s.message = ""
}

// SetStatus transitions the generation status. A failed generation only
// changes the status; the previously published record stays displayed.
func (s *Store) SetStatus(status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.message = message
}
