package syncer

import "time"

// State is the lifecycle of a sync run as shown to the UI.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateOK      State = "ok"
	StateFailed  State = "failed"
)

// Status is a snapshot of the sync engine, posted to subscribers after
// every run and served on the status endpoint.
type Status struct {
	State     State     `json:"state"`
	Pushed    int       `json:"pushed"`
	Pulled    int       `json:"pulled"`
	Conflicts int       `json:"conflicts"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	LastSync  time.Time `json:"last_sync"`
}

// Subscribe registers a callback invoked with every status update.
// Callbacks run on the syncer's goroutine and must not block.
func (s *Syncer) Subscribe(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Status returns the most recent status snapshot.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Syncer) publish(st Status) {
	s.mu.Lock()
	s.status = st
	subs := make([]func(Status), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}
