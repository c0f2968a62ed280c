package state

import (
	"sync"
	"time"

	"classcal/internal/course"
	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/schedule"
)

// Snapshot is one consistent, immutable view of the loaded schedule.
// Callers must not modify the slices or maps it holds.
type Snapshot struct {
	// Events are the parsed events with identifiers already computed.
	Events []model.Event
	// Courses is the naturally sorted identifier universe of Events.
	Courses []string
	// Selection is the set of courses the user chose to see.
	Selection course.Selection
	// Buckets maps day keys to selected events, for month markers.
	Buckets schedule.Buckets

	// Source describes where Events came from (redacted URL or file name).
	Source string
	// LastUpdated is the time of the last successful load.
	LastUpdated time.Time
	// LastError is the message of the last failed load, if it is the most
	// recent load outcome.
	LastError string
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Events:  []model.Event{},
		Courses: []string{},
		Buckets: schedule.Buckets{},
	}
}

// Ticket identifies one load attempt; see Store.BeginLoad.
type Ticket struct {
	gen uint64
}

// Store is the application's state container. Every change builds a new
// Snapshot and swaps it in with one assignment, so readers never observe a
// half-updated state.
type Store struct {
	mu      sync.RWMutex
	snap    *Snapshot
	issued  uint64
	applied uint64

	persister *Persister
	persistMu sync.Mutex
}

// NewStore returns an empty store. p may be nil to disable persistence.
func NewStore(p *Persister) *Store {
	return &Store{snap: emptySnapshot(), persister: p}
}

// Open returns a store seeded from p's file when it exists.
func Open(p *Persister) (*Store, error) {
	s := NewStore(p)
	if p == nil {
		return s, nil
	}
	saved, err := p.Load()
	if err != nil {
		return s, err
	}
	if saved == nil {
		return s, nil
	}

	events := course.Tag(saved.Events)
	s.snap = &Snapshot{
		Events:      events,
		Courses:     course.Universe(events),
		Selection:   saved.Selection,
		Buckets:     schedule.BuildDateBuckets(events, saved.Selection),
		Source:      saved.Source,
		LastUpdated: saved.LastUpdated,
	}
	appLog.Info("state restored", "events", len(events), "selected", saved.Selection.Len(), "last_updated", saved.LastUpdated)
	return s, nil
}

// Snapshot returns the current state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// BeginLoad hands out a ticket for a new load. Results are applied only if
// no load with a later ticket has been applied first, so a slow response
// that loses the race is discarded instead of overwriting newer data.
func (s *Store) BeginLoad() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return Ticket{gen: s.issued}
}

// Commit replaces the event list wholesale with events. The selection is
// kept, or set to every course when it was empty. It reports false when
// the ticket is stale and nothing was changed.
func (s *Store) Commit(t Ticket, events []model.Event, source string, at time.Time) bool {
	// Derived data that does not depend on the current state is built
	// before taking the lock.
	tagged := course.Tag(events)
	courses := course.Universe(tagged)

	s.mu.Lock()
	if t.gen <= s.applied {
		s.mu.Unlock()
		return false
	}
	s.applied = t.gen

	sel := s.snap.Selection
	if sel.IsEmpty() && len(courses) > 0 {
		sel = course.NewSelection(courses...)
	}
	next := &Snapshot{
		Events:      tagged,
		Courses:     courses,
		Selection:   sel,
		Buckets:     schedule.BuildDateBuckets(tagged, sel),
		Source:      source,
		LastUpdated: at,
	}
	s.snap = next
	s.mu.Unlock()

	s.persist(next)
	return true
}

// Fail resets events, courses, selection and buckets to empty after a
// failed load, recording err. It reports false when the ticket is stale.
func (s *Store) Fail(t Ticket, err error) bool {
	s.mu.Lock()
	if t.gen <= s.applied {
		s.mu.Unlock()
		return false
	}
	s.applied = t.gen

	next := emptySnapshot()
	next.Source = s.snap.Source
	if err != nil {
		next.LastError = err.Error()
	}
	s.snap = next
	s.mu.Unlock()

	s.persist(next)
	return true
}

// SetSelection replaces the selection and rebuilds the day buckets.
func (s *Store) SetSelection(sel course.Selection) *Snapshot {
	return s.reselect(func(*Snapshot) course.Selection { return sel })
}

// SelectAll selects every course of the current snapshot.
func (s *Store) SelectAll() *Snapshot {
	return s.reselect(func(cur *Snapshot) course.Selection {
		return course.NewSelection(cur.Courses...)
	})
}

// SelectNone clears the selection.
func (s *Store) SelectNone() *Snapshot {
	return s.SetSelection(course.Selection{})
}

// reselect swaps in a snapshot whose selection pick derives from the
// current one; both happen under the same lock.
func (s *Store) reselect(pick func(cur *Snapshot) course.Selection) *Snapshot {
	s.mu.Lock()
	cur := s.snap
	sel := pick(cur)
	next := &Snapshot{
		Events:      cur.Events,
		Courses:     cur.Courses,
		Selection:   sel,
		Buckets:     schedule.BuildDateBuckets(cur.Events, sel),
		Source:      cur.Source,
		LastUpdated: cur.LastUpdated,
		LastError:   cur.LastError,
	}
	s.snap = next
	s.mu.Unlock()

	s.persist(next)
	return next
}

// persist writes snap unless a newer snapshot has been swapped in since;
// the writer of that newer snapshot saves it instead, so the file never
// goes back in time.
func (s *Store) persist(snap *Snapshot) {
	if s.persister == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if snap != s.Snapshot() {
		return
	}
	if err := s.persister.Save(snap); err != nil {
		appLog.Error("state persist failed", err, "path", s.persister.Path())
	}
}
