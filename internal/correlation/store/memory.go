package store

import (
	"context"
	"slices"
	"sync"

	"proctor/internal/correlation"
)

// InMemory implements every correlation read port over process memory. It is
// used for local development (seeded from a fixture file) and tests.
type InMemory struct {
	mu           sync.RWMutex
	sessions     []correlation.Session
	violations   []correlation.ViolationEvent
	participants []correlation.Participant
	subjects     []correlation.Subject
	onChange     func()

	// parent is set on frozen copies made by ReadSnapshot.
	parent *InMemory
}

// InMemoryOption configures an InMemory store.
type InMemoryOption func(*InMemory)

// WithChangeHook registers fn to run after every write, the in-memory
// counterpart of the database change notification.
func WithChangeHook(fn func()) InMemoryOption {
	return func(s *InMemory) {
		s.onChange = fn
	}
}

func NewInMemory(opts ...InMemoryOption) *InMemory {
	s := &InMemory{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type snapshotKey struct{}

// view returns the frozen copy ReadSnapshot placed in ctx for this store, or
// the live store.
func (s *InMemory) view(ctx context.Context) *InMemory {
	if snap, ok := ctx.Value(snapshotKey{}).(*InMemory); ok && snap.parent == s {
		return snap
	}
	return s
}

func (s *InMemory) ListSessions(ctx context.Context) ([]correlation.Session, error) {
	src := s.view(ctx)
	src.mu.RLock()
	defer src.mu.RUnlock()
	return slices.Clone(src.sessions), nil
}

func (s *InMemory) ListViolations(ctx context.Context) ([]correlation.ViolationEvent, error) {
	src := s.view(ctx)
	src.mu.RLock()
	defer src.mu.RUnlock()
	return slices.Clone(src.violations), nil
}

func (s *InMemory) ListParticipants(ctx context.Context) ([]correlation.Participant, error) {
	src := s.view(ctx)
	src.mu.RLock()
	defer src.mu.RUnlock()
	return slices.Clone(src.participants), nil
}

func (s *InMemory) ListSubjects(ctx context.Context) ([]correlation.Subject, error) {
	src := s.view(ctx)
	src.mu.RLock()
	defer src.mu.RUnlock()
	return slices.Clone(src.subjects), nil
}

// ReadSnapshot freezes a copy of all four collections, so reads made inside
// fn are mutually consistent even while writers continue.
func (s *InMemory) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.RLock()
	snap := &InMemory{
		sessions:     slices.Clone(s.sessions),
		violations:   slices.Clone(s.violations),
		participants: slices.Clone(s.participants),
		subjects:     slices.Clone(s.subjects),
		parent:       s,
	}
	s.mu.RUnlock()
	return fn(context.WithValue(ctx, snapshotKey{}, snap))
}

// AddSessions appends sessions. Records are stored as given; the engine
// tolerates duplicates and blanks.
func (s *InMemory) AddSessions(sessions ...correlation.Session) {
	s.write(func() { s.sessions = append(s.sessions, sessions...) })
}

func (s *InMemory) AddViolations(events ...correlation.ViolationEvent) {
	s.write(func() { s.violations = append(s.violations, events...) })
}

func (s *InMemory) AddParticipants(participants ...correlation.Participant) {
	s.write(func() { s.participants = append(s.participants, participants...) })
}

func (s *InMemory) AddSubjects(subjects ...correlation.Subject) {
	s.write(func() { s.subjects = append(s.subjects, subjects...) })
}

func (s *InMemory) write(fn func()) {
	s.mu.Lock()
	fn()
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}
