package exam

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/liamcoop/startrescue/internal/logger"
)

// ErrSessionNotFound is returned for unknown or reaped exam ids.
var ErrSessionNotFound = errors.New("exam session not found")

// SessionFactory builds an unstarted Session.
type SessionFactory func() (*Session, error)

// Registry keeps the live sessions of a server in memory, keyed by exam id.
// Sessions idle for longer than the TTL are discarded by Reap.
type Registry struct {
	newSession SessionFactory
	idleTTL    time.Duration
	now        func() time.Time

	entries map[string]*registryEntry
	mu      sync.Mutex

	cron *cron.Cron
}

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// NewRegistry creates an empty registry. An idleTTL of zero keeps sessions
// until they are deleted.
func NewRegistry(factory SessionFactory, idleTTL time.Duration) *Registry {
	return &Registry{
		newSession: factory,
		idleTTL:    idleTTL,
		now:        time.Now,
		entries:    make(map[string]*registryEntry),
	}
}

// Create builds, starts and stores a session for ex.
func (r *Registry) Create(ex Examinee) (string, *Session, error) {
	s, err := r.newSession()
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.Start(ex.Name, ex.Sector, ex.Registration)
	if ex.Email != "" {
		s.SetEmail(ex.Email)
	}

	id := uuid.NewString()

	r.mu.Lock()
	r.entries[id] = &registryEntry{session: s, lastSeen: r.now()}
	r.mu.Unlock()

	return id, s, nil
}

// Get returns the session for id and marks it as recently used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.lastSeen = r.now()
	return e.session, nil
}

// Delete stops and removes the session for id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, exists := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.session.Stop()
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// Reap discards sessions idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Reap() int {
	if r.idleTTL <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.idleTTL)
	var stale []*Session

	r.mu.Lock()
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.session)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Stop()
	}
	return len(stale)
}

// StartJanitor runs Reap on the given cron schedule (e.g. "@every 5m").
func (r *Registry) StartJanitor(schedule string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(schedule, func() {
		if n := r.Reap(); n > 0 {
			logger.Info("reaped idle exam sessions", "count", n, "remaining", r.Len())
		}
	}); err != nil {
		return fmt.Errorf("failed to register reap job: %w", err)
	}

	r.cron = c
	c.Start()
	logger.Info("session janitor started", "schedule", schedule, "idleTTL", r.idleTTL.String())
	return nil
}

// StopJanitor stops the reap job and waits for a running reap to finish.
func (r *Registry) StopJanitor() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.cron = nil
}
