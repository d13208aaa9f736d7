package conversation

import (
	"sync"
	"time"

	"intakebot/pkg/logx"
)

// Key builds the registry key for a conversation/user pair. One user in two
// threads, or two users in one thread, get independent records.
func Key(conversationID, userID string) string {
	return conversationID + ":" + userID
}

// Archiver receives records evicted from the registry. Implementations must
// not retain the record past the call.
type Archiver func(rec *Record)

// Store is the registry surface the turn controller depends on; Registry is
// the in-memory implementation.
type Store interface {
	WithRecord(key string, participant Participant, fn func(rec *Record) error) error
	Peek(key string, fn func(rec *Record)) bool
	Delete(key string)
}

// Registry owns all live conversation records and serializes access per key.
// Concurrent turns for different keys proceed in parallel; turns for the same
// key queue on the entry mutex.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	idleAfter time.Duration
	archiver  Archiver
	logger    *logx.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

type entry struct {
	mu        sync.Mutex
	rec       *Record
	lastTouch time.Time
}

// DefaultIdleAfter is how long a record may sit untouched before the janitor
// considers it for eviction.
const DefaultIdleAfter = 30 * time.Minute

const janitorInterval = 5 * time.Minute

// NewRegistry creates a registry. idleAfter <= 0 falls back to
// DefaultIdleAfter. archiver may be nil.
func NewRegistry(idleAfter time.Duration, archiver Archiver) *Registry {
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}
	return &Registry{
		entries:   make(map[string]*entry),
		idleAfter: idleAfter,
		archiver:  archiver,
		logger:    logx.NewLogger("registry"),
		stopCh:    make(chan struct{}),
	}
}

// WithRecord runs fn against the record for key, creating the record on first
// use. The entry mutex is held for the duration of fn, so turns for the same
// conversation never interleave.
func (g *Registry) WithRecord(key string, participant Participant, fn func(rec *Record) error) error {
	e := g.entry(key, participant)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.rec)
}

// Peek returns a snapshot view of the record for key without creating one.
// The callback runs under the entry lock; nil rec means no record exists.
func (g *Registry) Peek(key string, fn func(rec *Record)) bool {
	g.mu.Lock()
	e, ok := g.entries[key]
	g.mu.Unlock()
	if !ok {
		fn(nil)
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.rec)
	return true
}

// Delete removes the record for key, invoking the archiver if set.
func (g *Registry) Delete(key string) {
	g.mu.Lock()
	e, ok := g.entries[key]
	if ok {
		delete(g.entries, key)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()
	if g.archiver != nil && rec != nil {
		g.archiver(rec)
	}
}

// Len returns the number of live records.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// EvictIdle removes completed records idle longer than the configured
// threshold and hands them to the archiver. Active conversations are never
// evicted regardless of age. Returns the number of evictions.
func (g *Registry) EvictIdle() int {
	cutoff := time.Now().UTC().Add(-g.idleAfter)

	g.mu.Lock()
	var stale []*entry
	var keys []string
	for key, e := range g.entries {
		if e.lastTouch.Before(cutoff) {
			stale = append(stale, e)
			keys = append(keys, key)
		}
	}
	g.mu.Unlock()

	evicted := 0
	for i, e := range stale {
		e.mu.Lock()
		rec := e.rec
		done := rec.State() == StateCompleted
		e.mu.Unlock()
		if !done {
			continue
		}
		g.mu.Lock()
		// Re-check under the registry lock in case the entry was touched
		// or replaced since the scan.
		if cur, ok := g.entries[keys[i]]; ok && cur == e && e.lastTouch.Before(cutoff) {
			delete(g.entries, keys[i])
			evicted++
			g.mu.Unlock()
			if g.archiver != nil {
				g.archiver(rec)
			}
			continue
		}
		g.mu.Unlock()
	}
	if evicted > 0 {
		g.logger.Debug("evicted %d idle conversation(s)", evicted)
	}
	return evicted
}

// StartJanitor launches the background eviction loop. Call Stop to halt it.
func (g *Registry) StartJanitor() {
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.EvictIdle()
			case <-g.stopCh:
				return
			}
		}
	}()
}

// Stop halts the janitor. Safe to call multiple times.
func (g *Registry) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
}

// entry returns the entry for key, creating it on first use. lastTouch is
// only ever written here, under g.mu, which also guards the janitor's reads.
func (g *Registry) entry(key string, participant Participant) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok {
		e = &entry{rec: NewRecord(key, participant)}
		g.entries[key] = e
		g.logger.Debug("created record for %s", key)
	}
	e.lastTouch = time.Now().UTC()
	return e
}
