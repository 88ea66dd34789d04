// Package availability tracks which data sources are temporarily unusable.
//
// A source marked limited is skipped until its cooldown elapses. Recovery is
// lazy: the flag is cleared by the first availability check made after the
// cooldown, with no background timer.
package availability

import (
	"sync"
	"time"

	"github.com/matsen/citethreads/internal/logger"
)

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

// DefaultCooldown applies to sources without a configured cooldown.
const DefaultCooldown = time.Minute

// Tracker is a per-source circuit breaker with timed self-recovery.
// It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	limitedAt map[string]time.Time
	cooldowns map[string]time.Duration
	fallback  time.Duration
	now       Clock
	log       *logger.Logger
	onMark    func(source string)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCooldown sets the cooldown for one source.
func WithCooldown(source string, d time.Duration) Option {
	return func(t *Tracker) {
		t.cooldowns[source] = d
	}
}

// WithDefaultCooldown sets the cooldown for sources without their own.
func WithDefaultCooldown(d time.Duration) Option {
	return func(t *Tracker) {
		t.fallback = d
	}
}

// WithClock substitutes the time source.
func WithClock(c Clock) Option {
	return func(t *Tracker) {
		t.now = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(t *Tracker) {
		t.log = l
	}
}

// WithMarkHook registers a function called each time a source is marked
// limited.
func WithMarkHook(fn func(source string)) Option {
	return func(t *Tracker) {
		t.onMark = fn
	}
}

// New creates a tracker with every source available.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		limitedAt: make(map[string]time.Time),
		cooldowns: make(map[string]time.Duration),
		fallback:  DefaultCooldown,
		now:       time.Now,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logger.OrNop(t.log).With("component", "availability")
	return t
}

// MarkLimited flags source as unavailable starting now. Marking an already
// limited source restarts its cooldown.
func (t *Tracker) MarkLimited(source string) {
	t.mu.Lock()
	t.limitedAt[source] = t.now()
	t.mu.Unlock()

	t.log.Warn("source marked limited", "source", source, "cooldown", t.Cooldown(source))
	if t.onMark != nil {
		t.onMark(source)
	}
}

// IsAvailable reports whether source may be tried. A limited source becomes
// available again, and its flag is cleared, once more than its cooldown has
// passed since it was marked.
func (t *Tracker) IsAvailable(source string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	at, limited := t.limitedAt[source]
	if !limited {
		return true
	}
	if t.now().Sub(at) > t.cooldownLocked(source) {
		delete(t.limitedAt, source)
		t.log.Info("source recovered", "source", source)
		return true
	}
	return false
}

// Cooldown returns the cooldown applied to source.
func (t *Tracker) Cooldown(source string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cooldownLocked(source)
}

func (t *Tracker) cooldownLocked(source string) time.Duration {
	if d, ok := t.cooldowns[source]; ok {
		return d
	}
	return t.fallback
}

// Limited returns the sources currently flagged, without clearing expired
// flags.
func (t *Tracker) Limited() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.limitedAt))
	for s := range t.limitedAt {
		out = append(out, s)
	}
	return out
}
