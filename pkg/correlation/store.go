// Package correlation tracks pending asynchronous exchanges: a message
// sent with a ReplyTo callback is registered under its message id and
// resolved at most once when a response relating to it arrives.
package correlation

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// Defaults applied when Options leaves them zero.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = 30 * time.Second
)

// Entry is one pending exchange.
type Entry struct {
	MessageID  string
	ReplyTo    string
	Token      string // opaque caller token returned on resolution
	Registered time.Time
	Deadline   time.Time
}

// Options configures a Store.
type Options struct {
	// Clock drives deadlines and the sweeper. Nil means wall clock.
	Clock clock.Clock
	// DefaultTTL is used when Register is called with a zero ttl.
	DefaultTTL time.Duration
	// SweepInterval is how often expired entries are collected.
	SweepInterval time.Duration
	// OnExpired is invoked once per expired entry, outside the store
	// lock and in no particular order.
	OnExpired func(Entry)
}

// Store is a mutex-guarded registry of pending exchanges keyed by
// message id. Resolution, cancellation, and expiry are mutually
// exclusive per id: whichever removes the entry first wins and the
// others see an absent id.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry

	clk       clock.Clock
	ttl       time.Duration
	onExpired func(Entry)

	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store and starts its background sweeper. Call
// Stop when done.
func NewStore(opts Options) *Store {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	interval := opts.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s := &Store{
		entries:   make(map[string]Entry),
		clk:       clk,
		ttl:       ttl,
		onExpired: opts.OnExpired,
		done:      make(chan struct{}),
	}
	// The ticker must exist before NewStore returns so a test clock
	// advanced immediately afterwards still fires it.
	ticker := clk.Ticker(interval)
	go s.runSweeper(ticker)
	return s
}

// Stop halts the background sweeper. Entries still pending stay in the
// store; Stop does not expire them.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Register records a pending exchange under its message id. A zero ttl
// uses the store default. Registering an id that is already pending is
// a caller bug and fails.
func (s *Store) Register(messageID, replyTo, token string, ttl time.Duration) error {
	if messageID == "" {
		return fmt.Errorf("message id is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[messageID]; exists {
		return fmt.Errorf("exchange %q is already pending", messageID)
	}
	s.entries[messageID] = Entry{
		MessageID:  messageID,
		ReplyTo:    replyTo,
		Token:      token,
		Registered: now,
		Deadline:   now.Add(ttl),
	}
	return nil
}

// Resolve matches a response's RelatesTo against the pending exchanges
// and removes the entry. Resolution is at most once: a second resolve
// for the same id reports UnknownCorrelation exactly like an id that
// was never registered, already cancelled, or already expired.
func (s *Store) Resolve(relatesTo string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[relatesTo]
	if !ok {
		return Entry{}, fault.New(fault.UnknownCorrelation, "no pending exchange").
			WithExchange("", relatesTo)
	}
	delete(s.entries, relatesTo)
	return entry, nil
}

// Cancel removes a pending exchange without resolving it. It reports
// whether the entry was still pending.
func (s *Store) Cancel(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[messageID]
	delete(s.entries, messageID)
	return ok
}

// Pending returns the number of exchanges awaiting resolution.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) runSweeper(ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep removes entries past their deadline and reports each one. The
// callback runs outside the lock so it may call back into the store.
func (s *Store) sweep() {
	now := s.clk.Now()

	s.mu.Lock()
	var expired []Entry
	for id, entry := range s.entries {
		if now.After(entry.Deadline) {
			expired = append(expired, entry)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	if s.onExpired == nil {
		return
	}
	for _, entry := range expired {
		s.onExpired(entry)
	}
}

// ExpiredError builds the fault reported for an exchange whose
// callback never arrived within its window.
func ExpiredError(entry Entry) error {
	return fault.New(fault.CallbackTimeout, "no response within %s",
		entry.Deadline.Sub(entry.Registered)).WithExchange("", entry.MessageID)
}
