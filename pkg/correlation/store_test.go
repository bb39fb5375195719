package correlation

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s := NewStore(opts)
	t.Cleanup(s.Stop)
	return s
}

func TestRegisterAndResolve(t *testing.T) {
	s := newTestStore(t, Options{})

	require.NoError(t, s.Register("urn:uuid:1", "https://client.example.nl/antwoord", "tok-1", 0))
	assert.Equal(t, 1, s.Pending())

	entry, err := s.Resolve("urn:uuid:1")
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:1", entry.MessageID)
	assert.Equal(t, "https://client.example.nl/antwoord", entry.ReplyTo)
	assert.Equal(t, "tok-1", entry.Token)
	assert.Equal(t, 0, s.Pending())
}

func TestResolveAtMostOnce(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.Register("urn:uuid:1", "", "", 0))

	_, err := s.Resolve("urn:uuid:1")
	require.NoError(t, err)

	_, err = s.Resolve("urn:uuid:1")
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.UnknownCorrelation))
}

func TestResolveUnknown(t *testing.T) {
	s := newTestStore(t, Options{})

	_, err := s.Resolve("urn:uuid:never-registered")
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.UnknownCorrelation))

	var f *fault.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "urn:uuid:never-registered", f.MessageID)
}

func TestDuplicateRegistration(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.Register("urn:uuid:1", "", "", 0))
	require.Error(t, s.Register("urn:uuid:1", "", "", 0))
}

func TestCancel(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.Register("urn:uuid:1", "", "", 0))

	assert.True(t, s.Cancel("urn:uuid:1"))
	assert.False(t, s.Cancel("urn:uuid:1"))

	_, err := s.Resolve("urn:uuid:1")
	assert.True(t, fault.Is(err, fault.UnknownCorrelation))
}

func TestSweepExpiresEntries(t *testing.T) {
	mock := clock.NewMock()
	var expired atomic.Int32
	var mu sync.Mutex
	var seen []Entry

	s := newTestStore(t, Options{
		Clock:         mock,
		DefaultTTL:    time.Minute,
		SweepInterval: 10 * time.Second,
		OnExpired: func(e Entry) {
			mu.Lock()
			seen = append(seen, e)
			mu.Unlock()
			expired.Add(1)
		},
	})

	require.NoError(t, s.Register("urn:uuid:short", "https://a.example.nl/", "t1", 30*time.Second))
	require.NoError(t, s.Register("urn:uuid:long", "https://b.example.nl/", "t2", 5*time.Minute))

	mock.Add(time.Minute)
	require.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	require.Len(t, seen, 1)
	assert.Equal(t, "urn:uuid:short", seen[0].MessageID)
	mu.Unlock()
	assert.Equal(t, 1, s.Pending())

	// The expired entry is gone for good.
	_, err := s.Resolve("urn:uuid:short")
	assert.True(t, fault.Is(err, fault.UnknownCorrelation))

	// The longer-lived one still resolves.
	_, err = s.Resolve("urn:uuid:long")
	assert.NoError(t, err)
}

func TestSweepFiresOnImmediateClockAdvance(t *testing.T) {
	// The sweep ticker is registered before NewStore returns, so a
	// clock advanced right away still drives it.
	mock := clock.NewMock()
	var expired atomic.Int32

	s := newTestStore(t, Options{
		Clock:         mock,
		DefaultTTL:    time.Second,
		SweepInterval: time.Second,
		OnExpired:     func(Entry) { expired.Add(1) },
	})
	require.NoError(t, s.Register("urn:uuid:1", "", "", time.Second))

	mock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Pending())
}

func TestConcurrentResolveSingleWinner(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.Register("urn:uuid:1", "", "", 0))

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Resolve("urn:uuid:1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestExpiredError(t *testing.T) {
	now := time.Now()
	err := ExpiredError(Entry{
		MessageID:  "urn:uuid:1",
		Registered: now,
		Deadline:   now.Add(time.Minute),
	})
	assert.True(t, fault.Is(err, fault.CallbackTimeout))

	var f *fault.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "urn:uuid:1", f.MessageID)
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewStore(Options{})
	s.Stop()
	s.Stop()
}
