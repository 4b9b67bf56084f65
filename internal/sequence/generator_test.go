package sequence

import (
	"context"
	"io"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gstbill/gstbill/internal/logging"
	"github.com/gstbill/gstbill/internal/models"
	"github.com/gstbill/gstbill/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounterStore is an in-memory CounterStore with compare-and-set
// semantics and injectable failures.
type fakeCounterStore struct {
	mu       sync.Mutex
	counters map[string]*models.SequenceCounter // keyed by storeID|date

	failWith  error // returned by every call when set
	failTimes int   // if > 0, failWith applies only this many times
	calls     int
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counters: make(map[string]*models.SequenceCounter)}
}

func (f *fakeCounterStore) fail() error {
	if f.failWith == nil {
		return nil
	}
	if f.failTimes > 0 {
		f.failTimes--
		err := f.failWith
		if f.failTimes == 0 {
			f.failWith = nil
		}
		return err
	}
	return f.failWith
}

func (f *fakeCounterStore) GetCounter(_ context.Context, storeID, date string) (*models.SequenceCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail(); err != nil {
		return nil, err
	}
	c, ok := f.counters[storeID+"|"+date]
	if !ok {
		return nil, &remote.Error{Code: remote.CodeNotFound, Op: "get counter"}
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCounterStore) CreateCounter(_ context.Context, c *models.SequenceCounter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail(); err != nil {
		return err
	}
	key := c.StoreID + "|" + c.SeqDate
	if _, ok := f.counters[key]; ok {
		return &remote.Error{Code: remote.CodeDuplicateKey, Op: "create counter"}
	}
	cp := *c
	f.counters[key] = &cp
	return nil
}

func (f *fakeCounterStore) UpdateCounterValue(_ context.Context, id string, oldValue, newValue int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail(); err != nil {
		return err
	}
	for _, c := range f.counters {
		if c.ID == id {
			if c.Value != oldValue {
				return &remote.Error{Code: remote.CodeConflict, Op: "update counter"}
			}
			c.Value = newValue
			return nil
		}
	}
	return &remote.Error{Code: remote.CodeNotFound, Op: "update counter"}
}

func testLogger() logging.Logger {
	return logging.NewJSONLogger(io.Discard)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var numberPattern = regexp.MustCompile(`^[A-Z0-9X]{4}-[A-Z0-9X]{4}-\d{14}-\d{3}$`)

func TestNext_FirstAndSecondOfDay(t *testing.T) {
	fc := newFakeCounterStore()
	ts := time.Date(2025, 1, 15, 9, 30, 0, 0, time.Local)
	g := New(fc, testLogger(), WithClock(fixedClock(ts)))
	ctx := context.Background()

	first, err := g.Next(ctx, "store-1", "DEMO", "DE01")
	require.NoError(t, err)
	assert.Equal(t, "DEMO-DE01-20250115093000-001", first)

	second, err := g.Next(ctx, "store-1", "DEMO", "DE01")
	require.NoError(t, err)
	assert.Equal(t, "DEMO-DE01-20250115093000-002", second)
}

func TestNext_ConcurrentCallsYieldDistinctGaplessSequences(t *testing.T) {
	fc := newFakeCounterStore()
	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.Local)
	g := New(fc, testLogger(), WithClock(fixedClock(ts)))

	const n = 25
	results := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = g.Next(context.Background(), "store-1", "DEMO", "")
		}(i)
	}
	wg.Wait()

	seqs := make([]string, n)
	for i, num := range results {
		require.NoError(t, errs[i])
		require.Regexp(t, numberPattern, num)
		seqs[i] = num[len(num)-3:]
	}
	sort.Strings(seqs)
	for i := 0; i < n; i++ {
		assert.Equal(t, seqs[i], padSeq(i+1), "sequence values must be distinct and gapless")
	}
}

func padSeq(n int) string {
	s := []byte{'0', '0', '0'}
	for i := 2; i >= 0 && n > 0; i-- {
		s[i] = byte('0' + n%10)
		n /= 10
	}
	return string(s)
}

func TestNext_PermissionDenialFallsBackWithoutError(t *testing.T) {
	fc := newFakeCounterStore()
	fc.failWith = &remote.Error{Code: remote.CodePermissionDenied, Op: "get counter"}
	ts := time.Date(2025, 1, 15, 9, 30, 0, 250, time.Local)
	g := New(fc, testLogger(), WithClock(fixedClock(ts)))

	num, err := g.Next(context.Background(), "store-1", "DEMO", "DE01")
	require.NoError(t, err)
	assert.Regexp(t, numberPattern, num)
	assert.True(t, len(num) == len("DEMO-DE01-20250115093000-000"))
}

func TestNext_TransientFailureRetriedThenRealSequence(t *testing.T) {
	fc := newFakeCounterStore()
	fc.failWith = &remote.Error{Code: remote.CodeTransient, Op: "get counter"}
	fc.failTimes = 2
	ts := time.Date(2025, 1, 15, 9, 30, 0, 0, time.Local)
	g := New(fc, testLogger(), WithClock(fixedClock(ts)))

	num, err := g.Next(context.Background(), "store-1", "DEMO", "DE01")
	require.NoError(t, err)
	// the transient failures were retried, so this is a real counter value
	assert.Equal(t, "DEMO-DE01-20250115093000-001", num)
}

func TestNext_TransientFailuresExhaustedFallsBack(t *testing.T) {
	fc := newFakeCounterStore()
	fc.failWith = &remote.Error{Code: remote.CodeTransient, Op: "get counter"}
	ts := time.Date(2025, 1, 15, 9, 30, 0, 0, time.Local)
	g := New(fc, testLogger(), WithClock(fixedClock(ts)), WithTransientRetries(1))

	num, err := g.Next(context.Background(), "store-1", "DEMO", "DE01")
	require.NoError(t, err)
	assert.Regexp(t, numberPattern, num)
}

func TestNext_DailyLimitIsFatal(t *testing.T) {
	fc := newFakeCounterStore()
	ts := time.Date(2025, 1, 15, 9, 30, 0, 0, time.Local)
	fc.counters["store-1|2025-01-15"] = &models.SequenceCounter{
		ID: "cnt", StoreID: "store-1", SeqDate: "2025-01-15", Value: MaxDailySequence,
	}
	g := New(fc, testLogger(), WithClock(fixedClock(ts)))

	num, err := g.Next(context.Background(), "store-1", "DEMO", "DE01")
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
	assert.Empty(t, num)
}

func TestNext_DuplicateCreateReReadsExistingRow(t *testing.T) {
	fc := newFakeCounterStore()
	ts := time.Date(2025, 1, 15, 9, 30, 0, 0, time.Local)
	// simulate another device having just created the row: pre-seed it so
	// the generator's create collides
	fc.counters["store-1|2025-01-15"] = &models.SequenceCounter{
		ID: "cnt", StoreID: "store-1", SeqDate: "2025-01-15", Value: 4,
	}
	g := New(fc, testLogger(), WithClock(fixedClock(ts)))

	num, err := g.Next(context.Background(), "store-1", "DEMO", "DE01")
	require.NoError(t, err)
	assert.Equal(t, "DEMO-DE01-20250115093000-005", num)
}
