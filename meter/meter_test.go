package meter_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/reckon/credit"
	"github.com/xraph/reckon/meter"
)

// fakeStore backs both the meter and the ledger in these tests.
type fakeStore struct {
	mu      sync.Mutex
	usage   []*meter.UsageRecord
	closed  map[string]bool
	entries map[string][]*credit.LedgerEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		closed:  make(map[string]bool),
		entries: make(map[string][]*credit.LedgerEntry),
	}
}

func (s *fakeStore) InsertUsageRecord(_ context.Context, record *meter.UsageRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.usage {
		if r.SubscriptionItemID == record.SubscriptionItemID && r.IdempotencyToken == record.IdempotencyToken {
			return false, nil
		}
	}
	s.usage = append(s.usage, record)
	return true, nil
}

func (s *fakeStore) SumUsage(_ context.Context, itemID, bucket string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, r := range s.usage {
		if r.SubscriptionItemID == itemID && r.PeriodBucket == bucket {
			total += r.Quantity
		}
	}
	return total, nil
}

func (s *fakeStore) MarkPeriodClosed(_ context.Context, itemID, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed[itemID+"/"+bucket] = true
	return nil
}

func (s *fakeStore) IsPeriodClosed(_ context.Context, itemID, bucket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed[itemID+"/"+bucket], nil
}

func (s *fakeStore) AppendLedgerEntry(_ context.Context, entry *credit.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.CustomerID] = append(s.entries[entry.CustomerID], entry)
	return nil
}

func (s *fakeStore) FindLedgerEntry(_ context.Context, customerID string, reason credit.Reason, ref string) (*credit.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries[customerID] {
		if e.Reason == reason && e.ExternalRef == ref {
			return e, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LedgerBalance(_ context.Context, customerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, e := range s.entries[customerID] {
		sum += e.Delta
	}
	return sum, nil
}

func (s *fakeStore) ListLedgerEntries(_ context.Context, customerID string, limit, offset int) ([]*credit.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[customerID], nil
}

var testPeriod = meter.Period{
	Start: time.Unix(1700000000, 0).UTC(),
	End:   time.Unix(1702592000, 0).UTC(),
}

func newMeter(t *testing.T) (*meter.Meter, *credit.Ledger) {
	t.Helper()
	store := newFakeStore()
	ledger := credit.New(store)
	return meter.New(store, ledger), ledger
}

func TestReportAccepted(t *testing.T) {
	ctx := context.Background()
	m, _ := newMeter(t)

	status, err := m.Report(ctx, "si_1", 3, testPeriod.Start.Add(time.Hour), "tok_1", testPeriod)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if status != meter.StatusAccepted {
		t.Errorf("expected accepted, got %s", status)
	}
}

func TestReportDuplicateToken(t *testing.T) {
	ctx := context.Background()
	m, _ := newMeter(t)

	if _, err := m.Report(ctx, "si_1", 3, testPeriod.Start.Add(time.Hour), "tok_1", testPeriod); err != nil {
		t.Fatal(err)
	}
	status, err := m.Report(ctx, "si_1", 3, testPeriod.Start.Add(2*time.Hour), "tok_1", testPeriod)
	if err != nil {
		t.Fatalf("duplicate report should not error: %v", err)
	}
	if status != meter.StatusDuplicate {
		t.Errorf("expected duplicate, got %s", status)
	}

	total, _ := m.ClosePeriod(ctx, "cus_1", "si_1", testPeriod)
	if total.Quantity != 3 {
		t.Errorf("duplicate must not count: expected 3, got %d", total.Quantity)
	}
}

func TestReportValidation(t *testing.T) {
	ctx := context.Background()
	m, _ := newMeter(t)
	inPeriod := testPeriod.Start.Add(time.Hour)

	if _, err := m.Report(ctx, "si_1", 0, inPeriod, "tok", testPeriod); !errors.Is(err, meter.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := m.Report(ctx, "si_1", -2, inPeriod, "tok", testPeriod); !errors.Is(err, meter.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := m.Report(ctx, "si_1", 1, testPeriod.End.Add(time.Hour), "tok", testPeriod); !errors.Is(err, meter.ErrOutsidePeriod) {
		t.Errorf("expected ErrOutsidePeriod, got %v", err)
	}
}

// Reports of 3 and 7 for one item/period, period close triggered twice:
// exactly one debit of 10.
func TestClosePeriodIdempotent(t *testing.T) {
	ctx := context.Background()
	m, ledger := newMeter(t)

	if _, err := ledger.Credit(ctx, "cus_1", 100, credit.ReasonManualCredit, "seed"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Report(ctx, "si_1", 3, testPeriod.Start.Add(time.Hour), "tok_1", testPeriod); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Report(ctx, "si_1", 7, testPeriod.Start.Add(2*time.Hour), "tok_2", testPeriod); err != nil {
		t.Fatal(err)
	}

	first, err := m.ClosePeriod(ctx, "cus_1", "si_1", testPeriod)
	if err != nil {
		t.Fatalf("ClosePeriod failed: %v", err)
	}
	if first.Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", first.Quantity)
	}
	if first.Debit == nil || first.Debit.Duplicate {
		t.Fatalf("expected a fresh debit, got %+v", first.Debit)
	}
	if first.Debit.Balance != 90 {
		t.Errorf("expected balance 90, got %d", first.Debit.Balance)
	}

	second, err := m.ClosePeriod(ctx, "cus_1", "si_1", testPeriod)
	if err != nil {
		t.Fatalf("duplicate close failed: %v", err)
	}
	if second.Debit == nil || !second.Debit.Duplicate {
		t.Errorf("duplicate close should collapse onto the original debit: %+v", second.Debit)
	}

	bal, _ := ledger.Balance(ctx, "cus_1")
	if bal != 90 {
		t.Errorf("expected exactly one debit of 10 (balance 90), got %d", bal)
	}
}

func TestClosePeriodEmptyBucket(t *testing.T) {
	ctx := context.Background()
	m, ledger := newMeter(t)

	result, err := m.ClosePeriod(ctx, "cus_1", "si_1", testPeriod)
	if err != nil {
		t.Fatalf("ClosePeriod failed: %v", err)
	}
	if result.Quantity != 0 || result.Debit != nil {
		t.Errorf("empty bucket should bill nothing, got %+v", result)
	}

	bal, _ := ledger.Balance(ctx, "cus_1")
	if bal != 0 {
		t.Errorf("expected untouched balance, got %d", bal)
	}
}

func TestReportAfterCloseRejected(t *testing.T) {
	ctx := context.Background()
	m, _ := newMeter(t)

	if _, err := m.ClosePeriod(ctx, "cus_1", "si_1", testPeriod); err != nil {
		t.Fatal(err)
	}

	_, err := m.Report(ctx, "si_1", 5, testPeriod.Start.Add(time.Hour), "tok_late", testPeriod)
	if !errors.Is(err, meter.ErrPeriodClosed) {
		t.Errorf("expected ErrPeriodClosed, got %v", err)
	}
}

// Reports racing a period close must never slip between the close's sum
// and its settled mark: every accepted report is billed by the close, and
// a report arriving after it is rejected with ErrPeriodClosed.
func TestReportsRacingCloseBilledOrRejected(t *testing.T) {
	ctx := context.Background()
	m, ledger := newMeter(t)

	if _, err := ledger.Credit(ctx, "cus_1", 1000, credit.ReasonManualCredit, "seed"); err != nil {
		t.Fatal(err)
	}

	const reporters = 16
	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
	)
	start := make(chan struct{})
	for i := 0; i < reporters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			token := fmt.Sprintf("tok_%d", i)
			status, err := m.Report(ctx, "si_1", 1, testPeriod.Start.Add(time.Hour), token, testPeriod)
			switch {
			case err == nil && status == meter.StatusAccepted:
				accepted.Add(1)
			case errors.Is(err, meter.ErrPeriodClosed):
				// Arrived after the close; nothing billed for it.
			default:
				t.Errorf("report %d: status=%q err=%v", i, status, err)
			}
		}(i)
	}

	var result *meter.CloseResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		var err error
		result, err = m.ClosePeriod(ctx, "cus_1", "si_1", testPeriod)
		if err != nil {
			t.Errorf("ClosePeriod failed: %v", err)
		}
	}()

	close(start)
	wg.Wait()

	if result == nil {
		t.Fatal("close did not complete")
	}
	if result.Quantity != accepted.Load() {
		t.Errorf("close billed %d units, but %d reports were accepted", result.Quantity, accepted.Load())
	}
	bal, _ := ledger.Balance(ctx, "cus_1")
	if want := 1000 - accepted.Load(); bal != want {
		t.Errorf("expected balance %d, got %d", want, bal)
	}
}

func TestPeriodBucketStable(t *testing.T) {
	other := meter.Period{Start: testPeriod.Start, End: testPeriod.End}
	if testPeriod.Bucket() != other.Bucket() {
		t.Error("equal periods must share a bucket key")
	}
	shifted := meter.Period{Start: testPeriod.End, End: testPeriod.End.Add(30 * 24 * time.Hour)}
	if testPeriod.Bucket() == shifted.Bucket() {
		t.Error("different periods must not collide")
	}
}
