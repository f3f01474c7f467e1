package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mailsift/mailsift/internal/cache"
	"github.com/mailsift/mailsift/internal/mailstore"
	"github.com/mailsift/mailsift/internal/models"
	"github.com/mailsift/mailsift/internal/services/classifier"
	"go.uber.org/zap"
)

// fakeInbox is a stateful mail store: items disappear from the unlabeled
// search once labeled, like a real inbox.
type fakeInbox struct {
	mu    sync.Mutex
	items []*mailstore.Metadata
	done  map[string]bool
}

func newFakeInbox(n int) *fakeInbox {
	inbox := &fakeInbox{done: make(map[string]bool)}
	for i := 0; i < n; i++ {
		inbox.items = append(inbox.items, &mailstore.Metadata{
			ID:      fmt.Sprintf("msg-%d", i),
			Sender:  fmt.Sprintf("sender%d@example.com", i%5),
			Subject: fmt.Sprintf("subject %d", i),
		})
	}
	return inbox
}

func (f *fakeInbox) bind(mail *fakeMailStore) {
	mail.searchUnlabeledFn = func(ctx context.Context, q mailstore.Query) ([]string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var ids []string
		for _, it := range f.items {
			if f.done[it.ID] {
				continue
			}
			ids = append(ids, it.ID)
			if len(ids) >= q.Limit {
				break
			}
		}
		return ids, nil
	}
	mail.fetchMetadataFn = func(ctx context.Context, ids []string) ([]*mailstore.Metadata, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var metas []*mailstore.Metadata
		for _, id := range ids {
			for _, it := range f.items {
				if it.ID == id {
					metas = append(metas, it)
				}
			}
		}
		return metas, nil
	}
	mail.addLabelFn = func(ctx context.Context, id string, label string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.done[id] = true
		return nil
	}
}

type driverFixture struct {
	mail    *fakeMailStore
	clf     *fakeClassifier
	clock   *fakeClock
	driver  *BatchDriver
	limiter *SafetyLimiter
	state   *RunState
}

func newDriverFixture(t *testing.T, inbox *fakeInbox, limits Limits, batchSize int) *driverFixture {
	t.Helper()

	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	mail := newFakeMailStore()
	inbox.bind(mail)

	clf := &fakeClassifier{}
	rules := NewRuleTable(&fakeRuleRepo{}, cache.NewMemoryStore(nil), time.Hour, zap.NewNop())
	decisions := NewDecisionCache(cache.NewMemoryStore(nil), 6*time.Hour, zap.NewNop())
	cascade := NewCascade(mail, rules, decisions, clf, zap.NewNop())

	limiter := newTestLimiter(limits, clock)
	driver := NewBatchDriver(mail, cascade, limiter, batchSize, 0, zap.NewNop())
	driver.now = clock.Now

	return &driverFixture{
		mail:    mail,
		clf:     clf,
		clock:   clock,
		driver:  driver,
		limiter: limiter,
		state:   NewRunState(clock.Now(), 0),
	}
}

// distinctResult makes each classification distinct so decision caching never
// collapses items in tests that count classifier calls.
func distinctResult(req classifier.Request) (*classifier.Result, error) {
	return &classifier.Result{PrimaryLabel: string(models.LabelPromotions), Reasoning: "test"}, nil
}

func TestBatchDriverDrainsInbox(t *testing.T) {
	t.Parallel()

	inbox := newFakeInbox(60)
	fx := newDriverFixture(t, inbox, defaultTestLimits(), 25)
	fx.clf.classifyFn = func(ctx context.Context, req classifier.Request) (*classifier.Result, error) {
		return distinctResult(req)
	}

	if err := fx.driver.Run(context.Background(), fx.state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fx.state.StopReason != StopDrained {
		t.Errorf("StopReason = %q, want %q", fx.state.StopReason, StopDrained)
	}
	if fx.state.TotalProcessed != 60 {
		t.Errorf("TotalProcessed = %d, want 60", fx.state.TotalProcessed)
	}
	// 25 + 25 + 10, then an empty search that is not counted as a batch.
	if fx.state.BatchNumber != 3 {
		t.Errorf("BatchNumber = %d, want 3", fx.state.BatchNumber)
	}
}

func TestBatchDriverDrainedRunIsIdempotent(t *testing.T) {
	t.Parallel()

	inbox := newFakeInbox(10)
	fx := newDriverFixture(t, inbox, defaultTestLimits(), 25)

	if err := fx.driver.Run(context.Background(), fx.state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	firstCalls := fx.clf.calls

	// A second run over the same inbox finds nothing.
	second := NewRunState(fx.clock.Now(), 0)
	if err := fx.driver.Run(context.Background(), second); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.TotalProcessed != 0 {
		t.Errorf("second run processed %d items, want 0", second.TotalProcessed)
	}
	if second.StopReason != StopDrained {
		t.Errorf("second run StopReason = %q, want %q", second.StopReason, StopDrained)
	}
	if fx.clf.calls != firstCalls {
		t.Errorf("second run made %d extra classifier calls", fx.clf.calls-firstCalls)
	}
}

func TestBatchDriverStopsAtItemLimit(t *testing.T) {
	t.Parallel()

	limits := defaultTestLimits()
	limits.MaxItems = 50
	inbox := newFakeInbox(80)
	fx := newDriverFixture(t, inbox, limits, 25)

	if err := fx.driver.Run(context.Background(), fx.state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fx.state.StopReason != StopItemLimit {
		t.Errorf("StopReason = %q, want %q", fx.state.StopReason, StopItemLimit)
	}
	if fx.state.TotalProcessed != 50 {
		t.Errorf("TotalProcessed = %d, want 50", fx.state.TotalProcessed)
	}
}

func TestBatchDriverStopsAtTimeLimit(t *testing.T) {
	t.Parallel()

	inbox := newFakeInbox(100)
	fx := newDriverFixture(t, inbox, defaultTestLimits(), 25)

	// Each classification burns 20 seconds; the run crosses five minutes
	// mid-inbox.
	fx.clf.classifyFn = func(ctx context.Context, req classifier.Request) (*classifier.Result, error) {
		fx.clock.Advance(20 * time.Second)
		return distinctResult(req)
	}

	if err := fx.driver.Run(context.Background(), fx.state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fx.state.StopReason != StopTimeLimit {
		t.Errorf("StopReason = %q, want %q", fx.state.StopReason, StopTimeLimit)
	}
	if fx.state.TotalProcessed == 0 || fx.state.TotalProcessed >= 100 {
		t.Errorf("TotalProcessed = %d, want partial progress", fx.state.TotalProcessed)
	}
}

func TestBatchDriverSkipsSoftFailedItems(t *testing.T) {
	t.Parallel()

	inbox := newFakeInbox(3)
	fx := newDriverFixture(t, inbox, defaultTestLimits(), 25)
	fx.clf.classifyFn = func(ctx context.Context, req classifier.Request) (*classifier.Result, error) {
		return nil, &classifier.SoftFailureError{Reason: "flaky", Err: errors.New("boom")}
	}

	if err := fx.driver.Run(context.Background(), fx.state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Every item soft-failed; the run must terminate as drained rather
	// than refetching the same items forever.
	if fx.state.StopReason != StopDrained {
		t.Errorf("StopReason = %q, want %q", fx.state.StopReason, StopDrained)
	}
	if fx.state.TotalProcessed != 0 {
		t.Errorf("TotalProcessed = %d, want 0", fx.state.TotalProcessed)
	}
	if fx.clf.calls != 3 {
		t.Errorf("classifier calls = %d, want 3 (one per item, no retries)", fx.clf.calls)
	}
}

func TestBatchDriverSearchErrorIsFatal(t *testing.T) {
	t.Parallel()

	inbox := newFakeInbox(1)
	fx := newDriverFixture(t, inbox, defaultTestLimits(), 25)
	fx.mail.searchUnlabeledFn = func(ctx context.Context, q mailstore.Query) ([]string, error) {
		return nil, errors.New("connection dropped")
	}

	if err := fx.driver.Run(context.Background(), fx.state); err == nil {
		t.Fatal("expected search failure to surface as an error")
	}
}
