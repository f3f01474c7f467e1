package triage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mailsift/mailsift/internal/cache"
	"github.com/mailsift/mailsift/internal/database"
	"github.com/mailsift/mailsift/internal/mailstore"
	"github.com/mailsift/mailsift/internal/models"
	"github.com/mailsift/mailsift/internal/services/classifier"
	"go.uber.org/zap"
)

type orchestratorFixture struct {
	inbox     *fakeInbox
	mail      *fakeMailStore
	clf       *fakeClassifier
	clock     *fakeClock
	stateRepo *fakeStateRepo
	runLogs   *fakeRunLogRepo
	scheduler *fakeScheduler
	orch      *Orchestrator
}

func newOrchestratorFixture(t *testing.T, items int, limits Limits) *orchestratorFixture {
	t.Helper()

	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	inbox := newFakeInbox(items)
	mail := newFakeMailStore()
	inbox.bind(mail)

	clf := &fakeClassifier{}
	kv := cache.NewMemoryStore(clock.Now)
	rules := NewRuleTable(&fakeRuleRepo{}, kv, time.Hour, zap.NewNop())
	decisions := NewDecisionCache(kv, 6*time.Hour, zap.NewNop())
	rejections := NewRejectionCache(kv, 7*24*time.Hour)

	cascade := NewCascade(mail, rules, decisions, clf, zap.NewNop())
	limiter := newTestLimiter(limits, clock)
	driver := NewBatchDriver(mail, cascade, limiter, 25, 0, zap.NewNop())
	driver.now = clock.Now

	suggestionRepo := newFakeSuggestionRepo()
	suggestions := NewSuggestionEngine(mail, rules, suggestionRepo, rejections, 3, 500, zap.NewNop())

	stateRepo := newFakeStateRepo()
	ledger := NewQuotaLedger(stateRepo, time.UTC, zap.NewNop())
	ledger.now = clock.Now

	runLogs := &fakeRunLogRepo{}
	scheduler := &fakeScheduler{}

	orch := NewOrchestrator(
		mail, rules, driver, suggestions, ledger,
		scheduler, stateRepo, runLogs,
		time.UTC, time.Minute, zap.NewNop(),
	)
	orch.now = clock.Now

	return &orchestratorFixture{
		inbox:     inbox,
		mail:      mail,
		clf:       clf,
		clock:     clock,
		stateRepo: stateRepo,
		runLogs:   runLogs,
		scheduler: scheduler,
		orch:      orch,
	}
}

func TestOrchestratorFullRun(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 30, defaultTestLimits())

	summary, err := fx.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.StopReason != StopDrained {
		t.Errorf("StopReason = %q, want %q", summary.StopReason, StopDrained)
	}
	if summary.TotalProcessed != 30 {
		t.Errorf("TotalProcessed = %d, want 30", summary.TotalProcessed)
	}
	if fx.scheduler.cancelCalls != 1 {
		t.Errorf("CancelPending calls = %d, want 1", fx.scheduler.cancelCalls)
	}
	if len(fx.scheduler.scheduled) != 0 {
		t.Errorf("a drained run must not schedule a follow-up, got %d", len(fx.scheduler.scheduled))
	}
	if len(fx.runLogs.appended) != 1 {
		t.Fatalf("run logs appended = %d, want 1", len(fx.runLogs.appended))
	}

	// The compact last-run record is persisted for the dashboard.
	raw := fx.stateRepo.values[database.StateKeyLastRunSummary]
	if raw == "" {
		t.Fatal("last run record not persisted")
	}
	var last models.LastRun
	if err := json.Unmarshal([]byte(raw), &last); err != nil {
		t.Fatalf("persisted record unmarshal: %v", err)
	}
	if last.Status != StopDrained {
		t.Errorf("persisted Status = %q, want %q", last.Status, StopDrained)
	}
	if last.Processed != 30 {
		t.Errorf("persisted Processed = %d, want 30", last.Processed)
	}
	if last.Timestamp.IsZero() {
		t.Error("persisted Timestamp is zero")
	}
}

func TestOrchestratorTalliesLedgerStoreCalls(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 5, defaultTestLimits())

	summary, err := fx.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The initial ledger read, the rule-table database load, and the commit.
	if got := summary.APICallCounts[ServiceLedgerStore]; got != 3 {
		t.Errorf("APICallCounts[%q] = %d, want 3", ServiceLedgerStore, got)
	}
}

func TestOrchestratorChargesLabelSetupPerLabel(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 5, defaultTestLimits())

	summary, err := fx.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// One ensure call per vocabulary label, one search, one metadata fetch,
	// and a label write plus an archive per item.
	want := len(models.VocabularyNames()) + 2 + 2*5
	if got := summary.APICallCounts[ServiceMailStore]; got != want {
		t.Errorf("APICallCounts[%q] = %d, want %d", ServiceMailStore, got, want)
	}
}

func TestOrchestratorCommitsQuota(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 10, defaultTestLimits())

	summary, err := fx.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	committed := fx.stateRepo.values[database.StateKeyDailyCallCount]
	if committed == "" || committed == "0" {
		t.Fatalf("daily call count = %q, want the run's calls committed", committed)
	}
	total := 0
	for _, n := range summary.APICallCounts {
		total += n
	}
	if summary.FinalDailyCount != total {
		t.Errorf("FinalDailyCount = %d, want %d (first run of the day)", summary.FinalDailyCount, total)
	}
}

func TestOrchestratorTimeLimitSchedulesFollowUp(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 100, defaultTestLimits())
	fx.clf.classifyFn = func(ctx context.Context, req classifier.Request) (*classifier.Result, error) {
		fx.clock.Advance(20 * time.Second)
		return &classifier.Result{PrimaryLabel: string(models.LabelPromotions), Reasoning: "test"}, nil
	}

	summary, err := fx.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.StopReason != StopTimeLimit {
		t.Fatalf("StopReason = %q, want %q", summary.StopReason, StopTimeLimit)
	}
	if len(fx.scheduler.scheduled) != 1 {
		t.Fatalf("scheduled follow-ups = %d, want 1", len(fx.scheduler.scheduled))
	}
	if fx.scheduler.scheduled[0] != time.Minute {
		t.Errorf("follow-up delay = %v, want 1m", fx.scheduler.scheduled[0])
	}
}

func TestOrchestratorBatchErrorStillFinalizes(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 10, defaultTestLimits())
	fx.mail.fetchMetadataFn = func(ctx context.Context, ids []string) ([]*mailstore.Metadata, error) {
		return nil, errors.New("mailbox gone")
	}

	summary, err := fx.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.StopReason != "error: failed to fetch batch metadata: mailbox gone" {
		t.Errorf("StopReason = %q", summary.StopReason)
	}
	if len(fx.runLogs.appended) != 1 {
		t.Errorf("run logs appended = %d, want 1 even on error", len(fx.runLogs.appended))
	}
	// The calls made before the failure are still committed.
	if fx.stateRepo.values[database.StateKeyDailyCallCount] == "" {
		t.Error("quota not committed after failed run")
	}
	if len(fx.scheduler.scheduled) != 0 {
		t.Errorf("an error stop must not schedule a follow-up, got %d", len(fx.scheduler.scheduled))
	}
}

func TestOrchestratorSecondRunSeesCommittedQuota(t *testing.T) {
	t.Parallel()

	limits := defaultTestLimits()
	fx := newOrchestratorFixture(t, 10, limits)

	first, err := fx.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	second, err := fx.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if second.FinalDailyCount <= first.FinalDailyCount {
		t.Errorf("second run FinalDailyCount = %d, want > %d", second.FinalDailyCount, first.FinalDailyCount)
	}
}

func TestOrchestratorQuotaExhaustedStopsImmediately(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 10, defaultTestLimits())
	fx.stateRepo.values[database.StateKeyLastRunDate] = "2026-03-10"
	fx.stateRepo.values[database.StateKeyDailyCallCount] = "15000"

	summary, err := fx.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.StopReason != StopQuotaLimit {
		t.Errorf("StopReason = %q, want %q", summary.StopReason, StopQuotaLimit)
	}
	if summary.TotalProcessed != 0 {
		t.Errorf("TotalProcessed = %d, want 0", summary.TotalProcessed)
	}
	if fx.clf.calls != 0 {
		t.Errorf("classifier calls = %d, want 0", fx.clf.calls)
	}
}

func TestOrchestratorLedgerReadFailureAborts(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 10, defaultTestLimits())
	fx.stateRepo.getErr = errors.New("database down")

	if _, err := fx.orch.Run(context.Background()); err == nil {
		t.Fatal("expected run to abort when the ledger is unreadable")
	}
	if fx.clf.calls != 0 {
		t.Errorf("classifier calls = %d, want 0", fx.clf.calls)
	}
}
