package triage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mailsift/mailsift/internal/database"
	"github.com/mailsift/mailsift/internal/mailstore"
	"github.com/mailsift/mailsift/internal/models"
	"github.com/mailsift/mailsift/internal/queue"
	"github.com/mailsift/mailsift/internal/services/classifier"
)

// fakeClock is a manually advanced clock shared by tests that exercise
// time-dependent behavior.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeMailStore implements mailstore.Store with overridable functions.
type fakeMailStore struct {
	searchUnlabeledFn func(ctx context.Context, q mailstore.Query) ([]string, error)
	fetchMetadataFn   func(ctx context.Context, ids []string) ([]*mailstore.Metadata, error)
	addLabelFn        func(ctx context.Context, id string, label string) error
	archiveFn         func(ctx context.Context, id string) error
	ensureLabelsFn    func(ctx context.Context, names []string) error
	searchByLabelFn   func(ctx context.Context, label string, limit int) ([]*mailstore.Metadata, error)

	mu       sync.Mutex
	labeled  map[string][]string
	archived map[string]bool
}

func newFakeMailStore() *fakeMailStore {
	return &fakeMailStore{
		labeled:  make(map[string][]string),
		archived: make(map[string]bool),
	}
}

func (f *fakeMailStore) SearchUnlabeled(ctx context.Context, q mailstore.Query) ([]string, error) {
	if f.searchUnlabeledFn != nil {
		return f.searchUnlabeledFn(ctx, q)
	}
	return nil, nil
}

func (f *fakeMailStore) FetchMetadata(ctx context.Context, ids []string) ([]*mailstore.Metadata, error) {
	if f.fetchMetadataFn != nil {
		return f.fetchMetadataFn(ctx, ids)
	}
	metas := make([]*mailstore.Metadata, len(ids))
	for i, id := range ids {
		metas[i] = &mailstore.Metadata{ID: id, Sender: "someone@example.com", Subject: "subject " + id}
	}
	return metas, nil
}

func (f *fakeMailStore) AddLabel(ctx context.Context, id string, label string) error {
	if f.addLabelFn != nil {
		return f.addLabelFn(ctx, id, label)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labeled[id] = append(f.labeled[id], label)
	return nil
}

func (f *fakeMailStore) Archive(ctx context.Context, id string) error {
	if f.archiveFn != nil {
		return f.archiveFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived[id] = true
	return nil
}

func (f *fakeMailStore) EnsureLabels(ctx context.Context, names []string) error {
	if f.ensureLabelsFn != nil {
		return f.ensureLabelsFn(ctx, names)
	}
	return nil
}

func (f *fakeMailStore) SearchByLabel(ctx context.Context, label string, limit int) ([]*mailstore.Metadata, error) {
	if f.searchByLabelFn != nil {
		return f.searchByLabelFn(ctx, label, limit)
	}
	return nil, nil
}

func (f *fakeMailStore) Close() error { return nil }

func (f *fakeMailStore) labelsFor(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.labeled[id]
}

func (f *fakeMailStore) isArchived(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.archived[id]
}

var _ mailstore.Store = (*fakeMailStore)(nil)

// fakeClassifier implements classifier.Classifier with an overridable function.
type fakeClassifier struct {
	classifyFn func(ctx context.Context, req classifier.Request) (*classifier.Result, error)
	calls      int
}

func (f *fakeClassifier) Classify(ctx context.Context, req classifier.Request) (*classifier.Result, error) {
	f.calls++
	if f.classifyFn != nil {
		return f.classifyFn(ctx, req)
	}
	return &classifier.Result{PrimaryLabel: string(models.LabelPromotions), Reasoning: "test"}, nil
}

var _ classifier.Classifier = (*fakeClassifier)(nil)

// fakeRuleRepo implements database.RuleRepositoryInterface in memory.
type fakeRuleRepo struct {
	rules       []*models.Rule
	getAllErr   error
	upsertCalls []struct {
		Sender string
		Label  models.Label
	}
}

func (f *fakeRuleRepo) GetAll(ctx context.Context) ([]*models.Rule, error) {
	if f.getAllErr != nil {
		return nil, f.getAllErr
	}
	return f.rules, nil
}

func (f *fakeRuleRepo) Upsert(ctx context.Context, sender string, label models.Label) error {
	f.upsertCalls = append(f.upsertCalls, struct {
		Sender string
		Label  models.Label
	}{sender, label})
	return nil
}

func (f *fakeRuleRepo) Count(ctx context.Context) (int, error) {
	return len(f.rules), nil
}

// fakeSuggestionRepo implements database.SuggestionRepositoryInterface in memory.
type fakeSuggestionRepo struct {
	existing map[string]bool // sender|label
	created  []*models.Suggestion
}

func newFakeSuggestionRepo() *fakeSuggestionRepo {
	return &fakeSuggestionRepo{existing: make(map[string]bool)}
}

func (f *fakeSuggestionRepo) GetAll(ctx context.Context) ([]*models.Suggestion, error) {
	return f.created, nil
}

func (f *fakeSuggestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Suggestion, error) {
	for _, s := range f.created {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, errors.New("suggestion not found")
}

func (f *fakeSuggestionRepo) Exists(ctx context.Context, sender string, label models.Label) (bool, error) {
	return f.existing[sender+"|"+string(label)], nil
}

func (f *fakeSuggestionRepo) Create(ctx context.Context, s *models.Suggestion) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.created = append(f.created, s)
	f.existing[s.Sender+"|"+string(s.Label)] = true
	return nil
}

func (f *fakeSuggestionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	for i, s := range f.created {
		if s.ID == id {
			f.created = append(f.created[:i], f.created[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeStateRepo implements database.StateRepositoryInterface over a map.
type fakeStateRepo struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{values: make(map[string]string)}
}

func (f *fakeStateRepo) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *fakeStateRepo) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

// fakeRunLogRepo records appended summaries.
type fakeRunLogRepo struct {
	appended []*models.RunSummary
}

func (f *fakeRunLogRepo) Append(ctx context.Context, summary *models.RunSummary) error {
	f.appended = append(f.appended, summary)
	return nil
}

func (f *fakeRunLogRepo) Recent(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	if limit > len(f.appended) {
		limit = len(f.appended)
	}
	out := make([]*models.RunSummary, 0, limit)
	for i := len(f.appended) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.appended[i])
	}
	return out, nil
}

// fakeScheduler implements queue.Scheduler, recording calls.
type fakeScheduler struct {
	cancelCalls int
	scheduled   []time.Duration
	pending     *queue.PendingTrigger
}

func (f *fakeScheduler) ScheduleOnce(ctx context.Context, delay time.Duration) error {
	f.scheduled = append(f.scheduled, delay)
	f.pending = &queue.PendingTrigger{JobID: uuid.New(), FireAt: time.Now().Add(delay)}
	return nil
}

func (f *fakeScheduler) CancelPending(ctx context.Context) error {
	f.cancelCalls++
	f.pending = nil
	return nil
}

func (f *fakeScheduler) ListPending(ctx context.Context) ([]queue.PendingTrigger, error) {
	if f.pending == nil {
		return nil, nil
	}
	return []queue.PendingTrigger{*f.pending}, nil
}

func (f *fakeScheduler) Claim(ctx context.Context, jobID uuid.UUID) (bool, error) {
	if f.pending == nil || f.pending.JobID != jobID {
		return false, nil
	}
	f.pending = nil
	return true, nil
}

var _ queue.Scheduler = (*fakeScheduler)(nil)

// Interface conformance for the repository fakes.
var (
	_ database.RuleRepositoryInterface       = (*fakeRuleRepo)(nil)
	_ database.SuggestionRepositoryInterface = (*fakeSuggestionRepo)(nil)
	_ database.RunLogRepositoryInterface     = (*fakeRunLogRepo)(nil)
	_ database.StateRepositoryInterface      = (*fakeStateRepo)(nil)
)
