package triage

import (
	"fmt"
	"time"

	"github.com/mailsift/mailsift/internal/models"
)

// Stop reasons recorded in the run summary. Exactly one applies per run.
const (
	StopDrained    = "drained"
	StopTimeLimit  = "time limit"
	StopItemLimit  = "item limit"
	StopQuotaLimit = "quota limit"
	StopError      = "error"
)

// Service names used as API call tally keys.
const (
	ServiceClassifier  = "classifier"
	ServiceMailStore   = "mailstore"
	ServiceLedgerStore = "ledgerstore"
)

// RunState accumulates everything one run needs to decide when to stop and
// what to report. It is owned by a single goroutine and never shared.
type RunState struct {
	StartTime         time.Time
	DailyCountAtStart int

	TotalProcessed int
	BatchNumber    int

	LabelCounts   map[string]int
	SenderCounts  map[string]int
	APICallCounts map[string]int

	BatchTimings []time.Duration

	StopReason string
	StopDetail string
}

// NewRunState seeds a run state with zeroed tallies for the full vocabulary
// plus the rule/cache attribution keys, and for every tallied service, so
// summaries always report every category even when its count stayed at zero.
func NewRunState(start time.Time, dailyCountAtStart int) *RunState {
	labelCounts := make(map[string]int, len(models.Vocabulary())+2)
	for _, l := range models.Vocabulary() {
		labelCounts[string(l)] = 0
	}
	labelCounts[models.TallyViaRule] = 0
	labelCounts[models.TallyViaCache] = 0

	return &RunState{
		StartTime:         start,
		DailyCountAtStart: dailyCountAtStart,
		LabelCounts:       labelCounts,
		SenderCounts:      make(map[string]int),
		APICallCounts: map[string]int{
			ServiceClassifier:  0,
			ServiceMailStore:   0,
			ServiceLedgerStore: 0,
		},
	}
}

// CountCall records one outbound API call against the named service.
func (s *RunState) CountCall(service string) {
	s.APICallCounts[service]++
}

// CountCalls records n outbound API calls against the named service.
func (s *RunState) CountCalls(service string, n int) {
	s.APICallCounts[service] += n
}

// TotalCallsThisRun sums the per-service call tallies.
func (s *RunState) TotalCallsThisRun() int {
	total := 0
	for _, n := range s.APICallCounts {
		total += n
	}
	return total
}

// CountLabel records a label application or an attribution tally key.
func (s *RunState) CountLabel(key string) {
	s.LabelCounts[key]++
}

// CountSender records one processed item for the given normalized sender.
func (s *RunState) CountSender(sender string) {
	s.SenderCounts[sender]++
}

// MostFrequentSender returns the busiest sender formatted for the summary,
// or "N/A" when no items were processed. Ties resolve to whichever entry
// holds the running maximum first.
func (s *RunState) MostFrequentSender() string {
	best := ""
	bestCount := 0
	for sender, n := range s.SenderCounts {
		if n > bestCount {
			best = sender
			bestCount = n
		}
	}
	if best == "" {
		return "N/A"
	}
	return fmt.Sprintf("%s (%d times)", best, bestCount)
}

// RecordBatchTiming appends the wall-clock duration of one completed batch.
func (s *RunState) RecordBatchTiming(d time.Duration) {
	s.BatchTimings = append(s.BatchTimings, d)
}

// AverageBatchSeconds returns the mean batch duration in seconds, or zero
// when no batches completed.
func (s *RunState) AverageBatchSeconds() float64 {
	if len(s.BatchTimings) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s.BatchTimings {
		total += d
	}
	return total.Seconds() / float64(len(s.BatchTimings))
}

// SetStop records the stop reason if none is set yet. The first stop reason
// wins; later calls are ignored so an error stop is never overwritten.
func (s *RunState) SetStop(reason string) {
	if s.StopReason == "" {
		s.StopReason = reason
	}
}

// SetError records an error stop with detail, overriding any earlier reason.
func (s *RunState) SetError(detail string) {
	s.StopReason = StopError
	s.StopDetail = detail
}

// StopReasonString renders the stop reason for the summary, folding the
// error detail in when present.
func (s *RunState) StopReasonString() string {
	if s.StopReason == StopError && s.StopDetail != "" {
		return fmt.Sprintf("%s: %s", StopError, s.StopDetail)
	}
	if s.StopReason == "" {
		return StopDrained
	}
	return s.StopReason
}

// Summary builds the persisted run summary from the accumulated state.
func (s *RunState) Summary(now time.Time, loc *time.Location) *models.RunSummary {
	labelCounts := make(map[string]int, len(s.LabelCounts))
	for k, v := range s.LabelCounts {
		labelCounts[k] = v
	}
	apiCounts := make(map[string]int, len(s.APICallCounts))
	for k, v := range s.APICallCounts {
		apiCounts[k] = v
	}

	return &models.RunSummary{
		Date:                now.In(loc).Format("2006-01-02"),
		StopReason:          s.StopReasonString(),
		TotalProcessed:      s.TotalProcessed,
		Batches:             s.BatchNumber,
		MostFrequentSender:  s.MostFrequentSender(),
		AverageBatchSeconds: s.AverageBatchSeconds(),
		TotalRuntimeSeconds: now.Sub(s.StartTime).Seconds(),
		FinalDailyCount:     s.DailyCountAtStart + s.TotalCallsThisRun(),
		LabelCounts:         labelCounts,
		APICallCounts:       apiCounts,
	}
}
