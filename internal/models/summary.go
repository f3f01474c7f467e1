package models

import "time"

// RunSummary is the persisted snapshot of one completed triage run.
type RunSummary struct {
	Date                string         `json:"date"`
	StopReason          string         `json:"stop_reason"`
	TotalProcessed      int            `json:"total_processed"`
	Batches             int            `json:"batches"`
	MostFrequentSender  string         `json:"most_frequent_sender"`
	AverageBatchSeconds float64        `json:"average_batch_seconds"`
	TotalRuntimeSeconds float64        `json:"total_runtime_seconds"`
	FinalDailyCount     int            `json:"final_daily_count"`
	LabelCounts         map[string]int `json:"label_counts"`
	APICallCounts       map[string]int `json:"api_call_counts"`
}

// LastRun is the compact last-run record kept for dashboard display.
type LastRun struct {
	Status    string    `json:"status"`
	Processed int       `json:"processed"`
	Timestamp time.Time `json:"timestamp"`
}
