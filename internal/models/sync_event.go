package models

import "time"

// Sync event type constants
const (
	EventPricesSynced  = "PRICES_SYNCED"
	EventNewsSynced    = "NEWS_SYNCED"
	EventRunCompleted  = "RUN_COMPLETED"
	EventSyncRequested = "SYNC_REQUESTED"
)

// SyncEvent is published to Kafka when the engine changes stored data,
// and consumed when another service requests a sync for one symbol.
type SyncEvent struct {
	EventType string    `json:"event_type"`
	RunID     string    `json:"run_id,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Inserted  int       `json:"inserted,omitempty"`
	Filled    int       `json:"filled,omitempty"`
	Done      int       `json:"done,omitempty"`
	Skipped   int       `json:"skipped,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
