package model

import "time"

// Record is one unit of raw source data: an opaque JSON object.
// The pipeline never interprets its contents.
type Record map[string]any

// BronzeRow is a raw record tagged with ingestion metadata.
// It is the hand-off shape for bronze-layer writers.
type BronzeRow struct {
	RawJSON    string    `json:"raw_json" yaml:"raw_json"`
	IngestedAt time.Time `json:"ingested_at" yaml:"ingested_at"`
	Source     string    `json:"source" yaml:"source"`
	BatchID    string    `json:"batch_id" yaml:"batch_id"`
}
