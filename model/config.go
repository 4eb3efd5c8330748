package model

import "time"

// Config represents the tunable parameters of the extraction and linking
// pipeline. The core never reads ambient state; callers construct a Config
// (usually starting from DefaultConfig) and pass it in explicitly.
type Config struct {
	// Extraction parameters
	MentionConfidenceFloor  float64 `json:"mention_confidence_floor"`  // Mentions below this confidence are dropped
	RelationConfidenceFloor float64 `json:"relation_confidence_floor"` // Relations below this confidence are dropped
	EventConfidenceFloor    float64 `json:"event_confidence_floor"`    // Events below this confidence are dropped
	ProximityWindow         int     `json:"proximity_window"`          // Max character distance between related mentions
	CooccurrenceConfidence  float64 `json:"cooccurrence_confidence"`   // Confidence assigned to fallback co-occurrence relations

	// Linking parameters
	LinkThreshold         float64 `json:"link_threshold"`          // Min lexical similarity to attach a mention to an existing entity
	SemanticLinkThreshold float64 `json:"semantic_link_threshold"` // Min embedding similarity for the semantic tier (stricter)
	AutoMergeThreshold    float64 `json:"auto_merge_threshold"`    // Merges below this confidence are surfaced for review, not applied

	// Storage parameters
	ExportBatchSize int           `json:"export_batch_size"` // Nodes/edges per upsert batch
	MaxRetries      int           `json:"max_retries"`       // Retry attempts for transient storage failures
	RetryBaseDelay  time.Duration `json:"retry_base_delay"`  // Base delay for exponential backoff
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		MentionConfidenceFloor:  0.5,
		RelationConfidenceFloor: 0.5,
		EventConfidenceFloor:    0.5,
		ProximityWindow:         120,
		CooccurrenceConfidence:  0.6,
		LinkThreshold:           0.82,
		SemanticLinkThreshold:   0.90,
		AutoMergeThreshold:      0.75,
		ExportBatchSize:         100,
		MaxRetries:              5,
		RetryBaseDelay:          200 * time.Millisecond,
	}
}
