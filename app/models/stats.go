package models

// PipelineStats aggregates ingestion progress for dashboards.
type PipelineStats struct {
	RawEvents        int64 `json:"raw_events"`
	NormalizedEvents int64 `json:"normalized_events"`
	FailedRawEvents  int64 `json:"failed_raw_events"`
	IgnoredRawEvents int64 `json:"ignored_raw_events"`
}

// ConfidenceBucket is one bar of the match confidence distribution.
type ConfidenceBucket struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// AnomalyCount is the number of open anomalies per type.
type AnomalyCount struct {
	AnomalyType string `json:"anomaly_type"`
	Count       int64  `json:"count"`
}
