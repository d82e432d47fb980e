package models

import "time"

// Severity is the coarse triage bucket assigned to a prediction.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Prediction is the ML-derived judgment attached to a single LogEntry.
// LogInternalID is unique: a newer ModelVersion overwrites an older
// prediction for the same log rather than creating a second row.
type Prediction struct {
	LogInternalID     int64     `json:"log_internal_id"`
	PredictedLevel    LogLevel  `json:"predicted_level"`
	LevelConfidence   float64   `json:"level_confidence"`
	IsAnomaly         bool      `json:"is_anomaly"`
	AnomalyScore      float64   `json:"anomaly_score"`
	AnomalyConfidence float64   `json:"anomaly_confidence"`
	Severity          Severity  `json:"severity"`
	ModelVersion      string    `json:"model_version"`
	PredictedAt       time.Time `json:"predicted_at"`
}

// SeverityForPrediction applies spec's severity mapping: FATAL level, or an
// anomaly flagged with score above 0.9, is critical; ERROR is high, WARN is
// medium, everything else is low. A high anomaly score alone does not imply
// critical severity unless the model also flagged the log as an anomaly.
func SeverityForPrediction(level LogLevel, isAnomaly bool, anomalyScore float64) Severity {
	switch {
	case level == LevelFatal || (isAnomaly && anomalyScore > 0.9):
		return SeverityCritical
	case level == LevelError:
		return SeverityHigh
	case level == LevelWarn:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AnalyticsRollup is the row store's exact aggregate over a time window,
// served by the /logs/statistics route (spec §6).
type AnalyticsRollup struct {
	WindowStart       time.Time            `json:"window_start"`
	WindowEnd         time.Time            `json:"window_end"`
	TotalLogs         int64                `json:"total_logs"`
	LogsByLevel       map[LogLevel]int64   `json:"logs_by_level"`
	LogsBySource      map[SourceType]int64 `json:"logs_by_source"`
	AnomalyCount      int64                `json:"anomaly_count"`
	ErrorCount        int64                `json:"error_count"`
	AnomalyRate       float64              `json:"anomaly_rate"`
	ErrorRate         float64              `json:"error_rate"`
	AvgResponseTimeMs *float64             `json:"avg_response_time_ms,omitempty"`
}
