package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/models"
)

// PredictionDB is the row store adapter for the Prediction entity.
type PredictionDB struct {
	db *sql.DB
}

func NewPredictionDB(database *Database) *PredictionDB {
	return &PredictionDB{db: database.DB()}
}

// UpsertPrediction stores or overwrites a log's prediction. A newer
// ModelVersion always wins: ON CONFLICT always overwrites regardless of the
// version ordering of the incoming row versus the stored one, since the
// batch analyzer only ever runs the current model version forward (spec:
// "newer model_version wins on conflict").
func (p *PredictionDB) UpsertPrediction(pred models.Prediction) error {
	_, err := p.db.Exec(
		`INSERT INTO ml_predictions (log_internal_id, predicted_level, level_confidence, is_anomaly, anomaly_score, anomaly_confidence, severity, model_version, predicted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (log_internal_id) DO UPDATE SET
			predicted_level = EXCLUDED.predicted_level,
			level_confidence = EXCLUDED.level_confidence,
			is_anomaly = EXCLUDED.is_anomaly,
			anomaly_score = EXCLUDED.anomaly_score,
			anomaly_confidence = EXCLUDED.anomaly_confidence,
			severity = EXCLUDED.severity,
			model_version = EXCLUDED.model_version,
			predicted_at = EXCLUDED.predicted_at`,
		pred.LogInternalID, pred.PredictedLevel, pred.LevelConfidence, pred.IsAnomaly,
		pred.AnomalyScore, pred.AnomalyConfidence, pred.Severity, pred.ModelVersion, pred.PredictedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}
	return nil
}

// FetchUnpredicted returns up to limit log entries inside [start, end) that
// have no row in ml_predictions yet, newest first, so a limit-bounded run
// prioritizes the most recent backlog over older logs.
func (p *PredictionDB) FetchUnpredicted(start, end time.Time, limit int) ([]*models.LogEntry, error) {
	rows, err := p.db.Query(
		selectLogSQL+`
		 WHERE "timestamp" >= $1 AND "timestamp" < $2
		   AND NOT EXISTS (SELECT 1 FROM ml_predictions p WHERE p.log_internal_id = log_entries.internal_id)
		 ORDER BY "timestamp" DESC LIMIT $3`,
		start, end, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unpredicted logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.LogEntry
	for rows.Next() {
		entry, err := scanLogEntryRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetPrediction serves component G's read-through lookup: no inference runs
// here, just a row fetch.
func (p *PredictionDB) GetPrediction(logInternalID int64) (*models.Prediction, error) {
	row := p.db.QueryRow(
		`SELECT log_internal_id, predicted_level, level_confidence, is_anomaly, anomaly_score, anomaly_confidence, severity, model_version, predicted_at
		 FROM ml_predictions WHERE log_internal_id = $1`, logInternalID,
	)
	var pred models.Prediction
	err := row.Scan(&pred.LogInternalID, &pred.PredictedLevel, &pred.LevelConfidence, &pred.IsAnomaly,
		&pred.AnomalyScore, &pred.AnomalyConfidence, &pred.Severity, &pred.ModelVersion, &pred.PredictedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.PredictionPending()
		}
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return &pred, nil
}

// ListRecentPredictions returns predictions in [start, end), newest first,
// capped at limit.
func (p *PredictionDB) ListRecentPredictions(start, end time.Time, limit int) ([]*models.Prediction, error) {
	rows, err := p.db.Query(
		`SELECT log_internal_id, predicted_level, level_confidence, is_anomaly, anomaly_score, anomaly_confidence, severity, model_version, predicted_at
		 FROM ml_predictions WHERE predicted_at >= $1 AND predicted_at < $2 ORDER BY predicted_at DESC LIMIT $3`,
		start, end, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var preds []*models.Prediction
	for rows.Next() {
		var pred models.Prediction
		if err := rows.Scan(&pred.LogInternalID, &pred.PredictedLevel, &pred.LevelConfidence, &pred.IsAnomaly,
			&pred.AnomalyScore, &pred.AnomalyConfidence, &pred.Severity, &pred.ModelVersion, &pred.PredictedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		preds = append(preds, &pred)
	}
	return preds, rows.Err()
}

// CountPredictions returns the total number of rows in ml_predictions,
// used by the /ml?action=status probe.
func (p *PredictionDB) CountPredictions() (int64, error) {
	var count int64
	if err := p.db.QueryRow(`SELECT count(*) FROM ml_predictions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

// LatestPredictedAt returns the most recent predicted_at timestamp, or the
// zero time if no predictions exist yet.
func (p *PredictionDB) LatestPredictedAt() (time.Time, error) {
	var t sql.NullTime
	if err := p.db.QueryRow(`SELECT max(predicted_at) FROM ml_predictions`).Scan(&t); err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest prediction time: %w", err)
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time, nil
}

// SeverityRollup aggregates predicted_at ∈ [start, end) predictions by
// severity bucket, plus an overall anomaly count and average anomaly
// confidence, for component G's AnalyticsRollup operation.
func (p *PredictionDB) SeverityRollup(start, end time.Time) (map[models.Severity]int64, int64, float64, error) {
	rows, err := p.db.Query(
		`SELECT severity, count(*) FROM ml_predictions WHERE predicted_at >= $1 AND predicted_at < $2 GROUP BY severity`,
		start, end,
	)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to aggregate severity: %w", err)
	}
	defer rows.Close()

	bySeverity := map[models.Severity]int64{}
	for rows.Next() {
		var severity string
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, 0, 0, err
		}
		bySeverity[models.Severity(severity)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	var anomalyCount int64
	var avgConfidence float64
	row := p.db.QueryRow(
		`SELECT count(*), COALESCE(avg(anomaly_confidence), 0) FROM ml_predictions
		 WHERE predicted_at >= $1 AND predicted_at < $2 AND is_anomaly = true`,
		start, end,
	)
	if err := row.Scan(&anomalyCount, &avgConfidence); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to aggregate anomalies: %w", err)
	}

	return bySeverity, anomalyCount, avgConfidence, nil
}
