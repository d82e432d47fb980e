package ml

import (
	"context"
	"time"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/models"
)

const (
	defaultRollupWindow = 24 * time.Hour
	defaultRecentLimit  = 100
)

// Serving is component G: a read-through over the row store with no
// inference in the request path. Its latency budget is dominated by a
// single indexed query (target median < 50ms).
type Serving struct {
	logDB        *db.LogDB
	predictionDB *db.PredictionDB
}

func NewServing(logDB *db.LogDB, predictionDB *db.PredictionDB) *Serving {
	return &Serving{logDB: logDB, predictionDB: predictionDB}
}

// GetPrediction resolves externalID to its internal_id via the row store,
// then looks up the stored prediction. A log that exists but has no
// prediction yet surfaces apperrors.PredictionPending, distinct from a log
// that does not exist at all.
func (s *Serving) GetPrediction(ctx context.Context, externalID string) (*models.Prediction, error) {
	entry, err := s.logDB.GetByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	return s.predictionDB.GetPrediction(entry.InternalID)
}

// PredictionView is the spec §6 `/ml?action=analyze&log_id=...` shape: it
// never errors out on a pending prediction the way GetPrediction does —
// instead it annotates the response with which source answered it, so a
// caller racing the batch analyzer gets a well-formed "not yet" response
// rather than a 202.
type PredictionView struct {
	LogExternalID string             `json:"log_external_id"`
	Prediction    *models.Prediction `json:"prediction"`
	Source        string             `json:"source"`
}

const (
	SourceMockDataFallback = "mock_data_fallback"
	SourceMLPredictions    = "ml_predictions_table"
)

// GetPredictionOrFallback is GetPrediction without the pending-prediction
// error: a log that exists but hasn't been scored yet comes back as a
// SourceMockDataFallback view with a nil prediction instead of an error.
func (s *Serving) GetPredictionOrFallback(ctx context.Context, externalID string) (*PredictionView, error) {
	entry, err := s.logDB.GetByExternalID(externalID)
	if err != nil {
		return nil, err
	}

	pred, err := s.predictionDB.GetPrediction(entry.InternalID)
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Code == apperrors.CodePredictionPending {
			return &PredictionView{LogExternalID: externalID, Source: SourceMockDataFallback}, nil
		}
		return nil, err
	}
	return &PredictionView{LogExternalID: externalID, Prediction: pred, Source: SourceMLPredictions}, nil
}

// Status reports the spec §6 `/ml?action=status` probe: a coarse signal of
// whether the batch analyzer has ever produced a prediction.
type Status struct {
	MLSystem         string    `json:"ml_system"`
	LastPredictionAt time.Time `json:"last_prediction_at"`
	TotalPredictions int64     `json:"total_predictions"`
}

func (s *Serving) Status(ctx context.Context) (*Status, error) {
	total, err := s.predictionDB.CountPredictions()
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	lastAt, err := s.predictionDB.LatestPredictedAt()
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	system := "operational"
	if total == 0 {
		system = "idle"
	}
	return &Status{MLSystem: system, LastPredictionAt: lastAt, TotalPredictions: total}, nil
}

// ListRecent returns predictions within window (default 24h) ending now,
// capped at limit (default 100).
func (s *Serving) ListRecent(ctx context.Context, window time.Duration, limit int) ([]*models.Prediction, error) {
	if window <= 0 {
		window = defaultRollupWindow
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	end := time.Now()
	start := end.Add(-window)

	preds, err := s.predictionDB.ListRecentPredictions(start, end, limit)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return preds, nil
}

// AnalyticsRollup reports severity distribution, anomaly count, and average
// anomaly confidence over window (default 24h).
type AnalyticsRollup struct {
	WindowStart          time.Time                 `json:"window_start"`
	WindowEnd            time.Time                 `json:"window_end"`
	SeverityDistribution map[models.Severity]int64 `json:"severity_distribution"`
	AnomalyCount         int64                     `json:"anomaly_count"`
	AvgAnomalyConfidence float64                   `json:"avg_anomaly_confidence"`
}

func (s *Serving) AnalyticsRollup(ctx context.Context, window time.Duration) (*AnalyticsRollup, error) {
	if window <= 0 {
		window = defaultRollupWindow
	}
	end := time.Now()
	start := end.Add(-window)

	bySeverity, anomalyCount, avgConfidence, err := s.predictionDB.SeverityRollup(start, end)
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	return &AnalyticsRollup{
		WindowStart:          start,
		WindowEnd:            end,
		SeverityDistribution: bySeverity,
		AnomalyCount:         anomalyCount,
		AvgAnomalyConfidence: avgConfidence,
	}, nil
}
