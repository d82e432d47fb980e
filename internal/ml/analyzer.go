package ml

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/db"
	"github.com/logintel/backend/internal/models"
	"github.com/logintel/backend/internal/observability"
)

// RunSummary is the report F emits after one batch run, per spec §4.F step 7.
type RunSummary struct {
	ModelVersion string                  `json:"model_version"`
	Stored       int                     `json:"stored"`
	Skipped      int                     `json:"skipped"`
	Errored      int                     `json:"errored"`
	ByLevel      map[models.LogLevel]int `json:"by_level"`
	BySeverity   map[models.Severity]int `json:"by_severity"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   time.Time               `json:"finished_at"`
}

// Analyzer is component F: the offline batch job that keeps the Prediction
// table populated for recent, unpredicted logs. Only one run executes at a
// time; a second call while one is in flight is rejected rather than
// interleaved against the same unpredicted window.
type Analyzer struct {
	logDB        *db.LogDB
	predictionDB *db.PredictionDB
	artifactDir  string

	mu          sync.Mutex
	running     bool
	lastRun     *RunSummary
	cronEntries *cron.Cron
}

func NewAnalyzer(logDB *db.LogDB, predictionDB *db.PredictionDB, artifactDir string) *Analyzer {
	return &Analyzer{logDB: logDB, predictionDB: predictionDB, artifactDir: artifactDir}
}

// LastRun reports the most recently completed run summary, used by
// component I's health probe for "F last-run recency".
func (a *Analyzer) LastRun() *RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRun
}

// RunOnce executes steps 1-7 of the batch algorithm once: load artifacts,
// fetch unpredicted logs in the window, featurize, predict, upsert, and
// summarize. When a row-store write fails partway through it returns the
// summary-so-far together with apperrors.AnalyzerFailed, whose Details
// carry the storage error's text.
func (a *Analyzer) RunOnce(ctx context.Context, window time.Duration, batchLimit int) (*RunSummary, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, apperrors.AnalyzerFailed(fmt.Errorf("a run is already in progress"))
	}
	a.running = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	artifacts, err := LoadArtifacts(a.artifactDir)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		ModelVersion: artifacts.Metadata.ModelVersion,
		ByLevel:      map[models.LogLevel]int{},
		BySeverity:   map[models.Severity]int{},
		StartedAt:    time.Now(),
	}

	end := time.Now()
	start := end.Add(-window)
	entries, err := a.predictionDB.FetchUnpredicted(start, end, batchLimit)
	if err != nil {
		return nil, apperrors.AnalyzerFailed(err)
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			summary.FinishedAt = time.Now()
			observability.Analyzer().Warn().Msg("analyzer run cancelled mid-batch")
			return summary, nil
		default:
		}

		pred, err := a.predict(entry, artifacts)
		if err != nil {
			summary.Errored++
			observability.Analyzer().Warn().Err(err).Int64("log_internal_id", entry.InternalID).Msg("featurization failed, skipping log")
			continue
		}

		if err := a.predictionDB.UpsertPrediction(*pred); err != nil {
			summary.FinishedAt = time.Now()
			return summary, apperrors.AnalyzerFailed(err)
		}

		summary.Stored++
		summary.ByLevel[pred.PredictedLevel]++
		summary.BySeverity[pred.Severity]++
	}

	summary.FinishedAt = time.Now()

	a.mu.Lock()
	a.lastRun = summary
	a.mu.Unlock()

	observability.Analyzer().Info().
		Int("stored", summary.Stored).
		Int("skipped", summary.Skipped).
		Int("errored", summary.Errored).
		Msg("analyzer run complete")

	return summary, nil
}

func (a *Analyzer) predict(entry *models.LogEntry, artifacts *Artifacts) (*models.Prediction, error) {
	fv := Featurize(entry)

	level, levelConfidence := artifacts.ClassifyLevel(fv)
	isAnomaly, anomalyScore, anomalyConfidence := artifacts.DetectAnomaly(fv)
	severity := artifacts.Severity(level, entry.SourceType, isAnomaly, anomalyScore)

	return &models.Prediction{
		LogInternalID:     entry.InternalID,
		PredictedLevel:    level,
		LevelConfidence:   levelConfidence,
		IsAnomaly:         isAnomaly,
		AnomalyScore:      anomalyScore,
		AnomalyConfidence: anomalyConfidence,
		Severity:          severity,
		ModelVersion:      artifacts.Metadata.ModelVersion,
		PredictedAt:       time.Now(),
	}, nil
}

// StartScheduled runs the analyzer on a cron schedule (default cadence:
// every few hours, per spec §5) until ctx is cancelled. Intended for
// running the backend as a long-lived process rather than invoking the
// analyzer as a one-shot CLI job.
func (a *Analyzer) StartScheduled(ctx context.Context, schedule string, window time.Duration, batchLimit int) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := a.RunOnce(ctx, window, batchLimit); err != nil {
			observability.Analyzer().Error().Err(err).Msg("scheduled analyzer run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule analyzer: %w", err)
	}
	a.cronEntries = c
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}
