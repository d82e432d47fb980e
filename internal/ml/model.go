// Package ml implements the two-stage ML prediction pipeline: the batch
// analyzer (component F) that loads model artifacts and writes predictions,
// and the online serving path (component G) that reads them back. The
// model-training program that produces the artifacts this package loads is
// an external collaborator, out of scope here.
package ml

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/logintel/backend/internal/apperrors"
	"github.com/logintel/backend/internal/models"
)

// Metadata describes the artifact set's expected shape and the model
// version the analyzer stamps onto every prediction it writes.
type Metadata struct {
	ModelVersion     string   `yaml:"model_version"`
	FeatureShape     []string `yaml:"feature_shape"`
	HasSeverityModel bool     `yaml:"has_severity_model"`
}

// levelClassifierArtifact is a keyword-weighted scorer per log level: for
// each token in the message, the weights for every level it matches are
// accumulated, and the highest-scoring level wins. DefaultLevel is returned
// when no token matches anything.
type levelClassifierArtifact struct {
	DefaultLevel   string                        `yaml:"default_level"`
	KeywordWeights map[string]map[string]float64 `yaml:"keyword_weights"`
}

// anomalyDetectorArtifact scores a feature vector for anomalousness: a
// per-token keyword weight plus fixed weights for the HTTP-status and
// response-time buckets, squashed through a logistic function.
type anomalyDetectorArtifact struct {
	Threshold           float64            `yaml:"threshold"`
	KeywordWeights      map[string]float64 `yaml:"keyword_weights"`
	StatusBucketWeight  map[string]float64 `yaml:"status_bucket_weight"`
	LatencyBucketWeight map[string]float64 `yaml:"latency_bucket_weight"`
}

// severityClassifierArtifact maps a (level, source_type) pair directly to a
// severity bucket when the training collaborator shipped an "enhanced"
// severity model, per spec's "used directly... when present" rule.
type severityClassifierArtifact struct {
	Rules map[string]string `yaml:"rules"` // key is "<level>|<source_type>"
}

// Artifacts is the loaded, ready-to-use model set for one analyzer run.
type Artifacts struct {
	Metadata           Metadata
	levelClassifier    levelClassifierArtifact
	anomalyDetector    anomalyDetectorArtifact
	severityClassifier *severityClassifierArtifact
}

// LoadArtifacts loads the text-feature extractor's downstream consumers
// (level classifier and anomaly detector are mandatory; the severity
// classifier is optional and enables the "enhanced severity" path) from
// dir. Any missing mandatory file aborts with models_unavailable.
func LoadArtifacts(dir string) (*Artifacts, error) {
	var meta Metadata
	if err := readYAML(filepath.Join(dir, "metadata.yaml"), &meta); err != nil {
		return nil, apperrors.ModelsUnavailable(err)
	}

	var level levelClassifierArtifact
	if err := readYAML(filepath.Join(dir, "level_classifier.yaml"), &level); err != nil {
		return nil, apperrors.ModelsUnavailable(err)
	}

	var anomaly anomalyDetectorArtifact
	if err := readYAML(filepath.Join(dir, "anomaly_detector.yaml"), &anomaly); err != nil {
		return nil, apperrors.ModelsUnavailable(err)
	}

	artifacts := &Artifacts{Metadata: meta, levelClassifier: level, anomalyDetector: anomaly}

	if meta.HasSeverityModel {
		var severity severityClassifierArtifact
		severityPath := filepath.Join(dir, "severity_classifier.yaml")
		if err := readYAML(severityPath, &severity); err != nil {
			return nil, apperrors.ModelsUnavailable(fmt.Errorf("metadata declares a severity model but it could not be loaded: %w", err))
		}
		artifacts.severityClassifier = &severity
	}

	return artifacts, nil
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// ClassifyLevel returns the predicted level and a confidence in [0,1].
func (a *Artifacts) ClassifyLevel(fv FeatureVector) (models.LogLevel, float64) {
	scores := map[string]float64{}
	for _, token := range fv.TextTokens {
		for level, weight := range a.levelClassifier.KeywordWeights[token] {
			scores[level] += weight
		}
	}

	if len(scores) == 0 {
		return models.LogLevel(a.levelClassifier.DefaultLevel), 0.5
	}

	bestLevel, bestScore, total := "", math.Inf(-1), 0.0
	for level, score := range scores {
		total += score
		if score > bestScore {
			bestLevel, bestScore = level, score
		}
	}
	confidence := 0.5
	if total > 0 {
		confidence = clamp(bestScore/total, 0, 1)
	}
	return models.LogLevel(bestLevel), confidence
}

// DetectAnomaly returns whether fv looks anomalous along with a score and
// confidence, both in [0,1].
func (a *Artifacts) DetectAnomaly(fv FeatureVector) (bool, float64, float64) {
	raw := a.anomalyDetector.StatusBucketWeight[fv.HTTPStatusBucket] + a.anomalyDetector.LatencyBucketWeight[fv.ResponseTimeBucket]
	matched := 0
	for _, token := range fv.TextTokens {
		if w, ok := a.anomalyDetector.KeywordWeights[token]; ok {
			raw += w
			matched++
		}
	}

	score := sigmoid(raw)
	confidence := clamp(0.5+float64(matched)*0.05, 0.5, 0.99)
	return score > a.anomalyDetector.Threshold, score, confidence
}

// Severity determines the prediction's severity bucket. When the metadata
// declares an enhanced severity model, its rule table is consulted
// directly; otherwise the fixed mapping in models.SeverityForPrediction
// applies.
func (a *Artifacts) Severity(level models.LogLevel, sourceType models.SourceType, isAnomaly bool, anomalyScore float64) models.Severity {
	if a.severityClassifier != nil {
		key := string(level) + "|" + string(sourceType)
		if severity, ok := a.severityClassifier.Rules[key]; ok {
			return models.Severity(severity)
		}
	}
	return models.SeverityForPrediction(level, isAnomaly, anomalyScore)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
