// Multi-judge risk classification with agreement scoring.
//
// One judge returns its verdict directly. Several judges run
// concurrently and are reduced to a single verdict: scores averaged,
// agreement computed from score dispersion, per-type tags unioned.

package risk

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/richinex/cite/model"
)

// agreementConfidenceFloor is the agreement above which the best judge's
// confidence is reported unscaled.
const agreementConfidenceFloor = 0.8

// lowAgreementWarning is the agreement below which a warning is logged
// for human review.
const lowAgreementWarning = 0.67

// Judge produces one risk verdict for a conversation.
type Judge interface {
	Name() string
	Assess(ctx context.Context, messages []model.Message) (model.RiskLevelResult, error)
}

// Classifier reduces 1..N judges to a single risk verdict.
type Classifier struct {
	judges []Judge
	logger *slog.Logger
}

// NewClassifier creates a classifier. An empty judge list is a
// configuration error.
func NewClassifier(judges ...Judge) (*Classifier, error) {
	if len(judges) == 0 {
		return nil, errors.New("classifier requires at least one judge")
	}
	return &Classifier{judges: judges, logger: slog.Default()}, nil
}

// WithLogger overrides the logger.
func (c *Classifier) WithLogger(logger *slog.Logger) *Classifier {
	c.logger = logger
	return c
}

// Classify runs the judges and reduces their verdicts. A judge whose
// call fails contributes the fail-safe medium verdict; only when every
// judge fails does Classify return an error.
func (c *Classifier) Classify(ctx context.Context, messages []model.Message) (model.RiskLevelResult, error) {
	if len(c.judges) == 1 {
		result, err := c.judges[0].Assess(ctx, messages)
		if err != nil {
			return model.RiskLevelResult{}, err
		}
		result.Agreement = 1.0
		return result, nil
	}

	results := make([]model.RiskLevelResult, len(c.judges))
	var mu sync.Mutex
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	for i, judge := range c.judges {
		g.Go(func() error {
			result, err := judge.Assess(gctx, messages)
			if err != nil {
				c.logger.Warn("judge failed, substituting fail-safe verdict",
					"judge", judge.Name(),
					"error", err)
				mu.Lock()
				failures++
				mu.Unlock()
				result = FailSafeResult()
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.RiskLevelResult{}, err
	}
	if failures == len(c.judges) {
		return model.RiskLevelResult{}, errors.New("all judges failed")
	}

	return c.reduce(results), nil
}

func (c *Classifier) reduce(results []model.RiskLevelResult) model.RiskLevelResult {
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Level.Score()
	}

	agreement := agreementScore(scores)
	mean := meanOf(scores)

	maxConfidence := 0.0
	for _, r := range results {
		if r.Confidence > maxConfidence {
			maxConfidence = r.Confidence
		}
	}
	confidence := maxConfidence
	if agreement < agreementConfidenceFloor {
		// Disagreement must visibly reduce reported confidence.
		confidence = maxConfidence * agreement
	}

	if agreement < lowAgreementWarning {
		c.logger.Warn("low judge agreement, flagging for review",
			"agreement", agreement,
			"scores", scores)
	}

	merged := model.RiskLevelResult{
		Level:      model.RiskLevelFromScore(mean),
		Confidence: confidence,
		Agreement:  agreement,
		Types:      unionTypes(results),
	}

	// Keep the reflection and language of the most severe judge; ties go
	// to the earlier judge.
	severest := results[0]
	for _, r := range results[1:] {
		if r.Level > severest.Level {
			severest = r
		}
	}
	merged.Reflection = severest.Reflection
	merged.Language = severest.Language
	merged.Locale = severest.Locale

	return merged
}

// agreementScore is the inverse coefficient of variation, clamped to
// [0,1]. This simplified metric is preserved for compatibility; it is
// not Krippendorff's alpha and should not be treated as statistically
// authoritative.
func agreementScore(scores []float64) float64 {
	mean := meanOf(scores)
	if mean == 0 {
		return 1.0
	}

	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	cv := math.Sqrt(variance) / mean

	return clamp01(1 - cv)
}

func meanOf(scores []float64) float64 {
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// unionTypes merges per-type tags across judges, keeping the maximum
// confidence seen for each distinct type name.
func unionTypes(results []model.RiskLevelResult) []model.RiskTypeResult {
	best := make(map[string]float64)
	var order []string
	for _, r := range results {
		for _, t := range r.Types {
			if seen, ok := best[t.Type]; !ok {
				best[t.Type] = t.Confidence
				order = append(order, t.Type)
			} else if t.Confidence > seen {
				best[t.Type] = t.Confidence
			}
		}
	}

	merged := make([]model.RiskTypeResult, 0, len(order))
	for _, name := range order {
		merged = append(merged, model.RiskTypeResult{Type: name, Confidence: best[name]})
	}
	return merged
}
