package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/richinex/cite/model"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubJudge returns a fixed verdict or error.
type stubJudge struct {
	name   string
	result model.RiskLevelResult
	err    error
}

func (j stubJudge) Name() string { return j.name }

func (j stubJudge) Assess(ctx context.Context, messages []model.Message) (model.RiskLevelResult, error) {
	return j.result, j.err
}

func verdict(level model.RiskLevel, confidence float64, types ...model.RiskTypeResult) model.RiskLevelResult {
	return model.RiskLevelResult{Level: level, Confidence: confidence, Types: types}
}

func classify(t *testing.T, judges ...Judge) model.RiskLevelResult {
	t.Helper()
	c, err := NewClassifier(judges...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := c.WithLogger(quiet).Classify(context.Background(), []model.Message{model.UserMessage("hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewClassifierRequiresJudges(t *testing.T) {
	if _, err := NewClassifier(); err == nil {
		t.Error("expected error for empty judge list")
	}
}

func TestClassifySingleJudgePassthrough(t *testing.T) {
	result := classify(t, stubJudge{name: "solo", result: verdict(model.RiskHigh, 0.9)})

	if result.Level != model.RiskHigh {
		t.Errorf("level = %v, want high", result.Level)
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", result.Confidence)
	}
	if result.Agreement != 1.0 {
		t.Errorf("agreement = %v, want 1.0 for a single judge", result.Agreement)
	}
}

func TestClassifyUnanimousJudges(t *testing.T) {
	result := classify(t,
		stubJudge{name: "a", result: verdict(model.RiskMedium, 0.8)},
		stubJudge{name: "b", result: verdict(model.RiskMedium, 0.7)},
		stubJudge{name: "c", result: verdict(model.RiskMedium, 0.9)},
	)

	if result.Level != model.RiskMedium {
		t.Errorf("level = %v, want medium", result.Level)
	}
	if result.Agreement != 1.0 {
		t.Errorf("agreement = %v, want 1.0 for identical scores", result.Agreement)
	}
	// Full agreement reports the best judge's confidence unscaled.
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", result.Confidence)
	}
}

func TestClassifyDisagreementScalesConfidence(t *testing.T) {
	// Scores {0, 4, 2}: mean 2, stddev sqrt(8/3), agreement 1 - cv.
	result := classify(t,
		stubJudge{name: "a", result: verdict(model.RiskNone, 0.9)},
		stubJudge{name: "b", result: verdict(model.RiskCritical, 0.8)},
		stubJudge{name: "c", result: verdict(model.RiskMedium, 0.7)},
	)

	wantAgreement := 1 - math.Sqrt(8.0/3.0)/2.0
	if !almostEqual(result.Agreement, wantAgreement) {
		t.Errorf("agreement = %v, want %v", result.Agreement, wantAgreement)
	}
	if result.Level != model.RiskMedium {
		t.Errorf("level = %v, want medium (mean score 2)", result.Level)
	}
	if !almostEqual(result.Confidence, 0.9*wantAgreement) {
		t.Errorf("confidence = %v, want max confidence scaled by agreement", result.Confidence)
	}
}

func TestClassifyAllZeroScoresAgree(t *testing.T) {
	result := classify(t,
		stubJudge{name: "a", result: verdict(model.RiskNone, 0.9)},
		stubJudge{name: "b", result: verdict(model.RiskNone, 0.8)},
	)

	if result.Agreement != 1.0 {
		t.Errorf("agreement = %v, want 1.0 for unanimous zero scores", result.Agreement)
	}
	if result.Level != model.RiskNone {
		t.Errorf("level = %v, want none", result.Level)
	}
}

func TestClassifyUnionsTypesKeepingMaxConfidence(t *testing.T) {
	result := classify(t,
		stubJudge{name: "a", result: verdict(model.RiskMedium, 0.8,
			model.RiskTypeResult{Type: "mental_health", Confidence: 0.5},
			model.RiskTypeResult{Type: "substance_crisis", Confidence: 0.4},
		)},
		stubJudge{name: "b", result: verdict(model.RiskMedium, 0.8,
			model.RiskTypeResult{Type: "mental_health", Confidence: 0.9},
		)},
	)

	if len(result.Types) != 2 {
		t.Fatalf("types = %+v, want union of 2", result.Types)
	}
	if result.Types[0].Type != "mental_health" || result.Types[0].Confidence != 0.9 {
		t.Errorf("mental_health = %+v, want max confidence 0.9", result.Types[0])
	}
	if result.Types[1].Type != "substance_crisis" || result.Types[1].Confidence != 0.4 {
		t.Errorf("substance_crisis = %+v", result.Types[1])
	}
}

func TestClassifyKeepsSeverestReflection(t *testing.T) {
	low := verdict(model.RiskLow, 0.8)
	low.Reflection = "seems fine"
	high := verdict(model.RiskHigh, 0.8)
	high.Reflection = "active plan described"
	high.Language = "German"

	result := classify(t,
		stubJudge{name: "a", result: low},
		stubJudge{name: "b", result: high},
	)

	if result.Reflection != "active plan described" {
		t.Errorf("reflection = %q, want the severest judge's", result.Reflection)
	}
	if result.Language != "German" {
		t.Errorf("language = %q, want the severest judge's", result.Language)
	}
}

func TestClassifyFailedJudgeSubstitutesFailSafe(t *testing.T) {
	result := classify(t,
		stubJudge{name: "a", result: verdict(model.RiskNone, 0.9)},
		stubJudge{name: "b", err: errors.New("upstream down")},
	)

	// Scores {0, 2}: the failed judge pulls the mean up fail-safe.
	if result.Level != model.RiskLow {
		t.Errorf("level = %v, want low (mean of 0 and fail-safe 2)", result.Level)
	}
	found := false
	for _, rt := range result.Types {
		if rt.Type == AssessmentErrorCategory {
			found = true
		}
	}
	if !found {
		t.Errorf("types = %+v, want %s tag from fail-safe verdict", result.Types, AssessmentErrorCategory)
	}
}

func TestClassifyAllJudgesFailed(t *testing.T) {
	c, err := NewClassifier(
		stubJudge{name: "a", err: errors.New("down")},
		stubJudge{name: "b", err: errors.New("down too")},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.WithLogger(quiet).Classify(context.Background(), nil); err == nil {
		t.Error("expected error when every judge fails")
	}
}

func TestClassifySingleJudgeErrorPropagates(t *testing.T) {
	c, err := NewClassifier(stubJudge{name: "solo", err: errors.New("down")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.WithLogger(quiet).Classify(context.Background(), nil); err == nil {
		t.Error("expected error from single failing judge")
	}
}
