// Risk classification types: ordered severity levels, per-judge results,
// and the coarser assessment the router consumes.

package model

import (
	"fmt"
	"math"
	"strings"
)

// RiskLevel is an ordered severity classification.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the canonical lower-case name.
func (l RiskLevel) String() string {
	switch l {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Score maps the level to its fixed numeric score used for averaging
// across judges.
func (l RiskLevel) Score() float64 {
	return float64(l)
}

// ParseRiskLevel parses a level name or classifier class tag
// (e.g. "high" or "CLASS_3"), case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "class_0":
		return RiskNone, nil
	case "low", "class_1":
		return RiskLow, nil
	case "medium", "class_2":
		return RiskMedium, nil
	case "high", "class_3":
		return RiskHigh, nil
	case "critical", "class_4":
		return RiskCritical, nil
	}
	return RiskNone, fmt.Errorf("unknown risk level %q", s)
}

// RiskLevelFromScore maps an averaged score back to the nearest discrete
// level, clamped to the valid range.
func RiskLevelFromScore(score float64) RiskLevel {
	rounded := int(math.Round(score))
	if rounded < int(RiskNone) {
		rounded = int(RiskNone)
	}
	if rounded > int(RiskCritical) {
		rounded = int(RiskCritical)
	}
	return RiskLevel(rounded)
}

// RiskTypeResult is a single tagged risk type with the classifier's
// confidence in it.
type RiskTypeResult struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// RiskLevelResult is the fine-grained verdict produced by classification.
// Agreement is 1.0 for a single judge and the consensus metric for
// multi-judge runs.
type RiskLevelResult struct {
	Level      RiskLevel        `json:"level"`
	Confidence float64          `json:"confidence"`
	Reflection string           `json:"reflection,omitempty"`
	Language   string           `json:"language,omitempty"`
	Locale     string           `json:"locale,omitempty"`
	Types      []RiskTypeResult `json:"types,omitempty"`
	Agreement  float64          `json:"agreement"`
}

// RiskAssessment is the coarser consumer-facing view used for routing.
type RiskAssessment struct {
	Level            RiskLevel `json:"level"`
	Categories       []string  `json:"categories,omitempty"`
	Reasoning        string    `json:"reasoning,omitempty"`
	SuggestedActions []string  `json:"suggested_actions,omitempty"`
}

// HasCategory reports whether the assessment carries the named category.
func (a RiskAssessment) HasCategory(name string) bool {
	for _, c := range a.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// AssessmentFromResult derives the routing view from a classification
// result. Risk type names become categories; the reflection becomes the
// reasoning text.
func AssessmentFromResult(result RiskLevelResult) RiskAssessment {
	assessment := RiskAssessment{
		Level:     result.Level,
		Reasoning: result.Reflection,
	}
	for _, t := range result.Types {
		assessment.Categories = append(assessment.Categories, t.Type)
	}
	switch {
	case result.Level >= RiskHigh:
		assessment.SuggestedActions = []string{"escalate", "surface_crisis_resources"}
	case result.Level == RiskMedium:
		assessment.SuggestedActions = []string{"monitor"}
	}
	return assessment
}

// Profile is a named response-generation configuration.
type Profile string

const (
	ProfileBasic    Profile = "basic"
	ProfileBalanced Profile = "balanced"
	ProfileCareful  Profile = "careful"
)

// Preference is the user's routing preference: automatic selection or a
// pinned profile.
type Preference string

const (
	PreferenceAuto     Preference = "auto"
	PreferenceBasic    Preference = "basic"
	PreferenceBalanced Preference = "balanced"
	PreferenceCareful  Preference = "careful"
)

// Pinned reports whether the preference pins a specific profile.
func (p Preference) Pinned() bool {
	return p != PreferenceAuto && p != ""
}

// Profile returns the pinned profile. Only meaningful when Pinned.
func (p Preference) Profile() Profile {
	return Profile(p)
}
