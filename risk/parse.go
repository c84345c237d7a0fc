// Parsing of classifier responses: tagged fields first, embedded JSON
// as a fallback for judges that ignore the format.

package risk

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jsonutil "github.com/richinex/cite/internal/json"
	"github.com/richinex/cite/model"
)

var (
	languageRe       = regexp.MustCompile(`(?s)<language>\s*(.*?)\s*</language>`)
	localeRe         = regexp.MustCompile(`(?s)<locale>\s*(.*?)\s*</locale>`)
	reflectionRe     = regexp.MustCompile(`(?s)<reflection>\s*(.*?)\s*</reflection>`)
	classificationRe = regexp.MustCompile(`(?s)<classification>\s*(.*?)\s*</classification>`)
	confidenceRe     = regexp.MustCompile(`(?s)<confidence>\s*(.*?)\s*</confidence>`)
	riskTypeRe       = regexp.MustCompile(`<type\s+name="([^"]+)"\s+confidence="([^"]+)"\s*/?>`)
)

// jsonVerdict mirrors the JSON shape some judges emit instead of tags.
type jsonVerdict struct {
	Classification string  `json:"classification"`
	Level          string  `json:"level"`
	Confidence     float64 `json:"confidence"`
	Reflection     string  `json:"reflection"`
	Language       string  `json:"language"`
	Locale         string  `json:"locale"`
	RiskTypes      []struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	} `json:"risk_types"`
}

// parseVerdict extracts a RiskLevelResult from raw classifier output.
// The classification tag is required; its absence falls through to the JSON
// fallback, and failure of both is a parse error handled fail-safe by
// the assessor.
func parseVerdict(raw string) (model.RiskLevelResult, error) {
	if m := classificationRe.FindStringSubmatch(raw); m != nil {
		level, err := model.ParseRiskLevel(m[1])
		if err != nil {
			return model.RiskLevelResult{}, fmt.Errorf("bad classification tag: %w", err)
		}
		result := model.RiskLevelResult{
			Level:     level,
			Agreement: 1.0,
		}
		if m := languageRe.FindStringSubmatch(raw); m != nil {
			result.Language = m[1]
		}
		if m := localeRe.FindStringSubmatch(raw); m != nil {
			result.Locale = m[1]
		}
		if m := reflectionRe.FindStringSubmatch(raw); m != nil {
			result.Reflection = m[1]
		}
		if m := confidenceRe.FindStringSubmatch(raw); m != nil {
			if v, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64); err == nil {
				result.Confidence = clamp01(v)
			}
		}
		for _, tm := range riskTypeRe.FindAllStringSubmatch(raw, -1) {
			confidence, err := strconv.ParseFloat(tm[2], 64)
			if err != nil {
				continue
			}
			result.Types = append(result.Types, model.RiskTypeResult{
				Type:       tm[1],
				Confidence: clamp01(confidence),
			})
		}
		if result.Confidence == 0 {
			result.Confidence = maxTypeConfidence(result.Types)
		}
		return result, nil
	}

	return parseJSONVerdict(raw)
}

func parseJSONVerdict(raw string) (model.RiskLevelResult, error) {
	verdict, err := jsonutil.ExtractFromResponse[jsonVerdict](raw)
	if err != nil {
		return model.RiskLevelResult{}, fmt.Errorf("classifier response has neither classification tag nor JSON: %w", err)
	}

	levelName := verdict.Classification
	if levelName == "" {
		levelName = verdict.Level
	}
	level, err := model.ParseRiskLevel(levelName)
	if err != nil {
		return model.RiskLevelResult{}, fmt.Errorf("bad level in JSON verdict: %w", err)
	}

	result := model.RiskLevelResult{
		Level:      level,
		Confidence: clamp01(verdict.Confidence),
		Reflection: verdict.Reflection,
		Language:   verdict.Language,
		Locale:     verdict.Locale,
		Agreement:  1.0,
	}
	for _, t := range verdict.RiskTypes {
		name := t.Name
		if name == "" {
			name = t.Type
		}
		if name == "" {
			continue
		}
		result.Types = append(result.Types, model.RiskTypeResult{
			Type:       name,
			Confidence: clamp01(t.Confidence),
		})
	}
	if result.Confidence == 0 {
		result.Confidence = maxTypeConfidence(result.Types)
	}
	return result, nil
}

func maxTypeConfidence(types []model.RiskTypeResult) float64 {
	// Without an explicit confidence the strongest type tag stands in;
	// a bare verdict gets a conservative default.
	best := 0.0
	for _, t := range types {
		if t.Confidence > best {
			best = t.Confidence
		}
	}
	if best == 0 {
		return 0.5
	}
	return best
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
