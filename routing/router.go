// Package routing maps a risk assessment, the user's preference, and
// the shape of the latest message to a response-generation profile.
package routing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/cite/model"
)

// shortMessageWords is the word count under which a low-risk message is
// answered with the basic profile.
const shortMessageWords = 10

// Decision is the outcome of one routing call.
type Decision struct {
	Profile    model.Profile
	Assessment model.RiskAssessment
	Reason     string
}

// Route is a pure decision function over the turn. The safety override
// always wins: a pinned preference is ignored when the assessment is
// critical. Every call emits one audit event to the sink (which may be
// nil).
func Route(messages []model.Message, preference model.Preference, assessment model.RiskAssessment, events model.EventSink) Decision {
	decision := decide(messages, preference, assessment)

	if events != nil {
		events(model.ProcessEvent{
			ID:          uuid.NewString(),
			Timestamp:   time.Now(),
			Type:        "routing",
			Step:        "route",
			Description: fmt.Sprintf("selected profile %s: %s", decision.Profile, decision.Reason),
			Data: map[string]any{
				"profile":    string(decision.Profile),
				"risk_level": assessment.Level.String(),
				"preference": string(preference),
				"categories": assessment.Categories,
			},
		})
	}

	return decision
}

func decide(messages []model.Message, preference model.Preference, assessment model.RiskAssessment) Decision {
	if preference.Pinned() {
		if assessment.Level == model.RiskCritical {
			return Decision{
				Profile:    model.ProfileCareful,
				Assessment: assessment,
				Reason:     "critical risk overrides pinned preference",
			}
		}
		return Decision{
			Profile:    preference.Profile(),
			Assessment: assessment,
			Reason:     "honoring pinned preference",
		}
	}

	switch assessment.Level {
	case model.RiskNone, model.RiskLow:
		if words := latestUserWordCount(messages); words > 0 && words < shortMessageWords {
			return Decision{
				Profile:    model.ProfileBasic,
				Assessment: assessment,
				Reason:     fmt.Sprintf("low risk, short message (%d words)", words),
			}
		}
		return Decision{
			Profile:    model.ProfileBalanced,
			Assessment: assessment,
			Reason:     "low risk, longer message",
		}
	case model.RiskMedium:
		return Decision{
			Profile:    model.ProfileBalanced,
			Assessment: assessment,
			Reason:     "medium risk",
		}
	default:
		return Decision{
			Profile:    model.ProfileCareful,
			Assessment: assessment,
			Reason:     "elevated risk",
		}
	}
}

func latestUserWordCount(messages []model.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			return len(strings.Fields(messages[i].Content))
		}
	}
	return 0
}
