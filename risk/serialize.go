// Conversation serialization for classifier prompts.
//
// Renders a message list into one of four fixed textual encodings so a
// judge model sees a consistent, bounded context. The tag vocabulary is
// a wire contract shared with the prompt templates in this package and
// must not drift from them.

package risk

import (
	"fmt"
	"strings"

	"github.com/richinex/cite/model"
)

// Approach selects how much of the conversation a judge sees.
type Approach string

const (
	// ApproachFullHistory includes every user and assistant turn.
	ApproachFullHistory Approach = "full_history"
	// ApproachOnlyLatest includes only the last user message.
	ApproachOnlyLatest Approach = "only_latest"
	// ApproachUserTail includes the last N user messages, assistant
	// turns dropped.
	ApproachUserTail Approach = "user_tail_n"
	// ApproachTruncatedAI includes every user turn plus only the most
	// recent assistant turn.
	ApproachTruncatedAI Approach = "truncated_ai"
)

// DefaultTailN is the default window for ApproachUserTail.
const DefaultTailN = 3

// Tag vocabulary. Shared with the prompt templates; part of the wire
// contract with the classifier.
const (
	tagConversation   = "CHAT_CONVERSATION"
	tagTurn           = "CHAT_TURN"
	tagLatestUserTurn = "LATEST_USER_TURN"
)

// Serializer renders message lists for classification.
type Serializer struct {
	Approach Approach
	TailN    int
}

// NewSerializer creates a serializer for the given approach with
// default settings.
func NewSerializer(approach Approach) Serializer {
	return Serializer{Approach: approach, TailN: DefaultTailN}
}

type indexedTurn struct {
	index int
	role  model.Role
	text  string
}

// Serialize renders the conversation. Output is the instructional
// preamble, the tagged conversation, and an echo of the latest user
// turn, which the classifier is told to weight most heavily.
func (s Serializer) Serialize(messages []model.Message) string {
	turns := s.filter(messages)

	var sb strings.Builder
	sb.WriteString("Assess the following conversation for mental-health risk. ")
	sb.WriteString("Turns are numbered in chronological order; weight the latest user turn most heavily.\n\n")

	sb.WriteString("<" + tagConversation + ">\n")
	for _, t := range turns {
		fmt.Fprintf(&sb, "<%s index=\"%d\" role=\"%s\">%s</%s>\n",
			tagTurn, t.index, t.role, escapeXML(t.text), tagTurn)
	}
	sb.WriteString("</" + tagConversation + ">\n")

	// The latest user turn is recomputed over the filtered set, not the
	// original conversation.
	if latest, ok := latestUserTurn(turns); ok {
		fmt.Fprintf(&sb, "\n<%s index=\"%d\">%s</%s>\n",
			tagLatestUserTurn, latest.index, escapeXML(latest.text), tagLatestUserTurn)
	}

	return sb.String()
}

// filter applies the approach and re-indexes the surviving turns 1..n
// in chronological order.
func (s Serializer) filter(messages []model.Message) []indexedTurn {
	var conversational []model.Message
	for _, m := range messages {
		if m.Role == model.RoleUser || m.Role == model.RoleAssistant {
			conversational = append(conversational, m)
		}
	}

	var kept []model.Message
	switch s.Approach {
	case ApproachOnlyLatest:
		for i := len(conversational) - 1; i >= 0; i-- {
			if conversational[i].Role == model.RoleUser {
				kept = []model.Message{conversational[i]}
				break
			}
		}

	case ApproachUserTail:
		n := s.TailN
		if n <= 0 {
			n = DefaultTailN
		}
		var users []model.Message
		for _, m := range conversational {
			if m.Role == model.RoleUser {
				users = append(users, m)
			}
		}
		if len(users) > n {
			users = users[len(users)-n:]
		}
		kept = users

	case ApproachTruncatedAI:
		lastAssistant := -1
		for i, m := range conversational {
			if m.Role == model.RoleAssistant {
				lastAssistant = i
			}
		}
		for i, m := range conversational {
			if m.Role == model.RoleUser || i == lastAssistant {
				kept = append(kept, m)
			}
		}

	default: // ApproachFullHistory
		kept = conversational
	}

	turns := make([]indexedTurn, len(kept))
	for i, m := range kept {
		turns[i] = indexedTurn{index: i + 1, role: m.Role, text: m.Content}
	}
	return turns
}

// latestUserTurn returns the highest-indexed user entry in the filtered
// set.
func latestUserTurn(turns []indexedTurn) (indexedTurn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].role == model.RoleUser {
			return turns[i], true
		}
	}
	return indexedTurn{}, false
}

// escapeXML escapes the characters that would break the tag framing.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
