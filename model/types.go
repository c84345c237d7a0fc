// Package model provides domain types shared across packages.
package model

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversational message. Once appended to a turn's
// working copy it is never mutated; the engine may append synthesized
// system text but user/assistant content is preserved as written.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// ChunkType identifies the kind of a StreamChunk.
type ChunkType string

const (
	ChunkContent   ChunkType = "content"
	ChunkThinking  ChunkType = "thinking"
	ChunkMetadata  ChunkType = "metadata"
	ChunkCitations ChunkType = "citations"
	ChunkError     ChunkType = "error"
	ChunkDone      ChunkType = "done"
)

// StreamChunk is one unit of streamed output. Content carries text for
// content and thinking chunks; Err is set only on error chunks; Data
// carries structured payloads for metadata and citations chunks.
type StreamChunk struct {
	Type    ChunkType      `json:"type"`
	Content string         `json:"content,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Err     error          `json:"-"`
}

// ContentChunk creates a content chunk.
func ContentChunk(text string) StreamChunk {
	return StreamChunk{Type: ChunkContent, Content: text}
}

// ErrorChunk creates an error chunk.
func ErrorChunk(err error) StreamChunk {
	chunk := StreamChunk{Type: ChunkError, Err: err}
	if err != nil {
		chunk.Content = err.Error()
	}
	return chunk
}

// DoneChunk creates a terminal done chunk.
func DoneChunk() StreamChunk {
	return StreamChunk{Type: ChunkDone}
}

// ProcessEvent is an append-only audit record emitted by every pipeline
// stage. Events are owned by the engine for the duration of one turn and
// discarded afterwards; persistence belongs to the caller.
type ProcessEvent struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Type        string         `json:"type"`
	Step        string         `json:"step"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// EventSink receives process events as a stage produces them.
type EventSink func(ProcessEvent)
