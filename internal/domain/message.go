// Package domain holds the shared value types and interfaces that connect the
// dispatcher, the inspectors and the notifier. Everything crossing the message
// bus lives here and is immutable once published.
package domain

import "encoding/json"

// InvestigationRequest is created once by the dispatcher and fanned out to
// every inspector. It is never mutated after publication; inspectors copy it
// by value into each notification they emit.
type InvestigationRequest struct {
	CorrelationID string          `json:"correlationId"`
	ThreadKey     string          `json:"threadKey"`
	Origin        string          `json:"origin"` // chat platform the trigger came from ("slack", "telegram")
	Channel       string          `json:"channel"`
	CallerToken   string          `json:"callerToken"`
	TargetText    string          `json:"targetText,omitempty"`
	Window        TimeWindow      `json:"timeWindow"`
	Meta          json.RawMessage `json:"meta,omitempty"` // raw trigger payload, passed through untouched
}

// OutgoingNotification is one reply destined for the thread that started the
// investigation. Blocks carry the structured rendering; PlainText is the whole
// body when Blocks is empty and a supplement otherwise.
type OutgoingNotification struct {
	OriginalRequest InvestigationRequest `json:"originalRequest"`
	Blocks          []Block              `json:"renderedBlocks,omitempty"`
	PlainText       string               `json:"plainText,omitempty"`
}

// Block types understood by the channel renderers.
const (
	BlockSection      = "section"
	BlockPreformatted = "preformatted"
)

// Block is a channel-agnostic message segment. Slack renders it as a Block Kit
// section; plain-text channels flatten it. Fields, when present, form a
// two-column label/value table and must have even length.
type Block struct {
	Type   string   `json:"type"`
	Text   string   `json:"text,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// SectionBlock is shorthand for the common single-text section.
func SectionBlock(text string) Block {
	return Block{Type: BlockSection, Text: text}
}
