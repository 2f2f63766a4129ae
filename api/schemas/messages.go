package schemas

import "strings"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType discriminates the segments of a message.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
)

// ContentPart is one ordered segment of a message: plain text or a base64
// encoded PNG.
type ContentPart struct {
	Type      ContentType `json:"type"`
	Text      string      `json:"text,omitempty"`
	ImageData string      `json:"image_data,omitempty"`
}

// Message is one entry of the conversation window. Tokens is the estimated
// cost assigned by the window manager when the message is admitted; it is an
// estimate, not a tokenizer-exact count.
type Message struct {
	Role   Role          `json:"role"`
	Parts  []ContentPart `json:"parts"`
	Tokens int           `json:"tokens,omitempty"`
}

// NewTextMessage builds a single-segment text message.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:  role,
		Parts: []ContentPart{{Type: ContentText, Text: text}},
	}
}

// Text concatenates the message's text segments.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == ContentText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// HasImage reports whether any segment carries image data.
func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if p.Type == ContentImage && p.ImageData != "" {
			return true
		}
	}
	return false
}
