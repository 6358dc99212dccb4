package domain

import "time"

// DocumentFormat identifies the encoding of an uploaded CV document.
type DocumentFormat string

const (
	DocumentPDF  DocumentFormat = "pdf"
	DocumentDOCX DocumentFormat = "docx"
	DocumentTXT  DocumentFormat = "txt"
)

// Identity is the stable internal record for a channel user. The ID is a
// deterministic one-way hash of (channel type, channel-native user id), so
// resolving the same pair always yields the same identity without a store
// round trip for the hash itself. Immutable after creation except for
// display metadata.
type Identity struct {
	ID            string    `json:"id"`
	ChannelUserID string    `json:"channelUserId"`
	ChannelType   string    `json:"channelType"`
	IsBot         bool      `json:"isBot"`
	DisplayName   string    `json:"displayName,omitempty"`
	Username      string    `json:"username,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`

	// IsNew is derived at resolution time and never stored.
	IsNew bool `json:"-"`
}

// TurnInput is one inbound user interaction as the channel adapter
// delivers it to the orchestrator.
type TurnInput struct {
	ChannelType    string
	ChannelUserID  string
	IsBot          bool
	DisplayName    string
	Username       string
	UserInput      string
	Document       []byte
	DocumentName   string
	DocumentFormat DocumentFormat
}

// HasDocument reports whether the turn carries an uploaded document.
func (t TurnInput) HasDocument() bool { return len(t.Document) > 0 }

// TurnOutput is the orchestrator's reply to the channel adapter, which
// owns all channel-specific delivery.
type TurnOutput struct {
	Reply    string
	State    State
	Identity Identity
}
