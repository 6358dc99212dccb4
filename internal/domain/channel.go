package domain

import "context"

// TurnHandler is the callback a channel invokes for each inbound turn.
// The returned TurnOutput carries the reply the channel should deliver.
type TurnHandler func(ctx context.Context, input TurnInput) (*TurnOutput, error)

// Channel is the interface for user-facing I/O adapters.
type Channel interface {
	Start(ctx context.Context, handler TurnHandler) error
	Stop(ctx context.Context) error
	// Send delivers an unsolicited message to a channel user, used by
	// scheduled reports outside the request/reply flow.
	Send(ctx context.Context, channelUserID, text string) error
	Name() string
}
