package filters

import (
	"context"
	"encoding/json"

	"marketScope/internal/model"
)

// Message is one delivery to a handler. Exactly one of Block, Log, Event is
// set on success; on decode failure Raw and Err are set instead.
type Message struct {
	Label string
	Block *model.BlockHeader
	Log   *model.RawLog
	Event *model.Event
	Raw   json.RawMessage
	Err   error
}

// Handler consumes messages for one label.
type Handler func(Message)

// Handlers maps labels to their handler.
type Handlers map[string]Handler

// TeardownFunc replaces the default unsubscribe when ignoring a label.
type TeardownFunc func(ctx context.Context, label, id string) error
