package wire

import (
	"encoding/json"

	"github.com/oakfin/kitefeed/internal/model"
)

// controlMessage is the JSON shape of an outbound control frame.
type controlMessage struct {
	Action string `json:"a"`
	Value  any    `json:"v"`
}

// SubscribeMessage builds the text frame subscribing the given tokens.
func SubscribeMessage(tokens []uint32) ([]byte, error) {
	return json.Marshal(controlMessage{Action: "subscribe", Value: tokens})
}

// ModeMessage builds the text frame setting the data mode for the given tokens.
func ModeMessage(mode model.Mode, tokens []uint32) ([]byte, error) {
	return json.Marshal(controlMessage{Action: "mode", Value: []any{string(mode), tokens}})
}

// UnsubscribeMessage builds the text frame unsubscribing the given tokens.
//
// Subscriptions are sticky for the life of the process, so normal operation
// never sends this frame; it exists for completeness of the protocol surface.
func UnsubscribeMessage(tokens []uint32) ([]byte, error) {
	return json.Marshal(controlMessage{Action: "unsubscribe", Value: tokens})
}
