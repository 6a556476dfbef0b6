// Package hub fans dashboard events out to websocket viewers over
// per-client buffered channels.
package hub

import "encoding/json"

// Message is one JSON-encoded dashboard event, such as a frame event or a
// stats snapshot. Viewers receive it as a text frame.
type Message struct {
	Data []byte
}

// Encode marshals v into a Message
func Encode(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
