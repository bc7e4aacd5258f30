package ws

import (
	"bytes"
	"encoding/json"
	"time"
)

// Frame is one outbound payload. A Frame with a JSON value is marshaled,
// otherwise Text is sent as is.
type Frame struct {
	Text string
	JSON any
}

// TextFrame builds a raw text frame, e.g. MEXC's "PING".
func TextFrame(s string) Frame { return Frame{Text: s} }

// JSONFrame builds a structured frame.
func JSONFrame(v any) Frame { return Frame{JSON: v} }

func (f Frame) payload() ([]byte, error) {
	if f.JSON != nil {
		return json.Marshal(f.JSON)
	}
	return []byte(f.Text), nil
}

// Frames pairs what to send after connect with what to send on teardown.
type Frames struct {
	Subscribe   []Frame
	Unsubscribe []Frame
}

// Message is one inbound text frame. Decoded holds the JSON value (numbers
// as json.Number) when JSON is true; otherwise only Raw is set.
type Message struct {
	Raw      []byte
	Decoded  any
	JSON     bool
	Received time.Time
}

// Text returns the raw payload as a string.
func (m Message) Text() string { return string(m.Raw) }

// Object returns Decoded as a JSON object.
func (m Message) Object() (map[string]any, bool) {
	obj, ok := m.Decoded.(map[string]any)
	return obj, ok
}

func decodeMessage(raw []byte, at time.Time) Message {
	msg := Message{Raw: raw, Received: at}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil {
		msg.Decoded, msg.JSON = v, true
	}
	return msg
}

// NewMessage decodes raw the way the receive loop does.
func NewMessage(raw []byte) Message {
	return decodeMessage(raw, time.Now())
}
