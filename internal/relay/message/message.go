// Package message implements relay wire messages and their newline-delimited JSON codec.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind - tag of the message variant.
type Kind int

const (
	_ Kind = iota
	// KindPing - liveness probe, relayed to peers as is.
	KindPing
	// KindText - text payload, relayed to peers.
	KindText
	// KindInvalid - marker of a message which made no sense to its producer.
	KindInvalid
	// KindDisconnect - the sender is closing the channel.
	KindDisconnect
	// KindError - error report with description.
	KindError
)

var kindNames = map[Kind]string{
	KindPing:       "Ping",
	KindText:       "Text",
	KindInvalid:    "InvalidMessage",
	KindDisconnect: "Disconnect",
	KindError:      "Error",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid - reports whether k is a known tag.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// carriesBody - reports whether the variant has a string payload.
func (k Kind) carriesBody() bool {
	return k == KindText || k == KindError
}

// Message - tagged variant transferred between relay and its clients.
// Body is meaningful only for KindText and KindError.
type Message struct {
	Kind Kind
	Body string
}

// Ping - builds Ping message.
func Ping() Message { return Message{Kind: KindPing} }

// Text - builds Text message with given payload.
func Text(s string) Message { return Message{Kind: KindText, Body: s} }

// Invalid - builds InvalidMessage message.
func Invalid() Message { return Message{Kind: KindInvalid} }

// Disconnect - builds Disconnect message.
func Disconnect() Message { return Message{Kind: KindDisconnect} }

// Error - builds Error message with given description.
func Error(s string) Message { return Message{Kind: KindError, Body: s} }

// IsData - reports whether the message is a payload which is relayed to peers.
func (m Message) IsData() bool {
	return m.Kind == KindPing || m.Kind == KindText
}

func (m Message) String() string {
	switch m.Kind {
	case KindText:
		return fmt.Sprintf("'%s'", m.Body)
	case KindError:
		return "error: " + m.Body
	case KindInvalid:
		return "Invalid message"
	default:
		return m.Kind.String()
	}
}

// MarshalJSON - encodes unit variants as JSON strings ("Ping")
// and payload variants as single-key objects ({"Text":"hi"}).
func (m Message) MarshalJSON() ([]byte, error) {
	name, ok := kindNames[m.Kind]
	if !ok {
		return nil, fmt.Errorf("message.Marshal: unknown kind %v", m.Kind)
	}
	if !m.Kind.carriesBody() {
		return json.Marshal(name)
	}
	body, err := json.Marshal(m.Body)
	if err != nil {
		return nil, err
	}
	buf := bytes.Buffer{}
	buf.WriteByte('{')
	tag, _ := json.Marshal(name)
	buf.Write(tag)
	buf.WriteByte(':')
	buf.Write(body)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON - decodes both forms produced by MarshalJSON.
// A unit variant is also accepted as a single-key object with null value.
func (m *Message) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("message.Unmarshal: empty input")
	}
	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		kind, err := lookup(name)
		if err != nil {
			return err
		}
		if kind.carriesBody() {
			return fmt.Errorf("message.Unmarshal: variant %s requires payload", kind)
		}
		*m = Message{Kind: kind}
		return nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if len(obj) != 1 {
			return fmt.Errorf("message.Unmarshal: expected exactly one tag, got %d", len(obj))
		}
		for name, raw := range obj {
			kind, err := lookup(name)
			if err != nil {
				return err
			}
			if !kind.carriesBody() {
				if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
					return fmt.Errorf("message.Unmarshal: variant %s takes no payload", kind)
				}
				*m = Message{Kind: kind}
				return nil
			}
			var body *string
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("message.Unmarshal: variant %s: %w", kind, err)
			}
			if body == nil {
				return fmt.Errorf("message.Unmarshal: variant %s requires payload", kind)
			}
			*m = Message{Kind: kind, Body: *body}
		}
		return nil
	default:
		return fmt.Errorf("message.Unmarshal: unexpected JSON value %.16q", data)
	}
}

func lookup(name string) (Kind, error) {
	kind, ok := kindByName[name]
	if !ok {
		return 0, fmt.Errorf("message.Unmarshal: unknown variant %q", name)
	}
	return kind, nil
}
