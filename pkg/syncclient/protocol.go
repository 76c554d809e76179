// Package syncclient speaks the live sync protocol served at /api/sync and keeps a local
// copy of every document the server publishes to the connection.
package syncclient

import (
	"encoding/json"
	"fmt"
)

// Message kinds.
const (
	MsgConnect   = "connect"
	MsgConnected = "connected"
	MsgSub       = "sub"
	MsgUnsub     = "unsub"
	MsgReady     = "ready"
	MsgNosub     = "nosub"
	MsgAdded     = "added"
	MsgChanged   = "changed"
	MsgRemoved   = "removed"
	MsgMethod    = "method"
	MsgResult    = "result"
	MsgUpdated   = "updated"
	MsgLogin     = "login"
	MsgPing      = "ping"
	MsgPong      = "pong"
	MsgError     = "error"
)

// Message is one frame in either direction. Which fields are set depends on Msg.
type Message struct {
	Msg        string            `json:"msg"`
	ID         string            `json:"id,omitempty"`
	Session    string            `json:"session,omitempty"`
	Name       string            `json:"name,omitempty"`
	Method     string            `json:"method,omitempty"`
	Params     []json.RawMessage `json:"params,omitempty"`
	Token      string            `json:"token,omitempty"`
	Subs       []string          `json:"subs,omitempty"`
	Methods    []string          `json:"methods,omitempty"`
	Collection string            `json:"collection,omitempty"`
	Fields     map[string]any    `json:"fields,omitempty"`
	Cleared    []string          `json:"cleared,omitempty"`
	Result     json.RawMessage   `json:"result,omitempty"`
	Error      *Error            `json:"error,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

// Error is a failure reported by the server: a machine readable kind and a reason fit
// for users.
type Error struct {
	Kind    string            `json:"error"`
	Reason  string            `json:"reason"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// EncodeParams marshals each value into a positional parameter.
func EncodeParams(params ...any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
