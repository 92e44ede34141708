package gateway

import "encoding/json"

// request is the wire envelope for an RPC request.
type request struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// envelope is a loose decoding of any incoming frame. The gateway answers
// with either {"type":"res","id","ok","payload"} or the generic
// {"id","error"|"result"} shape; both must be accepted.
type envelope struct {
	Type    string          `json:"type,omitempty"`
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Err     *remoteError    `json:"error,omitempty"`
}

type remoteError struct {
	Message string `json:"message"`
}

func (e *envelope) errorMessage() string {
	if e.Err != nil && e.Err.Message != "" {
		return e.Err.Message
	}
	return "gateway error"
}
