package feishu

import "encoding/json"

// decodeJSON is a thin wrapper kept separate from client.go's envelope
// decoding because Upload's multipart response shape doesn't flow through
// Client.do.
func decodeJSON(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}
