package session

import (
	"bytes"
	"encoding/json"
)

// pingMatchSubstring is the literal, case-sensitive marker looked for in any
// inbound payload to detect a keepalive ping. Intentionally permissive
// (substring, not a parsed-JSON field match): whitespace elsewhere in the
// payload does not matter, but the marker itself must appear byte for byte,
// so `"operation": "ping"` (with a space) is not detected as a ping.
var pingMatchSubstring = []byte(`"operation":"ping"`)

// isPing reports whether payload carries the ping marker.
func isPing(payload []byte) bool {
	return bytes.Contains(payload, pingMatchSubstring)
}

// outboundEnvelope is the wire shape for a user-submitted outbound frame:
// {"receiver_id": "<id>", "data": <object>}.
type outboundEnvelope struct {
	ReceiverID string `json:"receiver_id"`
	Data       any    `json:"data"`
}

// buildOutboundFrame wraps data for receiverID into the wire envelope.
func buildOutboundFrame(receiverID string, data any) ([]byte, error) {
	return json.Marshal(outboundEnvelope{ReceiverID: receiverID, Data: data})
}

// buildPongFrame constructs the automatic pong reply sent to hostIdentifier
// on ping detection: {"receiver_id": "<host_identifier>", "data": {"operation": "pong"}}.
func buildPongFrame(hostIdentifier string) []byte {
	frame, _ := buildOutboundFrame(hostIdentifier, map[string]string{"operation": "pong"})
	return frame
}

// monitorConfig is the "config" sub-object of a monitor status frame.
type monitorConfig struct {
	TipoOperacao string `json:"tipo_operacao"`
	GpaCode      string `json:"gpa_code"`
}

type monitorData struct {
	Status Status        `json:"status"`
	Config monitorConfig `json:"config"`
}

// buildMonitorFrame constructs the optional secondary status frame sent to
// monitorIdentifier alongside a pong, when monitor reporting is enabled.
func buildMonitorFrame(monitorIdentifier, clientIdentifier string, status Status) []byte {
	frame, _ := buildOutboundFrame(monitorIdentifier, monitorData{
		Status: status,
		Config: monitorConfig{TipoOperacao: "monitor", GpaCode: clientIdentifier},
	})
	return frame
}
