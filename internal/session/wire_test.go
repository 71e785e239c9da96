package session

import (
	"encoding/json"
	"testing"
)

func TestIsPing(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    bool
	}{
		{"exact", `{"operation":"ping"}`, true},
		{"whitespace variant", `{"operation": "ping"}`, false},
		{"embedded in larger object", `{"id":1,"operation":"ping","ts":123}`, true},
		{"pong is not ping", `{"operation":"pong"}`, false},
		{"unrelated payload", `{"data":{"x":1}}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isPing([]byte(tc.payload)); got != tc.want {
				t.Errorf("isPing(%q) = %v, want %v", tc.payload, got, tc.want)
			}
		})
	}
}

func TestBuildPongFrame(t *testing.T) {
	frame := buildPongFrame("h-1")

	var got outboundEnvelope
	if err := json.Unmarshal(frame, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ReceiverID != "h-1" {
		t.Errorf("receiver_id = %q, want h-1", got.ReceiverID)
	}

	data, ok := got.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is %T, want map", got.Data)
	}
	if data["operation"] != "pong" {
		t.Errorf("data.operation = %v, want pong", data["operation"])
	}
}

func TestBuildMonitorFrame(t *testing.T) {
	status := Status{Connected: true, RetryCount: 3}
	frame := buildMonitorFrame("mon", "c-1", status)

	var envelope struct {
		ReceiverID string `json:"receiver_id"`
		Data       struct {
			Status Status `json:"status"`
			Config struct {
				TipoOperacao string `json:"tipo_operacao"`
				GpaCode      string `json:"gpa_code"`
			} `json:"config"`
		} `json:"data"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.ReceiverID != "mon" {
		t.Errorf("receiver_id = %q, want mon", envelope.ReceiverID)
	}
	if envelope.Data.Config.TipoOperacao != "monitor" {
		t.Errorf("tipo_operacao = %q, want monitor", envelope.Data.Config.TipoOperacao)
	}
	if envelope.Data.Config.GpaCode != "c-1" {
		t.Errorf("gpa_code = %q, want c-1", envelope.Data.Config.GpaCode)
	}
	if !envelope.Data.Status.Connected {
		t.Errorf("status.connected = false, want true")
	}
}

func TestBuildOutboundFrame(t *testing.T) {
	frame, err := buildOutboundFrame("h-1", map[string]int{"x": 1})
	if err != nil {
		t.Fatalf("buildOutboundFrame: %v", err)
	}
	want := `{"receiver_id":"h-1","data":{"x":1}}`
	if string(frame) != want {
		t.Errorf("frame = %s, want %s", frame, want)
	}
}
