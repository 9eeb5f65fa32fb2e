package realtime

import (
	"errors"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantData string
		wantErr  bool
	}{
		{"auth success", `{"type":"auth_success"}`, "auth_success", "", false},
		{"auth error", `{"type":"auth_error","error":"bad token"}`, "auth_error", "", false},
		{"event with data", `{"type":"unread_count_update","data":{"unreadCount":7}}`, "unread_count_update", `{"unreadCount":7}`, false},
		{"null data", `{"type":"notification_created","data":null}`, "notification_created", "", false},
		{"surrounding whitespace", "  {\"type\":\"x\"}\n", "x", "", false},
		{"not json", `hello`, "", "", true},
		{"array", `[{"type":"x"}]`, "", "", true},
		{"missing type", `{"data":{}}`, "", "", true},
		{"empty type", `{"type":""}`, "", "", true},
		{"numeric type", `{"type":1}`, "", "", true},
		{"truncated", `{"type":"x"`, "", "", true},
		{"empty", ``, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := decodeFrame([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if env.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", env.Type, tt.wantType)
			}
			if string(env.Data) != tt.wantData {
				t.Errorf("Data = %s, want %s", env.Data, tt.wantData)
			}
		})
	}
}

func TestDecodeFrame_AuthErrorMessage(t *testing.T) {
	env, err := decodeFrame([]byte(`{"type":"auth_error","error":"token expired"}`))
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	if env.Error != "token expired" {
		t.Errorf("Error = %q, want %q", env.Error, "token expired")
	}
}

func TestInboundEvent_DecodeWithoutData(t *testing.T) {
	ev := InboundEvent{Kind: KindUnreadCountUpdate}
	var u UnreadCountUpdate
	if err := ev.Decode(&u); err == nil {
		t.Error("Decode of empty data returned nil error")
	}
}

func TestCloseCode(t *testing.T) {
	if got := CloseCode(errors.New("read tcp: connection reset")); got != CloseAbnormal {
		t.Errorf("CloseCode(plain error) = %d, want %d", got, CloseAbnormal)
	}
}
