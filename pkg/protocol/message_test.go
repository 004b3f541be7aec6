package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "detection message",
			msgType: TypeDetection,
			data:    DetectionData{Kind: "face", Box: &BoundingBox{X: 100, Y: 80, W: 60, H: 60}, Confidence: 0.9},
			wantErr: false,
		},
		{
			name:    "speech message",
			msgType: TypeSpeech,
			data:    SpeechData{Transcript: "hello there", Confidence: 0.8},
			wantErr: false,
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if msg == nil && !tt.wantErr {
				t.Error("NewMessage() returned nil message")
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestDetectionRoundTrip(t *testing.T) {
	msg, err := NewDetectionMessage("person", BoundingBox{X: 120, Y: 90, W: 80, H: 200}, 0.87, 1724600000000)
	if err != nil {
		t.Fatalf("NewDetectionMessage() error = %v", err)
	}

	bytes, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(bytes)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	if parsed.Type != TypeDetection {
		t.Errorf("Type = %v, want %v", parsed.Type, TypeDetection)
	}

	det, err := parsed.GetDetectionData()
	if err != nil {
		t.Fatalf("GetDetectionData() error = %v", err)
	}

	if det.Kind != "person" {
		t.Errorf("Kind = %v, want person", det.Kind)
	}
	if det.Box == nil {
		t.Fatal("Box should not be nil")
	}
	if det.Box.X != 120 || det.Box.W != 80 {
		t.Errorf("Box = %+v, want X=120 W=80", det.Box)
	}
	if det.Bearing != nil {
		t.Error("Bearing should be nil for a boxed detection")
	}
	if det.SensorTS != 1724600000000 {
		t.Errorf("SensorTS = %v, want 1724600000000", det.SensorTS)
	}
}

func TestBearingDetectionMessage(t *testing.T) {
	msg, err := NewBearingDetectionMessage("person", 0.26, 0.7, 0)
	if err != nil {
		t.Fatalf("NewBearingDetectionMessage() error = %v", err)
	}

	det, err := msg.GetDetectionData()
	if err != nil {
		t.Fatalf("GetDetectionData() error = %v", err)
	}

	if det.Box != nil {
		t.Error("Box should be nil for a bearing detection")
	}
	if det.Bearing == nil {
		t.Fatal("Bearing should not be nil")
	}
	if *det.Bearing != 0.26 {
		t.Errorf("Bearing = %v, want 0.26", *det.Bearing)
	}
}

func TestSayMessage(t *testing.T) {
	msg, err := NewSayMessage("cmd-7", "Welcome to the mall!", true)
	if err != nil {
		t.Fatalf("NewSayMessage() error = %v", err)
	}

	if msg.Type != TypeSay {
		t.Errorf("Type = %v, want %v", msg.Type, TypeSay)
	}

	say, err := msg.GetSayData()
	if err != nil {
		t.Fatalf("GetSayData() error = %v", err)
	}

	if say.ID != "cmd-7" {
		t.Errorf("ID = %v, want cmd-7", say.ID)
	}
	if say.Text != "Welcome to the mall!" {
		t.Errorf("Text = %v, want greeting", say.Text)
	}
	if !say.Animated {
		t.Error("Animated should be true")
	}
}

func TestFailedMessageCarriesReason(t *testing.T) {
	msg, err := NewFailedMessage("cmd-9", "motor stall")
	if err != nil {
		t.Fatalf("NewFailedMessage() error = %v", err)
	}

	failed, err := msg.GetFailedData()
	if err != nil {
		t.Fatalf("GetFailedData() error = %v", err)
	}

	if failed.ID != "cmd-9" {
		t.Errorf("ID = %v, want cmd-9", failed.ID)
	}
	if failed.Reason != "motor stall" {
		t.Errorf("Reason = %v, want motor stall", failed.Reason)
	}
}

func TestPingPongMessage(t *testing.T) {
	pingMsg, err := NewPingMessage("test-123")
	if err != nil {
		t.Fatalf("NewPingMessage() error = %v", err)
	}

	if pingMsg.Type != TypePing {
		t.Errorf("Type = %v, want %v", pingMsg.Type, TypePing)
	}

	pingData, err := pingMsg.GetPingData()
	if err != nil {
		t.Fatalf("GetPingData() error = %v", err)
	}

	if pingData.ID != "test-123" {
		t.Errorf("ID = %v, want test-123", pingData.ID)
	}

	// Create pong response
	now := time.Now().UnixMilli()
	pongMsg, err := NewPongMessage("test-123", pingMsg.Timestamp, now)
	if err != nil {
		t.Fatalf("NewPongMessage() error = %v", err)
	}

	if pongMsg.Type != TypePong {
		t.Errorf("Type = %v, want %v", pongMsg.Type, TypePong)
	}

	pongData, err := pongMsg.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData() error = %v", err)
	}

	if pongData.ID != "test-123" {
		t.Errorf("ID = %v, want test-123", pongData.ID)
	}
	if pongData.LatencyMs < 0 {
		t.Errorf("LatencyMs = %v, should be >= 0", pongData.LatencyMs)
	}
}

func TestParseInvalidMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "invalid json",
			input:   "not json",
			wantErr: true,
		},
		{
			name:    "empty json",
			input:   "{}",
			wantErr: false, // Empty is valid, just no type
		},
		{
			name:    "valid message",
			input:   `{"type":"ping","ts":1234567890}`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageJSON(t *testing.T) {
	// Verify JSON structure matches expected format
	msg, _ := NewGazeMessage("cmd-1", -0.4)

	bytes, _ := msg.Bytes()

	var parsed map[string]interface{}
	if err := json.Unmarshal(bytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal as map: %v", err)
	}

	if parsed["type"] != "gaze" {
		t.Errorf("type = %v, want gaze", parsed["type"])
	}

	if _, ok := parsed["ts"]; !ok {
		t.Error("ts field should be present")
	}

	if _, ok := parsed["data"]; !ok {
		t.Error("data field should be present")
	}
}
