// Package protocol defines the WebSocket message types exchanged with
// perception collaborators and the robot actuation bridge.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Collaborator → Orchestrator messages
	TypeHello     MessageType = "hello"     // Source identification
	TypeDetection MessageType = "detection" // Person or face detection
	TypeEmotion   MessageType = "emotion"   // Emotion classification
	TypeSpeech    MessageType = "speech"    // Finished speech transcript
	TypeLost      MessageType = "lost"      // Detector-side track loss

	// Orchestrator → Robot messages
	TypeSay     MessageType = "say"     // Speak a line
	TypeGesture MessageType = "gesture" // Play a named animation
	TypeGaze    MessageType = "gaze"    // Orient head toward a bearing

	// Robot → Orchestrator acknowledgements
	TypeDone   MessageType = "done"   // Command finished
	TypeFailed MessageType = "failed" // Command failed

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Collaborator → Orchestrator Message Types
// =============================================================================

// HelloData identifies a collaborator connection
type HelloData struct {
	Source string `json:"source"` // "camera", "speech", "sim", etc.
}

// BoundingBox is a pixel-space detection box
type BoundingBox struct {
	X float64 `json:"x"` // Left edge
	Y float64 `json:"y"` // Top edge
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// DetectionData reports a person or face observed by a detector.
// Box is set by camera sources; Bearing by sources that localize by
// direction only (e.g. a mic array).
type DetectionData struct {
	Kind       string       `json:"kind"` // "person" or "face"
	Box        *BoundingBox `json:"box,omitempty"`
	Bearing    *float64     `json:"bearing,omitempty"` // Radians, robot-relative
	Confidence float64      `json:"confidence"`        // 0.0 to 1.0
	SensorTS   int64        `json:"sensor_ts,omitempty"`
}

// EmotionData reports an emotion classified on a detected face
type EmotionData struct {
	Label      string       `json:"label"` // "happy", "sad", "neutral", etc.
	Box        *BoundingBox `json:"box,omitempty"`
	Bearing    *float64     `json:"bearing,omitempty"`
	Confidence float64      `json:"confidence"`
	SensorTS   int64        `json:"sensor_ts,omitempty"`
}

// SpeechData carries a finished utterance transcript
type SpeechData struct {
	Transcript string   `json:"transcript"`
	Bearing    *float64 `json:"bearing,omitempty"` // Speaker direction when known
	Confidence float64  `json:"confidence"`
	SensorTS   int64    `json:"sensor_ts,omitempty"`
}

// LostData reports that a detector lost a track it had been reporting.
// The box or bearing is the last known location of the lost track.
type LostData struct {
	Box      *BoundingBox `json:"box,omitempty"`
	Bearing  *float64     `json:"bearing,omitempty"`
	SensorTS int64        `json:"sensor_ts,omitempty"`
}

// =============================================================================
// Orchestrator → Robot Message Types
// =============================================================================

// SayData asks the robot to speak a line. Animated enables contextual
// body language during speech.
type SayData struct {
	ID       string `json:"id"` // Command ID, echoed in the ack
	Text     string `json:"text"`
	Animated bool   `json:"animated,omitempty"`
}

// GestureData asks the robot to play a named animation
type GestureData struct {
	ID   string `json:"id"`
	Name string `json:"name"` // "greet", "happy", "thinking", etc.
}

// GazeData orients the robot's head toward a bearing
type GazeData struct {
	ID      string  `json:"id"`
	Bearing float64 `json:"bearing"` // Radians from robot forward
}

// =============================================================================
// Robot → Orchestrator Message Types
// =============================================================================

// DoneData acknowledges successful command completion
type DoneData struct {
	ID string `json:"id"`
}

// FailedData reports command failure
type FailedData struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
