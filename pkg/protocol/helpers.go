package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewHelloMessage creates a source identification message
func NewHelloMessage(source string) (*Message, error) {
	return NewMessage(TypeHello, HelloData{
		Source: source,
	})
}

// NewDetectionMessage creates a boxed detection message
func NewDetectionMessage(kind string, box BoundingBox, confidence float64, sensorTS int64) (*Message, error) {
	return NewMessage(TypeDetection, DetectionData{
		Kind:       kind,
		Box:        &box,
		Confidence: confidence,
		SensorTS:   sensorTS,
	})
}

// NewBearingDetectionMessage creates a direction-only detection message
func NewBearingDetectionMessage(kind string, bearing, confidence float64, sensorTS int64) (*Message, error) {
	return NewMessage(TypeDetection, DetectionData{
		Kind:       kind,
		Bearing:    &bearing,
		Confidence: confidence,
		SensorTS:   sensorTS,
	})
}

// NewEmotionMessage creates an emotion classification message
func NewEmotionMessage(label string, box BoundingBox, confidence float64, sensorTS int64) (*Message, error) {
	return NewMessage(TypeEmotion, EmotionData{
		Label:      label,
		Box:        &box,
		Confidence: confidence,
		SensorTS:   sensorTS,
	})
}

// NewSpeechMessage creates a transcript message
func NewSpeechMessage(transcript string, bearing *float64, confidence float64, sensorTS int64) (*Message, error) {
	return NewMessage(TypeSpeech, SpeechData{
		Transcript: transcript,
		Bearing:    bearing,
		Confidence: confidence,
		SensorTS:   sensorTS,
	})
}

// NewLostMessage creates a track-loss message
func NewLostMessage(box *BoundingBox, bearing *float64, sensorTS int64) (*Message, error) {
	return NewMessage(TypeLost, LostData{
		Box:      box,
		Bearing:  bearing,
		SensorTS: sensorTS,
	})
}

// NewSayMessage creates a speak command message
func NewSayMessage(id, text string, animated bool) (*Message, error) {
	return NewMessage(TypeSay, SayData{
		ID:       id,
		Text:     text,
		Animated: animated,
	})
}

// NewGestureMessage creates a gesture command message
func NewGestureMessage(id, name string) (*Message, error) {
	return NewMessage(TypeGesture, GestureData{
		ID:   id,
		Name: name,
	})
}

// NewGazeMessage creates a gaze command message
func NewGazeMessage(id string, bearing float64) (*Message, error) {
	return NewMessage(TypeGaze, GazeData{
		ID:      id,
		Bearing: bearing,
	})
}

// NewDoneMessage creates a completion acknowledgement
func NewDoneMessage(id string) (*Message, error) {
	return NewMessage(TypeDone, DoneData{
		ID: id,
	})
}

// NewFailedMessage creates a failure acknowledgement
func NewFailedMessage(id, reason string) (*Message, error) {
	return NewMessage(TypeFailed, FailedData{
		ID:     id,
		Reason: reason,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHelloData extracts hello data from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetDetectionData extracts detection data from a message
func (m *Message) GetDetectionData() (*DetectionData, error) {
	var data DetectionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetEmotionData extracts emotion data from a message
func (m *Message) GetEmotionData() (*EmotionData, error) {
	var data EmotionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSpeechData extracts speech data from a message
func (m *Message) GetSpeechData() (*SpeechData, error) {
	var data SpeechData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetLostData extracts track-loss data from a message
func (m *Message) GetLostData() (*LostData, error) {
	var data LostData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSayData extracts say command data from a message
func (m *Message) GetSayData() (*SayData, error) {
	var data SayData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetGestureData extracts gesture command data from a message
func (m *Message) GetGestureData() (*GestureData, error) {
	var data GestureData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetGazeData extracts gaze command data from a message
func (m *Message) GetGazeData() (*GazeData, error) {
	var data GazeData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetDoneData extracts completion data from a message
func (m *Message) GetDoneData() (*DoneData, error) {
	var data DoneData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFailedData extracts failure data from a message
func (m *Message) GetFailedData() (*FailedData, error) {
	var data FailedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
