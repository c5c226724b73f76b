package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// QuoteRecordedMessage announces a quote written to the journal. It carries
// only the id; the worker loads the full quote from the journal.
type QuoteRecordedMessage struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewQuoteRecordedMessage(id int64, sessionID string) *QuoteRecordedMessage {
	return &QuoteRecordedMessage{
		ID:        id,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

func (m *QuoteRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// QuoteRecordedMessageFromJSON decodes and validates a message body.
func QuoteRecordedMessageFromJSON(data []byte) (*QuoteRecordedMessage, error) {
	var msg QuoteRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, errors.New("message without quote id")
	}
	return &msg, nil
}
