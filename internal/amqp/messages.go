package amqp

import (
	"encoding/json"
	"time"
)

// EntryRecordedMessage is published after a ledger entry is committed.
// It carries identifiers only; consumers fetch whatever else they need.
type EntryRecordedMessage struct {
	EntryID   int64     `json:"entry_id"`
	WalletID  int64     `json:"wallet_id"`
	Hours     string    `json:"hours"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryRecordedMessage(entryID, walletID int64, hours, source string) *EntryRecordedMessage {
	return &EntryRecordedMessage{
		EntryID:   entryID,
		WalletID:  walletID,
		Hours:     hours,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func EntryRecordedMessageFromJSON(data []byte) (*EntryRecordedMessage, error) {
	var msg EntryRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
