package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// SnapshotSyncMessage announces that a user's budget reached Version in the
// local store. It carries no budget data; the worker reads the snapshot
// from the database.
type SnapshotSyncMessage struct {
	UserID    string    `json:"userId"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotSyncMessage(userID string, version int64) *SnapshotSyncMessage {
	return &SnapshotSyncMessage{
		UserID:    userID,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotSyncMessageFromJSON parses and checks a message body.
func SnapshotSyncMessageFromJSON(data []byte) (*SnapshotSyncMessage, error) {
	var msg SnapshotSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("sync message without user id")
	}
	return &msg, nil
}
