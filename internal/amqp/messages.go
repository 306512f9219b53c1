package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is the kind of change a ChangeMessage announces.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

func (o Op) Valid() bool {
	return o == OpCreated || o == OpUpdated || o == OpDeleted
}

// ChangeMessage announces that one of owner's transactions changed. It
// carries identity only; consumers refetch whatever they need.
type ChangeMessage struct {
	Owner     string    `json:"owner"`
	ID        int64     `json:"id"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(owner string, id int64, op Op) ChangeMessage {
	return ChangeMessage{
		Owner:     owner,
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

func (m ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and validates a message body.
func ChangeMessageFromJSON(data []byte) (ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ChangeMessage{}, err
	}
	if msg.Owner == "" {
		return ChangeMessage{}, fmt.Errorf("change message without owner")
	}
	if !msg.Op.Valid() {
		return ChangeMessage{}, fmt.Errorf("unknown change op %q", msg.Op)
	}
	return msg, nil
}
