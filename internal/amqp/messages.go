package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spendy/internal/core"
)

// ActivityMessageVersion is bumped when the message layout changes.
const ActivityMessageVersion = 1

// ActivityMessage carries one audit entry from the API to the worker. The id
// is assigned by the publisher so redeliveries insert at most one row.
type ActivityMessage struct {
	Version         int       `json:"version"`
	ID              string    `json:"activity_id"`
	UserID          string    `json:"user_id"`
	RelatedTable    string    `json:"related_table"`
	RelatedRecordID string    `json:"related_record_id"`
	ActionType      string    `json:"action_type"`
	Description     string    `json:"action_description"`
	IPAddress       string    `json:"ip_address"`
	UserAgent       string    `json:"user_agent"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func NewActivityMessage(e core.ActivityEntry) *ActivityMessage {
	return &ActivityMessage{
		Version:         ActivityMessageVersion,
		ID:              e.ID,
		UserID:          e.UserID,
		RelatedTable:    e.RelatedTable,
		RelatedRecordID: e.RelatedRecordID,
		ActionType:      e.ActionType,
		Description:     e.Description,
		IPAddress:       e.IPAddress,
		UserAgent:       e.UserAgent,
		OccurredAt:      e.CreatedAt,
	}
}

// Entry converts the message back to the audit entry it was built from.
func (m *ActivityMessage) Entry() core.ActivityEntry {
	return core.ActivityEntry{
		ID:              m.ID,
		UserID:          m.UserID,
		RelatedTable:    m.RelatedTable,
		RelatedRecordID: m.RelatedRecordID,
		ActionType:      m.ActionType,
		Description:     m.Description,
		IPAddress:       m.IPAddress,
		UserAgent:       m.UserAgent,
		CreatedAt:       m.OccurredAt,
	}
}

func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityMessageFromJSON decodes and checks a message body.
func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode activity message: %w", err)
	}
	if msg.Version != ActivityMessageVersion {
		return nil, fmt.Errorf("unsupported activity message version %d", msg.Version)
	}
	if msg.ID == "" || msg.UserID == "" || msg.ActionType == "" {
		return nil, errors.New("activity message missing id, user or action type")
	}
	return &msg, nil
}
