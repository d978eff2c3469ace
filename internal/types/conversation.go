package types

import (
  "time"

  "github.com/google/uuid"
)

// Conversation groups every message exchanged under one session token.
// Rows are created on the first message of a session and never mutated.
type Conversation struct {
  ID          uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  SessionID   string          `gorm:"column:session_id;uniqueIndex;not null" json:"sessionId"`
  CreatedAt   time.Time       `gorm:"not null;default:now()" json:"createdAt"`
}

func (Conversation) TableName() string {
  return "conversations"
}
