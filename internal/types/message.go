package types

import (
  "time"

  "github.com/google/uuid"
)

const (
  SenderUser = "user"
  SenderAI   = "ai"
)

// MaxMessageLength is the stored-content cap; longer input is truncated and
// marked with TruncationMarker before persistence.
const (
  MaxMessageLength = 500
  TruncationMarker = "..."
)

type Message struct {
  ID              uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"-"`
  ConversationID  uuid.UUID     `gorm:"column:conversation_id;index;not null" json:"-"`
  Sender          string        `gorm:"column:sender;not null" json:"sender"`
  Content         string        `gorm:"column:content;type:text;not null" json:"content"`
  CreatedAt       time.Time     `gorm:"not null;default:now()" json:"createdAt"`
}

func (Message) TableName() string {
  return "messages"
}
