package repos

import (
    "context"
    "sort"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/spur-store/spur-chat-backend/internal/logger"
    "github.com/spur-store/spur-chat-backend/internal/types"
)

type MessageRepo interface {
    Create(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error)
    // GetRecentByConversationID returns at most limit of the newest messages,
    // re-sorted oldest first for model context.
    GetRecentByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]types.Message, error)
    // GetByConversationID returns every message ascending by creation time.
    GetByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]types.Message, error)
}

type messageRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
    return &messageRepo{
        db:  db,
        log: baseLog.With("repo", "MessageRepo"),
    }
}

func (mr *messageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
    if tx == nil {
        tx = mr.db
    }
    if msg.ID == uuid.Nil {
        msg.ID = uuid.New()
    }
    if err := tx.WithContext(ctx).Create(msg).Error; err != nil {
        mr.log.Error("failed to create message", "error", err)
        return nil, err
    }
    return msg, nil
}

func (mr *messageRepo) GetRecentByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]types.Message, error) {
    if tx == nil {
        tx = mr.db
    }
    var msgs []types.Message
    if err := tx.WithContext(ctx).
        Where("conversation_id = ?", conversationID).
        Order("created_at DESC").
        Limit(limit).
        Find(&msgs).Error; err != nil {
        mr.log.Error("failed to get recent messages by conversationID", "error", err)
        return nil, err
    }
    sort.Slice(msgs, func(i, j int) bool {
        return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
    })
    return msgs, nil
}

func (mr *messageRepo) GetByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]types.Message, error) {
    if tx == nil {
        tx = mr.db
    }
    var msgs []types.Message
    if err := tx.WithContext(ctx).
        Where("conversation_id = ?", conversationID).
        Order("created_at ASC").
        Find(&msgs).Error; err != nil {
        mr.log.Error("failed to get messages by conversationID", "error", err)
        return nil, err
    }
    return msgs, nil
}
