package repos

import (
    "context"

    "gorm.io/gorm"
    "gorm.io/gorm/clause"

    "github.com/spur-store/spur-chat-backend/internal/logger"
    "github.com/spur-store/spur-chat-backend/internal/types"
)

type ConversationRepo interface {
    // UpsertBySessionID inserts a conversation for the session token if none
    // exists and returns the row either way. Idempotent on session_id.
    UpsertBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Conversation, error)
    // GetBySessionID returns gorm.ErrRecordNotFound for unknown sessions.
    GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Conversation, error)
}

type conversationRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
    return &conversationRepo{
        db:  db,
        log: baseLog.With("repo", "ConversationRepo"),
    }
}

func (cr *conversationRepo) UpsertBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Conversation, error) {
    if tx == nil {
        tx = cr.db
    }
    convo := types.Conversation{SessionID: sessionID}
    if err := tx.WithContext(ctx).
        Clauses(clause.OnConflict{
            Columns:   []clause.Column{{Name: "session_id"}},
            DoNothing: true,
        }).
        Create(&convo).Error; err != nil {
        cr.log.Error("failed to upsert conversation", "error", err)
        return nil, err
    }
    // DoNothing leaves the struct zeroed when the row already existed, so
    // read the winning row back in both cases.
    var out types.Conversation
    if err := tx.WithContext(ctx).
        Where("session_id = ?", sessionID).
        First(&out).Error; err != nil {
        cr.log.Error("failed to load conversation after upsert", "error", err)
        return nil, err
    }
    return &out, nil
}

func (cr *conversationRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Conversation, error) {
    if tx == nil {
        tx = cr.db
    }
    var convo types.Conversation
    if err := tx.WithContext(ctx).
        Where("session_id = ?", sessionID).
        First(&convo).Error; err != nil {
        return nil, err
    }
    return &convo, nil
}
