package services

import (
  "context"
  "errors"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/spur-store/spur-chat-backend/internal/logger"
  "github.com/spur-store/spur-chat-backend/internal/observability"
  "github.com/spur-store/spur-chat-backend/internal/repos"
  "github.com/spur-store/spur-chat-backend/internal/socket"
  "github.com/spur-store/spur-chat-backend/internal/types"
)

// HistoryWindow bounds the model context to the most recent messages of the
// conversation, keeping token cost flat regardless of session length.
const HistoryWindow = 10

type ChatService interface {
  // SendMessage runs one turn: upsert conversation, store the user message,
  // generate a reply from bounded history, store the reply. An empty
  // sessionID establishes a new session; the active token is returned either
  // way. Each step is its own transaction: a persistence failure after the
  // user insert leaves that row behind.
  SendMessage(ctx context.Context, sessionID, message string) (reply string, activeSessionID string, err error)
  // GetHistory returns every message of the session ascending by creation
  // time. Unknown sessions yield an empty slice, not an error.
  GetHistory(ctx context.Context, sessionID string) ([]types.Message, error)
}

type chatService struct {
  log              *logger.Logger
  conversationRepo repos.ConversationRepo
  messageRepo      repos.MessageRepo
  gemini           GeminiService
  hub              *socket.Hub
  metrics          *observability.Metrics
}

func NewChatService(
  log *logger.Logger,
  conversationRepo repos.ConversationRepo,
  messageRepo repos.MessageRepo,
  gemini GeminiService,
  hub *socket.Hub,
  metrics *observability.Metrics,
) ChatService {
  return &chatService{
    log:              log.With("service", "ChatService"),
    conversationRepo: conversationRepo,
    messageRepo:      messageRepo,
    gemini:           gemini,
    hub:              hub,
    metrics:          metrics,
  }
}

// TruncateMessage caps oversized input at MaxMessageLength characters and
// appends the marker. The cut counts runes, not bytes, so multibyte content
// is measured correctly and the stored text stays valid UTF-8.
func TruncateMessage(message string) string {
  runes := []rune(message)
  if len(runes) > types.MaxMessageLength {
    return string(runes[:types.MaxMessageLength]) + types.TruncationMarker
  }
  return message
}

func (cs *chatService) SendMessage(ctx context.Context, sessionID, message string) (string, string, error) {
  message = TruncateMessage(message)

  activeSessionID := sessionID
  if activeSessionID == "" {
    activeSessionID = uuid.NewString()
    cs.log.Debug("generated new session token", "sessionID", activeSessionID)
  }

  //1) Find or Create Conversation
  convo, err := cs.conversationRepo.UpsertBySessionID(ctx, nil, activeSessionID)
  if err != nil {
    return "", "", fmt.Errorf("failed to upsert conversation: %w", err)
  }

  //2) Save User Message
  userMsg := &types.Message{
    ConversationID: convo.ID,
    Sender:         types.SenderUser,
    Content:        message,
  }
  if _, err := cs.messageRepo.Create(ctx, nil, userMsg); err != nil {
    return "", "", fmt.Errorf("failed to save user message: %w", err)
  }
  if cs.metrics != nil {
    cs.metrics.MessagesStored.WithLabelValues(types.SenderUser).Inc()
  }

  //3) Fetch Bounded History (oldest first)
  pastMessages, err := cs.messageRepo.GetRecentByConversationID(ctx, nil, convo.ID, HistoryWindow)
  if err != nil {
    return "", "", fmt.Errorf("failed to fetch history: %w", err)
  }

  //4) Map history to gateway turns and Generate AI Reply
  history := make([]ChatTurn, 0, len(pastMessages))
  for _, msg := range pastMessages {
    history = append(history, ChatTurn{Sender: msg.Sender, Content: msg.Content})
  }
  aiReply := cs.gemini.GenerateReply(ctx, history, message)

  //5) Save AI Reply (fallback text included)
  aiMsg := &types.Message{
    ConversationID: convo.ID,
    Sender:         types.SenderAI,
    Content:        aiReply,
  }
  if _, err := cs.messageRepo.Create(ctx, nil, aiMsg); err != nil {
    return "", "", fmt.Errorf("failed to save ai message: %w", err)
  }
  if cs.metrics != nil {
    cs.metrics.MessagesStored.WithLabelValues(types.SenderAI).Inc()
    cs.metrics.ChatTurns.Inc()
  }

  //6) Best-effort fanout to live widget subscribers
  if cs.hub != nil {
    channel := socket.SessionChannel(activeSessionID)
    cs.hub.BroadcastGlobal(ctx, socket.Message{Channel: channel, Payload: userMsg})
    cs.hub.BroadcastGlobal(ctx, socket.Message{Channel: channel, Payload: aiMsg})
  }

  return aiReply, activeSessionID, nil
}

func (cs *chatService) GetHistory(ctx context.Context, sessionID string) ([]types.Message, error) {
  convo, err := cs.conversationRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return []types.Message{}, nil
    }
    return nil, fmt.Errorf("failed to look up conversation: %w", err)
  }
  msgs, err := cs.messageRepo.GetByConversationID(ctx, nil, convo.ID)
  if err != nil {
    return nil, fmt.Errorf("failed to fetch messages: %w", err)
  }
  if msgs == nil {
    // A conversation can exist with zero rows (a turn whose user insert
    // failed); the contract is an empty array, never null.
    msgs = []types.Message{}
  }
  return msgs, nil
}
