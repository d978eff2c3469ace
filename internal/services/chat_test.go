package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spur-store/spur-chat-backend/internal/logger"
	"github.com/spur-store/spur-chat-backend/internal/types"
)

type fakeConversationRepo struct {
	bySession map[string]*types.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{bySession: make(map[string]*types.Conversation)}
}

func (f *fakeConversationRepo) UpsertBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Conversation, error) {
	if convo, ok := f.bySession[sessionID]; ok {
		return convo, nil
	}
	convo := &types.Conversation{ID: uuid.New(), SessionID: sessionID, CreatedAt: time.Now()}
	f.bySession[sessionID] = convo
	return convo, nil
}

func (f *fakeConversationRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Conversation, error) {
	convo, ok := f.bySession[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return convo, nil
}

type fakeMessageRepo struct {
	byConversation map[uuid.UUID][]types.Message
	clock          time.Time
	failAICreate   bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		byConversation: make(map[uuid.UUID][]types.Message),
		clock:          time.Unix(1700000000, 0),
	}
}

func (f *fakeMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
	if f.failAICreate && msg.Sender == types.SenderAI {
		return nil, fmt.Errorf("insert failed")
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	f.clock = f.clock.Add(time.Second)
	msg.CreatedAt = f.clock
	f.byConversation[msg.ConversationID] = append(f.byConversation[msg.ConversationID], *msg)
	return msg, nil
}

func (f *fakeMessageRepo) GetRecentByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]types.Message, error) {
	msgs := f.byConversation[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *fakeMessageRepo) GetByConversationID(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]types.Message, error) {
	msgs := f.byConversation[conversationID]
	if len(msgs) == 0 {
		// Mirror gorm's Find, which leaves the destination slice nil when
		// no rows match.
		return nil, nil
	}
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

type fakeGemini struct {
	reply       string
	gotHistory  []ChatTurn
	gotMessage  string
	callCount   int
}

func (f *fakeGemini) GenerateReply(ctx context.Context, history []ChatTurn, userMessage string) string {
	f.callCount++
	f.gotHistory = history
	f.gotMessage = userMessage
	return f.reply
}

func newTestChatService(t *testing.T, gemini GeminiService) (ChatService, *fakeConversationRepo, *fakeMessageRepo) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	convos := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	svc := NewChatService(log, convos, msgs, gemini, nil, nil)
	return svc, convos, msgs
}

func TestSendMessageMintsStableSessionID(t *testing.T) {
	gemini := &fakeGemini{reply: "Hello!"}
	svc, convos, _ := newTestChatService(t, gemini)

	reply, sessionID, err := svc.SendMessage(context.Background(), "", "Hi")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply != "Hello!" {
		t.Fatalf("reply = %q, want %q", reply, "Hello!")
	}
	if sessionID == "" {
		t.Fatal("expected a freshly minted session id")
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		t.Fatalf("session id %q is not a uuid: %v", sessionID, err)
	}

	_, again, err := svc.SendMessage(context.Background(), sessionID, "Hi again")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if again != sessionID {
		t.Fatalf("session id changed across turns: %q vs %q", again, sessionID)
	}
	if len(convos.bySession) != 1 {
		t.Fatalf("expected one conversation, got %d", len(convos.bySession))
	}
}

func TestSendMessageTruncatesLongInput(t *testing.T) {
	gemini := &fakeGemini{reply: "ok"}
	svc, convos, msgs := newTestChatService(t, gemini)

	long := strings.Repeat("a", 600)
	_, sessionID, err := svc.SendMessage(context.Background(), "", long)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	convo := convos.bySession[sessionID]
	stored := msgs.byConversation[convo.ID]
	want := strings.Repeat("a", 500) + "..."
	if stored[0].Content != want {
		t.Fatalf("stored content length = %d, want 500 a's plus marker", len(stored[0].Content))
	}
	if gemini.gotMessage != want {
		t.Fatal("gateway should receive the truncated message")
	}
}

func TestSendMessageBoundsModelContext(t *testing.T) {
	gemini := &fakeGemini{reply: "ok"}
	svc, _, _ := newTestChatService(t, gemini)

	sessionID := uuid.NewString()
	for i := 0; i < 8; i++ {
		if _, _, err := svc.SendMessage(context.Background(), sessionID, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}
	// 8 turns stored 16 messages; the 9th turn must see only the 10 newest,
	// its own user message included, oldest first.
	if _, _, err := svc.SendMessage(context.Background(), sessionID, "latest"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(gemini.gotHistory) != HistoryWindow {
		t.Fatalf("gateway history size = %d, want %d", len(gemini.gotHistory), HistoryWindow)
	}
	last := gemini.gotHistory[len(gemini.gotHistory)-1]
	if last.Sender != types.SenderUser || last.Content != "latest" {
		t.Fatalf("newest turn should be last, got %+v", last)
	}
	for i := 1; i < len(gemini.gotHistory); i++ {
		if gemini.gotHistory[i-1].Content == gemini.gotHistory[i].Content {
			t.Fatalf("duplicate adjacent history entries at %d", i)
		}
	}
}

func TestSendMessagePersistsFallbackReply(t *testing.T) {
	gemini := &fakeGemini{reply: FallbackReply}
	svc, convos, msgs := newTestChatService(t, gemini)

	reply, sessionID, err := svc.SendMessage(context.Background(), "", "Hi")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply != FallbackReply {
		t.Fatalf("reply = %q, want fallback", reply)
	}
	convo := convos.bySession[sessionID]
	stored := msgs.byConversation[convo.ID]
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(stored))
	}
	if stored[1].Sender != types.SenderAI || stored[1].Content != FallbackReply {
		t.Fatalf("ai row = %+v, want persisted fallback", stored[1])
	}
}

func TestSendMessageSurfacesPersistenceError(t *testing.T) {
	gemini := &fakeGemini{reply: "ok"}
	svc, convos, msgs := newTestChatService(t, gemini)
	msgs.failAICreate = true

	_, _, err := svc.SendMessage(context.Background(), "", "Hi")
	if err == nil {
		t.Fatal("expected error when ai insert fails")
	}
	// No rollback: the user message row stays behind.
	for _, convo := range convos.bySession {
		stored := msgs.byConversation[convo.ID]
		if len(stored) != 1 || stored[0].Sender != types.SenderUser {
			t.Fatalf("expected the orphaned user row, got %+v", stored)
		}
	}
}

func TestGetHistoryReturnsTurnsInOrder(t *testing.T) {
	gemini := &fakeGemini{reply: "pong"}
	svc, _, _ := newTestChatService(t, gemini)

	sessionID := uuid.NewString()
	const turns = 3
	for i := 0; i < turns; i++ {
		if _, _, err := svc.SendMessage(context.Background(), sessionID, fmt.Sprintf("ping %d", i)); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}

	history, err := svc.GetHistory(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 2*turns {
		t.Fatalf("history size = %d, want %d", len(history), 2*turns)
	}
	for i, msg := range history {
		wantSender := types.SenderUser
		if i%2 == 1 {
			wantSender = types.SenderAI
		}
		if msg.Sender != wantSender {
			t.Fatalf("message %d sender = %q, want %q", i, msg.Sender, wantSender)
		}
		if i > 0 && history[i-1].CreatedAt.After(msg.CreatedAt) {
			t.Fatalf("history out of order at index %d", i)
		}
	}
}

func TestGetHistoryUnknownSessionIsEmpty(t *testing.T) {
	gemini := &fakeGemini{reply: "ok"}
	svc, _, _ := newTestChatService(t, gemini)

	history, err := svc.GetHistory(context.Background(), "no-such-session")
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Fatalf("history = %v, want empty slice", history)
	}
}

func TestGetHistoryEmptyConversationIsEmptyArray(t *testing.T) {
	gemini := &fakeGemini{reply: "ok"}
	svc, convos, _ := newTestChatService(t, gemini)

	// A failed user insert can leave a conversation with zero messages.
	if _, err := convos.UpsertBySessionID(context.Background(), nil, "orphan"); err != nil {
		t.Fatalf("UpsertBySessionID() error = %v", err)
	}

	history, err := svc.GetHistory(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if history == nil {
		t.Fatal("history is nil; the handler would serialize null instead of []")
	}
	if len(history) != 0 {
		t.Fatalf("history size = %d, want 0", len(history))
	}
}

func TestTruncateMessage(t *testing.T) {
	short := "hello"
	if got := TruncateMessage(short); got != short {
		t.Fatalf("TruncateMessage(%q) = %q, want unchanged", short, got)
	}
	exact := strings.Repeat("x", types.MaxMessageLength)
	if got := TruncateMessage(exact); got != exact {
		t.Fatal("content at the cap should not be marked")
	}
	over := strings.Repeat("x", types.MaxMessageLength+1)
	want := exact + types.TruncationMarker
	if got := TruncateMessage(over); got != want {
		t.Fatalf("truncated length = %d, want %d", len(TruncateMessage(over)), len(want))
	}
}

func TestTruncateMessageCountsRunes(t *testing.T) {
	// 300 characters but 600 bytes: under the cap, must pass through.
	multibyte := strings.Repeat("é", 300)
	if got := TruncateMessage(multibyte); got != multibyte {
		t.Fatalf("multibyte content under the cap was modified: %d bytes", len(got))
	}

	over := strings.Repeat("€", types.MaxMessageLength+100)
	got := TruncateMessage(over)
	if !utf8.ValidString(got) {
		t.Fatal("truncated content is not valid UTF-8")
	}
	want := strings.Repeat("€", types.MaxMessageLength) + types.TruncationMarker
	if got != want {
		t.Fatalf("truncated rune count = %d, want %d plus marker",
			utf8.RuneCountInString(got), types.MaxMessageLength)
	}
}
