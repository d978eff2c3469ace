package handlers

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"

  "github.com/spur-store/spur-chat-backend/internal/services"
)

type ChatHandler struct {
  chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
  return &ChatHandler{chatService: chatService}
}

// HandleChatMessage runs one chat turn. A missing sessionId establishes a new
// session; its token comes back in the response for the client to store.
func (ch *ChatHandler) HandleChatMessage(c *gin.Context) {
  var req struct {
    Message   string `json:"message"`
    SessionID string `json:"sessionId,omitempty"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
    return
  }
  if strings.TrimSpace(req.Message) == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
    return
  }
  reply, sessionID, err := ch.chatService.SendMessage(c.Request.Context(), req.SessionID, req.Message)
  if err != nil {
    // Detail stays server-side; the client only learns the turn failed.
    c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"reply": reply, "sessionId": sessionID})
}

// GetChatHistory returns every message of a session ascending by creation
// time. Unknown sessions get an empty array, not an error.
func (ch *ChatHandler) GetChatHistory(c *gin.Context) {
  sessionID := c.Param("sessionId")
  if strings.TrimSpace(sessionID) == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID is required"})
    return
  }
  msgs, err := ch.chatService.GetHistory(c.Request.Context(), sessionID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
    return
  }
  c.JSON(http.StatusOK, msgs)
}
