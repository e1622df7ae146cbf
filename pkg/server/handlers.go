package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sahayak-app/sahayak/pkg/intake"
	"github.com/sahayak-app/sahayak/pkg/logger"
	"github.com/sahayak-app/sahayak/pkg/store"
)

const (
	msgStoreFailure = "Something went wrong. Please try again later."
	msgModelFailure = "The assistant could not process your request. Please try again."
)

type conversationResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Title     string `json:"title"`
	Tag       string `json:"tag,omitempty"`
	CreatedAt int64  `json:"created_at_ms"`
	UpdatedAt int64  `json:"updated_at_ms"`
}

type messageResponse struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	Kind           string                 `json:"kind"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

type factResponse struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Type        string          `json:"type"`
	ExpiresAtMS int64           `json:"expires_at_ms,omitempty"`
	UpdatedAtMS int64           `json:"updated_at_ms"`
}

func toConversationResponse(c store.Conversation) conversationResponse {
	return conversationResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		Tag:       c.Tag,
		CreatedAt: c.CreatedAtMS,
		UpdatedAt: c.UpdatedAtMS,
	}
}

func toMessageResponse(m store.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Kind:           m.Kind,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}
}

func toFactResponse(f store.MemoryFact) factResponse {
	return factResponse{
		Key:         f.Key,
		Value:       f.Value,
		Type:        string(f.Type),
		ExpiresAtMS: f.ExpiresAtMS,
		UpdatedAtMS: f.UpdatedAtMS,
	}
}

func (s *Server) handleGetOrCreateConversation(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Tag    string `json:"tag"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Tag == "" {
		req.Tag = "intake"
	}

	conv, err := s.convs.GetOrCreateConversation(c.Request.Context(), req.UserID, req.Tag)
	if err != nil {
		logger.ErrorCF("server", "get or create conversation failed", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgStoreFailure})
		return
	}
	c.JSON(http.StatusOK, toConversationResponse(conv))
}

func (s *Server) handleListMessages(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.convs.GetConversation(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgStoreFailure})
		return
	}

	msgs, err := s.convs.ListMessages(c.Request.Context(), id)
	if err != nil {
		logger.ErrorCF("server", "list messages failed", map[string]interface{}{
			"conversation_id": id,
			"error":           err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgStoreFailure})
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (s *Server) handleClearMessages(c *gin.Context) {
	id := c.Param("id")
	n, err := s.convs.ClearMessages(c.Request.Context(), id)
	if err != nil {
		logger.ErrorCF("server", "clear messages failed", map[string]interface{}{
			"conversation_id": id,
			"error":           err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgStoreFailure})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

type turnRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

func (s *Server) handleIntakeTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")

	res, err := s.intake.RunTurn(c.Request.Context(), id, req.UserID, req.Text)
	if err != nil {
		s.writeTurnError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reply":     res.Reply,
		"rendered":  res.Rendered,
		"parsed_ok": res.ParsedOK,
		"message":   toMessageResponse(res.AssistantMessage),
	})
}

func (s *Server) handleChatTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")

	res, err := s.chat.RunTurn(c.Request.Context(), id, req.UserID, req.Text)
	if err != nil {
		s.writeTurnError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content": res.Content,
		"title":   res.Title,
		"message": toMessageResponse(res.AssistantMessage),
	})
}

// writeTurnError maps the turn error taxonomy to HTTP: model/transport
// failures are 502 with an apology (no assistant message was persisted),
// anything else is a store failure worth a generic 500.
func (s *Server) writeTurnError(c *gin.Context, conversationID string, err error) {
	var me *intake.ModelError
	if errors.As(err, &me) {
		logger.ErrorCF("server", "model call failed", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": msgModelFailure})
		return
	}
	logger.ErrorCF("server", "turn failed", map[string]interface{}{
		"conversation_id": conversationID,
		"error":           err.Error(),
	})
	c.JSON(http.StatusInternalServerError, gin.H{"error": msgStoreFailure})
}

func (s *Server) handleListFacts(c *gin.Context) {
	userID := c.Param("user_id")
	facts, err := s.memory.ListFacts(c.Request.Context(), userID)
	if err != nil {
		logger.ErrorCF("server", "list facts failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgStoreFailure})
		return
	}

	out := make([]factResponse, 0, len(facts))
	for _, f := range facts {
		out = append(out, toFactResponse(f))
	}
	c.JSON(http.StatusOK, gin.H{"facts": out})
}

func (s *Server) handleUpsertFact(c *gin.Context) {
	var req struct {
		Value       json.RawMessage `json:"value" binding:"required"`
		Type        string          `json:"type"`
		ExpiresAtMS int64           `json:"expires_at_ms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	factType := store.FactType(strings.ToLower(strings.TrimSpace(req.Type)))
	switch factType {
	case "":
		factType = store.FactFact
	case store.FactPreference, store.FactFact, store.FactContext:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be preference, fact, or context"})
		return
	}

	fact, err := s.memory.UpsertFact(c.Request.Context(), store.MemoryFact{
		UserID:      c.Param("user_id"),
		Key:         c.Param("key"),
		Value:       req.Value,
		Type:        factType,
		ExpiresAtMS: req.ExpiresAtMS,
	})
	if err != nil {
		logger.ErrorCF("server", "upsert fact failed", map[string]interface{}{
			"user_id": c.Param("user_id"),
			"key":     c.Param("key"),
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgStoreFailure})
		return
	}
	c.JSON(http.StatusOK, toFactResponse(fact))
}
