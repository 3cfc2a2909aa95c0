package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"filescan-service/internal/model"
)

const defaultCrudPageSize = 20

func pageParams(c *gin.Context, defaultLimit int) (string, int) {
	limit := defaultLimit
	if lq := c.Query("limit"); lq != "" {
		if parsed, err := strconv.Atoi(lq); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return c.Query("cursor"), limit
}

// USERS

func (h *Handler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.users.EnsureSeed(ctx, model.SeedUsers()); err != nil {
		h.log.Error().Err(err).Msg("Failed to seed users")
		failure(c, "Internal server error")
		return
	}

	cursor, limit := pageParams(c, defaultCrudPageSize)
	page, err := h.users.List(ctx, cursor, limit)
	if err != nil {
		respondError(c, err, "User not found")
		return
	}
	ok(c, page)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bad(c, "Invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		bad(c, "name required")
		return
	}

	created, err := h.users.Create(c.Request.Context(), model.User{ID: uuid.NewString(), Name: name})
	if err != nil {
		respondError(c, err, "User not found")
		return
	}
	ok(c, created)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.users.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "User not found")
		return
	}
	ok(c, model.DeleteResult{ID: id, Deleted: deleted})
}

func (h *Handler) DeleteManyUsers(c *gin.Context) {
	var req model.DeleteManyRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		bad(c, "ids required")
		return
	}

	count, err := h.users.DeleteMany(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err, "User not found")
		return
	}
	ok(c, model.DeleteManyResult{DeletedCount: count, IDs: req.IDs})
}

// CHATS

func (h *Handler) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.chats.EnsureSeed(ctx, model.SeedChats()); err != nil {
		h.log.Error().Err(err).Msg("Failed to seed chats")
		failure(c, "Internal server error")
		return
	}

	cursor, limit := pageParams(c, defaultCrudPageSize)
	page, err := h.chats.List(ctx, cursor, limit)
	if err != nil {
		respondError(c, err, "Chat not found")
		return
	}
	ok(c, page)
}

func (h *Handler) CreateChat(c *gin.Context) {
	var req model.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bad(c, "Invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		bad(c, "title required")
		return
	}

	created, err := h.chats.Create(c.Request.Context(), model.Chat{ID: uuid.NewString(), Title: title})
	if err != nil {
		respondError(c, err, "Chat not found")
		return
	}
	ok(c, created)
}

func (h *Handler) DeleteChat(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.chats.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Chat not found")
		return
	}
	ok(c, model.DeleteResult{ID: id, Deleted: deleted})
}

func (h *Handler) DeleteManyChats(c *gin.Context) {
	var req model.DeleteManyRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		bad(c, "ids required")
		return
	}

	count, err := h.chats.DeleteMany(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err, "Chat not found")
		return
	}
	ok(c, model.DeleteManyResult{DeletedCount: count, IDs: req.IDs})
}

// MESSAGES

func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	if !h.chats.Exists(ctx, chatID) {
		notFound(c, "chat not found")
		return
	}

	if err := h.messages.EnsureSeed(ctx, model.SeedChatMessages()); err != nil {
		h.log.Error().Err(err).Msg("Failed to seed messages")
		failure(c, "Internal server error")
		return
	}

	items, err := h.chatMessages(ctx, chatID)
	if err != nil {
		respondError(c, err, "chat not found")
		return
	}
	ok(c, items)
}

func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bad(c, "userId and text required")
		return
	}
	text := strings.TrimSpace(req.Text)
	if req.UserID == "" || text == "" {
		bad(c, "userId and text required")
		return
	}

	if !h.chats.Exists(ctx, chatID) {
		notFound(c, "chat not found")
		return
	}

	message := model.ChatMessage{
		ID:     uuid.NewString(),
		ChatID: chatID,
		UserID: req.UserID,
		Text:   text,
		TS:     time.Now().UnixMilli(),
	}
	created, err := h.messages.Create(ctx, message)
	if err != nil {
		respondError(c, err, "chat not found")
		return
	}
	ok(c, created)
}

// chatMessages walks the whole messages collection and keeps the ones for
// one chat. Messages live in their own collection keyed by message id, so
// the chat filter is applied while paging.
func (h *Handler) chatMessages(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	items := []model.ChatMessage{}
	cursor := ""
	for {
		page, err := h.messages.List(ctx, cursor, 100)
		if err != nil {
			return nil, err
		}
		for _, msg := range page.Items {
			if msg.ChatID == chatID {
				items = append(items, msg)
			}
		}
		if page.NextCursor == "" {
			return items, nil
		}
		cursor = page.NextCursor
	}
}
