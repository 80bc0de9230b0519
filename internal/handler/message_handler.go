package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/pkg/response"
)

type messageService interface {
	Send(ctx context.Context, caller *models.JWTClaims, req models.SendMessageRequest) (*models.Message, error)
	Folder(ctx context.Context, caller *models.JWTClaims, folder string) ([]models.Message, error)
	Get(ctx context.Context, caller *models.JWTClaims, id string) (*models.Message, error)
	UnreadCount(ctx context.Context, caller *models.JWTClaims) (*models.UnreadCount, error)
}

// MessageHandler exposes the caller's mailbox.
type MessageHandler struct {
	service messageService
}

// NewMessageHandler constructs a message handler.
func NewMessageHandler(svc messageService) *MessageHandler {
	return &MessageHandler{service: svc}
}

// Send godoc
// @Summary Send message
// @Tags Messages
// @Accept json
// @Produce json
// @Param payload body models.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid message payload"))
		return
	}
	msg, err := h.service.Send(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// List godoc
// @Summary List messages
// @Tags Messages
// @Produce json
// @Param folder query string false "inbox or sent"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	messages, err := h.service.Folder(c.Request.Context(), claimsFromContext(c), c.DefaultQuery("folder", models.FolderInbox))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// Get godoc
// @Summary Read message
// @Description Marks the message read when the caller is the recipient
// @Tags Messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /messages/{id} [get]
func (h *MessageHandler) Get(c *gin.Context) {
	msg, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msg, nil)
}

// UnreadCount godoc
// @Summary Unread message count
// @Tags Messages
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /messages/unread/count [get]
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count, nil)
}
