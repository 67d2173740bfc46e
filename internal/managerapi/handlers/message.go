package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/logging"
	"github.com/denishrana09/smpp-gateway/internal/managerapi/handlers/dto"
)

// MessageHandler serves message history lookups.
type MessageHandler struct {
	dbQueries database.Querier
}

// NewMessageHandler creates a new handler instance.
func NewMessageHandler(q database.Querier) *MessageHandler {
	return &MessageHandler{dbQueries: q}
}

// ListMessages handles GET /messages with pagination. An optional client_id
// query param scopes the listing to one client.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "ListMessages")
	limit, offset := parsePagination(c)
	clientID := c.Query("client_id")
	if clientID != "" {
		logCtx = logging.ContextWithClientID(logCtx, clientID)
	}

	total, err := h.dbQueries.CountMessages(logCtx, clientID)
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to count messages", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve message count"})
		return
	}

	if total == 0 || offset >= int32(total) {
		c.JSON(http.StatusOK, dto.PaginatedListResponse{Data: []dto.MessageResponse{}, Pagination: dto.PaginationResponse{Total: total, Limit: limit, Offset: offset}})
		return
	}

	dbMessages, err := h.dbQueries.ListMessages(logCtx, database.ListMessagesParams{ClientID: clientID, Limit: limit, Offset: offset})
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to list messages from DB", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	respData := make([]dto.MessageResponse, len(dbMessages))
	for i, m := range dbMessages {
		respData[i] = dto.MessageResponse{
			ID:              m.ID,
			ClientID:        m.ClientID,
			VendorID:        m.VendorID,
			HostID:          m.HostID,
			VendorMessageID: m.VendorMessageID,
			Source:          m.Source,
			Destination:     m.Destination,
			Content:         m.Content,
			Status:          m.Status,
			Direction:       m.Direction,
			CreatedAt:       m.CreatedAt,
			UpdatedAt:       m.UpdatedAt,
		}
	}

	c.JSON(http.StatusOK, dto.PaginatedListResponse{
		Data:       respData,
		Pagination: dto.PaginationResponse{Total: total, Limit: limit, Offset: offset},
	})
}
