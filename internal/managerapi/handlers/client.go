package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/logging"
	"github.com/denishrana09/smpp-gateway/internal/managerapi/handlers/dto"
	"github.com/denishrana09/smpp-gateway/pkg/codes"
)

// ClientHandler holds dependencies for client provisioning handlers.
type ClientHandler struct {
	dbQueries database.Querier
}

// NewClientHandler creates a new handler instance.
func NewClientHandler(q database.Querier) *ClientHandler {
	return &ClientHandler{dbQueries: q}
}

// CreateClient handles POST /clients
func (h *ClientHandler) CreateClient(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "CreateClient")
	var req dto.CreateClientRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(logCtx, "Failed to bind request JSON", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if req.MaxConnections == 0 {
		req.MaxConnections = 1
	}
	if req.RoutingStrategy == "" {
		req.RoutingStrategy = codes.StrategyPriority
	}

	params := database.CreateClientParams{
		ID:              uuid.NewString(),
		SystemID:        req.SystemID,
		Password:        req.Password,
		MaxConnections:  req.MaxConnections,
		RoutingStrategy: req.RoutingStrategy,
	}

	created, err := h.dbQueries.CreateClient(logCtx, params)
	if err != nil {
		if isUniqueViolationError(err) {
			slog.WarnContext(logCtx, "Client creation failed: Duplicate system_id", slog.String("system_id", req.SystemID))
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Client with system_id '%s' already exists", req.SystemID)})
			return
		}
		slog.ErrorContext(logCtx, "Failed to create client in DB", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create client"})
		return
	}

	slog.InfoContext(logging.ContextWithClientID(logCtx, created.ID), "Client created successfully")
	c.JSON(http.StatusCreated, mapDBClientToResponse(created))
}

// GetClient handles GET /clients/:id
func (h *ClientHandler) GetClient(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "GetClient")
	id := c.Param("id")
	logCtx = logging.ContextWithClientID(logCtx, id)

	client, err := h.dbQueries.GetClientByID(logCtx, id)
	if err != nil {
		handleGetError(c, logCtx, "Client", err)
		return
	}

	c.JSON(http.StatusOK, mapDBClientToResponse(client))
}

// ListClients handles GET /clients with pagination
func (h *ClientHandler) ListClients(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "ListClients")
	limit, offset := parsePagination(c)

	total, err := h.dbQueries.CountClients(logCtx)
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to count clients", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve client count"})
		return
	}

	if total == 0 || offset >= int32(total) {
		c.JSON(http.StatusOK, dto.PaginatedListResponse{Data: []dto.ClientResponse{}, Pagination: dto.PaginationResponse{Total: total, Limit: limit, Offset: offset}})
		return
	}

	dbClients, err := h.dbQueries.ListClients(logCtx, database.ListClientsParams{Limit: limit, Offset: offset})
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to list clients from DB", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve clients"})
		return
	}

	respData := make([]dto.ClientResponse, len(dbClients))
	for i, dbClient := range dbClients {
		respData[i] = mapDBClientToResponse(dbClient)
	}

	c.JSON(http.StatusOK, dto.PaginatedListResponse{
		Data:       respData,
		Pagination: dto.PaginationResponse{Total: total, Limit: limit, Offset: offset},
	})
}

// DeleteClient handles DELETE /clients/:id
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "DeleteClient")
	id := c.Param("id")
	logCtx = logging.ContextWithClientID(logCtx, id)

	if err := h.dbQueries.DeleteClient(logCtx, id); err != nil {
		if isForeignKeyViolationError(err) {
			slog.WarnContext(logCtx, "Cannot delete client: message history references it", slog.Any("error", err))
			c.JSON(http.StatusConflict, gin.H{"error": "Cannot delete client: it has message history"})
			return
		}
		handleGetError(c, logCtx, "Client", err)
		return
	}

	slog.InfoContext(logCtx, "Client deleted successfully")
	c.Status(http.StatusNoContent)
}

// mapDBClientToResponse converts the database model to the API response DTO.
func mapDBClientToResponse(client database.Client) dto.ClientResponse {
	return dto.ClientResponse{
		ID:              client.ID,
		SystemID:        client.SystemID,
		MaxConnections:  client.MaxConnections,
		RoutingStrategy: client.RoutingStrategy,
		CreatedAt:       client.CreatedAt,
		UpdatedAt:       client.UpdatedAt,
	}
}
