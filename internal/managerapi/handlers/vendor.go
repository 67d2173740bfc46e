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
)

// VendorHandler holds dependencies for vendor provisioning handlers.
type VendorHandler struct {
	dbQueries database.Querier
}

// NewVendorHandler creates a new handler instance.
func NewVendorHandler(q database.Querier) *VendorHandler {
	return &VendorHandler{dbQueries: q}
}

// CreateVendor handles POST /vendors
func (h *VendorHandler) CreateVendor(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "CreateVendor")
	var req dto.CreateVendorRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(logCtx, "Failed to bind request JSON", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	params := database.CreateVendorParams{
		ID:           uuid.NewString(),
		SystemID:     req.SystemID,
		Password:     req.Password,
		MessagePrice: req.MessagePrice,
	}

	created, err := h.dbQueries.CreateVendor(logCtx, params)
	if err != nil {
		if isUniqueViolationError(err) {
			slog.WarnContext(logCtx, "Vendor creation failed: Duplicate system_id", slog.String("system_id", req.SystemID))
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Vendor with system_id '%s' already exists", req.SystemID)})
			return
		}
		slog.ErrorContext(logCtx, "Failed to create vendor in DB", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create vendor"})
		return
	}

	slog.InfoContext(logging.ContextWithVendorID(logCtx, created.ID), "Vendor created successfully")
	c.JSON(http.StatusCreated, mapDBVendorToResponse(created))
}

// GetVendor handles GET /vendors/:id
func (h *VendorHandler) GetVendor(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "GetVendor")
	id := c.Param("id")
	logCtx = logging.ContextWithVendorID(logCtx, id)

	vendor, err := h.dbQueries.GetVendorByID(logCtx, id)
	if err != nil {
		handleGetError(c, logCtx, "Vendor", err)
		return
	}

	c.JSON(http.StatusOK, mapDBVendorToResponse(vendor))
}

// ListVendors handles GET /vendors with pagination
func (h *VendorHandler) ListVendors(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "ListVendors")
	limit, offset := parsePagination(c)

	total, err := h.dbQueries.CountVendors(logCtx)
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to count vendors", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve vendor count"})
		return
	}

	if total == 0 || offset >= int32(total) {
		c.JSON(http.StatusOK, dto.PaginatedListResponse{Data: []dto.VendorResponse{}, Pagination: dto.PaginationResponse{Total: total, Limit: limit, Offset: offset}})
		return
	}

	dbVendors, err := h.dbQueries.ListVendors(logCtx, database.ListVendorsParams{Limit: limit, Offset: offset})
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to list vendors from DB", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve vendors"})
		return
	}

	respData := make([]dto.VendorResponse, len(dbVendors))
	for i, dbVendor := range dbVendors {
		respData[i] = mapDBVendorToResponse(dbVendor)
	}

	c.JSON(http.StatusOK, dto.PaginatedListResponse{
		Data:       respData,
		Pagination: dto.PaginationResponse{Total: total, Limit: limit, Offset: offset},
	})
}

// CreateVendorHost handles POST /vendors/:id/hosts
func (h *VendorHandler) CreateVendorHost(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "CreateVendorHost")
	vendorID := c.Param("id")
	logCtx = logging.ContextWithVendorID(logCtx, vendorID)

	var req dto.CreateVendorHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(logCtx, "Failed to bind request JSON", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	params := database.CreateVendorHostParams{
		ID:       uuid.NewString(),
		VendorID: vendorID,
		Host:     req.Host,
		Port:     req.Port,
		Priority: req.Priority,
		IsActive: isActive,
	}

	created, err := h.dbQueries.CreateVendorHost(logCtx, params)
	if err != nil {
		if isForeignKeyViolationError(err) {
			slog.WarnContext(logCtx, "Host creation failed: vendor does not exist")
			c.JSON(http.StatusNotFound, gin.H{"error": "Vendor not found"})
			return
		}
		if isUniqueViolationError(err) {
			slog.WarnContext(logCtx, "Host creation failed: Duplicate endpoint", slog.String("host", req.Host), slog.Int("port", int(req.Port)))
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Endpoint %s:%d is already registered for this vendor", req.Host, req.Port)})
			return
		}
		slog.ErrorContext(logCtx, "Failed to create vendor host in DB", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create vendor host"})
		return
	}

	slog.InfoContext(logging.ContextWithHostID(logCtx, created.ID), "Vendor host created successfully")
	c.JSON(http.StatusCreated, mapDBVendorHostToResponse(created))
}

// ListVendorHosts handles GET /vendors/:id/hosts
func (h *VendorHandler) ListVendorHosts(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "ListVendorHosts")
	vendorID := c.Param("id")
	logCtx = logging.ContextWithVendorID(logCtx, vendorID)

	hosts, err := h.dbQueries.ListVendorHosts(logCtx, vendorID)
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to list vendor hosts from DB", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve vendor hosts"})
		return
	}

	respData := make([]dto.VendorHostResponse, len(hosts))
	for i, host := range hosts {
		respData[i] = mapDBVendorHostToResponse(host)
	}

	c.JSON(http.StatusOK, gin.H{"data": respData})
}

// mapDBVendorToResponse converts the database model to the API response DTO.
func mapDBVendorToResponse(v database.Vendor) dto.VendorResponse {
	return dto.VendorResponse{
		ID:           v.ID,
		SystemID:     v.SystemID,
		MessagePrice: v.MessagePrice,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

// mapDBVendorHostToResponse converts the database model to the API response DTO.
func mapDBVendorHostToResponse(h database.VendorHost) dto.VendorHostResponse {
	return dto.VendorHostResponse{
		ID:        h.ID,
		VendorID:  h.VendorID,
		Host:      h.Host,
		Port:      h.Port,
		Priority:  h.Priority,
		IsActive:  h.IsActive,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
	}
}
