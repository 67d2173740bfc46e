package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/denishrana09/smpp-gateway/internal/database"
)

// SetupRoutes configures the Gin engine with all provisioning API routes.
func SetupRoutes(router gin.IRouter, q database.Querier) {
	clientHandler := NewClientHandler(q)
	vendorHandler := NewVendorHandler(q)
	messageHandler := NewMessageHandler(q)

	clientGroup := router.Group("/clients")
	{
		clientGroup.POST("", clientHandler.CreateClient)
		clientGroup.GET("", clientHandler.ListClients)
		clientGroup.GET("/:id", clientHandler.GetClient)
		clientGroup.DELETE("/:id", clientHandler.DeleteClient)
	}

	vendorGroup := router.Group("/vendors")
	{
		vendorGroup.POST("", vendorHandler.CreateVendor)
		vendorGroup.GET("", vendorHandler.ListVendors)
		vendorGroup.GET("/:id", vendorHandler.GetVendor)
		vendorGroup.POST("/:id/hosts", vendorHandler.CreateVendorHost)
		vendorGroup.GET("/:id/hosts", vendorHandler.ListVendorHosts)
	}

	router.Group("/messages").GET("", messageHandler.ListMessages)
}
