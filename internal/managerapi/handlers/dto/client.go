package dto

import "time"

// CreateClientRequest defines the expected JSON body for provisioning a
// downstream client account.
type CreateClientRequest struct {
	SystemID        string `json:"system_id" binding:"required"`
	Password        string `json:"password" binding:"required,min=4"`
	MaxConnections  int32  `json:"max_connections" binding:"omitempty,min=1"`
	RoutingStrategy string `json:"routing_strategy" binding:"omitempty,oneof=priority round-robin"`
}

// ClientResponse is the client account shape returned by the API. The
// password is never echoed back.
type ClientResponse struct {
	ID              string    `json:"id"`
	SystemID        string    `json:"system_id"`
	MaxConnections  int32     `json:"max_connections"`
	RoutingStrategy string    `json:"routing_strategy"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
