package dto

import "time"

// MessageResponse is one message history row returned by the API.
type MessageResponse struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id"`
	VendorID        string    `json:"vendor_id"`
	HostID          string    `json:"host_id"`
	VendorMessageID string    `json:"vendor_message_id"`
	Source          string    `json:"source"`
	Destination     string    `json:"destination"`
	Content         string    `json:"content"`
	Status          string    `json:"status"`
	Direction       string    `json:"direction"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
