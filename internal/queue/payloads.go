package queue

import "time"

// Topic names. Both are provisioned idempotently at startup.
const (
	TopicIncomingMessages = "incoming-messages"
	TopicDeliveryReports  = "delivery-reports"
)

// IncomingMessage is the payload published by the gateway session layer for
// every accepted submission and consumed by the dispatcher.
type IncomingMessage struct {
	InternalID   string `json:"ourMessageId"`
	ClientID     string `json:"clientId"`
	Source       string `json:"source"`
	Destination  string `json:"destination"`
	Content      string `json:"content"`
	ConnectionID string `json:"connectionId"`
}

// DeliveryReportEvent is published after a vendor delivery report has been
// correlated, for downstream audit/billing consumers.
type DeliveryReportEvent struct {
	InternalID      string    `json:"ourMessageId"`
	VendorMessageID string    `json:"vendorMessageId"`
	ClientID        string    `json:"clientId"`
	VendorID        string    `json:"vendorId"`
	HostID          string    `json:"hostId"`
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
}
