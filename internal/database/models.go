package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is a downstream customer allowed to bind to the gateway.
type Client struct {
	ID              string
	SystemID        string
	Password        string
	MaxConnections  int32
	RoutingStrategy string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Vendor is an upstream carrier reachable over one or more hosts.
type Vendor struct {
	ID           string
	SystemID     string
	Password     string
	MessagePrice decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VendorHost is one network endpoint for a vendor. Lower priority values are
// preferred; IsActive is the operator/health flag driving routing decisions.
type VendorHost struct {
	ID        string
	VendorID  string
	Host      string
	Port      int32
	Priority  int32
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one relayed message record.
type Message struct {
	ID              string
	ClientID        string
	VendorID        string
	HostID          string
	VendorMessageID string
	Source          string
	Destination     string
	Content         string
	Status          string
	Direction       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VendorWithHostCount is the availability cache's per-vendor projection.
type VendorWithHostCount struct {
	ID              string
	SystemID        string
	ActiveHostCount int32
	MessagePrice    decimal.Decimal
}
