package database

import (
	"context"

	"github.com/shopspring/decimal"
)

// CreateMessageParams holds the row written after a vendor accepts a
// submission.
type CreateMessageParams struct {
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
}

// UpdateMessageStatusParams identifies a message row by internal id plus the
// vendor/host it was dispatched through.
type UpdateMessageStatusParams struct {
	ID       string
	VendorID string
	HostID   string
	Status   string
}

// SetVendorHostActiveParams flips a host's operator/health flag.
type SetVendorHostActiveParams struct {
	ID       string
	VendorID string
	IsActive bool
}

// CreateClientParams provisions a downstream account.
type CreateClientParams struct {
	ID              string
	SystemID        string
	Password        string
	MaxConnections  int32
	RoutingStrategy string
}

// CreateVendorParams provisions an upstream carrier account.
type CreateVendorParams struct {
	ID           string
	SystemID     string
	Password     string
	MessagePrice decimal.Decimal
}

// CreateVendorHostParams registers one endpoint under a vendor.
type CreateVendorHostParams struct {
	ID       string
	VendorID string
	Host     string
	Port     int32
	Priority int32
	IsActive bool
}

// ListClientsParams pages through provisioned clients.
type ListClientsParams struct {
	Limit  int32
	Offset int32
}

// ListVendorsParams pages through provisioned vendors.
type ListVendorsParams struct {
	Limit  int32
	Offset int32
}

// ListMessagesParams pages through message history, optionally scoped to one
// client. An empty ClientID lists across all clients.
type ListMessagesParams struct {
	ClientID string
	Limit    int32
	Offset   int32
}

// Querier is the persistence boundary of the gateway. The runtime core reads
// Client/Vendor/VendorHost rows and writes Message rows; the provisioning API
// owns the rest. Neither owns schema migration.
type Querier interface {
	GetClientBySystemID(ctx context.Context, systemID string) (Client, error)
	GetVendorByID(ctx context.Context, id string) (Vendor, error)
	GetActiveVendorHosts(ctx context.Context, vendorID string) ([]VendorHost, error)
	ListVendorsWithHostCounts(ctx context.Context) ([]VendorWithHostCount, error)
	CreateMessage(ctx context.Context, arg CreateMessageParams) error
	UpdateMessageStatus(ctx context.Context, arg UpdateMessageStatusParams) error
	SetVendorHostActive(ctx context.Context, arg SetVendorHostActiveParams) error

	CreateClient(ctx context.Context, arg CreateClientParams) (Client, error)
	GetClientByID(ctx context.Context, id string) (Client, error)
	ListClients(ctx context.Context, arg ListClientsParams) ([]Client, error)
	CountClients(ctx context.Context) (int64, error)
	DeleteClient(ctx context.Context, id string) error

	CreateVendor(ctx context.Context, arg CreateVendorParams) (Vendor, error)
	ListVendors(ctx context.Context, arg ListVendorsParams) ([]Vendor, error)
	CountVendors(ctx context.Context) (int64, error)

	CreateVendorHost(ctx context.Context, arg CreateVendorHostParams) (VendorHost, error)
	ListVendorHosts(ctx context.Context, vendorID string) ([]VendorHost, error)

	ListMessages(ctx context.Context, arg ListMessagesParams) ([]Message, error)
	CountMessages(ctx context.Context, clientID string) (int64, error)
}
