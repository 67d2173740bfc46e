package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateVendorRequest defines the expected JSON body for provisioning an
// upstream carrier account.
type CreateVendorRequest struct {
	SystemID     string          `json:"system_id" binding:"required"`
	Password     string          `json:"password" binding:"required,min=4"`
	MessagePrice decimal.Decimal `json:"message_price"`
}

// VendorResponse is the vendor account shape returned by the API.
type VendorResponse struct {
	ID           string          `json:"id"`
	SystemID     string          `json:"system_id"`
	MessagePrice decimal.Decimal `json:"message_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateVendorHostRequest registers one SMPP endpoint under a vendor. Lower
// priority values are tried first.
type CreateVendorHostRequest struct {
	Host     string `json:"host" binding:"required"`
	Port     int32  `json:"port" binding:"required,min=1,max=65535"`
	Priority int32  `json:"priority" binding:"omitempty,min=0"`
	IsActive *bool  `json:"is_active"`
}

// VendorHostResponse is the endpoint shape returned by the API.
type VendorHostResponse struct {
	ID        string    `json:"id"`
	VendorID  string    `json:"vendor_id"`
	Host      string    `json:"host"`
	Port      int32     `json:"port"`
	Priority  int32     `json:"priority"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
