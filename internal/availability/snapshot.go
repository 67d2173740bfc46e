package availability

import "github.com/shopspring/decimal"

// VendorAvailability is one vendor's entry in the availability snapshot.
type VendorAvailability struct {
	ID              string          `json:"id"`
	SystemID        string          `json:"systemId"`
	ActiveHostCount int32           `json:"activeHosts"`
	MessagePrice    decimal.Decimal `json:"messagePrice"`
}

// Snapshot is the per-refresh view of vendor health. It is immutable once
// published and replaced wholesale on change, so readers never observe a
// torn update.
type Snapshot []VendorAvailability

// Changed reports a structural difference against a previous snapshot:
// vendor-set size, or any vendor's system id, active host count, or price.
func (s Snapshot) Changed(prev Snapshot) bool {
	if prev == nil {
		return true
	}
	if len(s) != len(prev) {
		return true
	}
	prevByID := make(map[string]VendorAvailability, len(prev))
	for _, v := range prev {
		prevByID[v.ID] = v
	}
	for _, v := range s {
		old, ok := prevByID[v.ID]
		if !ok {
			return true
		}
		if v.SystemID != old.SystemID ||
			v.ActiveHostCount != old.ActiveHostCount ||
			!v.MessagePrice.Equal(old.MessagePrice) {
			return true
		}
	}
	return false
}
