package codes

// Vendor host session status codes.
const (
	HostStatusConnecting = "connecting"
	HostStatusActive     = "active"
	HostStatusFailed     = "failed"
)

// Message status codes. SENT is set once a vendor accepts the submission;
// everything after that comes from vendor delivery reports verbatim.
const (
	MsgStatusSent          = "SENT"
	MsgStatusDelivered     = "DELIVERED"
	MsgStatusExpired       = "EXPIRED"
	MsgStatusDeleted       = "DELETED"
	MsgStatusUndeliverable = "UNDELIVERABLE"
	MsgStatusRejected      = "REJECTED"
	MsgStatusAccepted      = "ACCEPTED"
	MsgStatusUnknown       = "UNKNOWN"
)

// Message direction codes.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Routing strategy codes.
const (
	StrategyPriority   = "priority"
	StrategyRoundRobin = "round-robin"
)

// terminalStatuses are the delivery statuses after which no further report is
// expected and correlation state must be released.
var terminalStatuses = map[string]bool{
	MsgStatusDelivered:     true,
	MsgStatusExpired:       true,
	MsgStatusDeleted:       true,
	MsgStatusUndeliverable: true,
	MsgStatusRejected:      true,
}

// IsTerminalStatus reports whether a delivery status ends the message's
// lifecycle. Unrecognized statuses are non-terminal: the report is forwarded
// and correlation state is retained.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}
