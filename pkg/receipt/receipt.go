// Package receipt formats and parses the human-readable delivery receipt
// text carried in the short_message of a receipt-bearing deliver_sm:
//
//	id:IIII sub:SSS dlvrd:DDD submit date:YYMMDDhhmm done date:YYMMDDhhmm stat:DDDDDDD err:E text:...
package receipt

import (
	"fmt"
	"strings"
	"time"
)

// timeLayout is YYMMDDhhmm, the receipt date layout.
const timeLayout = "0601021504"

// Receipt is the parsed key/value structure of a delivery receipt.
type Receipt struct {
	MessageID string            // value of the "id" field
	Status    string            // value of the "stat" field
	Fields    map[string]string // every key:value token, last wins
}

// Parse extracts the key/value fields from receipt text. Tokens are split on
// whitespace, so the two-word keys ("submit date", "done date") collapse to
// "date" with the later occurrence winning, matching how most SMSCs emit and
// consume this layout. The "id" and "stat" fields are mandatory.
func Parse(text string) (Receipt, error) {
	fields := make(map[string]string)
	for _, token := range strings.Fields(text) {
		key, value, ok := strings.Cut(token, ":")
		if !ok || key == "" {
			continue
		}
		fields[key] = value
	}

	r := Receipt{
		MessageID: fields["id"],
		Status:    fields["stat"],
		Fields:    fields,
	}
	if r.MessageID == "" {
		return r, fmt.Errorf("receipt missing id field: %q", text)
	}
	if r.Status == "" {
		return r, fmt.Errorf("receipt missing stat field: %q", text)
	}
	return r, nil
}

// Format renders receipt text for a message id and delivery status. Both
// dates are stamped with at; sub/dlvrd/err are fixed since the gateway
// relays single-part messages only.
func Format(messageID, status string, at time.Time) string {
	stamp := at.UTC().Format(timeLayout)
	stat := strings.ToUpper(status)
	return fmt.Sprintf("id:%s sub:001 dlvrd:001 submit date:%s done date:%s stat:%s err:000 text:",
		messageID, stamp, stamp, stat)
}
