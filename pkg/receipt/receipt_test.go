package receipt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	text := "id:abc-123 sub:001 dlvrd:001 submit date:2504011230 done date:2504011232 stat:DELIVRD err:000 text:"

	r, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", r.MessageID)
	assert.Equal(t, "DELIVRD", r.Status)
	assert.Equal(t, "001", r.Fields["sub"])
	assert.Equal(t, "000", r.Fields["err"])
	// "submit date" / "done date" collapse to "date"; the later value wins.
	assert.Equal(t, "2504011232", r.Fields["date"])
}

func TestParseMissingFields(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing id", "sub:001 stat:DELIVERED"},
		{"missing stat", "id:xyz sub:001"},
		{"empty", ""},
		{"garbage", "not a receipt at all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			assert.Error(t, err)
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	at := time.Date(2025, 4, 1, 12, 30, 0, 0, time.UTC)
	text := Format("f9b1c5e2", "delivered", at)

	assert.Equal(t,
		"id:f9b1c5e2 sub:001 dlvrd:001 submit date:2504011230 done date:2504011230 stat:DELIVERED err:000 text:",
		text)

	r, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "f9b1c5e2", r.MessageID)
	assert.Equal(t, "DELIVERED", r.Status)
}
