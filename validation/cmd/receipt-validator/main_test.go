package main

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/assetauction/core"
)

func TestParseBidLog(t *testing.T) {
	want := []core.BidLogEntry{
		{Bidder: "bidder_1", Amount: 10, Timestamp: 1000},
		{Bidder: "bidder_2", Amount: 250, Timestamp: 1030},
	}

	tests := map[string]string{
		"bare array": `[{"bidder":"bidder_1","amount":10,"timestamp":1000},{"bidder":"bidder_2","amount":250,"timestamp":1030}]`,
		"response": `{"key":{"seller":"seller_s","nonce":0},"bid_log_hash":"ab",
			"bids":[{"bidder":"bidder_1","amount":10,"timestamp":1000},{"bidder":"bidder_2","amount":250,"timestamp":1030}]}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := parseBidLog([]byte(input))
			assert.NoError(t, err)
			check.Equal(t, want, got)
		})
	}

	empty, err := parseBidLog([]byte(`null`))
	assert.NoError(t, err)
	check.True(t, empty != nil)
	check.Equal(t, 0, len(empty))

	_, err = parseBidLog([]byte(`[{"amount":"ten"}]`))
	check.Error(t, err)
}
