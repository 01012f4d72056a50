package engineapi

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/assetauction/core"
)

// TestReceiptCOSE_Encode tests encoding raw COSE bytes to base64
func TestReceiptCOSE_Encode(t *testing.T) {
	coseBytes := ReceiptCOSE([]byte("mock-cose-receipt-data"))

	encoded := coseBytes.EncodeBase64()
	check.NotEqual(t, "", encoded)

	decoded, err := encoded.Decode()
	check.Nil(t, err)
	check.Equal(t, coseBytes, decoded)
}

// TestReceiptCOSE_EncodeURLSafe tests URL-safe encoding
func TestReceiptCOSE_EncodeURLSafe(t *testing.T) {
	coseBytes := ReceiptCOSE([]byte{0xfb, 0xff, 0xfe, 0x01, 0x02})

	encoded := coseBytes.EncodeURLSafe()
	check.NotEqual(t, "", encoded)

	// Should not contain padding or standard alphabet specials
	check.False(t, strings.ContainsAny(encoded.String(), "=+/"))

	decoded, err := encoded.Decode()
	check.Nil(t, err)
	check.Equal(t, coseBytes, decoded)
}

// TestReceiptCOSEBase64_Decode tests decoding both alphabets to raw bytes
func TestReceiptCOSEBase64_Decode(t *testing.T) {
	tests := []struct {
		name      string
		input     ReceiptCOSEBase64
		expected  ReceiptCOSE
		errSubstr string
	}{
		{
			name:     "standard padded",
			input:    "dGVzdA==",
			expected: ReceiptCOSE([]byte("test")),
		},
		{
			name:     "no padding needed (len % 4 == 0)",
			input:    "YWJj",
			expected: ReceiptCOSE([]byte("abc")),
		},
		{
			name:     "url-safe needs 2 chars padding (len % 4 == 2)",
			input:    "dGVzdA",
			expected: ReceiptCOSE([]byte("test")),
		},
		{
			name:     "url-safe needs 1 char padding (len % 4 == 3)",
			input:    "dGVzdGluZw",
			expected: ReceiptCOSE([]byte("testing")),
		},
		{
			name:     "standard alphabet specials",
			input:    "+/8=",
			expected: ReceiptCOSE([]byte{0xfb, 0xff}),
		},
		{
			name:     "url-safe alphabet specials",
			input:    "-_8",
			expected: ReceiptCOSE([]byte{0xfb, 0xff}),
		},
		{
			name:     "surrounding whitespace",
			input:    "  YWJj\n",
			expected: ReceiptCOSE([]byte("abc")),
		},
		{
			name:      "empty",
			input:     "",
			errSubstr: "empty receipt",
		},
		{
			name:      "illegal characters",
			input:     "not-valid-base64!!!@@@",
			errSubstr: "decode url-safe base64",
		},
		{
			name:      "illegal characters standard length",
			input:     "abc!",
			errSubstr: "decode base64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.input.Decode()

			if tt.errSubstr != "" {
				check.NotNil(t, err)
				check.True(t, strings.Contains(err.Error(), tt.errSubstr))
				check.Nil(t, result)
				return
			}
			check.Nil(t, err)
			check.Equal(t, tt.expected, result)
		})
	}
}

// TestSettlementResponse_ReceiptJSON tests that the receipt survives JSON transport
func TestSettlementResponse_ReceiptJSON(t *testing.T) {
	receipt := ReceiptCOSE([]byte{0xd2, 0x84, 0x43, 0xa1, 0x01, 0x26})
	original := SettlementResponse{
		Summary:   "auction seller_s/0 settled",
		ReceiptID: "8c4d7bb6-52b4-4d3f-a0f1-1b5c8a0d3e11",
		Receipt:   receipt.EncodeBase64(),
	}

	data, err := json.Marshal(original)
	check.Nil(t, err)

	var decoded SettlementResponse
	check.Nil(t, json.Unmarshal(data, &decoded))

	raw, err := decoded.Receipt.Decode()
	check.Nil(t, err)
	check.Equal(t, receipt, raw)
}

func TestAuctionClaims_Ref(t *testing.T) {
	claims := AuctionClaims{Seller: "seller_s", Asset: "asset_a", PaymentToken: "usdc"}
	key := core.AuctionKey{Seller: "seller_s", Nonce: 7}

	ref := claims.Ref(key)
	check.Equal(t, key, ref.Key)
	check.Equal(t, core.Address("seller_s"), ref.Seller)
	check.Equal(t, core.Address("asset_a"), ref.Asset)
	check.Equal(t, core.TokenType("usdc"), ref.PaymentToken)
}

func TestPlaceBidRequest_FlattenedJSON(t *testing.T) {
	body := `{"seller":"seller_s","asset":"asset_a","payment_token":"usdc","amount":25}`

	var req PlaceBidRequest
	check.Nil(t, json.Unmarshal([]byte(body), &req))
	check.Equal(t, core.Address("seller_s"), req.Seller)
	check.Equal(t, uint64(25), req.Amount)
}
