package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engineapi"
	"github.com/cloudx-io/assetauction/validation"
)

func main() {
	var (
		receiptInput   = flag.String("receipt", "", "Settlement receipt: base64 string, or settlement response JSON (file path or inline)")
		publicKeyInput = flag.String("public-key", "", "Receipt public key: PEM, or public key response JSON (file path or inline)")
		auctionInput   = flag.String("auction", "", "Settled auction JSON (file path or inline, optional)")
		bidLogInput    = flag.String("bid-log", "", "Bid log JSON array or bid log response (file path or inline, optional)")
		outputFormat   = flag.String("format", "text", "Output format: text or json")
		help           = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *receiptInput == "" || *publicKeyInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --receipt and --public-key are required\n")
		os.Exit(1)
	}

	input, err := buildValidationInput(*receiptInput, *publicKeyInput, *auctionInput, *bidLogInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading inputs: %v\n", err)
		os.Exit(2)
	}

	result, err := validation.ValidateReceipt(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println()
	fmt.Println("Validates signed settlement receipts issued by the auction engine.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --receipt <input> --public-key <input> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --receipt <input>                 Base64 receipt or POST .../settle response body")
	fmt.Println("  --public-key <input>              PEM key or GET /receipts/public-key response body")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --auction <json>                  GET /auctions/{seller}/{nonce} response or bare record")
	fmt.Println("  --bid-log <json>                  Ordered accepted bids, or the GET /auctions/{seller}/{nonce}/bids response")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Input Format:")
	fmt.Println("  Each flag accepts either a file path or an inline value.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  receipt-validator \\")
	fmt.Println("    --receipt settlement.json \\")
	fmt.Println("    --public-key public-key.json \\")
	fmt.Println("    --auction auction.json \\")
	fmt.Println("    --bid-log bids.json")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readInput(input string) ([]byte, error) {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data, nil
	}
	return []byte(input), nil
}

func isJSONObject(data []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(data)), "{")
}

func buildValidationInput(receiptArg, publicKeyArg, auctionArg, bidLogArg string) (*validation.ReceiptValidationInput, error) {
	input := &validation.ReceiptValidationInput{}

	receiptData, err := readInput(receiptArg)
	if err != nil {
		return nil, err
	}
	if isJSONObject(receiptData) {
		var settlement engineapi.SettlementResponse
		if err := json.Unmarshal(receiptData, &settlement); err != nil {
			return nil, fmt.Errorf("parse settlement response: %w", err)
		}
		if settlement.Receipt == "" {
			return nil, fmt.Errorf("settlement response has no receipt")
		}
		input.Receipt = settlement.Receipt
	} else {
		input.Receipt = engineapi.ReceiptCOSEBase64(strings.TrimSpace(string(receiptData)))
	}

	keyData, err := readInput(publicKeyArg)
	if err != nil {
		return nil, err
	}
	if isJSONObject(keyData) {
		var keyResponse engineapi.PublicKeyResponse
		if err := json.Unmarshal(keyData, &keyResponse); err != nil {
			return nil, fmt.Errorf("parse public key response: %w", err)
		}
		input.PublicKeyPEM = keyResponse.PublicKey
	} else {
		input.PublicKeyPEM = string(keyData)
	}

	if auctionArg != "" {
		auctionData, err := readInput(auctionArg)
		if err != nil {
			return nil, err
		}
		input.Auction, err = parseAuction(auctionData)
		if err != nil {
			return nil, err
		}
	}

	if bidLogArg != "" {
		bidLogData, err := readInput(bidLogArg)
		if err != nil {
			return nil, err
		}
		input.BidLog, err = parseBidLog(bidLogData)
		if err != nil {
			return nil, err
		}
	}

	return input, nil
}

// parseBidLog accepts a bid log response or a bare JSON array of entries.
func parseBidLog(data []byte) ([]core.BidLogEntry, error) {
	var bidLog []core.BidLogEntry
	if isJSONObject(data) {
		var resp engineapi.BidLogResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parse bid log response: %w", err)
		}
		bidLog = resp.Bids
	} else if err := json.Unmarshal(data, &bidLog); err != nil {
		return nil, fmt.Errorf("parse bid log: %w", err)
	}
	if bidLog == nil {
		bidLog = []core.BidLogEntry{}
	}
	return bidLog, nil
}

// parseAuction accepts an auction response, a settlement response or a bare record.
func parseAuction(data []byte) (*core.AuctionRecord, error) {
	var wrapped struct {
		Auction *core.AuctionRecord `json:"auction"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse auction: %w", err)
	}
	if wrapped.Auction != nil {
		return wrapped.Auction, nil
	}

	var record core.AuctionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse auction record: %w", err)
	}
	if record.Seller == "" {
		return nil, fmt.Errorf("auction input has no seller")
	}
	return &record, nil
}

func outputText(result *validation.ReceiptValidationResult) {
	fmt.Println("Settlement Receipt Validator")
	fmt.Println("============================")
	fmt.Println()

	if p := result.Payload; p != nil {
		fmt.Println("Receipt:")
		fmt.Printf("  Receipt ID:              %s\n", p.ReceiptID)
		fmt.Printf("  Auction:                 %s\n", p.Key())
		fmt.Printf("  Winner:                  %s\n", p.Winner)
		fmt.Printf("  Shares:                  %d %s\n", p.Shares, p.AssetToken)
		fmt.Printf("  Price:                   %d %s\n", p.Price, p.PaymentToken)
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Vaults Valid:            %v\n", result.VaultsValid)
	fmt.Printf("  Auction Valid:           %v\n", result.AuctionValid)
	fmt.Printf("  Bid Log Valid:           %v\n", result.BidLogValid)

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("============================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
		fmt.Println("Exit Code: 0")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
		fmt.Println("Exit Code: 1")
	}
}

func outputJSON(result *validation.ReceiptValidationResult) {
	output := map[string]any{
		"valid":           result.IsValid(),
		"signature_valid": result.SignatureValid,
		"vaults_valid":    result.VaultsValid,
		"auction_valid":   result.AuctionValid,
		"bid_log_valid":   result.BidLogValid,
		"receipt":         result.Payload,
		"details":         result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
