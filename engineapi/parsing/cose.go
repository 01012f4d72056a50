package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/assetauction/engineapi"
)

// sign1Tag is the one-byte CBOR encoding of COSE_Sign1 tag 18.
const sign1Tag = 0xd2

// Sign1 is a decoded COSE_Sign1 structure.
type Sign1 struct {
	Protected []byte
	Payload   []byte
	Signature []byte
}

// ParseSign1 decodes a tagged or untagged COSE_Sign1 4-element array.
// COSE_Sign1 structure: [protected, unprotected, payload, signature]
func ParseSign1(coseBytes []byte) (*Sign1, error) {
	if len(coseBytes) > 0 && coseBytes[0] == sign1Tag {
		coseBytes = coseBytes[1:]
	}

	var coseArray []any
	err := cbor.Unmarshal(coseBytes, &coseArray)
	if err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}

	if len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protected, ok := coseArray[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid protected headers in COSE structure")
	}

	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}

	signature, ok := coseArray[3].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid signature in COSE structure")
	}

	return &Sign1{Protected: protected, Payload: payload, Signature: signature}, nil
}

// ExtractCOSEPayload returns the payload bytes (element 2) of a COSE_Sign1 structure.
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	msg, err := ParseSign1(coseBytes)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

// DecodeReceiptPayload extracts and decodes the settlement payload of a receipt without
// verifying its signature.
func DecodeReceiptPayload(receipt engineapi.ReceiptCOSE) (*engineapi.ReceiptPayload, error) {
	payloadBytes, err := ExtractCOSEPayload(receipt)
	if err != nil {
		return nil, fmt.Errorf("extract receipt payload: %w", err)
	}

	var payload engineapi.ReceiptPayload
	if err := cbor.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}
	return &payload, nil
}
