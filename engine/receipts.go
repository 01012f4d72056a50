package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engineapi"
)

// KeyManager holds the ECDSA P-256 key that signs settlement receipts.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey // Keep private - sensitive!
	PublicKey  *ecdsa.PublicKey
	signer     cose.Signer
}

// NewKeyManager creates a new KeyManager with a freshly generated key pair.
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return NewKeyManagerFromKey(privateKey)
}

// NewKeyManagerFromKey wraps an existing P-256 private key.
func NewKeyManagerFromKey(privateKey *ecdsa.PrivateKey) (*KeyManager, error) {
	if privateKey == nil || privateKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("receipt key must be an ECDSA P-256 key")
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create COSE signer: %w", err)
	}
	return &KeyManager{
		privateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		signer:     signer,
	}, nil
}

// NewKeyManagerFromPEM loads a P-256 private key from a SEC 1 ("EC PRIVATE KEY") or
// PKCS #8 ("PRIVATE KEY") PEM block.
func NewKeyManagerFromPEM(data []byte) (*KeyManager, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in receipt key")
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC private key: %w", err)
		}
		return NewKeyManagerFromKey(key)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS #8 private key: %w", err)
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("receipt key must be an ECDSA P-256 key")
		}
		return NewKeyManagerFromKey(key)
	default:
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
}

// PublicKeyPEM returns the public key in PEM format
func (km *KeyManager) PublicKeyPEM() (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(km.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}

	return string(pem.EncodeToMemory(pemBlock)), nil
}

// Sign produces a COSE_Sign1 receipt over the CBOR encoding of payload.
func (km *KeyManager) Sign(payload *engineapi.ReceiptPayload) (engineapi.ReceiptCOSE, error) {
	payloadBytes, err := cbor.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt payload: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected[cose.HeaderLabelAlgorithm] = cose.AlgorithmES256
	msg.Payload = payloadBytes
	if err := msg.Sign(rand.Reader, nil, km.signer); err != nil {
		return nil, fmt.Errorf("failed to sign receipt: %w", err)
	}

	coseBytes, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt: %w", err)
	}
	return engineapi.ReceiptCOSE(coseBytes), nil
}

// receiptPayload builds the signed payload for a record that is about to be settled.
func receiptPayload(r *core.AuctionRecord) *engineapi.ReceiptPayload {
	vaults := r.Vaults()
	return &engineapi.ReceiptPayload{
		ReceiptID:    uuid.NewString(),
		Seller:       r.Seller,
		Nonce:        r.Key.Nonce,
		Asset:        r.Asset,
		AssetToken:   r.AssetToken,
		PaymentToken: r.PaymentToken,
		Winner:       r.HighestBidder,
		Shares:       r.EscrowedAmount,
		Price:        r.HighestBid,
		BidCount:     r.BidCount,
		BidLogHash:   r.BidLogHash,
		Deadline:     r.Deadline,
		SettledAt:    r.SettledAt,
		AssetVault:   vaults.AssetVault,
		BidVault:     vaults.BidVault,
	}
}
