// Package signature implements the HMAC-SHA256 signing and verification used
// for processor webhooks and internally signed confirmations. All comparisons
// are constant time.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
)

// Key is a symmetric secret used for HMAC-SHA256 signing and verification.
type Key string

// Sign returns the hex-encoded HMAC-SHA256 of message.
func (k Key) Sign(message []byte) string {
	mac := hmac.New(sha256.New, []byte(k))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether claimed is a valid signature over message.
// Malformed or empty input yields false, never an error.
func (k Key) Verify(message []byte, claimed string) bool {
	expected := k.Sign(message)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(claimed)) == 1
}

// VerifyProcessor checks a processor webhook signature, which covers
// "<processorOrderID>|<processorPaymentID>".
func (k Key) VerifyProcessor(processorOrderID, processorPaymentID, claimed string) bool {
	return k.Verify([]byte(processorOrderID+"|"+processorPaymentID), claimed)
}

// ConfirmationPayload is the field set covered by an internal confirmation
// signature. Field order is fixed so the serialization is deterministic.
type ConfirmationPayload struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	Amount        string `json:"amount"`
}

// SignConfirmation signs an internal confirmation payload.
func (k Key) SignConfirmation(p ConfirmationPayload) string {
	b, _ := json.Marshal(p)
	return k.Sign(b)
}

// VerifyConfirmation checks the signature over an internal confirmation
// payload using constant-time comparison.
func (k Key) VerifyConfirmation(p ConfirmationPayload, claimed string) bool {
	b, _ := json.Marshal(p)
	return k.Verify(b, claimed)
}
