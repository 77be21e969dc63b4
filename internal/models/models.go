package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProofType is the kind of evidence a challenge accepts.
type ProofType string

const (
	ProofPhoto ProofType = "photo"
	ProofSteps ProofType = "steps"
)

// Challenge is an immutable catalog entry.
type Challenge struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Days      int       `json:"days"`
	Deposit   int64     `json:"deposit"` // KRW, whole units
	ProofType ProofType `json:"proofType"`
}

// ChallengesResponse is the payload of GET /v1/challenges.
type ChallengesResponse struct {
	Items []Challenge `json:"items"`
}

// PaymentMode is the server-declared authorization mode of a payment.
type PaymentMode string

const (
	// PaymentModeMock means the server already authorized the charge.
	PaymentModeMock PaymentMode = "mock"
	// PaymentModeLive requires user confirmation through the payment SDK.
	PaymentModeLive PaymentMode = "live"
)

// PaymentID is the server-assigned payment identifier. Servers send it
// either as a JSON number or a JSON string; the received encoding is kept
// so that it is echoed back unchanged on execute.
type PaymentID struct {
	raw json.RawMessage
}

// NewPaymentID returns a string-encoded payment id.
func NewPaymentID(id string) PaymentID {
	raw, _ := json.Marshal(id)
	return PaymentID{raw: raw}
}

// NumericPaymentID returns a number-encoded payment id.
func NumericPaymentID(n int64) PaymentID {
	return PaymentID{raw: json.RawMessage(strconv.FormatInt(n, 10))}
}

// IsZero reports whether the id is absent or null.
func (p PaymentID) IsZero() bool {
	return len(p.raw) == 0 || bytes.Equal(p.raw, []byte("null"))
}

// String returns the id without JSON quoting.
func (p PaymentID) String() string {
	if p.IsZero() {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.raw, &s); err == nil {
		return s
	}
	return string(p.raw)
}

// MarshalJSON implements json.Marshaler.
func (p PaymentID) MarshalJSON() ([]byte, error) {
	if len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PaymentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		p.raw = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("paymentId must be a string or number, got %s", data)
		}
	}
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

// PaymentIntent is returned by POST /v1/payments/create. It lives only for
// the duration of one payment attempt.
type PaymentIntent struct {
	PaymentID   PaymentID   `json:"paymentId"`
	OrderNo     string      `json:"orderNo"`
	PayToken    string      `json:"payToken"`
	Status      string      `json:"status"`
	ChallengeID string      `json:"challengeId"`
	Amount      int64       `json:"amount"`
	Mode        PaymentMode `json:"mode"`
}

// CreatePaymentRequest is the body of POST /v1/payments/create.
type CreatePaymentRequest struct {
	ChallengeID string `json:"challengeId"`
	Amount      int64  `json:"amount"`
}

// ExecutePaymentRequest is the body of POST /v1/payments/execute.
type ExecutePaymentRequest struct {
	PaymentID PaymentID `json:"paymentId"`
}

// ProofSubmission is the body of POST /v1/proofs/submit. Exactly one of
// ImageBase64 and ImageHash is set.
type ProofSubmission struct {
	ChallengeID string `json:"challengeId"`
	ImageBase64 string `json:"imageBase64,omitempty"`
	ImageHash   string `json:"imageHash,omitempty"`
}

// SettlementStatus is the backend's verdict on a challenge attempt.
type SettlementStatus string

const (
	SettlementRunning SettlementStatus = "running"
	SettlementSuccess SettlementStatus = "success"
	SettlementFailed  SettlementStatus = "failed"
)

// Settlement is read-only on the client.
type Settlement struct {
	ChallengeID string           `json:"challengeId"`
	Status      SettlementStatus `json:"status"`
	Refundable  bool             `json:"refundable"`
	Message     string           `json:"message,omitempty"`
}

// SettlementsResponse is the payload of GET /v1/settlements.
type SettlementsResponse struct {
	Items []Settlement `json:"items"`
}

// AuthorizationExchangeRequest is the body of POST /v1/auth/toss/exchange.
type AuthorizationExchangeRequest struct {
	AuthorizationCode string `json:"authorizationCode"`
	Referrer          string `json:"referrer"`
}

// ExchangeResponse carries a session token under either field name.
type ExchangeResponse struct {
	SessionToken string `json:"sessionToken,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	Mode         string `json:"mode,omitempty"` // "stub" | "toss"
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
