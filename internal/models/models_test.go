package models

import (
	"encoding/json"
	"testing"
)

func TestPaymentID_KeepsNumericEncoding(t *testing.T) {
	var intent PaymentIntent
	if err := json.Unmarshal([]byte(`{"paymentId":1,"payToken":"pt1","mode":"mock"}`), &intent); err != nil {
		t.Fatalf("Failed to unmarshal intent: %v", err)
	}

	body, err := json.Marshal(ExecutePaymentRequest{PaymentID: intent.PaymentID})
	if err != nil {
		t.Fatalf("Failed to marshal execute request: %v", err)
	}

	if string(body) != `{"paymentId":1}` {
		t.Errorf("Expected numeric paymentId to be echoed, got %s", body)
	}
	if intent.PaymentID.String() != "1" {
		t.Errorf("Expected String() = 1, got %q", intent.PaymentID.String())
	}
}

func TestPaymentID_StringEncoding(t *testing.T) {
	var id PaymentID
	if err := json.Unmarshal([]byte(`"pay_abc"`), &id); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if id.String() != "pay_abc" {
		t.Errorf("Expected pay_abc, got %q", id.String())
	}

	out, _ := json.Marshal(id)
	if string(out) != `"pay_abc"` {
		t.Errorf("Expected quoted id, got %s", out)
	}
}

func TestPaymentID_RejectsObjects(t *testing.T) {
	var id PaymentID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Error("Expected error for object paymentId")
	}
}

func TestPaymentID_Zero(t *testing.T) {
	var intent PaymentIntent
	if err := json.Unmarshal([]byte(`{"paymentId":null}`), &intent); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if !intent.PaymentID.IsZero() {
		t.Error("Expected null paymentId to be zero")
	}
	if !(PaymentID{}).IsZero() {
		t.Error("Expected empty PaymentID to be zero")
	}
	if NewPaymentID("p1").IsZero() {
		t.Error("Expected NewPaymentID to be non-zero")
	}
}

func TestProofSubmission_OmitsUnsetField(t *testing.T) {
	body, _ := json.Marshal(ProofSubmission{ChallengeID: "walk-7000", ImageHash: "steps-demo"})
	if string(body) != `{"challengeId":"walk-7000","imageHash":"steps-demo"}` {
		t.Errorf("Unexpected body: %s", body)
	}
}
