package validation

import (
	"errors"
	"testing"

	"habitrefund/internal/models"
)

func TestValidateChallenge(t *testing.T) {
	valid := models.Challenge{ID: "walk-7000", Title: "매일 7,000보 걷기", Days: 3, Deposit: 10000, ProofType: models.ProofSteps}

	tests := []struct {
		name   string
		mutate func(*models.Challenge)
		field  string
	}{
		{"valid", func(*models.Challenge) {}, ""},
		{"missing id", func(c *models.Challenge) { c.ID = "" }, "id"},
		{"bad id", func(c *models.Challenge) { c.ID = "Walk 7000" }, "id"},
		{"missing title", func(c *models.Challenge) { c.Title = "  " }, "title"},
		{"zero days", func(c *models.Challenge) { c.Days = 0 }, "days"},
		{"negative deposit", func(c *models.Challenge) { c.Deposit = -1 }, "deposit"},
		{"unknown proof type", func(c *models.Challenge) { c.ProofType = "video" }, "proofType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := valid
			tt.mutate(&ch)
			err := ValidateChallenge(ch)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestValidatePaymentIntent(t *testing.T) {
	if err := ValidatePaymentIntent(models.PaymentIntent{PaymentID: models.NewPaymentID("p1"), Mode: models.PaymentModeMock}); err != nil {
		t.Errorf("Expected mock intent to be valid, got %v", err)
	}

	if err := ValidatePaymentIntent(models.PaymentIntent{PaymentID: models.NewPaymentID("p1"), Mode: models.PaymentModeLive}); err == nil {
		t.Error("Expected live intent without payToken to be rejected")
	}

	if err := ValidatePaymentIntent(models.PaymentIntent{Mode: models.PaymentModeMock}); err == nil {
		t.Error("Expected intent without paymentId to be rejected")
	}

	if err := ValidatePaymentIntent(models.PaymentIntent{PaymentID: models.NewPaymentID("p1")}); err == nil {
		t.Error("Expected intent without mode to be rejected")
	}
}

func TestValidatePhotoSize(t *testing.T) {
	if err := ValidatePhotoSize(0); err == nil {
		t.Error("Expected empty photo to be rejected")
	}
	if err := ValidatePhotoSize(MaxPhotoBytes + 1); err == nil {
		t.Error("Expected oversized photo to be rejected")
	}
	if err := ValidatePhotoSize(1024); err != nil {
		t.Errorf("Expected 1KiB photo to pass, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  bed-0700\x00\x07 "); got != "bed-0700" {
		t.Errorf("Expected bed-0700, got %q", got)
	}
}
