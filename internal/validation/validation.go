package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"habitrefund/internal/models"
)

// MaxPhotoBytes caps the size of a photo proof before encoding.
const MaxPhotoBytes = 10 << 20

// MessagePhotoRequired is shown when a photo proof is submitted without a photo.
const MessagePhotoRequired = "사진을 선택하세요."

var challengeIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Detail returns the message prefixed by the offending field.
func (e *ValidationError) Detail() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func ValidateChallenge(ch models.Challenge) error {
	id := SanitizeString(ch.ID)
	if id == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	if !challengeIDRegex.MatchString(id) {
		return &ValidationError{Field: "id", Message: "must be a lowercase slug"}
	}

	if SanitizeString(ch.Title) == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}

	if ch.Days <= 0 {
		return &ValidationError{Field: "days", Message: "must be positive"}
	}

	if ch.Deposit <= 0 {
		return &ValidationError{Field: "deposit", Message: "must be positive"}
	}

	switch ch.ProofType {
	case models.ProofPhoto, models.ProofSteps:
	default:
		return &ValidationError{
			Field:   "proofType",
			Message: fmt.Sprintf("unsupported proof type %q", ch.ProofType),
		}
	}

	return nil
}

// ValidatePaymentIntent checks the fields the payment flow depends on.
func ValidatePaymentIntent(intent models.PaymentIntent) error {
	if intent.PaymentID.IsZero() {
		return &ValidationError{Field: "paymentId", Message: "is required"}
	}

	switch intent.Mode {
	case models.PaymentModeMock:
	case models.PaymentModeLive:
		if strings.TrimSpace(intent.PayToken) == "" {
			return &ValidationError{Field: "payToken", Message: "is required for live payments"}
		}
	default:
		return &ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("unsupported payment mode %q", intent.Mode),
		}
	}

	return nil
}

// ValidatePhotoSize rejects empty and oversized photos.
func ValidatePhotoSize(size int64) error {
	if size <= 0 {
		return &ValidationError{Field: "photo", Message: "사진 파일이 비어 있습니다."}
	}
	if size > MaxPhotoBytes {
		return &ValidationError{Field: "photo", Message: "사진 파일이 너무 큽니다. (최대 10MB)"}
	}
	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}
