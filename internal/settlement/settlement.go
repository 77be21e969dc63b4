// Package settlement reads refund outcomes computed by the backend.
package settlement

import (
	"context"
	"fmt"
	"net/url"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/models"
)

const PathSettlements = "/v1/settlements"

// MessageLoadFailed is shown when the history cannot be fetched and the
// error carries no text.
const MessageLoadFailed = "불러오기 실패"

// RefundLabel marks rows that will be refunded.
const RefundLabel = "환급 예정"

// Service fetches settlements.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

// List returns every settlement of the current user.
func (s *Service) List(ctx context.Context) ([]models.Settlement, error) {
	resp, err := apiclient.Get[models.SettlementsResponse](ctx, s.client, PathSettlements)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	if resp == nil {
		return nil, nil
	}
	return resp.Items, nil
}

// Get returns the settlement of one challenge. A nil result means the
// backend answered with an empty body.
func (s *Service) Get(ctx context.Context, challengeID string) (*models.Settlement, error) {
	st, err := apiclient.Get[models.Settlement](ctx, s.client, PathSettlements+"/"+url.PathEscape(challengeID))
	if err != nil {
		return nil, fmt.Errorf("get settlement %s: %w", challengeID, err)
	}
	return st, nil
}

// StatusIcon is the glyph shown next to a settlement row.
func StatusIcon(status models.SettlementStatus) string {
	switch status {
	case models.SettlementRunning:
		return "⏳"
	case models.SettlementSuccess:
		return "✅"
	case models.SettlementFailed:
		return "❌"
	default:
		return "•"
	}
}

// Row is the rendered form of one settlement.
type Row struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Badge       string `json:"badge,omitempty"`
}

// Describe renders st for the history list.
func Describe(st models.Settlement) Row {
	row := Row{
		Title:       StatusIcon(st.Status) + " " + st.ChallengeID,
		Description: st.Message,
	}
	if row.Description == "" {
		row.Description = "상태: " + string(st.Status)
	}
	if st.Refundable {
		row.Badge = RefundLabel
	}
	return row
}
