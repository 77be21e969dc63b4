package settlement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/models"
	"habitrefund/internal/navigation"
	"habitrefund/internal/session"
)

func setupService(t *testing.T, r chi.Router) *Service {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	client := apiclient.New(session.NewMemoryStore("tok"), navigation.NewHistory(navigation.RouteHistory), apiclient.Options{BaseURL: srv.URL})
	return NewService(client)
}

func TestList(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathSettlements, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[
			{"challengeId":"bed-0700","status":"running","refundable":false},
			{"challengeId":"walk-7000","status":"success","refundable":true,"message":"환급 완료 예정"}
		]}`))
	})
	s := setupService(t, r)

	items, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[1].Status != models.SettlementSuccess || !items[1].Refundable {
		t.Errorf("Unexpected item %+v", items[1])
	}
}

func TestList_EmptyBody(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathSettlements, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s := setupService(t, r)

	items, err := s.List(context.Background())
	if err != nil || items != nil {
		t.Errorf("Expected nil, nil; got %v, %v", items, err)
	}
}

func TestGet(t *testing.T) {
	r := chi.NewRouter()
	r.Get(PathSettlements+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "lunch-proof" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not_found"}`))
			return
		}
		w.Write([]byte(`{"challengeId":"lunch-proof","status":"failed","refundable":false}`))
	})
	s := setupService(t, r)

	st, err := s.Get(context.Background(), "lunch-proof")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if st.Status != models.SettlementFailed {
		t.Errorf("Unexpected status %s", st.Status)
	}

	if _, err := s.Get(context.Background(), "nope"); err == nil {
		t.Error("Expected error for unknown settlement")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		in   models.Settlement
		want Row
	}{
		{
			name: "running without message",
			in:   models.Settlement{ChallengeID: "bed-0700", Status: models.SettlementRunning},
			want: Row{Title: "⏳ bed-0700", Description: "상태: running"},
		},
		{
			name: "success refundable",
			in:   models.Settlement{ChallengeID: "walk-7000", Status: models.SettlementSuccess, Refundable: true, Message: "축하합니다"},
			want: Row{Title: "✅ walk-7000", Description: "축하합니다", Badge: "환급 예정"},
		},
		{
			name: "failed",
			in:   models.Settlement{ChallengeID: "lunch-proof", Status: models.SettlementFailed},
			want: Row{Title: "❌ lunch-proof", Description: "상태: failed"},
		},
		{
			name: "unknown status",
			in:   models.Settlement{ChallengeID: "x", Status: "paused"},
			want: Row{Title: "• x", Description: "상태: paused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.in); got != tt.want {
				t.Errorf("Describe() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
