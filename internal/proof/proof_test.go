package proof

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/models"
	"habitrefund/internal/navigation"
	"habitrefund/internal/session"
	"habitrefund/internal/validation"
)

var (
	photoChallenge = models.Challenge{ID: "lunch-proof", Title: "점심 도시락/샐러드 인증", Days: 3, Deposit: 10000, ProofType: models.ProofPhoto}
	stepsChallenge = models.Challenge{ID: "walk-7000", Title: "매일 7,000보 걷기", Days: 3, Deposit: 10000, ProofType: models.ProofSteps}
)

type submitted struct {
	key  string
	body map[string]string
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

func setupController(t *testing.T, status int, respBody string) (*Controller, *navigation.History, *[]submitted, *[]scheduled) {
	t.Helper()
	var calls []submitted
	r := chi.NewRouter()
	r.Post(PathSubmit, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, submitted{key: r.Header.Get("Idempotency-Key"), body: body})
		if status != 0 {
			w.WriteHeader(status)
		}
		w.Write([]byte(respBody))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	var timers []scheduled
	nav := navigation.NewHistory(navigation.ProofPath("lunch-proof"))
	client := apiclient.New(session.NewMemoryStore("tok"), nav, apiclient.Options{BaseURL: srv.URL})
	c := NewController(client, nav, Options{
		After: func(d time.Duration, fn func()) { timers = append(timers, scheduled{d, fn}) },
	})
	return c, nav, &calls, &timers
}

func TestSubmit_PhotoRequired(t *testing.T) {
	c, nav, calls, timers := setupController(t, 0, "")

	res, err := c.Submit(context.Background(), photoChallenge, nil)

	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if res.Message != "사진을 선택하세요." {
		t.Errorf("Unexpected message %q", res.Message)
	}
	if len(*calls) != 0 {
		t.Errorf("No network call may be made, got %d", len(*calls))
	}
	if len(*timers) != 0 || nav.Current() != navigation.ProofPath("lunch-proof") {
		t.Error("Validation failure must not navigate")
	}
}

func TestSubmit_PhotoEncodesBase64(t *testing.T) {
	c, nav, calls, timers := setupController(t, 0, "")
	data := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

	res, err := c.Submit(context.Background(), photoChallenge, BytesPhoto{Filename: "lunch.jpg", Data: data})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Submitted || res.Message != MessageSubmitted {
		t.Errorf("Unexpected result %+v", res)
	}

	if len(*calls) != 1 {
		t.Fatalf("Expected one call, got %d", len(*calls))
	}
	got := (*calls)[0]
	if got.body["challengeId"] != "lunch-proof" {
		t.Errorf("Unexpected challengeId %q", got.body["challengeId"])
	}
	if got.body["imageBase64"] != base64.StdEncoding.EncodeToString(data) {
		t.Errorf("Unexpected imageBase64 %q", got.body["imageBase64"])
	}
	if _, ok := got.body["imageHash"]; ok {
		t.Error("Photo proof must not carry imageHash")
	}
	if got.key == "" {
		t.Error("Expected an idempotency key")
	}

	if len(*timers) != 1 || (*timers)[0].delay != RedirectDelay {
		t.Fatalf("Expected one redirect scheduled after %v, got %+v", RedirectDelay, *timers)
	}
	if nav.Current() == navigation.RouteHistory {
		t.Error("Navigation must wait for the delay")
	}
	(*timers)[0].fn()
	if nav.Current() != navigation.RouteHistory {
		t.Errorf("Expected history route, got %q", nav.Current())
	}
}

func TestSubmit_CancelRedirect(t *testing.T) {
	c, nav, _, timers := setupController(t, 0, "")

	if _, err := c.Submit(context.Background(), stepsChallenge, nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	c.CancelRedirect()
	(*timers)[0].fn()
	if nav.Current() == navigation.RouteHistory {
		t.Error("Cancelled redirect must not navigate")
	}

	if _, err := c.Submit(context.Background(), stepsChallenge, nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	(*timers)[1].fn()
	if nav.Current() != navigation.RouteHistory {
		t.Errorf("Expected history route after a new submission, got %q", nav.Current())
	}
}

func TestSubmit_StepsPlaceholder(t *testing.T) {
	c, _, calls, _ := setupController(t, 0, "")

	if _, err := c.Submit(context.Background(), stepsChallenge, nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	got := (*calls)[0].body
	if got["challengeId"] != "walk-7000" || got["imageHash"] != "steps-demo" {
		t.Errorf("Unexpected body %v", got)
	}
	if _, ok := got["imageBase64"]; ok {
		t.Error("Steps proof must not carry imageBase64")
	}
}

func TestSubmit_FailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server message", http.StatusConflict, `{"error":"duplicate_image"}`, "duplicate_image"},
		{"status fallback", http.StatusBadGateway, "", "HTTP 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _, timers := setupController(t, tt.status, tt.body)

			res, err := c.Submit(context.Background(), stepsChallenge, nil)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if res.Submitted || res.Message != tt.wantMsg {
				t.Errorf("Unexpected result %+v", res)
			}
			if len(*timers) != 0 {
				t.Error("Failure must not schedule navigation")
			}
			if c.Submitting() {
				t.Error("Trigger must be re-enabled after failure")
			}
		})
	}
}

func TestSubmit_RetryUsesNewKey(t *testing.T) {
	c, _, calls, _ := setupController(t, http.StatusInternalServerError, "")

	c.Submit(context.Background(), stepsChallenge, nil)
	c.Submit(context.Background(), stepsChallenge, nil)

	if len(*calls) != 2 {
		t.Fatalf("Expected two calls, got %d", len(*calls))
	}
	if (*calls)[0].key == (*calls)[1].key {
		t.Errorf("Retry reused idempotency key %q", (*calls)[0].key)
	}
}

func TestEncodeBase64_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proof.jpg")
	data := []byte("not really a jpeg")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := EncodeBase64(FilePhoto{Path: path})
	if err != nil {
		t.Fatalf("EncodeBase64 failed: %v", err)
	}
	if got != base64.StdEncoding.EncodeToString(data) {
		t.Errorf("Unexpected encoding %q", got)
	}

	if _, err := EncodeBase64(FilePhoto{Path: filepath.Join(t.TempDir(), "missing.jpg")}); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestEncodeBase64_RejectsOversized(t *testing.T) {
	big := bytes.Repeat([]byte{1}, validation.MaxPhotoBytes+1)
	if _, err := EncodeBase64(BytesPhoto{Data: big}); err == nil {
		t.Error("Expected oversized photo to be rejected")
	}
	if _, err := EncodeBase64(BytesPhoto{}); err == nil {
		t.Error("Expected empty photo to be rejected")
	}
}
