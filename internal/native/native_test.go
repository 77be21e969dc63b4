package native

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestGrantExpired(t *testing.T) {
	issued := time.Date(2025, 12, 21, 9, 0, 0, 0, time.UTC)
	g := Grant{AuthorizationCode: "code", IssuedAt: issued}

	if g.Expired(issued.Add(9 * time.Minute)) {
		t.Error("Expected grant to be valid after 9 minutes")
	}
	if !g.Expired(issued.Add(10 * time.Minute)) {
		t.Error("Expected grant to expire after 10 minutes")
	}
	if (Grant{}).Expired(issued) {
		t.Error("Expected grant without issue time to be fresh")
	}
}

func TestUnavailable(t *testing.T) {
	if _, err := (Unavailable{}).AppLogin(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if _, err := (Unavailable{}).CheckoutPayment(context.Background(), "pt"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestStaticLogin(t *testing.T) {
	now := time.Date(2025, 12, 21, 9, 0, 0, 0, time.UTC)
	l := StaticLogin{AuthorizationCode: "code-1", Referrer: "DEFAULT", Now: func() time.Time { return now }}

	g, err := l.AppLogin(context.Background())
	if err != nil {
		t.Fatalf("AppLogin failed: %v", err)
	}
	if g.AuthorizationCode != "code-1" || g.Referrer != "DEFAULT" || !g.IssuedAt.Equal(now) {
		t.Errorf("Unexpected grant %+v", g)
	}

	if _, err := (StaticLogin{}).AppLogin(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable without code, got %v", err)
	}
}

func TestPromptCheckout(t *testing.T) {
	tests := []struct {
		input   string
		success bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		p := NewPromptCheckout(strings.NewReader(tt.input), &out)
		res, err := p.CheckoutPayment(context.Background(), "pt2")
		if err != nil {
			t.Fatalf("CheckoutPayment(%q) failed: %v", tt.input, err)
		}
		if res.Success != tt.success {
			t.Errorf("CheckoutPayment(%q) success = %v, want %v", tt.input, res.Success, tt.success)
		}
		if !tt.success && res.ErrorMessage != "취소" {
			t.Errorf("Expected cancel message, got %q", res.ErrorMessage)
		}
		if !strings.Contains(out.String(), "pt2") {
			t.Errorf("Expected prompt to mention the pay token, got %q", out.String())
		}
	}
}

func TestPromptCheckout_SharesInputAcrossPrompts(t *testing.T) {
	p := NewPromptCheckout(strings.NewReader("y\nn\ny\n"), io.Discard)

	want := []bool{true, false, true}
	for i, w := range want {
		res, err := p.CheckoutPayment(context.Background(), "pt")
		if err != nil {
			t.Fatalf("Prompt %d failed: %v", i, err)
		}
		if res.Success != w {
			t.Errorf("Prompt %d success = %v, want %v", i, res.Success, w)
		}
	}
}

func TestPromptCheckout_Cancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewPromptCheckout(r, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.CheckoutPayment(ctx, "pt1")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("CheckoutPayment did not return after cancel")
	}

	// The next prompt receives the line typed after it is shown.
	go w.Write([]byte("y\n"))
	res, err := p.CheckoutPayment(context.Background(), "pt2")
	if err != nil {
		t.Fatalf("CheckoutPayment failed: %v", err)
	}
	if !res.Success {
		t.Error("Expected the second prompt to be confirmed")
	}
}
