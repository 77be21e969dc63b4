// Package native describes the host app capabilities the client relies on:
// the login handoff that yields an authorization code, and the payment
// confirmation sheet.
package native

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// AuthorizationCodeTTL is how long an authorization code stays exchangeable.
const AuthorizationCodeTTL = 10 * time.Minute

var (
	// ErrUnavailable is returned when the host does not provide a capability.
	ErrUnavailable = errors.New("native capability unavailable")
	// ErrCancelled is returned when the user dismisses a native sheet.
	ErrCancelled = errors.New("cancelled by user")
)

// Grant is the result of a native login handoff.
type Grant struct {
	AuthorizationCode string
	Referrer          string
	IssuedAt          time.Time
}

// Expired reports whether the code can no longer be exchanged at now.
// A grant without an issue time is assumed fresh.
func (g Grant) Expired(now time.Time) bool {
	if g.IssuedAt.IsZero() {
		return false
	}
	return now.Sub(g.IssuedAt) >= AuthorizationCodeTTL
}

// Login obtains a short-lived authorization code from the host app.
type Login interface {
	AppLogin(ctx context.Context) (Grant, error)
}

// CheckoutResult is reported by the payment confirmation sheet.
type CheckoutResult struct {
	Success      bool
	ErrorMessage string
}

// Checkout asks the user to confirm a live payment.
type Checkout interface {
	CheckoutPayment(ctx context.Context, payToken string) (CheckoutResult, error)
}

// Unavailable implements both capabilities for hosts that provide neither.
type Unavailable struct{}

func (Unavailable) AppLogin(context.Context) (Grant, error) {
	return Grant{}, ErrUnavailable
}

func (Unavailable) CheckoutPayment(context.Context, string) (CheckoutResult, error) {
	return CheckoutResult{}, ErrUnavailable
}

// StaticLogin hands out a preconfigured authorization code.
type StaticLogin struct {
	AuthorizationCode string
	Referrer          string
	Now               func() time.Time
}

func (s StaticLogin) AppLogin(ctx context.Context) (Grant, error) {
	if err := ctx.Err(); err != nil {
		return Grant{}, err
	}
	if s.AuthorizationCode == "" {
		return Grant{}, ErrUnavailable
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return Grant{
		AuthorizationCode: s.AuthorizationCode,
		Referrer:          s.Referrer,
		IssuedAt:          now(),
	}, nil
}

// AutoApprove confirms every payment. Demo environments only.
type AutoApprove struct{}

func (AutoApprove) CheckoutPayment(ctx context.Context, payToken string) (CheckoutResult, error) {
	if err := ctx.Err(); err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{Success: true}, nil
}

// PromptCheckout asks for confirmation on a terminal. One reader is shared
// across prompts so buffered input is never lost between payments.
type PromptCheckout struct {
	in   *bufio.Reader
	out  io.Writer
	turn chan struct{}

	mu      sync.Mutex
	pending chan answer
}

// NewPromptCheckout creates a prompt reading answers from in.
func NewPromptCheckout(in io.Reader, out io.Writer) *PromptCheckout {
	return &PromptCheckout{in: bufio.NewReader(in), out: out, turn: make(chan struct{}, 1)}
}

type answer struct {
	line string
	err  error
}

// CheckoutPayment returns ctx.Err() when ctx ends before an answer arrives.
// A read left open by a cancelled prompt is reused by the next one; an
// answer that arrived while no prompt was showing is discarded.
func (p *PromptCheckout) CheckoutPayment(ctx context.Context, payToken string) (CheckoutResult, error) {
	if err := ctx.Err(); err != nil {
		return CheckoutResult{}, err
	}

	// One prompt is on screen at a time.
	select {
	case p.turn <- struct{}{}:
	case <-ctx.Done():
		return CheckoutResult{}, ctx.Err()
	}
	defer func() { <-p.turn }()

	answers := p.read()
	fmt.Fprintf(p.out, "결제를 진행할까요? (payToken %s) [y/N]: ", payToken)

	var a answer
	select {
	case <-ctx.Done():
		return CheckoutResult{}, ctx.Err()
	case a = <-answers:
	}
	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()

	if a.err != nil && !errors.Is(a.err, io.EOF) {
		return CheckoutResult{}, fmt.Errorf("read confirmation: %w", a.err)
	}

	switch strings.ToLower(strings.TrimSpace(a.line)) {
	case "y", "yes":
		return CheckoutResult{Success: true}, nil
	default:
		return CheckoutResult{Success: false, ErrorMessage: "취소"}, nil
	}
}

// read returns the channel of the outstanding line read, starting one if
// none is in flight.
func (p *PromptCheckout) read() chan answer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending != nil {
		select {
		case <-p.pending:
			p.pending = nil
		default:
			return p.pending
		}
	}

	ch := make(chan answer, 1)
	p.pending = ch
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line, err}
	}()
	return ch
}
