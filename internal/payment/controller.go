// Package payment drives the deposit flow for one challenge screen.
//
// An attempt moves through idle, creating, an optional confirmation step,
// executing, and ends completed or failed. Execute is only ever called when
// the server declared mock mode or the native sheet reported success.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/events"
	"habitrefund/internal/idempotency"
	"habitrefund/internal/models"
	"habitrefund/internal/native"
	"habitrefund/internal/navigation"
	"habitrefund/internal/validation"
)

const (
	PathCreate  = "/v1/payments/create"
	PathExecute = "/v1/payments/execute"
)

// MessageCancelled is shown when confirmation fails without its own message.
const MessageCancelled = "결제가 취소되었습니다."

// ErrBusy is returned when an attempt is already in flight.
var ErrBusy = errors.New("payment already in progress")

// State is a step of a payment attempt.
type State string

const (
	StateIdle                 State = "idle"
	StateCreating             State = "creating"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// InFlight reports whether s is a non-terminal, non-idle state.
func (s State) InFlight() bool {
	switch s {
	case StateCreating, StateAwaitingConfirmation, StateExecuting:
		return true
	}
	return false
}

// Snapshot is the observable state of the controller.
type Snapshot struct {
	State       State              `json:"state"`
	ChallengeID string             `json:"challengeId,omitempty"`
	PaymentID   string             `json:"paymentId,omitempty"`
	Mode        models.PaymentMode `json:"mode,omitempty"`
	Message     string             `json:"message,omitempty"`
}

// Options holds the optional collaborators of a Controller.
type Options struct {
	Keys   idempotency.Generator
	Events *events.Manager
	Logger *slog.Logger
}

// Controller owns one payment attempt at a time.
type Controller struct {
	client   *apiclient.Client
	checkout native.Checkout
	nav      navigation.Navigator
	keys     idempotency.Generator
	events   *events.Manager
	logger   *slog.Logger

	mu        sync.Mutex
	snap      Snapshot
	observers []func(Snapshot)
}

// NewController creates an idle controller.
func NewController(client *apiclient.Client, checkout native.Checkout, nav navigation.Navigator, opts Options) *Controller {
	if checkout == nil {
		checkout = native.Unavailable{}
	}
	if opts.Keys == nil {
		opts.Keys = idempotency.UUIDGenerator{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		client:   client,
		checkout: checkout,
		nav:      nav,
		keys:     opts.Keys,
		events:   opts.Events,
		logger:   opts.Logger,
		snap:     Snapshot{State: StateIdle},
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe registers fn to receive a snapshot on every transition.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Start runs one attempt for ch and returns its terminal snapshot. The
// returned error is the cause of a failed attempt; the snapshot message is
// what the user sees.
func (c *Controller) Start(ctx context.Context, ch models.Challenge) (Snapshot, error) {
	if !c.begin(ch) {
		return c.Snapshot(), ErrBusy
	}

	intent, err := apiclient.Post[models.PaymentIntent](ctx, c.client, PathCreate, models.CreatePaymentRequest{
		ChallengeID: ch.ID,
		Amount:      ch.Deposit,
	}, c.keys.Next())
	if err != nil {
		return c.fail(ctx, ch, nil, err.Error(), fmt.Errorf("create payment: %w", err))
	}
	if intent == nil {
		err := errors.New("empty create response")
		return c.fail(ctx, ch, nil, err.Error(), fmt.Errorf("create payment: %w", err))
	}
	if err := validation.ValidatePaymentIntent(*intent); err != nil {
		return c.fail(ctx, ch, intent, err.Error(), fmt.Errorf("create payment: %w", err))
	}

	if intent.Mode == models.PaymentModeLive {
		c.set(c.withIntent(StateAwaitingConfirmation, ch, intent, ""))

		res, err := c.checkout.CheckoutPayment(ctx, intent.PayToken)
		if err != nil || !res.Success {
			msg := res.ErrorMessage
			if msg == "" {
				msg = MessageCancelled
			}
			if err == nil {
				err = native.ErrCancelled
			}
			return c.fail(ctx, ch, intent, msg, fmt.Errorf("confirm payment: %w", err))
		}
	}

	c.set(c.withIntent(StateExecuting, ch, intent, ""))

	if _, err := c.client.Do(ctx, http.MethodPost, PathExecute, models.ExecutePaymentRequest{PaymentID: intent.PaymentID}, ""); err != nil {
		return c.fail(ctx, ch, intent, err.Error(), fmt.Errorf("execute payment: %w", err))
	}

	done := c.withIntent(StateCompleted, ch, intent, "")
	c.set(done)

	c.logger.Info("payment completed",
		"challenge_id", ch.ID,
		"payment_id", intent.PaymentID.String(),
		"mode", string(intent.Mode),
	)
	c.events.PublishPaymentCompleted(ctx, paymentData(ch, intent, ""))
	c.nav.Navigate(navigation.ProofPath(ch.ID))
	return done, nil
}

// begin moves an idle or finished controller into creating. It reports
// false when an attempt is already in flight.
func (c *Controller) begin(ch models.Challenge) bool {
	c.mu.Lock()
	if c.snap.State.InFlight() {
		c.mu.Unlock()
		return false
	}
	c.snap = Snapshot{State: StateCreating, ChallengeID: ch.ID}
	c.notifyLocked()
	return true
}

func (c *Controller) fail(ctx context.Context, ch models.Challenge, intent *models.PaymentIntent, msg string, cause error) (Snapshot, error) {
	snap := c.withIntent(StateFailed, ch, intent, msg)
	c.set(snap)

	c.logger.Warn("payment failed", "challenge_id", ch.ID, "error", cause)
	c.events.PublishPaymentFailed(ctx, paymentData(ch, intent, msg))
	return snap, cause
}

func (c *Controller) withIntent(state State, ch models.Challenge, intent *models.PaymentIntent, msg string) Snapshot {
	snap := Snapshot{State: state, ChallengeID: ch.ID, Message: msg}
	if intent != nil {
		snap.PaymentID = intent.PaymentID.String()
		snap.Mode = intent.Mode
	}
	return snap
}

func (c *Controller) set(snap Snapshot) {
	c.mu.Lock()
	c.snap = snap
	c.notifyLocked()
}

// notifyLocked releases c.mu and then delivers the current snapshot.
func (c *Controller) notifyLocked() {
	snap := c.snap
	observers := append([]func(Snapshot){}, c.observers...)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func paymentData(ch models.Challenge, intent *models.PaymentIntent, reason string) events.PaymentData {
	data := events.PaymentData{ChallengeID: ch.ID, Amount: ch.Deposit, Reason: reason}
	if intent != nil {
		data.PaymentID = intent.PaymentID.String()
		data.Mode = intent.Mode
	}
	return data
}
