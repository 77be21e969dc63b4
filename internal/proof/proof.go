// Package proof packages and submits challenge evidence.
package proof

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/events"
	"habitrefund/internal/idempotency"
	"habitrefund/internal/models"
	"habitrefund/internal/navigation"
	"habitrefund/internal/validation"
)

const PathSubmit = "/v1/proofs/submit"

// StepsAttestation stands in for a real step-count integration.
const StepsAttestation = "steps-demo"

const (
	MessageSubmitted = "인증 완료. 정산 대기 중입니다."
	MessageFailed    = "인증 실패"
)

// RedirectDelay is how long the success message stays before the history view.
const RedirectDelay = 500 * time.Millisecond

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.New("proof submission already in progress")

// Photo is a selected image. Open is called once per encoding and the
// returned reader is closed before EncodeBase64 returns.
type Photo interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FilePhoto is a photo on the local filesystem.
type FilePhoto struct {
	Path string
}

func (p FilePhoto) Name() string { return p.Path }

func (p FilePhoto) Open() (io.ReadCloser, error) {
	return os.Open(p.Path)
}

// BytesPhoto is an in-memory photo, typically from a multipart upload.
type BytesPhoto struct {
	Filename string
	Data     []byte
}

func (p BytesPhoto) Name() string { return p.Filename }

func (p BytesPhoto) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p.Data)), nil
}

// EncodeBase64 reads the whole photo and returns its standard base64
// encoding. Photos larger than validation.MaxPhotoBytes are rejected.
func EncodeBase64(p Photo) (string, error) {
	rc, err := p.Open()
	if err != nil {
		return "", fmt.Errorf("open photo: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, validation.MaxPhotoBytes+1))
	if err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	if err := validation.ValidatePhotoSize(int64(len(data))); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Result is what the proof screen shows after a submission.
type Result struct {
	Submitted bool   `json:"submitted"`
	Message   string `json:"message"`
}

// Options holds the optional collaborators of a Controller.
type Options struct {
	Keys   idempotency.Generator
	Events *events.Manager
	Logger *slog.Logger
	// After schedules fn after d. Defaults to time.AfterFunc.
	After func(d time.Duration, fn func())
}

// Controller submits proofs for one challenge screen.
type Controller struct {
	client *apiclient.Client
	nav    navigation.Navigator
	keys   idempotency.Generator
	events *events.Manager
	logger *slog.Logger
	after  func(time.Duration, func())

	mu         sync.Mutex
	submitting bool
	// redirects counts cancellations; a scheduled redirect only fires if
	// none happened since it was scheduled.
	redirects uint64
}

// NewController creates a proof controller.
func NewController(client *apiclient.Client, nav navigation.Navigator, opts Options) *Controller {
	if opts.Keys == nil {
		opts.Keys = idempotency.UUIDGenerator{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.After == nil {
		opts.After = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &Controller{
		client: client,
		nav:    nav,
		keys:   opts.Keys,
		events: opts.Events,
		logger: opts.Logger,
		after:  opts.After,
	}
}

// Submitting reports whether a submission is in flight.
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// CancelRedirect drops any pending redirect to the history view.
func (c *Controller) CancelRedirect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redirects++
}

// Submit sends the proof for ch. photo is only consulted for photo
// challenges. On success the history view is opened after RedirectDelay.
func (c *Controller) Submit(ctx context.Context, ch models.Challenge, photo Photo) (Result, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return Result{}, ErrBusy
	}
	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	body, err := c.build(ch, photo)
	if err != nil {
		return c.failed(ch, err)
	}

	if _, err := c.client.Do(ctx, http.MethodPost, PathSubmit, body, c.keys.Next()); err != nil {
		return c.failed(ch, err)
	}

	c.logger.Info("proof submitted", "challenge_id", ch.ID, "proof_type", string(ch.ProofType))
	c.events.PublishProofSubmitted(ctx, ch.ID, ch.ProofType)
	c.mu.Lock()
	gen := c.redirects
	c.mu.Unlock()
	c.after(RedirectDelay, func() {
		c.mu.Lock()
		live := c.redirects == gen
		c.mu.Unlock()
		if live {
			c.nav.Navigate(navigation.RouteHistory)
		}
	})

	return Result{Submitted: true, Message: MessageSubmitted}, nil
}

func (c *Controller) build(ch models.Challenge, photo Photo) (models.ProofSubmission, error) {
	if ch.ProofType != models.ProofPhoto {
		return models.ProofSubmission{ChallengeID: ch.ID, ImageHash: StepsAttestation}, nil
	}
	if photo == nil {
		return models.ProofSubmission{}, &validation.ValidationError{Field: "photo", Message: validation.MessagePhotoRequired}
	}
	encoded, err := EncodeBase64(photo)
	if err != nil {
		return models.ProofSubmission{}, err
	}
	return models.ProofSubmission{ChallengeID: ch.ID, ImageBase64: encoded}, nil
}

func (c *Controller) failed(ch models.Challenge, err error) (Result, error) {
	msg := err.Error()
	if msg == "" {
		msg = MessageFailed
	}
	c.logger.Warn("proof submission failed", "challenge_id", ch.ID, "error", err)
	return Result{Message: msg}, err
}
