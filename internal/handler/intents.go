package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"habitrefund/internal/auth"
	"habitrefund/internal/payment"
	"habitrefund/internal/proof"
)

// IntentResult reports the outcome of a user action and where the user is now.
type IntentResult struct {
	OK      bool              `json:"ok"`
	Route   string            `json:"route"`
	Message string            `json:"message,omitempty"`
	Payment *payment.Snapshot `json:"payment,omitempty"`
	Proof   *proof.Result     `json:"proof,omitempty"`
}

// Login handles POST /api/intents/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	att, err := h.deps.Resolver.Resolve(r.Context())
	if errors.Is(err, auth.ErrBusy) {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}

	res := IntentResult{OK: err == nil, Route: h.deps.Nav.Current()}
	if err != nil {
		res.Message = loginFailure(att, err)
	}
	h.respondJSON(w, http.StatusOK, res)
}

// Logout handles POST /api/intents/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cancelRedirects()
	if err := h.deps.Resolver.Logout(r.Context()); err != nil {
		h.logger.Error("logout failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	h.deps.Catalog.Invalidate(r.Context())
	h.resetScreens()
	h.respondJSON(w, http.StatusOK, IntentResult{OK: true, Route: h.deps.Nav.Current()})
}

// Deposit handles POST /api/intents/challenge/{id}/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.findChallenge(r, chi.URLParam(r, "id"))
	if !ok {
		h.respondError(w, http.StatusNotFound, MessageChallengeNotFound)
		return
	}

	snap, err := h.paymentFor(ch.ID).Start(r.Context(), ch)
	if errors.Is(err, payment.ErrBusy) {
		h.respondJSON(w, http.StatusConflict, IntentResult{Route: h.deps.Nav.Current(), Payment: &snap})
		return
	}

	h.respondJSON(w, http.StatusOK, IntentResult{
		OK:      err == nil,
		Route:   h.deps.Nav.Current(),
		Message: snap.Message,
		Payment: &snap,
	})
}

// SubmitProof handles POST /api/intents/proof/{id}
//
// Photo challenges expect a multipart body with the image in the "photo"
// field. Steps challenges take no body.
func (h *Handler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.findChallenge(r, chi.URLParam(r, "id"))
	if !ok {
		h.respondError(w, http.StatusNotFound, MessageProofNotFound)
		return
	}

	photo, status, err := h.readPhoto(w, r)
	if err != nil {
		h.respondError(w, status, err.Error())
		return
	}

	res, err := h.proofFor(ch.ID).Submit(r.Context(), ch, photo)
	if errors.Is(err, proof.ErrBusy) {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		res.Message = proofMessage(res)
	}
	h.setProofResult(ch.ID, res)

	h.respondJSON(w, http.StatusOK, IntentResult{
		OK:      res.Submitted,
		Route:   h.deps.Nav.Current(),
		Message: res.Message,
		Proof:   &res,
	})
}

// readPhoto extracts the optional photo upload. A missing photo is not an
// error here; the proof controller decides whether one is required.
func (h *Handler) readPhoto(w http.ResponseWriter, r *http.Request) (proof.Photo, int, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, 0, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxBodySize)
	if err := r.ParseMultipartForm(h.deps.MaxBodySize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, errors.New("request body too large")
		}
		return nil, http.StatusBadRequest, errors.New("invalid multipart body")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("invalid photo field")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("failed to read photo")
	}
	return proof.BytesPhoto{Filename: header.Filename, Data: data}, 0, nil
}
