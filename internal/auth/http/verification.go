package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/service"
	"github.com/activitymaster/clubauth/pkg/httpx"
)

// VerificationHandler covers identity verification: members submit their
// document details, system reviewers settle them.
type VerificationHandler struct {
	VerificationService *service.VerificationService
}

type submitVerificationRequest struct {
	MRZ         string `json:"mrz"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
}

type verificationResponse struct {
	Status      string `json:"status"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	SubmittedAt string `json:"submitted_at"`
}

func toVerificationResponse(v domain.IdentityVerification) verificationResponse {
	return verificationResponse{
		Status:      string(v.Status),
		FirstName:   v.FirstName,
		LastName:    v.LastName,
		DateOfBirth: v.DateOfBirth,
		SubmittedAt: v.CreatedAt.Format(time.RFC3339),
	}
}

// HandleSubmit handles POST /v1/verification.
func (h *VerificationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if req.MRZ == "" || req.FirstName == "" || req.LastName == "" || req.DateOfBirth == "" {
		writeBadRequest(w, "mrz, first_name, last_name and date_of_birth are required")
		return
	}

	v, err := h.VerificationService.Submit(ctx, httpx.UserIDFromContext(ctx),
		req.MRZ, req.FirstName, req.LastName, req.DateOfBirth)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, toVerificationResponse(v))
}

// HandleStatus handles GET /v1/verification.
func (h *VerificationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	v, err := h.VerificationService.Status(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toVerificationResponse(v))
}

// HandleReveal handles GET /v1/verification/{user_id}/document. Reviewer
// only; the access is itself audited.
func (h *VerificationHandler) HandleReveal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mrz, err := h.VerificationService.RevealMRZ(ctx,
		httpx.UserIDFromContext(ctx), r.PathValue("user_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"mrz": mrz})
}

type reviewRequest struct {
	Approve bool `json:"approve"`
}

// HandleReview handles POST /v1/verification/{user_id}/review.
func (h *VerificationHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}

	err := h.VerificationService.Review(ctx,
		httpx.UserIDFromContext(ctx), r.PathValue("user_id"), req.Approve)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
