package handlers

import (
	"context"
	"net/http"
	"time"

	"campusdrive/internal/app"
	"campusdrive/internal/common"
	"campusdrive/internal/domain/actor"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/http/middleware"
	"campusdrive/internal/http/response"
)

type SelectionHandler struct {
	selection   *app.SelectionService
	limiter     middleware.Limiter
	submitLimit int
}

// NewSelectionHandler throttles committed phase submissions to submitLimit per actor, drive
// and minute. A zero limit or nil limiter disables throttling.
func NewSelectionHandler(selection *app.SelectionService, limiter middleware.Limiter, submitLimit int) *SelectionHandler {
	return &SelectionHandler{selection: selection, limiter: limiter, submitLimit: submitLimit}
}

type emailsRequest struct {
	Emails []string `json:"emails" validate:"required,max=5000"`
}

type bulkRejectRequest struct {
	Emails []string `json:"emails" validate:"required,max=5000"`
	Stage  string   `json:"stage" validate:"required"`
}

type phaseFunc func(ctx context.Context, a actor.Actor, req app.PhaseRequest) (*app.PhaseResult, error)

func (h *SelectionHandler) Shortlist(w http.ResponseWriter, r *http.Request) {
	h.runPhase(w, r, h.selection.Shortlist)
}

func (h *SelectionHandler) Interview(w http.ResponseWriter, r *http.Request) {
	h.runPhase(w, r, h.selection.Interview)
}

func (h *SelectionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.runPhase(w, r, h.selection.Finalize)
}

func (h *SelectionHandler) runPhase(w http.ResponseWriter, r *http.Request, run phaseFunc) {
	a, driveID, collegeID, err := collegeScope(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req emailsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	preview := previewRequested(r)
	if !preview && !h.allow(a, driveID) {
		response.Error(w, common.NewError(common.CodeRateLimited, "phase submission rate limit exceeded", nil))
		return
	}
	result, err := run(r.Context(), a, app.PhaseRequest{
		DriveID:   driveID,
		CollegeID: collegeID,
		Emails:    req.Emails,
		Preview:   preview,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *SelectionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	a, driveID, collegeID, err := collegeScope(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req bulkRejectRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	stage, err := drive.ParseStageName(req.Stage)
	if err != nil {
		response.Error(w, err)
		return
	}
	preview := previewRequested(r)
	if !preview && !h.allow(a, driveID) {
		response.Error(w, common.NewError(common.CodeRateLimited, "phase submission rate limit exceeded", nil))
		return
	}
	result, err := h.selection.BulkReject(r.Context(), a, app.BulkRejectRequest{
		DriveID:   driveID,
		CollegeID: collegeID,
		Emails:    req.Emails,
		Stage:     stage,
		Preview:   preview,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *SelectionHandler) Close(w http.ResponseWriter, r *http.Request) {
	a, driveID, collegeID, err := collegeScope(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	closed, err := h.selection.CloseCollegeDrive(r.Context(), a, driveID, collegeID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, closed)
}

func (h *SelectionHandler) ValidateEmails(w http.ResponseWriter, r *http.Request) {
	a, driveID, collegeID, err := collegeScope(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req emailsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.selection.ValidateEmails(r.Context(), a, driveID, collegeID, req.Emails)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *SelectionHandler) allow(a actor.Actor, driveID common.UUID) bool {
	if h.limiter == nil || h.submitLimit <= 0 {
		return true
	}
	return h.limiter.Allow("phase:"+a.ID.String()+":"+driveID.String(), h.submitLimit, time.Minute)
}

func collegeScope(r *http.Request) (actor.Actor, common.UUID, common.UUID, error) {
	a, err := actorFrom(r)
	if err != nil {
		return actor.Actor{}, "", "", err
	}
	driveID, err := uuidParam(r, "driveID")
	if err != nil {
		return actor.Actor{}, "", "", err
	}
	collegeID, err := uuidParam(r, "collegeID")
	if err != nil {
		return actor.Actor{}, "", "", err
	}
	return a, driveID, collegeID, nil
}
