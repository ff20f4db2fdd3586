package handlers

import (
	"net/http"

	"campusdrive/internal/app"
	"campusdrive/internal/common"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/http/response"
)

type InvitationHandler struct {
	invitations *app.InvitationService
}

func NewInvitationHandler(invitations *app.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type inviteRequest struct {
	CollegeID string `json:"college_id" validate:"required,uuid"`
}

func (h *InvitationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	a, err := actorFrom(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	driveID, err := uuidParam(r, "driveID")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	collegeID, err := parseUUIDField("college_id", req.CollegeID)
	if err != nil {
		response.Error(w, err)
		return
	}
	invited, err := h.invitations.Invite(r.Context(), a, driveID, collegeID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, invited)
}

type respondRequest struct {
	Accept    *bool  `json:"accept" validate:"required"`
	ManagedBy string `json:"managed_by"`
}

func (h *InvitationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	a, driveID, collegeID, err := collegeScope(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	resp := app.InvitationResponse{Accept: *req.Accept}
	if resp.Accept {
		managedBy, ok := drive.ParseManagedBy(req.ManagedBy)
		if !ok {
			response.Error(w, common.NewValidationError("invalid managed_by", map[string]string{"managed_by": "managed_by must be COLLEGE or ADMIN"}))
			return
		}
		resp.ManagedBy = managedBy
	}
	answered, err := h.invitations.Respond(r.Context(), a, driveID, collegeID, resp)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, answered)
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	a, err := actorFrom(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	driveID, err := uuidParam(r, "driveID")
	if err != nil {
		response.Error(w, err)
		return
	}
	colleges, err := h.invitations.List(r.Context(), a, driveID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, colleges)
}
