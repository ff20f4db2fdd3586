package handlers

import (
	"net/http"

	"campusdrive/internal/app"
	"campusdrive/internal/domain/application"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/http/response"
)

type ApplicationHandler struct {
	applications *app.ApplicationService
}

func NewApplicationHandler(applications *app.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := actorFrom(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	applicationID, err := uuidParam(r, "applicationID")
	if err != nil {
		response.Error(w, err)
		return
	}
	item, err := h.applications.Get(r.Context(), a, applicationID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, item)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	a, err := actorFrom(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	applicationID, err := uuidParam(r, "applicationID")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	status, err := application.ParseStatus(req.Status)
	if err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.applications.UpdateStatus(r.Context(), a, applicationID, status)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

// ListByStage serves GET /drives/{driveID}/applications?stage=&college_id=&limit=&offset=.
func (h *ApplicationHandler) ListByStage(w http.ResponseWriter, r *http.Request) {
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
	stage, err := drive.ParseStageName(r.URL.Query().Get("stage"))
	if err != nil {
		response.Error(w, err)
		return
	}
	collegeID, err := optionalUUIDQuery(r, "college_id")
	if err != nil {
		response.Error(w, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		response.Error(w, err)
		return
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		response.Error(w, err)
		return
	}
	page, err := h.applications.ListByStage(r.Context(), a, app.StageQuery{
		DriveID:   driveID,
		CollegeID: collegeID,
		Stage:     stage,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, page)
}

func (h *ApplicationHandler) Stats(w http.ResponseWriter, r *http.Request) {
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
	stats, err := h.applications.SelectionStats(r.Context(), a, driveID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}
