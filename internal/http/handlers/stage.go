package handlers

import (
	"net/http"

	"campusdrive/internal/app"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/http/response"
)

type StageHandler struct {
	stages *app.StageService
}

func NewStageHandler(stages *app.StageService) *StageHandler {
	return &StageHandler{stages: stages}
}

func (h *StageHandler) Initialize(w http.ResponseWriter, r *http.Request) {
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
	stages, err := h.stages.InitializeStagesAs(r.Context(), a, driveID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, stages)
}

func (h *StageHandler) List(w http.ResponseWriter, r *http.Request) {
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
	collegeID, err := optionalUUIDQuery(r, "college_id")
	if err != nil {
		response.Error(w, err)
		return
	}
	stages, err := h.stages.GetStages(r.Context(), a, driveID, collegeID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, stages)
}

func (h *StageHandler) ActivateNext(w http.ResponseWriter, r *http.Request) {
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
	stage, err := h.stages.ActivateNextStage(r.Context(), a, driveID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, stage)
}

func (h *StageHandler) Complete(w http.ResponseWriter, r *http.Request) {
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
	result, err := h.stages.CompleteCurrentStage(r.Context(), a, driveID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

type progressRequest struct {
	CollegeID      string   `json:"college_id" validate:"required,uuid"`
	ApplicationIDs []string `json:"application_ids" validate:"required,max=1000"`
	TargetStage    string   `json:"target_stage" validate:"required"`
}

type batchCountResponse struct {
	Updated int `json:"updated"`
}

func (h *StageHandler) Progress(w http.ResponseWriter, r *http.Request) {
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
	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	target, err := drive.ParseStageName(req.TargetStage)
	if err != nil {
		response.Error(w, err)
		return
	}
	ids, err := parseUUIDs("application_ids", req.ApplicationIDs)
	if err != nil {
		response.Error(w, err)
		return
	}
	collegeID, err := parseUUIDField("college_id", req.CollegeID)
	if err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.stages.ProgressApplicationsToStage(r.Context(), a, driveID, collegeID, ids, target)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, batchCountResponse{Updated: updated})
}

type rejectApplicationsRequest struct {
	ApplicationIDs []string `json:"application_ids" validate:"required,max=1000"`
}

func (h *StageHandler) Reject(w http.ResponseWriter, r *http.Request) {
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
	var req rejectApplicationsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	ids, err := parseUUIDs("application_ids", req.ApplicationIDs)
	if err != nil {
		response.Error(w, err)
		return
	}
	rejected, err := h.stages.RejectApplications(r.Context(), a, driveID, ids)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, batchCountResponse{Updated: rejected})
}
