package response

import (
	"encoding/json"
	"net/http"

	"campusdrive/internal/common"
)

type errorBody struct {
	Code    common.Code       `json:"code"`
	Reason  string            `json:"reason,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details []string          `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes err as a JSON error envelope. Errors outside the common taxonomy become a
// generic internal error so driver messages never leak.
func Error(w http.ResponseWriter, err error) {
	appErr, ok := common.AsError(err)
	if !ok {
		appErr = common.NewError(common.CodeInternal, "internal error", err)
	}
	body := errorBody{
		Code:    appErr.Code,
		Reason:  appErr.Reason,
		Message: appErr.Message,
		Fields:  appErr.Fields,
		Details: appErr.Details,
	}
	if appErr.Code == common.CodeInternal {
		body.Message = "internal error"
	}
	JSON(w, StatusFor(appErr.Code), errorEnvelope{Error: body})
}

func StatusFor(code common.Code) int {
	switch code {
	case common.CodeNotFound:
		return http.StatusNotFound
	case common.CodeForbidden:
		return http.StatusForbidden
	case common.CodeInvalidState:
		return http.StatusConflict
	case common.CodeValidation:
		return http.StatusBadRequest
	case common.CodePartialMatch:
		return http.StatusUnprocessableEntity
	case common.CodeUnauthorized:
		return http.StatusUnauthorized
	case common.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
