package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/actor"
	"campusdrive/internal/http/middleware"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// decodeJSON reads a single JSON object into dst and runs struct validation on it.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return common.NewError(common.CodeValidation, "request body too large", err)
		case errors.Is(err, io.EOF):
			return common.NewError(common.CodeValidation, "request body is required", err)
		default:
			return common.NewError(common.CodeValidation, "invalid json body", err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return common.NewError(common.CodeValidation, "invalid request", err)
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		return common.NewValidationError("invalid request", fields)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "uuid":
		return "invalid uuid"
	case "dive":
		return "invalid element"
	case "max":
		return fe.Field() + " exceeds " + fe.Param() + " entries"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func errUnauthorized() error {
	return common.NewError(common.CodeUnauthorized, "unauthorized", nil)
}

func actorFrom(r *http.Request) (actor.Actor, error) {
	a, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return actor.Actor{}, errUnauthorized()
	}
	return a, nil
}

func uuidParam(r *http.Request, name string) (common.UUID, error) {
	id, err := common.ParseUUID(chi.URLParam(r, name))
	if err != nil {
		return "", common.NewValidationError("invalid "+name, map[string]string{name: "invalid uuid"})
	}
	return id, nil
}

// optionalUUIDQuery returns the zero UUID when the query parameter is absent.
func optionalUUIDQuery(r *http.Request, name string) (common.UUID, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return "", nil
	}
	id, err := common.ParseUUID(value)
	if err != nil {
		return "", common.NewValidationError("invalid "+name, map[string]string{name: "invalid uuid"})
	}
	return id, nil
}

func intQuery(r *http.Request, name string) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, common.NewValidationError("invalid "+name, map[string]string{name: "must be an integer"})
	}
	return n, nil
}

func previewRequested(r *http.Request) bool {
	preview, err := strconv.ParseBool(r.URL.Query().Get("preview"))
	return err == nil && preview
}

func parseUUIDField(field, value string) (common.UUID, error) {
	id, err := common.ParseUUID(value)
	if err != nil {
		return "", common.NewValidationError("invalid "+field, map[string]string{field: "invalid uuid"})
	}
	return id, nil
}

func parseUUIDs(field string, values []string) ([]common.UUID, error) {
	ids := make([]common.UUID, 0, len(values))
	for _, value := range values {
		id, err := common.ParseUUID(value)
		if err != nil {
			return nil, common.NewValidationError("invalid "+field, map[string]string{field: "invalid uuid " + value})
		}
		ids = append(ids, id)
	}
	return ids, nil
}
