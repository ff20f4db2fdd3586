package handlers

import (
	"context"
	"net/http"
	"time"

	"campusdrive/internal/common"
	"campusdrive/internal/http/response"
	"campusdrive/internal/metrics"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type SystemHandler struct {
	db        Pinger
	collector *metrics.Collector
}

func NewSystemHandler(db Pinger, collector *metrics.Collector) *SystemHandler {
	return &SystemHandler{db: db, collector: collector}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			response.Error(w, common.NewError(common.CodeInternal, "database unavailable", err))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *SystemHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.collector == nil {
		http.NotFound(w, r)
		return
	}
	h.collector.Handler().ServeHTTP(w, r)
}
