package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"campusdrive/internal/http/handlers"
	httpmw "campusdrive/internal/http/middleware"
	"campusdrive/internal/metrics"
)

type RouterDependencies struct {
	StageHandler       *handlers.StageHandler
	SelectionHandler   *handlers.SelectionHandler
	ApplicationHandler *handlers.ApplicationHandler
	InvitationHandler  *handlers.InvitationHandler
	SystemHandler      *handlers.SystemHandler
	AuthMiddleware     *httpmw.AuthMiddleware
	Limiter            httpmw.Limiter
	Metrics            *metrics.Collector
	Logger             logrus.FieldLogger
	RequestTimeout     time.Duration
}

const (
	maxBodyBytes      = 1 << 20
	perClientPerMin   = 600
	rateLimitInterval = time.Minute
)

func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpmw.RequestID,
		httpmw.Logging(deps.Logger),
		httpmw.BodyLimit(maxBodyBytes),
		httpmw.Recover(deps.Logger),
		httpmw.Metrics(deps.Metrics),
		httpmw.Timeout(deps.RequestTimeout),
	)

	r.Get("/health", deps.SystemHandler.Health)
	r.Get("/metrics", deps.SystemHandler.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMiddleware.Authenticate)
		r.Use(httpmw.RateLimit(deps.Limiter, httpmw.ClientIP, perClientPerMin, rateLimitInterval))

		r.Route("/drives/{driveID}", func(r chi.Router) {
			r.Get("/stages", deps.StageHandler.List)
			r.Post("/stages/initialize", deps.StageHandler.Initialize)
			r.Post("/stages/activate-next", deps.StageHandler.ActivateNext)
			r.Post("/stages/complete", deps.StageHandler.Complete)

			r.Get("/applications", deps.ApplicationHandler.ListByStage)
			r.Post("/applications/progress", deps.StageHandler.Progress)
			r.Post("/applications/reject", deps.StageHandler.Reject)
			r.Get("/stats", deps.ApplicationHandler.Stats)

			r.Get("/colleges", deps.InvitationHandler.List)
			r.Post("/colleges", deps.InvitationHandler.Invite)
			r.Route("/colleges/{collegeID}", func(r chi.Router) {
				r.Post("/respond", deps.InvitationHandler.Respond)
				r.Post("/shortlist", deps.SelectionHandler.Shortlist)
				r.Post("/interview", deps.SelectionHandler.Interview)
				r.Post("/finalize", deps.SelectionHandler.Finalize)
				r.Post("/reject", deps.SelectionHandler.Reject)
				r.Post("/close", deps.SelectionHandler.Close)
				r.Post("/validate-emails", deps.SelectionHandler.ValidateEmails)
			})
		})

		r.Get("/applications/{applicationID}", deps.ApplicationHandler.Get)
		r.Patch("/applications/{applicationID}/status", deps.ApplicationHandler.UpdateStatus)
	})
	return r
}
