package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"asset-console/internal/config"
	"asset-console/internal/handler"
	"asset-console/internal/metrics"
	"asset-console/internal/middleware"
	"asset-console/internal/model"
)

const transferIdleTimeout = 30 * time.Second

type Handlers struct {
	Session      *handler.SessionHandler
	Hierarchy    *handler.HierarchyHandler
	Asset        *handler.AssetHandler
	Signal       *handler.SignalHandler
	Transfer     *handler.TransferHandler
	Notification *handler.NotificationHandler
}

// New builds the console API. Routes behind a capability the session lacks
// are not mounted at all; the capability middleware still guards the ones
// that are.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	collector *metrics.Collector,
	sessions middleware.SessionSource,
	caps model.Capabilities,
	h Handlers,
	hub http.Handler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM)

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger, collector))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if collector != nil {
		r.Method(http.MethodGet, "/metrics", collector.Handler())
	}
	if hub != nil {
		r.Method(http.MethodGet, "/ws", hub)
	}

	guard := func(capability model.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(sessions, capability)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimitMiddleware.Handler)
		api.Use(middleware.RequireSession(sessions))

		api.Group(func(j chi.Router) {
			j.Use(middleware.Timeout(cfg.RequestTimeout))

			j.Get("/session", h.Session.Current)
			j.Get("/push/state", h.Session.PushState)

			j.Get("/hierarchy", h.Hierarchy.View)
			j.Post("/hierarchy/refresh", h.Hierarchy.Refresh)
			j.Get("/hierarchy/nodes/{id}", h.Hierarchy.Node)
			j.Post("/hierarchy/validate-move", h.Hierarchy.ValidateMove)

			j.Get("/assets/{id}/signals", h.Signal.List)

			if caps.MutateHierarchy {
				j.With(guard(model.CapMutateHierarchy)).Post("/assets", h.Asset.Add)
				j.With(guard(model.CapMutateHierarchy)).Post("/assets/{id}/children", h.Asset.AddChild)
				j.With(guard(model.CapMutateHierarchy)).Put("/assets/{id}", h.Asset.Rename)
				j.With(guard(model.CapMutateHierarchy)).Delete("/assets/{id}", h.Asset.Delete)
				j.With(guard(model.CapMutateHierarchy)).Post("/assets/{id}/move", h.Asset.Move)
			}
			if caps.RequestStats {
				j.With(guard(model.CapRequestStats)).Post("/assets/{id}/stats", h.Asset.Stats)
			}
			if caps.ManageSignals {
				j.With(guard(model.CapManageSignals)).Post("/assets/{id}/signals", h.Signal.Add)
				j.With(guard(model.CapManageSignals)).Put("/assets/{id}/signals/{signalId}", h.Signal.Update)
				j.With(guard(model.CapManageSignals)).Delete("/assets/{id}/signals/{signalId}", h.Signal.Delete)
			}
			if caps.Import {
				j.With(guard(model.CapImport)).Get("/import/logs", h.Transfer.ImportLogs)
			}
			if caps.NotificationLog {
				j.With(guard(model.CapNotificationLog)).Get("/notifications", h.Notification.List)
				j.With(guard(model.CapNotificationLog)).Put("/notifications/read", h.Notification.MarkRead)
				j.With(guard(model.CapNotificationLog)).Put("/notifications/read-all", h.Notification.MarkAllRead)
				j.With(guard(model.CapNotificationLog)).Delete("/notifications", h.Notification.Clear)
			}
		})

		api.Group(func(s chi.Router) {
			s.Use(middleware.StreamingTimeout(cfg.RequestTimeout, transferIdleTimeout))

			if caps.Download {
				s.With(guard(model.CapDownload)).Get("/export/{format}", h.Transfer.Export)
			}
			if caps.Import {
				s.With(guard(model.CapImport)).Post("/import", h.Transfer.Import)
			}
		})
	})

	return r
}
