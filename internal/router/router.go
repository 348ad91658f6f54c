package router

import (
	"net/http"

	"rfpmanager/internal/auth"
	"rfpmanager/internal/handlers"
	"rfpmanager/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// New собирает маршруты API.
func New(h *handlers.Handler, tokens *auth.TokenManager, corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	adminOnly := auth.Authorize(models.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Get("/rfp/test", h.StatusHandler)

		// auth
		r.With(tokens.OptionalAuthenticate).Post("/auth/register", h.RegisterHandler)
		r.Post("/auth/login", h.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(tokens.Authenticate)

			r.Get("/auth/me", h.MeHandler)

			// RFP
			r.Post("/rfp", h.CreateRFPHandler)
			r.Get("/rfp", h.GetRFPsHandler)
			r.Post("/rfp/parse", h.ParseRFPHandler)
			r.Post("/rfp/natural", h.CreateNaturalRFPHandler)
			r.Get("/rfp/{rfpId}", h.GetRFPHandler)
			r.With(adminOnly).Put("/rfp/{rfpId}/status", h.UpdateRFPStatusHandler)
			r.Post("/rfp/{rfpId}/send", h.SendRFPHandler)
			r.Get("/rfp/{rfpId}/compare", h.CompareProposalsHandler)
			r.Get("/rfp/{rfpId}/export.pdf", h.ExportRFPPDFHandler)

			// предложения
			r.Post("/rfp/{rfpId}/proposals", h.SubmitProposalHandler)
			r.Get("/rfp/{rfpId}/proposals", h.GetProposalsHandler)
			r.Get("/rfp/{rfpId}/proposals/export.xlsx", h.ExportProposalsXLSXHandler)
			r.With(adminOnly).Put("/proposals/{proposalId}/status", h.UpdateProposalStatusHandler)

			// поставщики, изменения только admin
			r.Get("/vendors", h.GetVendorsHandler)
			r.Get("/vendors/{vendorId}", h.GetVendorHandler)
			r.With(adminOnly).Post("/vendors", h.CreateVendorHandler)
			r.With(adminOnly).Put("/vendors/{vendorId}", h.UpdateVendorHandler)
			r.With(adminOnly).Delete("/vendors/{vendorId}", h.DeleteVendorHandler)

			// AI
			r.Post("/ai/parse-rfp", h.ParseRFPHandler)
			r.Post("/ai/analyze-proposal/{rfpId}", h.AnalyzeProposalHandler)
			r.Get("/ai/compare-proposals/{rfpId}", h.CompareProposalsHandler)
			r.Get("/ai/executive-summary/{rfpId}", h.ExecutiveSummaryHandler)
			r.Post("/ai/extract-document", h.ExtractDocumentHandler)

			// почта
			r.With(adminOnly).Post("/email/check", h.CheckEmailHandler)
			r.With(adminOnly).Get("/email/status", h.EmailStatusHandler)
			r.With(adminOnly).Post("/email/inbound", h.InboundEmailHandler)
		})
	})

	return r
}
