package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rental-ops/internal/domain"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/applications", h.CreateApplication)
		r.Get("/screenings/pending", h.PendingScreenings)

		r.Route("/documents/{documentId}", func(r chi.Router) {
			r.Get("/content", func(w http.ResponseWriter, r *http.Request) {
				h.DownloadDocument(w, r, chi.URLParam(r, "documentId"))
			})
			r.Post("/verification", func(w http.ResponseWriter, r *http.Request) {
				h.SetDocumentVerification(w, r, chi.URLParam(r, "documentId"))
			})
		})

		r.Route("/applications/{applicationId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetApplication(w, r, chi.URLParam(r, "applicationId"))
			})
			r.Post("/applicants", func(w http.ResponseWriter, r *http.Request) {
				h.AddApplicant(w, r, chi.URLParam(r, "applicationId"))
			})
			r.Post("/documents", func(w http.ResponseWriter, r *http.Request) {
				h.UploadDocument(w, r, chi.URLParam(r, "applicationId"))
			})
			r.Get("/checklist", func(w http.ResponseWriter, r *http.Request) {
				h.GetChecklist(w, r, chi.URLParam(r, "applicationId"))
			})
			r.Put("/checklist/{itemId}", func(w http.ResponseWriter, r *http.Request) {
				h.ToggleChecklistItem(w, r, chi.URLParam(r, "applicationId"), chi.URLParam(r, "itemId"))
			})
			r.Get("/transitions/{to}", func(w http.ResponseWriter, r *http.Request) {
				h.PreviewTransition(w, r, chi.URLParam(r, "applicationId"), domain.Stage(chi.URLParam(r, "to")))
			})
			r.Post("/transitions", func(w http.ResponseWriter, r *http.Request) {
				h.CommitTransition(w, r, chi.URLParam(r, "applicationId"))
			})
			r.Post("/screening", func(w http.ResponseWriter, r *http.Request) {
				h.StartScreening(w, r, chi.URLParam(r, "applicationId"))
			})
			r.Post("/screening/review", func(w http.ResponseWriter, r *http.Request) {
				h.SubmitScreeningReview(w, r, chi.URLParam(r, "applicationId"))
			})
		})
	})

	return r
}
