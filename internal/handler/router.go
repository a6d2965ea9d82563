package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/xrplradar-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса xrpl-radar.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.CORS)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/apps", h.GetApps)

		r.Route("/user", func(r chi.Router) {
			r.Post("/", h.Register)
			r.Post("/login", h.Login)
			r.Get("/{userId}", h.GetUser)
			r.Patch("/{userId}", h.UpdateCard)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeFail(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeFail(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
