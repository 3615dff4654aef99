package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/Six9one/twinbite-order-sub002/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса приёма заказов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.GetMenu)
		r.Get("/zones", h.GetZones)
		r.Get("/loyalty/{phone}", h.GetLoyalty)

		r.Post("/orders/quote", h.QuoteOrder)
		r.Post("/orders", h.SubmitOrder)

		r.Route("/staff", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Get("/orders", h.GetOrders)
				r.Get("/orders/{number}", h.GetOrder)
				r.Patch("/orders/{number}/status", h.UpdateOrderStatus)

				r.Get("/menu", h.AdminGetMenu)
				r.Post("/menu", h.CreateMenuItem)
				r.Put("/menu/{id}", h.UpdateMenuItem)
				r.Delete("/menu/{id}", h.DeleteMenuItem)

				r.Post("/loyalty/{phone}/redeem", h.RedeemLoyalty)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
