package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Router builds the HTTP surface: public reads, auth, and JWT-protected
// state transitions.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Get("/tokens", h.ListTokens)
	r.Get("/tokens/{address}/balances/{account}", h.GetTokenBalance)
	r.Get("/tokens/{address}/allowances/{owner}/{spender}", h.GetAllowance)
	r.Get("/exchange/config", h.GetExchangeConfig)
	r.Get("/exchange/balances", h.GetExchangeBalance)
	r.Get("/orderbook", h.GetOrderBook)
	r.Get("/trades", h.GetTrades)
	r.Get("/pricechart", h.GetPriceChart)
	r.Get("/networks", h.GetNetworks)

	// Protected endpoints (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)
		r.Get("/auth/me", h.Me)
		r.Post("/tokens/{address}/transfer", h.Transfer)
		r.Post("/tokens/{address}/approve", h.Approve)
		r.Post("/tokens/{address}/transfer-from", h.TransferFrom)
		r.Post("/exchange/deposits", h.Deposit)
		r.Post("/exchange/withdrawals", h.Withdraw)
		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.GetUserOrders)
		r.Delete("/orders/{id}", h.CancelOrder)
		r.Post("/orders/{id}/fill", h.FillOrder)
		r.Get("/trades/mine", h.GetUserTrades)
	})

	return r
}
