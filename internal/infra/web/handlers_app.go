package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type meResponse struct {
	User    *model.User `json:"user"`
	IsAdmin bool        `json:"is_admin"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	isAdmin, err := s.deps.Identity.IsAdmin(r.Context(), user.TelegramID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: user, IsAdmin: isAdmin})
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleSession trades verified initData for a bearer token. A session cannot
// renew itself.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if credentialFrom(r.Context()) != credInitData {
		s.writeError(w, r, errSessionNeedsInitData)
		return
	}
	token, exp, err := s.deps.Identity.MintSession(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, ExpiresAt: exp})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Catalog.ListActiveProducts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !p.IsActive {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleMySubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.deps.Subscriptions.ListActive(r.Context(), userFrom(r.Context()).TelegramID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleMyDemos(w http.ResponseWriter, r *http.Request) {
	demos, err := s.deps.Demos.ListActive(r.Context(), userFrom(r.Context()).TelegramID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, demos)
}

type productRef struct {
	ProductID string `json:"product_id"`
}

func (s *Server) handleGrantDemo(w http.ResponseWriter, r *http.Request) {
	var req productRef
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	demo, err := s.deps.Demos.Grant(r.Context(), userFrom(r.Context()).TelegramID, req.ProductID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, demo)
}

type applyPromoRequest struct {
	Code string `json:"code"`
}

type applyPromoResponse struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
	Remaining       int    `json:"remaining"`
}

// handleApplyPromo redeems one use immediately. Checkout redeems on its own
// when given promo_code, so clients use one path or the other.
func (s *Server) handleApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req applyPromoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	promo, err := s.deps.Promos.ApplyCode(r.Context(), req.Code, userFrom(r.Context()).TelegramID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applyPromoResponse{
		Code:            promo.Code,
		DiscountPercent: promo.DiscountPercent,
		Remaining:       promo.Remaining(),
	})
}

type checkoutRequest struct {
	ProductID string `json:"product_id"`
	PromoCode string `json:"promo_code,omitempty"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.deps.Payments.Checkout(r.Context(), userFrom(r.Context()).TelegramID, req.ProductID, req.PromoCode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Payments.Get(r.Context(), chi.URLParam(r, "id"), userFrom(r.Context()).TelegramID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
