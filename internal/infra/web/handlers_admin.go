package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
)

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.deps.Catalog.ListChannels(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

type channelRequest struct {
	ID          model.TelegramID `json:"id"`
	Name        string           `json:"name"`
	Username    string           `json:"username"`
	Description string           `json:"description"`
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.deps.Catalog.CreateChannel(r.Context(), &model.Channel{
		ID:          req.ID,
		Name:        req.Name,
		Username:    req.Username,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

// productRequest uses pointers so PUT can tell "absent" from "zero".
type productRequest struct {
	ChannelID     *model.TelegramID `json:"channel_id"`
	Name          *string           `json:"name"`
	Description   *string           `json:"description"`
	Price         *decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal  `json:"discount_price"`
	ClearDiscount bool              `json:"clear_discount"`
	Currency      *string           `json:"currency"`
	PeriodDays    *int              `json:"period_days"`
	IsTrial       *bool             `json:"is_trial"`
	IsActive      *bool             `json:"is_active"`
	AllowDemo     *bool             `json:"allow_demo"`
	DemoDays      *int              `json:"demo_days"`
}

func (req productRequest) applyTo(p *model.Product) {
	if req.ChannelID != nil {
		p.ChannelID = *req.ChannelID
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.DiscountPrice != nil {
		d := *req.DiscountPrice
		p.DiscountPrice = &d
	}
	if req.ClearDiscount {
		p.DiscountPrice = nil
	}
	if req.Currency != nil {
		p.Currency = *req.Currency
	}
	if req.PeriodDays != nil {
		p.PeriodDays = *req.PeriodDays
	}
	if req.IsTrial != nil {
		p.IsTrial = *req.IsTrial
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.AllowDemo != nil {
		p.AllowDemo = *req.AllowDemo
	}
	if req.DemoDays != nil {
		p.DemoDays = *req.DemoDays
	}
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p := &model.Product{IsActive: true}
	req.applyTo(p)
	created, err := s.deps.Catalog.CreateProduct(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	current, err := s.deps.Catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req.applyTo(current)
	updated, err := s.deps.Catalog.UpdateProduct(r.Context(), current)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type promoRequest struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
	MaxUses         int    `json:"max_uses"`
}

func (s *Server) handleCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	promo, err := s.deps.Promos.Create(r.Context(), req.Code, req.DiscountPercent, req.MaxUses)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, promo)
}

type grantRequest struct {
	UserID    model.TelegramID `json:"user_id"`
	ProductID string           `json:"product_id"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

func (s *Server) handleAdminGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.deps.Subscriptions.AdminGrant(r.Context(), req.UserID, req.ProductID, req.ExpiresAt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "subscription_granted").Str("subscription_id", sub.ID).Int64("user_id", sub.UserID.Int64()).Msg("admin action")
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Subscriptions.Revoke(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "subscription_revoked").Str("subscription_id", sub.ID).Msg("admin action")
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	tgID, err := model.ParseTelegramID(chi.URLParam(r, "tgID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	subs, err := s.deps.Subscriptions.ListByUser(r.Context(), tgID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleDeactivateDemo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Demos.Deactivate(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "demo_deactivated").Str("demo_id", id).Msg("admin action")
	w.WriteHeader(http.StatusNoContent)
}

type confirmRequest struct {
	TxHash string `json:"tx_hash"`
}

type confirmResponse struct {
	Payment      *model.Payment      `json:"payment"`
	Subscription *model.Subscription `json:"subscription"`
}

// handleConfirmPayment settles a payment by hand. The body is optional.
func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	p, sub, err := s.deps.Payments.ConfirmByID(r.Context(), chi.URLParam(r, "id"), req.TxHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "payment_confirmed").Str("payment_id", p.ID).Msg("admin action")
	writeJSON(w, http.StatusOK, confirmResponse{Payment: p, Subscription: sub})
}

func (s *Server) handleFailPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Payments.FailByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "payment_failed").Str("payment_id", p.ID).Msg("admin action")
	writeJSON(w, http.StatusOK, p)
}

type broadcastRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleCreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.deps.Broadcasts.Create(r.Context(), req.Text, userFrom(r.Context()).TelegramID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, b)
}

func (s *Server) handleGetBroadcast(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Broadcasts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) audit(r *http.Request, action string) *zerolog.Event {
	l := logging.With(r.Context(), s.log)
	actor := int64(0)
	if u := userFrom(r.Context()); u != nil {
		actor = u.TelegramID.Int64()
	}
	return l.Info().Str("action", action).Int64("admin_id", actor)
}
