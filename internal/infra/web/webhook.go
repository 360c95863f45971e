package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/payment"
)

type webhookResponse struct {
	Status string `json:"status"`
}

// handleNOWPayments applies a signed gateway callback to the payment whose
// memo is the callback's order_id. Callbacks that cannot change anything are
// acknowledged with 200 so the gateway stops retrying.
func (s *Server) handleNOWPayments(w http.ResponseWriter, r *http.Request) {
	if s.deps.IPN == nil {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	n, err := s.deps.IPN.Verify(body, r.Header.Get(payment.NOWPaymentsSignatureHeader))
	if errors.Is(err, payment.ErrIPNDisabled) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	l := logging.With(r.Context(), s.log)
	log := l.With().Str("memo", n.OrderID).Str("gateway_payment_id", n.PaymentID).Str("gateway_status", n.PaymentStatus).Logger()

	switch {
	case payment.IsSettled(n.PaymentStatus):
		_, _, err = s.deps.Payments.Confirm(r.Context(), n.OrderID, "nowpayments:"+n.PaymentID)
	case payment.IsTerminalFailure(n.PaymentStatus):
		_, err = s.deps.Payments.Fail(r.Context(), n.OrderID)
	default:
		log.Debug().Msg("ipn status ignored")
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}

	switch {
	case err == nil:
		log.Info().Msg("ipn applied")
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ok"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidTransition):
		log.Warn().Err(err).Msg("ipn not applicable")
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
	default:
		s.writeError(w, r, err)
	}
}
