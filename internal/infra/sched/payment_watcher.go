package sched

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/usecase"
)

const (
	watchTransfersLimit = 50
	watchPendingLimit   = 500
)

// PaymentWatcher matches incoming wallet transfers to pending payments by memo.
// A transfer confirms its payment when it carries at least the expected amount.
type PaymentWatcher struct {
	chain    adapter.ChainClient
	payments usecase.PaymentUseCase
	currency string
	log      zerolog.Logger
}

func NewPaymentWatcher(chain adapter.ChainClient, payments usecase.PaymentUseCase, currency string, logger *zerolog.Logger) *PaymentWatcher {
	return &PaymentWatcher{
		chain:    chain,
		payments: payments,
		currency: currency,
		log:      logger.With().Str("component", "payment_watcher").Logger(),
	}
}

// Run confirms matched payments first and only then expires stale ones, so a
// transfer that lands just before the deadline still counts.
func (w *PaymentWatcher) Run(ctx context.Context) error {
	if err := w.match(ctx); err != nil {
		w.log.Warn().Err(err).Msg("transfer matching failed")
	}
	_, err := w.payments.ExpireStale(ctx)
	return err
}

func (w *PaymentWatcher) match(ctx context.Context) error {
	pending, err := w.payments.ListPending(ctx, watchPendingLimit)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	byMemo := make(map[string]*model.Payment, len(pending))
	for _, p := range pending {
		if strings.EqualFold(p.Currency, w.currency) {
			byMemo[normalizeMemo(p.Memo)] = p
		}
	}

	transfers, err := w.chain.IncomingTransfers(ctx, watchTransfersLimit)
	if err != nil {
		return err
	}
	for _, tr := range transfers {
		p, ok := byMemo[normalizeMemo(tr.Memo)]
		if !ok {
			continue
		}
		if tr.Amount.LessThan(p.Amount) {
			w.log.Warn().Str("payment_id", p.ID).Str("paid", tr.Amount.String()).Str("expected", p.Amount.String()).Msg("underpaid transfer ignored")
			continue
		}
		_, _, err := w.payments.Confirm(ctx, p.Memo, tr.Hash)
		switch {
		case err == nil:
			w.log.Info().Str("payment_id", p.ID).Str("tx_hash", tr.Hash).Msg("payment matched on chain")
		case errors.Is(err, domain.ErrInvalidTransition):
			w.log.Warn().Str("payment_id", p.ID).Str("tx_hash", tr.Hash).Msg("transfer for a closed payment")
		default:
			w.log.Error().Err(err).Str("payment_id", p.ID).Msg("confirm failed")
		}
		delete(byMemo, normalizeMemo(p.Memo))
	}
	return nil
}

// normalizeMemo matches memos the way checkout issues them: trimmed and upper case.
func normalizeMemo(m string) string {
	return strings.ToUpper(strings.TrimSpace(m))
}
