//go:build !integration

package web

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

//
// ---------------- use case fakes ----------------
//

// fakeIdentity accepts initData "ok:<id>" and session tokens "sess:<id>".
type fakeIdentity struct {
	usecase.IdentityUseCase
	admins map[model.TelegramID]bool
}

func (f *fakeIdentity) resolve(raw, prefix string) (*model.User, error) {
	if len(raw) <= len(prefix) || raw[:len(prefix)] != prefix {
		return nil, domain.ErrAuthenticationFailed
	}
	id, err := model.ParseTelegramID(raw[len(prefix):])
	if err != nil {
		return nil, domain.ErrMalformedIdentity
	}
	return &model.User{TelegramID: id, DisplayName: "Test"}, nil
}

func (f *fakeIdentity) Resolve(_ context.Context, raw string) (*model.User, error) {
	return f.resolve(raw, "ok:")
}

func (f *fakeIdentity) ResolveSession(_ context.Context, token string) (*model.User, error) {
	return f.resolve(token, "sess:")
}

func (f *fakeIdentity) MintSession(_ context.Context, u *model.User) (string, time.Time, error) {
	return "sess:" + u.TelegramID.String(), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (f *fakeIdentity) IsAdmin(_ context.Context, id model.TelegramID) (bool, error) {
	return f.admins[id], nil
}

func (f *fakeIdentity) RequireAdmin(ctx context.Context, id model.TelegramID) error {
	if !f.admins[id] {
		return domain.ErrAuthorizationDenied
	}
	return nil
}

type fakeCatalog struct {
	usecase.CatalogUseCase
	products map[string]*model.Product
	updated  *model.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*model.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) ListActiveProducts(context.Context) ([]*model.Product, error) {
	var out []*model.Product
	for _, p := range f.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, p *model.Product) (*model.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f.updated = p
	return p, nil
}

func (f *fakeCatalog) ListChannels(context.Context) ([]*model.Channel, error) {
	return []*model.Channel{{ID: -100, Name: "News"}}, nil
}

type fakePayments struct {
	usecase.PaymentUseCase
	mu         sync.Mutex
	checkout   error
	confirmErr error
	failErr    error
	confirmed  []string
	failed     []string
	lastPromo  string
}

func (f *fakePayments) Checkout(_ context.Context, userID model.TelegramID, productID, promo string) (*model.Payment, error) {
	if f.checkout != nil {
		return nil, f.checkout
	}
	f.lastPromo = promo
	return &model.Payment{ID: "pay-1", UserID: userID, ProductID: productID, Amount: decimal.NewFromInt(10),
		Currency: "TON", Status: model.PaymentStatusPending, Memo: "ABCD2345EF"}, nil
}

func (f *fakePayments) Get(_ context.Context, id string, userID model.TelegramID) (*model.Payment, error) {
	if id != "pay-1" || userID != 42 {
		return nil, domain.ErrNotFound
	}
	return &model.Payment{ID: id, UserID: userID, Status: model.PaymentStatusPending}, nil
}

func (f *fakePayments) Confirm(_ context.Context, memo, txHash string) (*model.Payment, *model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return nil, nil, f.confirmErr
	}
	f.confirmed = append(f.confirmed, memo+"|"+txHash)
	return &model.Payment{ID: "pay-1", Memo: memo, Status: model.PaymentStatusSuccess}, &model.Subscription{ID: "sub-1"}, nil
}

func (f *fakePayments) ConfirmByID(ctx context.Context, id, txHash string) (*model.Payment, *model.Subscription, error) {
	return f.Confirm(ctx, id, txHash)
}

func (f *fakePayments) Fail(_ context.Context, memo string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.failed = append(f.failed, memo)
	return &model.Payment{ID: "pay-1", Memo: memo, Status: model.PaymentStatusFailed}, nil
}

type fakeSubscriptions struct {
	usecase.SubscriptionUseCase
}

func (f *fakeSubscriptions) ListActive(_ context.Context, userID model.TelegramID) ([]*model.Subscription, error) {
	return []*model.Subscription{{ID: "sub-1", UserID: userID, Status: model.SubscriptionStatusActive}}, nil
}

type fakeDemos struct {
	usecase.DemoUseCase
	granted map[string]bool
}

func (f *fakeDemos) Grant(_ context.Context, userID model.TelegramID, productID string) (*model.DemoAccess, error) {
	if productID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if f.granted[productID] {
		return nil, domain.ErrDemoAlreadyGranted
	}
	f.granted[productID] = true
	return &model.DemoAccess{ID: "demo-1", UserID: userID, ProductID: productID, IsActive: true}, nil
}

type fakePromos struct {
	usecase.PromoUseCase
}

func (f *fakePromos) ApplyCode(_ context.Context, code string, _ model.TelegramID) (*model.PromoCode, error) {
	if model.NormalizePromoCode(code) != "SALE" {
		return nil, domain.ErrNotFound
	}
	return &model.PromoCode{Code: "SALE", DiscountPercent: 20, MaxUses: 5, CurrentUses: 2}, nil
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

