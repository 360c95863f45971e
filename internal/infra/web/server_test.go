//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/config"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/payment"
)

const ipnSecret = "ipn-secret"

type testEnv struct {
	srv      *Server
	catalog  *fakeCatalog
	payments *fakePayments
	limiter  *fakeLimiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	catalog := &fakeCatalog{products: map[string]*model.Product{
		"p-active": {ID: "p-active", ChannelID: -100, Name: "Pro", Price: decimal.NewFromInt(10), Currency: "TON", PeriodDays: 30, IsActive: true, AllowDemo: true, DemoDays: 3},
		"p-hidden": {ID: "p-hidden", ChannelID: -100, Name: "Old", Price: decimal.NewFromInt(5), Currency: "TON", PeriodDays: 30},
	}}
	env := &testEnv{
		catalog:  catalog,
		payments: &fakePayments{},
		limiter:  &fakeLimiter{allow: true},
	}
	env.srv = NewServer(
		config.HTTPConfig{Port: 0, AllowedOrigins: []string{"https://app.example"}},
		config.RateLimitConfig{PerMinute: 10},
		Deps{
			Identity:      &fakeIdentity{admins: map[model.TelegramID]bool{1: true}},
			Catalog:       catalog,
			Payments:      env.payments,
			Subscriptions: &fakeSubscriptions{},
			Demos:         &fakeDemos{granted: map[string]bool{}},
			Promos:        &fakePromos{},
			IPN:           payment.NewNOWPaymentsIPN(ipnSecret),
			RateLimiter:   env.limiter,
		},
		newTestLogger(),
	)
	return env
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func asUser(id int) map[string]string {
	return map[string]string{initDataHeader: fmt.Sprintf("ok:%d", id)}
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{"no credentials", "/api/me", nil, http.StatusUnauthorized},
		{"forged initData", "/api/me", map[string]string{initDataHeader: "forged"}, http.StatusUnauthorized},
		{"malformed identity", "/api/me", map[string]string{initDataHeader: "ok:abc"}, http.StatusBadRequest},
		{"initData header", "/api/me", asUser(42), http.StatusOK},
		{"initData query", "/api/me?tgWebAppData=ok:42", nil, http.StatusOK},
		{"bearer session", "/api/me", map[string]string{"Authorization": "Bearer sess:42"}, http.StatusOK},
		{"health is public", "/health", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			w := env.do(http.MethodGet, tt.path, "", tt.headers)

			// Assert
			if w.Code != tt.want {
				t.Fatalf("want %d, got %d, body=%s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/me", "", asUser(1))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var got struct {
		User    model.User `json:"user"`
		IsAdmin bool       `json:"is_admin"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.User.TelegramID != 1 || !got.IsAdmin {
		t.Errorf("unexpected body: %+v", got)
	}
	if w.Header().Get(traceHeader) == "" {
		t.Error("expected a trace id header")
	}
}

func TestSessionMint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("from initData", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/session", "", asUser(42))
		if w.Code != http.StatusOK {
			t.Fatalf("want 200, got %d, body=%s", w.Code, w.Body.String())
		}
		var got sessionResponse
		_ = json.Unmarshal(w.Body.Bytes(), &got)
		if got.Token != "sess:42" {
			t.Errorf("unexpected token %q", got.Token)
		}
	})

	t.Run("a session cannot mint another session", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/session", "", map[string]string{"Authorization": "Bearer sess:42"})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d, body=%s", w.Code, w.Body.String())
		}
	})
}

func TestAdminGate(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodGet, "/api/admin/channels", "", asUser(42)); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin: want 403, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/admin/channels", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: want 401, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/admin/channels", "", asUser(1)); w.Code != http.StatusOK {
		t.Fatalf("admin: want 200, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestProducts(t *testing.T) {
	env := newTestEnv(t)

	t.Run("list shows only active products", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/products", "", asUser(42))
		var got []model.Product
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v, body=%s", err, w.Body.String())
		}
		if len(got) != 1 || got[0].ID != "p-active" {
			t.Errorf("unexpected products: %+v", got)
		}
	})

	t.Run("inactive product is not found", func(t *testing.T) {
		if w := env.do(http.MethodGet, "/api/products/p-hidden", "", asUser(42)); w.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", w.Code)
		}
	})

	t.Run("partial update keeps untouched fields", func(t *testing.T) {
		// Arrange
		body := `{"price":"12.5","is_active":true}`

		// Act
		w := env.do(http.MethodPut, "/api/admin/products/p-hidden", body, asUser(1))

		// Assert
		if w.Code != http.StatusOK {
			t.Fatalf("want 200, got %d, body=%s", w.Code, w.Body.String())
		}
		u := env.catalog.updated
		if u == nil || u.Name != "Old" || !u.Price.Equal(decimal.RequireFromString("12.5")) || !u.IsActive {
			t.Errorf("unexpected update: %+v", u)
		}
	})

	t.Run("invalid update is rejected", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/admin/products/p-active", `{"period_days":0}`, asUser(1))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d, body=%s", w.Code, w.Body.String())
		}
	})
}

func TestDemoGrant(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodPost, "/api/demo", `{"product_id":"p-active"}`, asUser(42)); w.Code != http.StatusCreated {
		t.Fatalf("first grant: want 201, got %d, body=%s", w.Code, w.Body.String())
	}
	if w := env.do(http.MethodPost, "/api/demo", `{"product_id":"p-active"}`, asUser(42)); w.Code != http.StatusConflict {
		t.Fatalf("second grant: want 409, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/demo", `{"product":"p-active"}`, asUser(42)); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: want 400, got %d", w.Code)
	}
}

func TestPromoApply(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/promo/apply", `{"code":" sale "}`, asUser(42))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var got applyPromoResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Remaining != 3 || got.DiscountPercent != 20 {
		t.Errorf("unexpected body: %+v", got)
	}

	if w := env.do(http.MethodPost, "/api/promo/apply", `{"code":"nope"}`, asUser(42)); w.Code != http.StatusNotFound {
		t.Fatalf("unknown code: want 404, got %d", w.Code)
	}
}

func TestCheckout(t *testing.T) {
	t.Run("creates a pending payment", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/payments", `{"product_id":"p-active","promo_code":"SALE"}`, asUser(42))
		if w.Code != http.StatusCreated {
			t.Fatalf("want 201, got %d, body=%s", w.Code, w.Body.String())
		}
		var got model.Payment
		_ = json.Unmarshal(w.Body.Bytes(), &got)
		if got.Memo == "" || got.Status != model.PaymentStatusPending || env.payments.lastPromo != "SALE" {
			t.Errorf("unexpected payment: %+v", got)
		}
	})

	t.Run("exhausted promo is a conflict", func(t *testing.T) {
		env := newTestEnv(t)
		env.payments.checkout = domain.ErrPromoExhausted
		if w := env.do(http.MethodPost, "/api/payments", `{"product_id":"p-active","promo_code":"SALE"}`, asUser(42)); w.Code != http.StatusConflict {
			t.Fatalf("want 409, got %d", w.Code)
		}
	})

	t.Run("storage failure hides details", func(t *testing.T) {
		env := newTestEnv(t)
		env.payments.checkout = fmt.Errorf("%w: pq: connection reset", domain.ErrOperationFailed)
		w := env.do(http.MethodPost, "/api/payments", `{"product_id":"p-active"}`, asUser(42))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", w.Code)
		}
		if strings.Contains(w.Body.String(), "connection reset") {
			t.Errorf("internal detail leaked: %s", w.Body.String())
		}
	})

	t.Run("foreign payment is not found", func(t *testing.T) {
		env := newTestEnv(t)
		if w := env.do(http.MethodGet, "/api/payments/pay-1", "", asUser(7)); w.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", w.Code)
		}
		if w := env.do(http.MethodGet, "/api/payments/pay-1", "", asUser(42)); w.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", w.Code)
		}
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("denied request is 429", func(t *testing.T) {
		env := newTestEnv(t)
		env.limiter.allow = false
		if w := env.do(http.MethodPost, "/api/payments", `{"product_id":"p-active"}`, asUser(42)); w.Code != http.StatusTooManyRequests {
			t.Fatalf("want 429, got %d", w.Code)
		}
		if len(env.limiter.keys) != 1 || !strings.Contains(env.limiter.keys[0], "42") {
			t.Errorf("unexpected limiter keys: %v", env.limiter.keys)
		}
	})

	t.Run("limiter outage fails open", func(t *testing.T) {
		env := newTestEnv(t)
		env.limiter.err = errors.New("redis down")
		if w := env.do(http.MethodPost, "/api/payments", `{"product_id":"p-active"}`, asUser(42)); w.Code != http.StatusCreated {
			t.Fatalf("want 201, got %d", w.Code)
		}
	})

	t.Run("reads are not limited", func(t *testing.T) {
		env := newTestEnv(t)
		env.limiter.allow = false
		if w := env.do(http.MethodGet, "/api/products", "", asUser(42)); w.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", w.Code)
		}
	})
}

func signedIPN(t *testing.T, body string) map[string]string {
	t.Helper()
	sig, err := payment.NewNOWPaymentsIPN(ipnSecret).Sign([]byte(body))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return map[string]string{payment.NOWPaymentsSignatureHeader: sig}
}

func TestNOWPaymentsWebhook(t *testing.T) {
	const path = "/api/webhooks/nowpayments"

	t.Run("settled status confirms the payment", func(t *testing.T) {
		env := newTestEnv(t)
		body := `{"payment_id":5077125051,"payment_status":"finished","order_id":"ABCD2345EF","pay_amount":10,"pay_currency":"ton"}`
		w := env.do(http.MethodPost, path, body, signedIPN(t, body))
		if w.Code != http.StatusOK {
			t.Fatalf("want 200, got %d, body=%s", w.Code, w.Body.String())
		}
		if len(env.payments.confirmed) != 1 || env.payments.confirmed[0] != "ABCD2345EF|nowpayments:5077125051" {
			t.Errorf("unexpected confirmations: %v", env.payments.confirmed)
		}
	})

	t.Run("terminal failure fails the payment", func(t *testing.T) {
		env := newTestEnv(t)
		body := `{"payment_id":1,"payment_status":"expired","order_id":"ABCD2345EF"}`
		if w := env.do(http.MethodPost, path, body, signedIPN(t, body)); w.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", w.Code)
		}
		if len(env.payments.failed) != 1 {
			t.Errorf("unexpected fails: %v", env.payments.failed)
		}
	})

	t.Run("intermediate status is ignored", func(t *testing.T) {
		env := newTestEnv(t)
		body := `{"payment_id":1,"payment_status":"confirming","order_id":"ABCD2345EF"}`
		if w := env.do(http.MethodPost, path, body, signedIPN(t, body)); w.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", w.Code)
		}
		if len(env.payments.confirmed)+len(env.payments.failed) != 0 {
			t.Error("intermediate status must not touch the payment")
		}
	})

	t.Run("late callback for a settled payment is acknowledged", func(t *testing.T) {
		env := newTestEnv(t)
		env.payments.failErr = domain.ErrInvalidTransition
		body := `{"payment_id":1,"payment_status":"failed","order_id":"ABCD2345EF"}`
		w := env.do(http.MethodPost, path, body, signedIPN(t, body))
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ignored") {
			t.Fatalf("want 200 ignored, got %d, body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		body := `{"payment_id":1,"payment_status":"finished","order_id":"ABCD2345EF"}`
		w := env.do(http.MethodPost, path, body, map[string]string{payment.NOWPaymentsSignatureHeader: "deadbeef"})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", w.Code)
		}
		if len(env.payments.confirmed) != 0 {
			t.Error("unsigned callback must not confirm")
		}
	})

	t.Run("disabled without a secret", func(t *testing.T) {
		env := newTestEnv(t)
		env.srv.deps.IPN = payment.NewNOWPaymentsIPN("")
		body := `{"payment_id":1,"payment_status":"finished","order_id":"ABCD2345EF"}`
		if w := env.do(http.MethodPost, path, body, signedIPN(t, body)); w.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", w.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.srv.deps.Ready = func(context.Context) error { return errors.New("db down") }
	if w := env.do(http.MethodGet, "/health", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", w.Code)
	}
}

func TestMiddlewareStack(t *testing.T) {
	t.Run("should recover a panicking handler with 500", func(t *testing.T) {
		// Arrange
		env := newTestEnv(t)
		env.srv.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

		// Act
		w := env.do(http.MethodGet, "/boom", "", nil)

		// Assert
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", w.Code)
		}
	})

	t.Run("should echo an incoming request id", func(t *testing.T) {
		// Arrange
		env := newTestEnv(t)

		// Act
		w := env.do(http.MethodGet, "/health", "", map[string]string{"X-Request-Id": "req-abc"})

		// Assert
		if got := w.Header().Get(traceHeader); got != "req-abc" {
			t.Fatalf("want request id req-abc, got %q", got)
		}
	})

	t.Run("should answer 504 when a handler outlives the request timeout", func(t *testing.T) {
		// Arrange
		srv := NewServer(
			config.HTTPConfig{RequestTimeout: 20 * time.Millisecond},
			config.RateLimitConfig{},
			Deps{},
			newTestLogger(),
		)
		srv.router.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
				w.WriteHeader(http.StatusOK)
			}
		})
		w := httptest.NewRecorder()

		// Act
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		// Assert
		if w.Code != http.StatusGatewayTimeout {
			t.Fatalf("want 504, got %d", w.Code)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrAuthenticationFailed, http.StatusUnauthorized},
		{domain.ErrMalformedIdentity, http.StatusBadRequest},
		{domain.ErrInvalidArgument, http.StatusBadRequest},
		{domain.ErrAuthorizationDenied, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrDemoAlreadyGranted, http.StatusConflict},
		{domain.ErrDemoNotAllowed, http.StatusConflict},
		{domain.ErrMemoCollision, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidTransition), http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
