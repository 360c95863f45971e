package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
	red "github.com/smitsergei/tma-subscription-sub002/internal/infra/redis"
)

const initDataHeader = "X-Telegram-Init-Data"

type credential int

const (
	credInitData credential = iota + 1
	credSession
)

type ctxKey int

const (
	userKey ctxKey = iota
	credKey
)

func userFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

func credentialFrom(ctx context.Context) credential {
	c, _ := ctx.Value(credKey).(credential)
	return c
}

// rawInitData looks in the header first, then the query string the Mini App
// launch URL carries.
func rawInitData(r *http.Request) string {
	if v := r.Header.Get(initDataHeader); v != "" {
		return v
	}
	q := r.URL.Query()
	if v := q.Get("initData"); v != "" {
		return v
	}
	return q.Get("tgWebAppData")
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate resolves the caller from initData or a session token and puts
// the user into the request context. Missing credentials are a 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			user *model.User
			kind credential
			err  error
		)
		switch raw, token := rawInitData(r), bearerToken(r); {
		case raw != "":
			user, err = s.deps.Identity.Resolve(r.Context(), raw)
			kind = credInitData
		case token != "":
			user, err = s.deps.Identity.ResolveSession(r.Context(), token)
			kind = credSession
		default:
			err = domain.ErrAuthenticationFailed
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, credKey, kind)
		ctx = logging.WithTgID(ctx, user.TelegramID.Int64())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		if user == nil {
			s.writeError(w, r, domain.ErrAuthenticationFailed)
			return
		}
		if err := s.deps.Identity.RequireAdmin(r.Context(), user.TelegramID); err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit caps mutating requests per user and route. Reads pass through and
// a limiter outage fails open.
func (s *Server) rateLimit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFrom(r.Context())
			if s.deps.RateLimiter == nil || s.limitPerMinute <= 0 || user == nil || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := s.deps.RateLimiter.Allow(r.Context(), red.UserRouteKey(user.TelegramID.Int64(), route), s.limitPerMinute, time.Minute)
			if err != nil {
				l := logging.With(r.Context(), s.log)
				l.Warn().Err(err).Msg("rate limiter unavailable")
			} else if !ok {
				metrics.IncRateLimitTriggered()
				s.writeError(w, r, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errSessionNeedsInitData = fmt.Errorf("%w: sessions are minted from initData only", domain.ErrAuthenticationFailed)
