package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
)

// Compile-time check
var _ IdentityUseCase = (*identityUC)(nil)

// IdentityUseCase turns launch payloads and session tokens into persisted users
// and answers admin membership questions.
type IdentityUseCase interface {
	// Resolve verifies raw initData and upserts the embedded user.
	Resolve(ctx context.Context, rawInitData string) (*model.User, error)
	// ResolveSession loads the user behind a session token.
	ResolveSession(ctx context.Context, token string) (*model.User, error)
	// MintSession issues a session token for an already resolved user.
	MintSession(ctx context.Context, user *model.User) (string, time.Time, error)
	IsAdmin(ctx context.Context, tgID model.TelegramID) (bool, error)
	// RequireAdmin returns domain.ErrAuthorizationDenied for non-admins.
	RequireAdmin(ctx context.Context, tgID model.TelegramID) error
	// EnsureAdmins idempotently provisions admin rows.
	EnsureAdmins(ctx context.Context, ids []int64) error
	RemoveAdmin(ctx context.Context, tgID model.TelegramID) error
	ListAdmins(ctx context.Context) ([]*model.Admin, error)
}

type identityUC struct {
	verifier adapter.InitDataVerifier
	sessions adapter.SessionManager
	users    repository.UserRepository
	admins   repository.AdminRepository
	clock    Clock
	log      *zerolog.Logger
}

func NewIdentityUseCase(
	verifier adapter.InitDataVerifier,
	sessions adapter.SessionManager,
	users repository.UserRepository,
	admins repository.AdminRepository,
	clock Clock,
	logger *zerolog.Logger,
) *identityUC {
	return &identityUC{
		verifier: verifier,
		sessions: sessions,
		users:    users,
		admins:   admins,
		clock:    orSystem(clock),
		log:      logger,
	}
}

func (u *identityUC) Resolve(ctx context.Context, rawInitData string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "IdentityUC.Resolve")()

	if err := u.verifier.Validate(rawInitData); err != nil {
		if !errors.Is(err, domain.ErrAuthenticationFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
		}
		return nil, err
	}
	wu, err := u.verifier.User(rawInitData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedIdentity, err)
	}
	candidate, err := model.NewUser(wu.ID, wu.DisplayName(), wu.Username, u.clock())
	if err != nil {
		return nil, fmt.Errorf("%w: user id %d", domain.ErrMalformedIdentity, wu.ID)
	}
	candidate.LanguageCode = wu.LanguageCode

	stored, err := u.users.Upsert(ctx, repository.NoTX, candidate)
	if err != nil {
		u.log.Error().Err(err).Int64("tg_id", candidate.TelegramID.Int64()).Msg("failed to upsert user")
		return nil, err
	}
	metrics.IncUsersUpserted()
	return stored, nil
}

func (u *identityUC) ResolveSession(ctx context.Context, token string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "IdentityUC.ResolveSession")()

	if u.sessions == nil {
		return nil, domain.ErrAuthenticationFailed
	}
	tgID, err := u.sessions.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	user, err := u.users.FindByTelegramID(ctx, repository.NoTX, model.TelegramID(tgID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAuthenticationFailed
	}
	return user, err
}

func (u *identityUC) MintSession(ctx context.Context, user *model.User) (string, time.Time, error) {
	if u.sessions == nil {
		return "", time.Time{}, fmt.Errorf("%w: sessions are disabled", domain.ErrInvalidArgument)
	}
	if user.IsZero() {
		return "", time.Time{}, domain.ErrInvalidArgument
	}
	return u.sessions.Issue(user.TelegramID.Int64())
}

func (u *identityUC) IsAdmin(ctx context.Context, tgID model.TelegramID) (bool, error) {
	return u.admins.Exists(ctx, repository.NoTX, tgID)
}

func (u *identityUC) RequireAdmin(ctx context.Context, tgID model.TelegramID) error {
	ok, err := u.IsAdmin(ctx, tgID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAuthorizationDenied
	}
	return nil
}

func (u *identityUC) EnsureAdmins(ctx context.Context, ids []int64) error {
	defer logging.TraceDuration(u.log, "IdentityUC.EnsureAdmins")()
	now := u.clock()
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("%w: admin id %d", domain.ErrInvalidArgument, id)
		}
		if err := u.admins.Add(ctx, repository.NoTX, &model.Admin{TelegramID: model.TelegramID(id), CreatedAt: now}); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		u.log.Info().Int("count", len(ids)).Msg("admins ensured")
	}
	return nil
}

func (u *identityUC) RemoveAdmin(ctx context.Context, tgID model.TelegramID) error {
	return u.admins.Remove(ctx, repository.NoTX, tgID)
}

func (u *identityUC) ListAdmins(ctx context.Context) ([]*model.Admin, error) {
	return u.admins.List(ctx, repository.NoTX)
}
