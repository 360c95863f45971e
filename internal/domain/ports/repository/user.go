package repository

import (
	"context"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
)

// -----------------------------
// Users & admins
// -----------------------------

type UserRepository interface {
	// Upsert creates the user or refreshes its profile fields, returning the stored row.
	Upsert(ctx context.Context, tx Tx, u *model.User) (*model.User, error)
	FindByTelegramID(ctx context.Context, tx Tx, tgID model.TelegramID) (*model.User, error)
	// ListIDs pages through user ids in ascending order, starting after afterID.
	ListIDs(ctx context.Context, tx Tx, afterID model.TelegramID, limit int) ([]model.TelegramID, error)
	CountUsers(ctx context.Context, tx Tx) (int, error)
}

type AdminRepository interface {
	Exists(ctx context.Context, tx Tx, tgID model.TelegramID) (bool, error)
	// Add is idempotent.
	Add(ctx context.Context, tx Tx, a *model.Admin) error
	Remove(ctx context.Context, tx Tx, tgID model.TelegramID) error
	List(ctx context.Context, tx Tx) ([]*model.Admin, error)
}
