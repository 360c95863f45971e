package adapter

import "github.com/smitsergei/tma-subscription-sub002/internal/domain/model"

// InitDataVerifier checks Telegram WebApp launch payloads.
type InitDataVerifier interface {
	// Validate returns nil only for an authentic, fresh payload.
	Validate(raw string) error
	// User extracts the embedded user object from an already validated payload.
	User(raw string) (*model.WebAppUser, error)
}
