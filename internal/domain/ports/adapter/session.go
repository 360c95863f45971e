package adapter

import "time"

// SessionManager issues short-lived tokens for callers that already proved
// their identity with a verified launch payload.
type SessionManager interface {
	Issue(tgID int64) (token string, expiresAt time.Time, err error)
	Parse(token string) (tgID int64, err error)
}
