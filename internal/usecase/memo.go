package usecase

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
)

// memoAlphabet has 32 symbols without 0/O and 1/I, so byte&31 picks uniformly.
const memoAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// MemoSource produces a random memo of length n.
type MemoSource func(n int) (string, error)

// RandomMemo draws from crypto/rand; memos must not be guessable.
func RandomMemo(n int) (string, error) {
	if n <= 0 {
		return "", domain.ErrInvalidArgument
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("memo entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = memoAlphabet[b&31]
	}
	return string(buf), nil
}

// insertResult tags the outcome of one memo insert attempt.
type insertResult int

const (
	insertOK insertResult = iota
	insertRetry
	insertConflict
	insertFailed
)

func classifyInsert(err error) insertResult {
	switch {
	case err == nil:
		return insertOK
	case errors.Is(err, domain.ErrMemoCollision):
		return insertRetry
	case errors.Is(err, domain.ErrConflict):
		return insertConflict
	default:
		return insertFailed
	}
}
