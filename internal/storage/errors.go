package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Relationship store and user store errors. Each RequestError kind is
// surfaced to callers distinctly; ErrStoreUnavailable wraps backend faults.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateUser    = errors.New("email or username already in use")
	ErrSelfRequest      = errors.New("you can't send a friend request to yourself")
	ErrAlreadyRequested = errors.New("a friend request already exists between you and this user")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrForbidden        = errors.New("you are not authorized to accept this request")
	ErrAlreadyAccepted  = errors.New("friend request already accepted")
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAlreadyFriends is reported for proposals between friends. It
	// matches ErrAlreadyRequested under errors.Is.
	ErrAlreadyFriends error = &kindError{kind: ErrAlreadyRequested, msg: "you are already friends with this user"}
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

var domainErrors = []error{
	ErrUserNotFound,
	ErrDuplicateUser,
	ErrSelfRequest,
	ErrAlreadyRequested,
	ErrRequestNotFound,
	ErrForbidden,
	ErrAlreadyAccepted,
	ErrStoreUnavailable,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// unavailable marks a backend failure, keeping the driver error in the chain.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// translate passes domain errors through and turns everything else into
// ErrStoreUnavailable. A unique-key collision maps to conflict, since the
// only unique keys a racing writer can hit are the pending-pair and
// email/username indexes.
func translate(err error, conflict error) error {
	switch {
	case err == nil:
		return nil
	case isDomainError(err):
		return err
	case isUniqueViolation(err):
		return conflict
	default:
		return unavailable(err)
	}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
