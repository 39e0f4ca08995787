package accounts

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyRegistered is returned when a salt is already bound to a
	// different owner
	ErrAlreadyRegistered = errors.New("salt already registered to another owner")
	// ErrNotFound is returned when no account is registered for a salt
	ErrNotFound = errors.New("account not found")
)

// Record is the owner binding stored for one salt
type Record struct {
	Salt      Hash      `json:"salt"`
	Owner     Address   `json:"owner"`
	Address   Address   `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists salt → owner bindings with create-if-absent semantics
type Store interface {
	// Create stores rec unless a record for rec.Salt exists. It returns the
	// stored record and whether this call created it.
	Create(ctx context.Context, rec Record) (Record, bool, error)

	// Get returns the record for salt or ErrNotFound
	Get(ctx context.Context, salt Hash) (Record, error)

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
}
