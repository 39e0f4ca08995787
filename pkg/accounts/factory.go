// Package accounts binds verified identities to deterministic account
// addresses. An account is identified by a salt, normally the Keccak-256 hash
// of a human-readable name; its address depends only on the salt and the
// factory parameters, never on the owner.
package accounts

import (
	"context"
	"fmt"
	"time"
)

// Factory derives account addresses CREATE2-style and records which owner
// each salt belongs to. The first owner to register a salt keeps it:
// registering again with the same owner is a no-op, with another owner it
// fails with ErrAlreadyRegistered.
type Factory struct {
	store        Store
	deployer     Address
	initCodeHash Hash
	now          func() time.Time
}

// NewFactory creates a factory deploying from deployer with the given
// account init-code hash
func NewFactory(store Store, deployer Address, initCodeHash Hash) *Factory {
	return &Factory{
		store:        store,
		deployer:     deployer,
		initCodeHash: initCodeHash,
		now:          time.Now,
	}
}

// GetAddress returns the address for salt whether or not it is registered:
// keccak256(0xff ‖ deployer ‖ salt ‖ initCodeHash)[12:]
func (f *Factory) GetAddress(salt Hash) Address {
	h := Keccak256([]byte{0xff}, f.deployer[:], salt[:], f.initCodeHash[:])
	var a Address
	copy(a[:], h[12:])
	return a
}

// Register binds salt to owner. It returns the stored record and whether
// this call created it.
func (f *Factory) Register(ctx context.Context, owner Address, salt Hash) (Record, bool, error) {
	rec := Record{
		Salt:      salt,
		Owner:     owner,
		Address:   f.GetAddress(salt),
		CreatedAt: f.now().UTC(),
	}
	stored, created, err := f.store.Create(ctx, rec)
	if err != nil {
		return Record{}, false, err
	}
	if !created && stored.Owner != owner {
		return stored, false, fmt.Errorf("%w: %s owned by %s", ErrAlreadyRegistered, salt.Hex(), stored.Owner.Hex())
	}
	return stored, created, nil
}

// CreateAccount registers salt for owner and returns the account address
func (f *Factory) CreateAccount(ctx context.Context, owner Address, salt Hash) (Address, error) {
	rec, _, err := f.Register(ctx, owner, salt)
	if err != nil {
		return Address{}, err
	}
	return rec.Address, nil
}

// Lookup returns the registration for salt or ErrNotFound
func (f *Factory) Lookup(ctx context.Context, salt Hash) (Record, error) {
	return f.store.Get(ctx, salt)
}

// Ping checks the backing store
func (f *Factory) Ping(ctx context.Context) error {
	return f.store.Ping(ctx)
}
