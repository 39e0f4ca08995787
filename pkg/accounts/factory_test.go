package accounts

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAddress(t *testing.T, s string) Address {
	t.Helper()
	a, err := ParseAddress(s)
	require.NoError(t, err)
	return a
}

func mustHash(t *testing.T, s string) Hash {
	t.Helper()
	h, err := ParseHash(s)
	require.NoError(t, err)
	return h
}

func TestGetAddressCreate2Vectors(t *testing.T) {
	initCode := Keccak256([]byte{0x00})
	tests := []struct {
		deployer string
		salt     string
		want     string
	}{
		{
			deployer: "0x0000000000000000000000000000000000000000",
			salt:     "0x0000000000000000000000000000000000000000000000000000000000000000",
			want:     "0x4D1A2e2bB4F88F0250f26Ffff098B0b30B26BF38",
		},
		{
			deployer: "0xdeadbeef00000000000000000000000000000000",
			salt:     "0x0000000000000000000000000000000000000000000000000000000000000000",
			want:     "0xB928f69Bb1D91Cd65274e3c79d8986362984fDA3",
		},
		{
			deployer: "0xdeadbeef00000000000000000000000000000000",
			salt:     "0x000000000000000000000000feed000000000000000000000000000000000000",
			want:     "0xD04116cDd17beBE565EB2422F2497E06cC1C9833",
		},
	}
	for _, tt := range tests {
		f := NewFactory(NewMemoryStore(), mustAddress(t, tt.deployer), initCode)
		assert.Equal(t, tt.want, f.GetAddress(mustHash(t, tt.salt)).Hex())
	}
}

func TestGetAddressIsPure(t *testing.T) {
	store := NewMemoryStore()
	f := NewFactory(store, mustAddress(t, "0xdeadbeef00000000000000000000000000000000"), Keccak256([]byte("account")))
	salt := NameSalt("Max")

	before := f.GetAddress(salt)
	_, err := f.Lookup(context.Background(), salt)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, before, f.GetAddress(salt))
	assert.NotEqual(t, before, f.GetAddress(NameSalt("Maxyz")))
}

func TestCreateAccountOwnership(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(NewMemoryStore(), mustAddress(t, "0xdeadbeef00000000000000000000000000000000"), Keccak256([]byte("account")))
	ownerA := mustAddress(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	ownerB := mustAddress(t, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	salt := NameSalt("Max")

	addr, err := f.CreateAccount(ctx, ownerA, salt)
	require.NoError(t, err)
	assert.Equal(t, f.GetAddress(salt), addr)

	// same owner again is a no-op
	rec, created, err := f.Register(ctx, ownerA, salt)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, addr, rec.Address)
	assert.Equal(t, ownerA, rec.Owner)

	// another owner cannot take the name
	_, err = f.CreateAccount(ctx, ownerB, salt)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	rec, err = f.Lookup(ctx, salt)
	require.NoError(t, err)
	assert.Equal(t, ownerA, rec.Owner)
	assert.Equal(t, addr, f.GetAddress(salt))
}

func TestCreateAccountRace(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(NewMemoryStore(), Address{}, Keccak256([]byte("account")))
	salt := NameSalt("contested")

	owners := make([]Address, 16)
	for i := range owners {
		owners[i][19] = byte(i + 1)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for _, owner := range owners {
		wg.Add(1)
		go func(owner Address) {
			defer wg.Done()
			_, created, err := f.Register(ctx, owner, salt)
			if err == nil && created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(owner)
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}
