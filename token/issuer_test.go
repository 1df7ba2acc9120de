package token

import (
	"context"
	"testing"
	"time"

	"concert-tickets/database"
	apperrors "concert-tickets/errors"
	"concert-tickets/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdentity(t *testing.T) model.Identity {
	t.Helper()
	id, err := NewIdentity()
	require.NoError(t, err)
	return id
}

func TestNewIdentity(t *testing.T) {
	first := newTestIdentity(t)
	second := newTestIdentity(t)

	assert.True(t, first.Valid())
	assert.True(t, second.Valid())
	assert.NotEqual(t, first, second)
}

func TestMintOne(t *testing.T) {
	authority := newTestIdentity(t)
	holder := newTestIdentity(t)
	mintedToken := newTestIdentity(t)

	tests := []struct {
		description string
		ledger      *Ledger
		req         MintRequest
		wantErr     error
	}{
		{
			description: "configured authority mints",
			ledger:      NewLedger(authority),
			req:         MintRequest{Token: newTestIdentity(t), Holder: holder, Authority: authority},
		},
		{
			description: "other authority is refused",
			ledger:      NewLedger(authority),
			req:         MintRequest{Token: newTestIdentity(t), Holder: holder, Authority: holder},
			wantErr:     ErrMintAuthority,
		},
		{
			description: "ledger without authority refuses everyone",
			ledger:      NewLedger(""),
			req:         MintRequest{Token: newTestIdentity(t), Holder: holder, Authority: ""},
			wantErr:     ErrMintAuthority,
		},
		{
			description: "second mint of one token",
			ledger:      NewLedger(authority),
			req:         MintRequest{Token: mintedToken, Holder: holder, Authority: authority},
			wantErr:     ErrAlreadyMinted,
		},
	}

	ctx := context.Background()
	store := database.NewMemory()
	require.NoError(t, store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		return NewLedger(authority).MintOne(ctx, tx, MintRequest{Token: mintedToken, Holder: holder, Authority: authority})
	}))

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			err := store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
				return test.ledger.MintOne(ctx, tx, test.req)
			})
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)

			require.NoError(t, store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
				holding, err := tx.GetHolding(ctx, test.req.Token)
				if err != nil {
					return err
				}
				assert.Equal(t, test.req.Holder, holding.Holder)
				assert.Equal(t, test.req.Authority, holding.Authority)
				assert.Equal(t, uint64(1), holding.Amount)
				assert.Equal(t, uint8(0), holding.Decimals)
				return nil
			}))
		})
	}
}

func TestMintOneRefusedWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()
	tokenID := newTestIdentity(t)

	err := store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		return NewLedger(newTestIdentity(t)).MintOne(ctx, tx, MintRequest{
			Token:     tokenID,
			Holder:    newTestIdentity(t),
			Authority: newTestIdentity(t),
		})
	})
	require.ErrorIs(t, err, ErrMintAuthority)

	err = store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		_, err := tx.GetHolding(ctx, tokenID)
		return err
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMintOneTimestampPrecision(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemory()
	authority := newTestIdentity(t)
	tokenID := newTestIdentity(t)

	ledger := NewLedger(authority)
	ledger.now = func() time.Time {
		return time.Date(2025, 1, 1, 20, 0, 0, 123456789, time.FixedZone("WIB", 7*60*60))
	}

	require.NoError(t, store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		return ledger.MintOne(ctx, tx, MintRequest{Token: tokenID, Holder: newTestIdentity(t), Authority: authority})
	}))

	require.NoError(t, store.RunInTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		holding, err := tx.GetHolding(ctx, tokenID)
		if err != nil {
			return err
		}
		want := time.Date(2025, 1, 1, 13, 0, 0, 123000000, time.UTC)
		assert.Truef(t, want.Equal(holding.MintedAt), "minted at %v", holding.MintedAt)
		assert.Equal(t, time.UTC, holding.MintedAt.Location())
		return nil
	}))
}
