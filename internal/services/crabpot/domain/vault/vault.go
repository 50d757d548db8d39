// Package vault holds the pot balance that funds payouts.
package vault

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "github.com/louisbranch/crabpot/internal/platform/errors"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
)

// MaxBalance is the largest balance the vault can hold.
const MaxBalance uint64 = math.MaxInt64

var (
	// ErrInsufficientFunds indicates the balance cannot cover a payout.
	ErrInsufficientFunds = apperrors.New(apperrors.CodeInsufficientFunds, "vault balance is insufficient")
	// ErrOverflow indicates a credit would exceed MaxBalance.
	ErrOverflow = apperrors.New(apperrors.CodeVaultOverflow, "vault balance would overflow")
)

// TransferKind classifies a vault movement.
type TransferKind string

const (
	TransferFund   TransferKind = "FUND"
	TransferPayout TransferKind = "PAYOUT"
	TransferSeed   TransferKind = "SEED"
)

// Transfer is one movement of value in or out of the vault.
type Transfer struct {
	// Sequence is assigned by storage on write.
	Sequence uint64
	Kind     TransferKind
	Identity identity.Key
	Amount   uint64
	// PlaySequence links a payout to the play that won it.
	PlaySequence uint64
	Timestamp    time.Time
}

// Account is the transactional vault view.
type Account interface {
	VaultBalance(ctx context.Context) (uint64, error)
	// DebitVault must fail with ErrInsufficientFunds when the balance is
	// below the amount, leaving the balance unchanged.
	DebitVault(ctx context.Context, transfer Transfer) error
	CreditVault(ctx context.Context, transfer Transfer) error
	HasTransfers(ctx context.Context) (bool, error)
}

// Balance returns the current vault balance.
func Balance(ctx context.Context, acct Account) (uint64, error) {
	balance, err := acct.VaultBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("read vault balance: %w", err)
	}
	return balance, nil
}

// TryPay moves amount to the winner of play seq. On ErrInsufficientFunds the
// caller must abandon the whole play.
func TryPay(ctx context.Context, acct Account, to identity.Key, amount, seq uint64, now time.Time) (Transfer, error) {
	if amount == 0 {
		return Transfer{}, apperrors.New(apperrors.CodeInvalidAmount, "payout amount must be positive")
	}
	balance, err := Balance(ctx, acct)
	if err != nil {
		return Transfer{}, err
	}
	if balance < amount {
		return Transfer{}, ErrInsufficientFunds
	}
	transfer := Transfer{
		Kind:         TransferPayout,
		Identity:     to,
		Amount:       amount,
		PlaySequence: seq,
		Timestamp:    now.UTC().Truncate(time.Millisecond),
	}
	if err := acct.DebitVault(ctx, transfer); err != nil {
		return Transfer{}, fmt.Errorf("debit vault: %w", err)
	}
	return transfer, nil
}

// Fund credits the vault with amount from the given identity.
func Fund(ctx context.Context, acct Account, from identity.Key, amount uint64, now time.Time) (Transfer, error) {
	return credit(ctx, acct, TransferFund, from, amount, now)
}

// Seed applies the configured initial funding once, only when the vault has
// never moved. It reports whether the seed was applied.
func Seed(ctx context.Context, acct Account, amount uint64, now time.Time) (bool, error) {
	if amount == 0 {
		return false, nil
	}
	moved, err := acct.HasTransfers(ctx)
	if err != nil {
		return false, fmt.Errorf("check vault transfers: %w", err)
	}
	if moved {
		return false, nil
	}
	if _, err := credit(ctx, acct, TransferSeed, identity.Key{}, amount, now); err != nil {
		return false, err
	}
	return true, nil
}

func credit(ctx context.Context, acct Account, kind TransferKind, from identity.Key, amount uint64, now time.Time) (Transfer, error) {
	if amount == 0 {
		return Transfer{}, apperrors.New(apperrors.CodeInvalidAmount, "fund amount must be positive")
	}
	if amount > MaxBalance {
		return Transfer{}, ErrOverflow
	}
	balance, err := Balance(ctx, acct)
	if err != nil {
		return Transfer{}, err
	}
	if balance > MaxBalance-amount {
		return Transfer{}, ErrOverflow
	}
	transfer := Transfer{
		Kind:      kind,
		Identity:  from,
		Amount:    amount,
		Timestamp: now.UTC().Truncate(time.Millisecond),
	}
	if err := acct.CreditVault(ctx, transfer); err != nil {
		return Transfer{}, fmt.Errorf("credit vault: %w", err)
	}
	return transfer, nil
}
