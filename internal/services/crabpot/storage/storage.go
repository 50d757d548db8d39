// Package storage defines the persistence contracts for the crab pot ledger.
package storage

import (
	"context"

	apperrors "github.com/louisbranch/crabpot/internal/platform/errors"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/block"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/vault"
	"github.com/louisbranch/crabpot/internal/services/crabpot/storage/filter"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrAlreadyExists indicates a write collided with a unique key, such as a
// second terminal action for the same identity.
var ErrAlreadyExists = apperrors.New(apperrors.CodeAlreadyParticipated, "record already exists")

// ErrAlreadyBlocked indicates a block collided with an existing bar on the
// same target.
var ErrAlreadyBlocked = apperrors.New(apperrors.CodeAlreadyBlocked, "target already blocked")

// Order selects the direction of a play listing.
type Order int

const (
	// OrderNewestFirst lists plays by descending sequence.
	OrderNewestFirst Order = iota
	// OrderOldestFirst lists plays by ascending sequence.
	OrderOldestFirst
)

// PlayQuery selects one page of plays.
type PlayQuery struct {
	Order    Order
	PageSize int
	// Cursor is the last sequence of the previous page when HasCursor is set.
	Cursor    uint64
	HasCursor bool
	Filter    filter.Condition
}

// PlayPage is one page of plays plus the cursor for the next page.
type PlayPage struct {
	Plays      []play.Record
	NextCursor uint64
	HasMore    bool
}

// Tx is the read-write view available inside a transaction. Writes become
// visible to later reads in the same transaction and are discarded unless the
// transaction commits.
type Tx interface {
	HasParticipated(ctx context.Context, id identity.Key) (bool, error)
	IsBlocked(ctx context.Context, id identity.Key) (bool, error)

	NextPlaySequence(ctx context.Context) (uint64, error)
	// InsertPlay records the play and marks its identity as participated. It
	// returns ErrAlreadyExists when the identity already acted.
	InsertPlay(ctx context.Context, record play.Record) error

	NextBlockSequence(ctx context.Context) (uint64, error)
	// InsertBlock records the block, marks the blocker as participated, and
	// bars the target. It returns ErrAlreadyExists when the blocker already
	// acted and ErrAlreadyBlocked when the target is already barred.
	InsertBlock(ctx context.Context, record block.Record) error

	VaultBalance(ctx context.Context) (uint64, error)
	// DebitVault returns vault.ErrInsufficientFunds when the balance is short.
	DebitVault(ctx context.Context, transfer vault.Transfer) error
	// CreditVault returns vault.ErrOverflow when the balance would exceed
	// vault.MaxBalance.
	CreditVault(ctx context.Context, transfer vault.Transfer) error
	HasTransfers(ctx context.Context) (bool, error)
}

// PlayReader reads committed plays.
type PlayReader interface {
	GetPlay(ctx context.Context, seq uint64) (play.Record, error)
	ListPlays(ctx context.Context, query PlayQuery) (PlayPage, error)
	ScanPlays(ctx context.Context, from uint64, limit int) ([]play.Record, error)
	CountPlays(ctx context.Context) (uint64, error)
}

// BlockReader reads committed blocks.
type BlockReader interface {
	ListBlocks(ctx context.Context, from uint64, limit int) ([]block.Record, error)
}

// Store is the crab pot persistence boundary.
type Store interface {
	PlayReader
	BlockReader

	// InTx runs fn in a serializable transaction, committing when fn returns
	// nil and rolling back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	HasParticipated(ctx context.Context, id identity.Key) (bool, error)
	IsBlocked(ctx context.Context, id identity.Key) (bool, error)
	VaultBalance(ctx context.Context) (uint64, error)
	ListTransfers(ctx context.Context, from uint64, limit int) ([]vault.Transfer, error)

	Close() error
}
