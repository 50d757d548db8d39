package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/block"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/vault"
	"github.com/louisbranch/crabpot/internal/services/crabpot/storage"
)

type txStore struct {
	q queryer
}

func (t *txStore) HasParticipated(ctx context.Context, id identity.Key) (bool, error) {
	return hasParticipated(ctx, t.q, id)
}

func (t *txStore) IsBlocked(ctx context.Context, id identity.Key) (bool, error) {
	return isBlocked(ctx, t.q, id)
}

func (t *txStore) NextPlaySequence(ctx context.Context) (uint64, error) {
	return nextSequence(ctx, t.q, "plays")
}

func (t *txStore) NextBlockSequence(ctx context.Context) (uint64, error) {
	return nextSequence(ctx, t.q, "blocks")
}

func (t *txStore) InsertPlay(ctx context.Context, record play.Record) error {
	if !record.Outcome.Final() {
		return fmt.Errorf("play outcome %s cannot be stored", record.Outcome)
	}
	if record.Payout > vault.MaxBalance {
		return vault.ErrOverflow
	}
	createdAt := toMillis(record.Timestamp)
	if err := t.claim(ctx, record.Identity, "PLAY", createdAt); err != nil {
		return err
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO plays (seq, identity, created_at, message, outcome, payout, nonce, proof)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(record.Sequence),
		record.Identity.String(),
		createdAt,
		record.Message,
		record.Outcome.String(),
		int64(record.Payout),
		record.Nonce,
		record.Proof,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert play: %w", err)
	}
	return nil
}

func (t *txStore) InsertBlock(ctx context.Context, record block.Record) error {
	createdAt := toMillis(record.Timestamp)
	if err := t.claim(ctx, record.Blocker, "BLOCK", createdAt); err != nil {
		return err
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO blocks (seq, blocker, blocked, created_at) VALUES (?, ?, ?, ?)`,
		int64(record.Sequence),
		record.Blocker.String(),
		record.Blocked.String(),
		createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "blocks.blocked") {
				return storage.ErrAlreadyBlocked
			}
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// claim writes the participants row that makes id's action terminal.
func (t *txStore) claim(ctx context.Context, id identity.Key, action string, createdAt int64) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO participants (identity, action, created_at) VALUES (?, ?, ?)`,
		id.String(), action, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (t *txStore) VaultBalance(ctx context.Context) (uint64, error) {
	return vaultBalance(ctx, t.q)
}

func (t *txStore) DebitVault(ctx context.Context, transfer vault.Transfer) error {
	if transfer.Amount == 0 || transfer.Amount > vault.MaxBalance {
		return fmt.Errorf("debit amount %d is out of range", transfer.Amount)
	}
	amount := int64(transfer.Amount)
	result, err := t.q.ExecContext(ctx,
		`UPDATE vault SET balance = balance - ? WHERE id = 1 AND balance >= ?`,
		amount, amount,
	)
	if err != nil {
		return fmt.Errorf("debit vault: %w", err)
	}
	if err := requireRow(result, vault.ErrInsufficientFunds); err != nil {
		return err
	}
	return t.recordTransfer(ctx, transfer)
}

func (t *txStore) CreditVault(ctx context.Context, transfer vault.Transfer) error {
	if transfer.Amount == 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	if transfer.Amount > vault.MaxBalance {
		return vault.ErrOverflow
	}
	amount := int64(transfer.Amount)
	result, err := t.q.ExecContext(ctx,
		`UPDATE vault SET balance = balance + ? WHERE id = 1 AND balance <= ?`,
		amount, int64(vault.MaxBalance)-amount,
	)
	if err != nil {
		return fmt.Errorf("credit vault: %w", err)
	}
	if err := requireRow(result, vault.ErrOverflow); err != nil {
		return err
	}
	return t.recordTransfer(ctx, transfer)
}

func (t *txStore) HasTransfers(ctx context.Context) (bool, error) {
	var exists int
	if err := t.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM vault_transfers)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transfers: %w", err)
	}
	return exists == 1, nil
}

func (t *txStore) recordTransfer(ctx context.Context, transfer vault.Transfer) error {
	seq, err := nextSequence(ctx, t.q, "vault_transfers")
	if err != nil {
		return err
	}
	var (
		who     string
		playSeq any
	)
	if !transfer.Identity.IsZero() {
		who = transfer.Identity.String()
	}
	if transfer.Kind == vault.TransferPayout {
		playSeq = int64(transfer.PlaySequence)
	}
	_, err = t.q.ExecContext(ctx,
		`INSERT INTO vault_transfers (seq, kind, identity, amount, play_seq, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(seq),
		string(transfer.Kind),
		who,
		int64(transfer.Amount),
		playSeq,
		toMillis(transfer.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("record transfer: %w", err)
	}
	return nil
}

func requireRow(result interface{ RowsAffected() (int64, error) }, missing error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return missing
	}
	return nil
}

func nextSequence(ctx context.Context, q queryer, table string) (uint64, error) {
	var next int64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM `+table).Scan(&next); err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", table, err)
	}
	return uint64(next), nil
}

var _ storage.Tx = (*txStore)(nil)
