// Package sqlite provides a SQLite-backed crab pot storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/crabpot/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/block"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/vault"
	"github.com/louisbranch/crabpot/internal/services/crabpot/storage"
	"github.com/louisbranch/crabpot/internal/services/crabpot/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const dsnOptions = "_pragma=journal_mode(WAL)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(ON)" +
	"&_txlock=immediate"

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists crab pot state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite crab pot store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	sqlDB, err := sql.Open("sqlite", "file:"+cleanPath+"?"+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// InTx runs fn inside an immediate SQLite transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("transaction func is required")
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(ctx, &txStore{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// HasParticipated reports whether id holds a committed terminal action.
func (s *Store) HasParticipated(ctx context.Context, id identity.Key) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	return hasParticipated(ctx, s.sqlDB, id)
}

// IsBlocked reports whether id is barred.
func (s *Store) IsBlocked(ctx context.Context, id identity.Key) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	return isBlocked(ctx, s.sqlDB, id)
}

// VaultBalance returns the committed vault balance.
func (s *Store) VaultBalance(ctx context.Context) (uint64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	return vaultBalance(ctx, s.sqlDB)
}

// GetPlay returns one play by sequence.
func (s *Store) GetPlay(ctx context.Context, seq uint64) (play.Record, error) {
	if err := s.ready(ctx); err != nil {
		return play.Record{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, selectPlay+` WHERE seq = ?`, int64(seq))
	record, err := scanPlay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return play.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return play.Record{}, fmt.Errorf("get play %d: %w", seq, err)
	}
	return record, nil
}

// ListPlays returns one page of plays in the requested order.
func (s *Store) ListPlays(ctx context.Context, query storage.PlayQuery) (storage.PlayPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PlayPage{}, err
	}
	if query.PageSize <= 0 {
		return storage.PlayPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var (
		where []string
		args  []any
	)
	direction := "DESC"
	if query.Order == storage.OrderOldestFirst {
		direction = "ASC"
	}
	if query.HasCursor {
		if query.Order == storage.OrderOldestFirst {
			where = append(where, "seq > ?")
		} else {
			where = append(where, "seq < ?")
		}
		args = append(args, int64(query.Cursor))
	}
	if !query.Filter.Empty() {
		where = append(where, query.Filter.Clause)
		args = append(args, query.Filter.Params...)
	}

	stmt := selectPlay
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY seq " + direction + " LIMIT ?"
	args = append(args, query.PageSize+1)

	records, err := queryPlays(ctx, s.sqlDB, stmt, args...)
	if err != nil {
		return storage.PlayPage{}, fmt.Errorf("list plays: %w", err)
	}
	page := storage.PlayPage{Plays: records}
	if len(records) > query.PageSize {
		page.Plays = records[:query.PageSize]
		page.HasMore = true
		page.NextCursor = page.Plays[len(page.Plays)-1].Sequence
	}
	return page, nil
}

// ScanPlays returns up to limit plays with sequence at least from, oldest first.
func (s *Store) ScanPlays(ctx context.Context, from uint64, limit int) ([]play.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	records, err := queryPlays(ctx, s.sqlDB, selectPlay+` WHERE seq >= ? ORDER BY seq ASC LIMIT ?`, int64(from), limit)
	if err != nil {
		return nil, fmt.Errorf("scan plays: %w", err)
	}
	return records, nil
}

// CountPlays returns the number of committed plays.
func (s *Store) CountPlays(ctx context.Context) (uint64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM plays`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count plays: %w", err)
	}
	return uint64(count), nil
}

// ListBlocks returns up to limit blocks with sequence at least from.
func (s *Store) ListBlocks(ctx context.Context, from uint64, limit int) ([]block.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT seq, blocker, blocked, created_at FROM blocks WHERE seq >= ? ORDER BY seq ASC LIMIT ?`,
		int64(from), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var records []block.Record
	for rows.Next() {
		var (
			seq, createdAt   int64
			blocker, blocked string
		)
		if err := rows.Scan(&seq, &blocker, &blocked, &createdAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		record := block.Record{Sequence: uint64(seq), Timestamp: fromMillis(createdAt)}
		if record.Blocker, err = identity.Parse(blocker); err != nil {
			return nil, fmt.Errorf("block %d blocker: %w", seq, err)
		}
		if record.Blocked, err = identity.Parse(blocked); err != nil {
			return nil, fmt.Errorf("block %d target: %w", seq, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return records, nil
}

// ListTransfers returns up to limit vault transfers with sequence at least from.
func (s *Store) ListTransfers(ctx context.Context, from uint64, limit int) ([]vault.Transfer, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT seq, kind, identity, amount, play_seq, created_at
		 FROM vault_transfers WHERE seq >= ? ORDER BY seq ASC LIMIT ?`,
		int64(from), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []vault.Transfer
	for rows.Next() {
		var (
			seq, amount, createdAt int64
			kind, who              string
			playSeq                sql.NullInt64
		)
		if err := rows.Scan(&seq, &kind, &who, &amount, &playSeq, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfer := vault.Transfer{
			Sequence:     uint64(seq),
			Kind:         vault.TransferKind(kind),
			Amount:       uint64(amount),
			PlaySequence: uint64(playSeq.Int64),
			Timestamp:    fromMillis(createdAt),
		}
		if who != "" {
			if transfer.Identity, err = identity.Parse(who); err != nil {
				return nil, fmt.Errorf("transfer %d identity: %w", seq, err)
			}
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return transfers, nil
}

const selectPlay = `SELECT seq, identity, created_at, message, outcome, payout, nonce, proof FROM plays`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlay(row rowScanner) (play.Record, error) {
	var (
		seq, createdAt, payout int64
		who, message, outcome  string
		record                 play.Record
	)
	if err := row.Scan(&seq, &who, &createdAt, &message, &outcome, &payout, &record.Nonce, &record.Proof); err != nil {
		return play.Record{}, err
	}
	key, err := identity.Parse(who)
	if err != nil {
		return play.Record{}, fmt.Errorf("play %d identity: %w", seq, err)
	}
	parsed, err := play.ParseOutcome(outcome)
	if err != nil {
		return play.Record{}, fmt.Errorf("play %d: %w", seq, err)
	}
	record.Sequence = uint64(seq)
	record.Identity = key
	record.Timestamp = fromMillis(createdAt)
	record.Message = message
	record.Outcome = parsed
	record.Payout = uint64(payout)
	return record, nil
}

func queryPlays(ctx context.Context, q queryer, stmt string, args ...any) ([]play.Record, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []play.Record
	for rows.Next() {
		record, err := scanPlay(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func hasParticipated(ctx context.Context, q queryer, id identity.Key) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE identity = ?)`, id.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return exists == 1, nil
}

func isBlocked(ctx context.Context, q queryer, id identity.Key) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocks WHERE blocked = ?)`, id.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blocked: %w", err)
	}
	return exists == 1, nil
}

func vaultBalance(ctx context.Context, q queryer) (uint64, error) {
	var balance int64
	if err := q.QueryRowContext(ctx, `SELECT balance FROM vault WHERE id = 1`).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read vault: %w", err)
	}
	return uint64(balance), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
