// Package ledger appends plays to the ordered history and reads it back.
package ledger

import (
	"context"
	"fmt"
	"slices"

	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
)

// DefaultScanSize is the page size used by All when none is given.
const DefaultScanSize = 200

// Journal is the transactional write view of the ledger.
type Journal interface {
	HasParticipated(ctx context.Context, id identity.Key) (bool, error)
	NextPlaySequence(ctx context.Context) (uint64, error)
	InsertPlay(ctx context.Context, record play.Record) error
}

// Scanner reads plays in ascending sequence order starting at from.
type Scanner interface {
	ScanPlays(ctx context.Context, from uint64, limit int) ([]play.Record, error)
}

// HasParticipated reports whether id already holds a terminal action.
func HasParticipated(ctx context.Context, j Journal, id identity.Key) (bool, error) {
	done, err := j.HasParticipated(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check participation %s: %w", id, err)
	}
	return done, nil
}

// ReserveSequence returns the sequence the next appended play will carry.
func ReserveSequence(ctx context.Context, j Journal) (uint64, error) {
	seq, err := j.NextPlaySequence(ctx)
	if err != nil {
		return 0, fmt.Errorf("reserve play sequence: %w", err)
	}
	return seq, nil
}

// Append writes record at the end of the history.
func Append(ctx context.Context, j Journal, record play.Record) error {
	if !record.Outcome.Final() {
		return fmt.Errorf("play %d has non-final outcome %s", record.Sequence, record.Outcome)
	}
	if record.Won() != (record.Payout > 0) {
		return fmt.Errorf("play %d payout %d does not match outcome %s", record.Sequence, record.Payout, record.Outcome)
	}
	next, err := ReserveSequence(ctx, j)
	if err != nil {
		return err
	}
	if record.Sequence != next {
		return fmt.Errorf("play sequence %d is out of order, want %d", record.Sequence, next)
	}
	if err := j.InsertPlay(ctx, record); err != nil {
		return fmt.Errorf("insert play %d: %w", record.Sequence, err)
	}
	return nil
}

// All returns the full history oldest first.
func All(ctx context.Context, s Scanner, pageSize int) ([]play.Record, error) {
	if pageSize <= 0 {
		pageSize = DefaultScanSize
	}
	var records []play.Record
	var from uint64
	for {
		page, err := s.ScanPlays(ctx, from, pageSize)
		if err != nil {
			return nil, fmt.Errorf("scan plays from %d: %w", from, err)
		}
		records = append(records, page...)
		if len(page) < pageSize {
			return records, nil
		}
		from = page[len(page)-1].Sequence + 1
	}
}

// Reversed returns a newest-first copy of records for display.
func Reversed(records []play.Record) []play.Record {
	out := slices.Clone(records)
	slices.Reverse(out)
	return out
}
