// Package block implements the block registry: the one-time spend that bars
// another identity from playing.
package block

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/crabpot/internal/platform/errors"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
)

// Record is one committed block. It is written once and never revised.
type Record struct {
	Sequence  uint64
	Blocker   identity.Key
	Blocked   identity.Key
	Timestamp time.Time
}

// Registry is the transactional view the registry reads and writes.
type Registry interface {
	IsBlocked(ctx context.Context, id identity.Key) (bool, error)
	HasParticipated(ctx context.Context, id identity.Key) (bool, error)
	NextBlockSequence(ctx context.Context) (uint64, error)
	InsertBlock(ctx context.Context, record Record) error
}

// IsBlocked reports whether id has been barred.
func IsBlocked(ctx context.Context, reg Registry, id identity.Key) (bool, error) {
	blocked, err := reg.IsBlocked(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check blocked %s: %w", id, err)
	}
	return blocked, nil
}

// Add spends blocker's single chance to bar target. It must run inside the
// same transaction as the eligibility checks so the insert is visible to the
// next check.
func Add(ctx context.Context, reg Registry, blocker, target identity.Key, now time.Time) (Record, error) {
	if blocker == target {
		return Record{}, apperrors.New(apperrors.CodeInvalidTarget, "identity cannot block itself")
	}
	if target.IsZero() {
		return Record{}, apperrors.New(apperrors.CodeInvalidTarget, "block target is required")
	}

	participated, err := reg.HasParticipated(ctx, blocker)
	if err != nil {
		return Record{}, fmt.Errorf("check participation %s: %w", blocker, err)
	}
	if participated {
		return Record{}, apperrors.WithMetadata(apperrors.CodeAlreadyParticipated,
			"blocker already has a terminal action", map[string]string{"identity": blocker.String()})
	}

	blocked, err := IsBlocked(ctx, reg, target)
	if err != nil {
		return Record{}, err
	}
	if blocked {
		return Record{}, apperrors.WithMetadata(apperrors.CodeAlreadyBlocked,
			"target is already blocked", map[string]string{"target": target.String()})
	}

	seq, err := reg.NextBlockSequence(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("next block sequence: %w", err)
	}
	record := Record{
		Sequence:  seq,
		Blocker:   blocker,
		Blocked:   target,
		Timestamp: now.UTC().Truncate(time.Millisecond),
	}
	if err := reg.InsertBlock(ctx, record); err != nil {
		return Record{}, fmt.Errorf("insert block: %w", err)
	}
	return record, nil
}
