// Package engine applies the crab pot rules: every identity gets one terminal
// action, either a play that may win a payout or a block that bars someone
// else from playing.
//
// All mutating operations pass through a single ordering point so the
// eligibility check, the ledger append, the vault debit, and the notification
// happen as one step relative to every other operation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/louisbranch/crabpot/internal/platform/errors"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/block"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/ledger"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/notify"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/outcome"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/vault"
	"github.com/louisbranch/crabpot/internal/services/crabpot/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPayoutAmount is 0.01 ether expressed in gwei.
const DefaultPayoutAmount uint64 = 10_000_000

const tracerName = "github.com/louisbranch/crabpot/internal/services/crabpot/domain/engine"

// Decider draws play outcomes.
type Decider interface {
	Decide(id identity.Key, seq uint64) (outcome.Decision, error)
}

// Publisher receives committed events. Publish must not block.
type Publisher interface {
	Publish(event notify.Event)
}

// Config holds the rule parameters.
type Config struct {
	PayoutAmount    uint64
	MaxMessageRunes int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// PlayResult reports an accepted play.
type PlayResult struct {
	Outcome  play.Outcome
	Sequence uint64
	Record   play.Record
}

// FundResult reports an accepted vault credit.
type FundResult struct {
	Transfer vault.Transfer
	Balance  uint64
}

// Engine runs the rules against a store.
type Engine struct {
	mu        sync.Mutex
	store     storage.Store
	decider   Decider
	publisher Publisher
	payout    uint64
	maxRunes  int
	clock     func() time.Time
	tracer    trace.Tracer
}

// New builds an engine.
func New(store storage.Store, decider Decider, publisher Publisher, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if decider == nil {
		return nil, fmt.Errorf("decider is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.PayoutAmount == 0 {
		cfg.PayoutAmount = DefaultPayoutAmount
	}
	if cfg.PayoutAmount > vault.MaxBalance {
		return nil, fmt.Errorf("payout amount %d exceeds vault capacity", cfg.PayoutAmount)
	}
	if cfg.MaxMessageRunes <= 0 {
		cfg.MaxMessageRunes = play.DefaultMaxMessageRunes
	}
	e := &Engine{
		store:     store,
		decider:   decider,
		publisher: publisher,
		payout:    cfg.PayoutAmount,
		maxRunes:  cfg.MaxMessageRunes,
		clock:     time.Now,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// PayoutAmount returns the amount a winning play receives.
func (e *Engine) PayoutAmount() uint64 {
	return e.payout
}

// Play spends who's single chance on a play carrying message.
func (e *Engine) Play(ctx context.Context, who identity.Key, message string) (PlayResult, error) {
	ctx, span := e.tracer.Start(ctx, "crabpot.engine.Play",
		trace.WithAttributes(attribute.String("crabpot.identity", who.String())))
	defer span.End()

	if who.IsZero() {
		return PlayResult{}, e.fail(span, apperrors.New(apperrors.CodeInvalidIdentity, "identity is required"))
	}
	normalized, err := play.ValidateMessage(message, e.maxRunes)
	if err != nil {
		return PlayResult{}, e.fail(span, messageError(err, e.maxRunes))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var record play.Record
	err = e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := requireEligible(ctx, tx, who); err != nil {
			return err
		}
		seq, err := ledger.ReserveSequence(ctx, tx)
		if err != nil {
			return err
		}
		decision, err := e.decider.Decide(who, seq)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeOutcomeFailure, "decide outcome", err)
		}
		now := e.clock().UTC()
		record = play.Record{
			Sequence:  seq,
			Identity:  who,
			Timestamp: now.Truncate(time.Millisecond),
			Message:   normalized,
			Outcome:   decision.Outcome,
			Nonce:     decision.Nonce,
			Proof:     decision.Proof,
		}
		if record.Won() {
			if _, err := vault.TryPay(ctx, tx, who, e.payout, seq, now); err != nil {
				return err
			}
			record.Payout = e.payout
		}
		return ledger.Append(ctx, tx, record)
	})
	if err != nil {
		return PlayResult{}, e.fail(span, err)
	}

	e.publisher.Publish(notify.PlayEvent(record))
	span.SetAttributes(
		attribute.Int64("crabpot.sequence", int64(record.Sequence)),
		attribute.String("crabpot.outcome", record.Outcome.String()),
	)
	return PlayResult{Outcome: record.Outcome, Sequence: record.Sequence, Record: record}, nil
}

// Block spends blocker's single chance to bar target from playing.
func (e *Engine) Block(ctx context.Context, blocker, target identity.Key) (block.Record, error) {
	ctx, span := e.tracer.Start(ctx, "crabpot.engine.Block",
		trace.WithAttributes(
			attribute.String("crabpot.identity", blocker.String()),
			attribute.String("crabpot.target", target.String()),
		))
	defer span.End()

	if blocker.IsZero() {
		return block.Record{}, e.fail(span, apperrors.New(apperrors.CodeInvalidIdentity, "identity is required"))
	}
	if target.IsZero() {
		return block.Record{}, e.fail(span, apperrors.New(apperrors.CodeInvalidTarget, "block target is required"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var record block.Record
	err := e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		blocked, err := block.IsBlocked(ctx, tx, blocker)
		if err != nil {
			return err
		}
		if blocked {
			return blockedError(blocker)
		}
		record, err = block.Add(ctx, tx, blocker, target, e.clock())
		return err
	})
	if err != nil {
		return block.Record{}, e.fail(span, err)
	}

	e.publisher.Publish(notify.BlockEvent(record))
	span.SetAttributes(attribute.Int64("crabpot.sequence", int64(record.Sequence)))
	return record, nil
}

// Fund credits the vault.
func (e *Engine) Fund(ctx context.Context, from identity.Key, amount uint64) (FundResult, error) {
	ctx, span := e.tracer.Start(ctx, "crabpot.engine.Fund")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	var result FundResult
	err := e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		transfer, err := vault.Fund(ctx, tx, from, amount, e.clock())
		if err != nil {
			return err
		}
		balance, err := vault.Balance(ctx, tx)
		if err != nil {
			return err
		}
		result = FundResult{Transfer: transfer, Balance: balance}
		return nil
	})
	if err != nil {
		return FundResult{}, e.fail(span, err)
	}
	return result, nil
}

// SeedFunds applies the initial vault funding if the vault never moved.
func (e *Engine) SeedFunds(ctx context.Context, amount uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var applied bool
	err := e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		applied, err = vault.Seed(ctx, tx, amount, e.clock())
		return err
	})
	if err != nil {
		return false, classify(err)
	}
	return applied, nil
}

// Balance returns the committed vault balance.
func (e *Engine) Balance(ctx context.Context) (uint64, error) {
	balance, err := e.store.VaultBalance(ctx)
	if err != nil {
		return 0, classify(err)
	}
	return balance, nil
}

// ListPlays returns one page of the history.
func (e *Engine) ListPlays(ctx context.Context, query storage.PlayQuery) (storage.PlayPage, error) {
	page, err := e.store.ListPlays(ctx, query)
	if err != nil {
		return storage.PlayPage{}, classify(err)
	}
	return page, nil
}

// GetPlay returns one play by sequence.
func (e *Engine) GetPlay(ctx context.Context, seq uint64) (play.Record, error) {
	record, err := e.store.GetPlay(ctx, seq)
	if err != nil {
		return play.Record{}, classify(err)
	}
	return record, nil
}

// History returns every play, newest first when newestFirst is set.
func (e *Engine) History(ctx context.Context, newestFirst bool) ([]play.Record, error) {
	records, err := ledger.All(ctx, e.store, ledger.DefaultScanSize)
	if err != nil {
		return nil, classify(err)
	}
	if newestFirst {
		return ledger.Reversed(records), nil
	}
	return records, nil
}

// IsBlocked reports whether id is barred.
func (e *Engine) IsBlocked(ctx context.Context, id identity.Key) (bool, error) {
	blocked, err := e.store.IsBlocked(ctx, id)
	if err != nil {
		return false, classify(err)
	}
	return blocked, nil
}

// HasParticipated reports whether id already spent its chance.
func (e *Engine) HasParticipated(ctx context.Context, id identity.Key) (bool, error) {
	done, err := e.store.HasParticipated(ctx, id)
	if err != nil {
		return false, classify(err)
	}
	return done, nil
}

func requireEligible(ctx context.Context, tx storage.Tx, who identity.Key) error {
	blocked, err := block.IsBlocked(ctx, tx, who)
	if err != nil {
		return err
	}
	if blocked {
		return blockedError(who)
	}
	done, err := ledger.HasParticipated(ctx, tx, who)
	if err != nil {
		return err
	}
	if done {
		return apperrors.WithMetadata(apperrors.CodeAlreadyParticipated,
			"identity already has a terminal action", map[string]string{"identity": who.String()})
	}
	return nil
}

// messageError tags a rejected message with a stable reason so callers can
// tell the failures apart.
func messageError(err error, maxRunes int) error {
	metadata := map[string]string{"max_runes": strconv.Itoa(maxRunes)}
	switch {
	case errors.Is(err, play.ErrMessageEmpty):
		metadata["reason"] = "empty"
	case errors.Is(err, play.ErrMessageTooLong):
		metadata["reason"] = "too_long"
	case errors.Is(err, play.ErrMessageEncoding):
		metadata["reason"] = "encoding"
	}
	return apperrors.WrapWithMetadata(apperrors.CodeInvalidMessage, "validate message", err, metadata)
}

func blockedError(who identity.Key) error {
	return apperrors.WithMetadata(apperrors.CodeBlocked,
		"identity is blocked", map[string]string{"identity": who.String()})
}

func (e *Engine) fail(span trace.Span, err error) error {
	err = classify(err)
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, string(apperrors.CodeOf(err)))
	return err
}

// classify keeps domain errors and reports everything else as a storage
// failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Wrap(apperrors.CodeStorageFailure, "ledger storage failed", err)
}
