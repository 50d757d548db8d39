package crabpot

import (
	crabpotv1 "github.com/louisbranch/crabpot/api/crabpot/v1"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/block"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/notify"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
)

func playToWire(record play.Record) *crabpotv1.Play {
	return &crabpotv1.Play{
		Sequence:  record.Sequence,
		Identity:  record.Identity.String(),
		Timestamp: record.Timestamp.UTC(),
		Message:   record.Message,
		Outcome:   record.Outcome.String(),
		Winner:    record.Won(),
		Payout:    record.Payout,
		Nonce:     record.Nonce,
		Proof:     record.Proof,
	}
}

func blockToWire(record block.Record) *crabpotv1.Block {
	return &crabpotv1.Block{
		Sequence:  record.Sequence,
		Blocker:   record.Blocker.String(),
		Blocked:   record.Blocked.String(),
		Timestamp: record.Timestamp.UTC(),
	}
}

func eventToWire(event notify.Event) *crabpotv1.Event {
	out := &crabpotv1.Event{Kind: string(event.Kind)}
	if event.Play != nil {
		out.Play = playToWire(*event.Play)
	}
	if event.Block != nil {
		out.Block = blockToWire(*event.Block)
	}
	return out
}
