package block

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/crabpot/internal/platform/errors"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
)

type fakeRegistry struct {
	blocked      map[identity.Key]bool
	participated map[identity.Key]bool
	records      []Record
	insertErr    error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		blocked:      make(map[identity.Key]bool),
		participated: make(map[identity.Key]bool),
	}
}

func (f *fakeRegistry) IsBlocked(_ context.Context, id identity.Key) (bool, error) {
	return f.blocked[id], nil
}

func (f *fakeRegistry) HasParticipated(_ context.Context, id identity.Key) (bool, error) {
	return f.participated[id], nil
}

func (f *fakeRegistry) NextBlockSequence(context.Context) (uint64, error) {
	return uint64(len(f.records)), nil
}

func (f *fakeRegistry) InsertBlock(_ context.Context, record Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, record)
	f.blocked[record.Blocked] = true
	f.participated[record.Blocker] = true
	return nil
}

var (
	alice = identity.MustParse("0x1111111111111111111111111111111111111111")
	bob   = identity.MustParse("0x2222222222222222222222222222222222222222")
	carol = identity.MustParse("0x3333333333333333333333333333333333333333")
)

func TestAddRecordsBlock(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	now := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	record, err := Add(context.Background(), reg, alice, bob, now)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if record.Sequence != 0 {
		t.Fatalf("sequence = %d, want 0", record.Sequence)
	}
	if record.Blocker != alice || record.Blocked != bob {
		t.Fatalf("record = %+v, want alice blocking bob", record)
	}
	if !record.Timestamp.Equal(now.Truncate(time.Millisecond)) {
		t.Fatalf("timestamp = %v, want millisecond precision", record.Timestamp)
	}
	blocked, err := IsBlocked(context.Background(), reg, bob)
	if err != nil {
		t.Fatalf("is blocked: %v", err)
	}
	if !blocked {
		t.Fatal("expected bob to be blocked")
	}
}

func TestAddRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(*fakeRegistry)
		blocker identity.Key
		target  identity.Key
		want    apperrors.Code
	}{
		{name: "self block", blocker: alice, target: alice, want: apperrors.CodeInvalidTarget},
		{name: "zero target", blocker: alice, target: identity.Key{}, want: apperrors.CodeInvalidTarget},
		{
			name:    "blocker already acted",
			setup:   func(f *fakeRegistry) { f.participated[alice] = true },
			blocker: alice,
			target:  bob,
			want:    apperrors.CodeAlreadyParticipated,
		},
		{
			name:    "target already blocked",
			setup:   func(f *fakeRegistry) { f.blocked[bob] = true },
			blocker: carol,
			target:  bob,
			want:    apperrors.CodeAlreadyBlocked,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := newFakeRegistry()
			if tc.setup != nil {
				tc.setup(reg)
			}
			_, err := Add(context.Background(), reg, tc.blocker, tc.target, time.Now())
			if got := apperrors.CodeOf(err); got != tc.want {
				t.Fatalf("code = %s, want %s (err %v)", got, tc.want, err)
			}
			if len(reg.records) != 0 {
				t.Fatalf("records = %d, want none", len(reg.records))
			}
		})
	}
}

func TestAddPropagatesInsertFailure(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	reg.insertErr = errors.New("disk full")
	_, err := Add(context.Background(), reg, alice, bob, time.Now())
	if !errors.Is(err, reg.insertErr) {
		t.Fatalf("error = %v, want wrapped insert failure", err)
	}
}
