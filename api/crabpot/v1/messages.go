package crabpotv1

import "time"

// Event kinds carried by WatchEvents.
const (
	EventKindPlay  = "PLAY"
	EventKindBlock = "BLOCK"
)

// Play is one recorded play.
type Play struct {
	Sequence  uint64    `json:"sequence,string"`
	Identity  string    `json:"identity"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Outcome   string    `json:"outcome"`
	Winner    bool      `json:"winner"`
	Payout    uint64    `json:"payout,string"`
	Nonce     string    `json:"nonce,omitempty"`
	Proof     string    `json:"proof,omitempty"`
}

// Block is one recorded block.
type Block struct {
	Sequence  uint64    `json:"sequence,string"`
	Blocker   string    `json:"blocker"`
	Blocked   string    `json:"blocked"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is one committed action delivered by WatchEvents.
type Event struct {
	Kind  string `json:"kind"`
	Play  *Play  `json:"play,omitempty"`
	Block *Block `json:"block,omitempty"`
}

type PlayRequest struct {
	Identity string `json:"identity"`
	Message  string `json:"message"`
}

func (r *PlayRequest) GetIdentity() string {
	if r == nil {
		return ""
	}
	return r.Identity
}

func (r *PlayRequest) GetMessage() string {
	if r == nil {
		return ""
	}
	return r.Message
}

type PlayResponse struct {
	Play *Play `json:"play"`
}

type BlockRequest struct {
	Identity string `json:"identity"`
	Target   string `json:"target"`
}

func (r *BlockRequest) GetIdentity() string {
	if r == nil {
		return ""
	}
	return r.Identity
}

func (r *BlockRequest) GetTarget() string {
	if r == nil {
		return ""
	}
	return r.Target
}

type BlockResponse struct {
	Block *Block `json:"block"`
}

type ListPlaysRequest struct {
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
	// OrderBy is "sequence desc" (default, newest first) or "sequence asc".
	OrderBy string `json:"order_by,omitempty"`
	// Filter is an AIP-160 expression over identity, outcome, seq and ts.
	Filter string `json:"filter,omitempty"`
}

func (r *ListPlaysRequest) GetPageSize() int32 {
	if r == nil {
		return 0
	}
	return r.PageSize
}

func (r *ListPlaysRequest) GetPageToken() string {
	if r == nil {
		return ""
	}
	return r.PageToken
}

func (r *ListPlaysRequest) GetOrderBy() string {
	if r == nil {
		return ""
	}
	return r.OrderBy
}

func (r *ListPlaysRequest) GetFilter() string {
	if r == nil {
		return ""
	}
	return r.Filter
}

type ListPlaysResponse struct {
	Plays         []*Play `json:"plays"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}

type GetPlayRequest struct {
	Sequence uint64 `json:"sequence,string"`
}

type GetPlayResponse struct {
	Play *Play `json:"play"`
}

type GetStatusRequest struct {
	Identity string `json:"identity"`
}

func (r *GetStatusRequest) GetIdentity() string {
	if r == nil {
		return ""
	}
	return r.Identity
}

// GetStatusResponse reports whether an identity may still act.
type GetStatusResponse struct {
	Identity     string `json:"identity"`
	Participated bool   `json:"participated"`
	Blocked      bool   `json:"blocked"`
	Eligible     bool   `json:"eligible"`
}

type GetBalanceRequest struct{}

type GetBalanceResponse struct {
	Balance      uint64 `json:"balance,string"`
	PayoutAmount uint64 `json:"payout_amount,string"`
}

type FundRequest struct {
	// Identity optionally names the funder for the transfer record.
	Identity string `json:"identity,omitempty"`
	Amount   uint64 `json:"amount,string"`
}

func (r *FundRequest) GetIdentity() string {
	if r == nil {
		return ""
	}
	return r.Identity
}

func (r *FundRequest) GetAmount() uint64 {
	if r == nil {
		return 0
	}
	return r.Amount
}

type FundResponse struct {
	Balance          uint64 `json:"balance,string"`
	TransferSequence uint64 `json:"transfer_sequence,string"`
}

type WatchEventsRequest struct{}
