package crabpot

import (
	"context"
	"crypto/subtle"
	"log"
	"strings"

	crabpotv1 "github.com/louisbranch/crabpot/api/crabpot/v1"
	apperrors "github.com/louisbranch/crabpot/internal/platform/errors"
	"github.com/louisbranch/crabpot/internal/platform/grpc/pagination"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/block"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/engine"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/identity"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/notify"
	"github.com/louisbranch/crabpot/internal/services/crabpot/domain/play"
	"github.com/louisbranch/crabpot/internal/services/crabpot/storage"
	"github.com/louisbranch/crabpot/internal/services/crabpot/storage/filter"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	defaultListPlaysPageSize = 50
	maxListPlaysPageSize     = 200

	orderSequenceAsc  = "sequence asc"
	orderSequenceDesc = "sequence desc"

	// OperatorTokenHeader carries the operator token on Fund calls.
	OperatorTokenHeader = "x-crabpot-operator-token"
	// SubscriptionHeader is sent once a WatchEvents subscription is live.
	SubscriptionHeader = "x-crabpot-subscription"
)

// Engine is the rule engine surface the service calls.
type Engine interface {
	Play(ctx context.Context, who identity.Key, message string) (engine.PlayResult, error)
	Block(ctx context.Context, blocker, target identity.Key) (block.Record, error)
	ListPlays(ctx context.Context, query storage.PlayQuery) (storage.PlayPage, error)
	GetPlay(ctx context.Context, seq uint64) (play.Record, error)
	IsBlocked(ctx context.Context, id identity.Key) (bool, error)
	HasParticipated(ctx context.Context, id identity.Key) (bool, error)
	Balance(ctx context.Context) (uint64, error)
	PayoutAmount() uint64
	Fund(ctx context.Context, from identity.Key, amount uint64) (engine.FundResult, error)
}

// Subscriber registers event handlers.
type Subscriber interface {
	Subscribe(handler notify.Handler) (notify.Handle, error)
	Unsubscribe(handle notify.Handle) bool
}

// Option customizes a Service.
type Option func(*Service)

// WithOperatorToken enables Fund for callers presenting token.
func WithOperatorToken(token string) Option {
	return func(s *Service) {
		s.operatorToken = strings.TrimSpace(token)
	}
}

// Service exposes crabpot.v1 gRPC operations.
type Service struct {
	crabpotv1.UnimplementedCrabPotServiceServer
	engine        Engine
	events        Subscriber
	operatorToken string
}

// NewService creates a crab pot service backed by the rule engine and event
// notifier.
func NewService(eng Engine, events Subscriber, opts ...Option) *Service {
	s := &Service{engine: eng, events: events}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play spends the caller's single chance on a play.
func (s *Service) Play(ctx context.Context, in *crabpotv1.PlayRequest) (*crabpotv1.PlayResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "play request is required")
	}
	if s == nil || s.engine == nil {
		return nil, status.Error(codes.Internal, "crab pot engine is not configured")
	}
	who, err := parseIdentity(in.GetIdentity(), apperrors.CodeInvalidIdentity)
	if err != nil {
		return nil, err
	}
	result, err := s.engine.Play(ctx, who, in.GetMessage())
	if err != nil {
		return nil, toStatus("play", err)
	}
	return &crabpotv1.PlayResponse{Play: playToWire(result.Record)}, nil
}

// Block spends the caller's single chance to bar a target.
func (s *Service) Block(ctx context.Context, in *crabpotv1.BlockRequest) (*crabpotv1.BlockResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "block request is required")
	}
	if s == nil || s.engine == nil {
		return nil, status.Error(codes.Internal, "crab pot engine is not configured")
	}
	blocker, err := parseIdentity(in.GetIdentity(), apperrors.CodeInvalidIdentity)
	if err != nil {
		return nil, err
	}
	target, err := parseIdentity(in.GetTarget(), apperrors.CodeInvalidTarget)
	if err != nil {
		return nil, err
	}
	record, err := s.engine.Block(ctx, blocker, target)
	if err != nil {
		return nil, toStatus("block", err)
	}
	return &crabpotv1.BlockResponse{Block: blockToWire(record)}, nil
}

// ListPlays returns a page of the play history, newest first by default.
func (s *Service) ListPlays(ctx context.Context, in *crabpotv1.ListPlaysRequest) (*crabpotv1.ListPlaysResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list plays request is required")
	}
	if s == nil || s.engine == nil {
		return nil, status.Error(codes.Internal, "crab pot engine is not configured")
	}

	pageSize := pagination.ClampPageSize(in.GetPageSize(), pagination.PageSizeConfig{
		Default: defaultListPlaysPageSize,
		Max:     maxListPlaysPageSize,
	})
	orderBy, err := pagination.NormalizeOrderBy(in.GetOrderBy(), pagination.OrderByConfig{
		Default: orderSequenceDesc,
		Allowed: []string{orderSequenceAsc, orderSequenceDesc},
	})
	if err != nil {
		return nil, invalidQuery(err)
	}
	cursor, hasCursor, err := pagination.DecodeSequenceToken(in.GetPageToken())
	if err != nil {
		return nil, invalidQuery(err)
	}
	cond, err := filter.ParsePlayFilter(in.GetFilter())
	if err != nil {
		return nil, invalidQuery(err)
	}

	query := storage.PlayQuery{
		Order:     storage.OrderNewestFirst,
		PageSize:  pageSize,
		Cursor:    cursor,
		HasCursor: hasCursor,
		Filter:    cond,
	}
	if orderBy == orderSequenceAsc {
		query.Order = storage.OrderOldestFirst
	}
	page, err := s.engine.ListPlays(ctx, query)
	if err != nil {
		return nil, toStatus("list plays", err)
	}

	resp := &crabpotv1.ListPlaysResponse{Plays: make([]*crabpotv1.Play, 0, len(page.Plays))}
	for _, record := range page.Plays {
		resp.Plays = append(resp.Plays, playToWire(record))
	}
	if page.HasMore {
		resp.NextPageToken = pagination.EncodeSequenceToken(page.NextCursor)
	}
	return resp, nil
}

// GetPlay returns one play by sequence.
func (s *Service) GetPlay(ctx context.Context, in *crabpotv1.GetPlayRequest) (*crabpotv1.GetPlayResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get play request is required")
	}
	if s == nil || s.engine == nil {
		return nil, status.Error(codes.Internal, "crab pot engine is not configured")
	}
	record, err := s.engine.GetPlay(ctx, in.Sequence)
	if err != nil {
		return nil, toStatus("get play", err)
	}
	return &crabpotv1.GetPlayResponse{Play: playToWire(record)}, nil
}

// GetStatus reports whether an identity may still act.
func (s *Service) GetStatus(ctx context.Context, in *crabpotv1.GetStatusRequest) (*crabpotv1.GetStatusResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get status request is required")
	}
	if s == nil || s.engine == nil {
		return nil, status.Error(codes.Internal, "crab pot engine is not configured")
	}
	who, err := parseIdentity(in.GetIdentity(), apperrors.CodeInvalidIdentity)
	if err != nil {
		return nil, err
	}
	participated, err := s.engine.HasParticipated(ctx, who)
	if err != nil {
		return nil, toStatus("get status", err)
	}
	blocked, err := s.engine.IsBlocked(ctx, who)
	if err != nil {
		return nil, toStatus("get status", err)
	}
	return &crabpotv1.GetStatusResponse{
		Identity:     who.String(),
		Participated: participated,
		Blocked:      blocked,
		Eligible:     !participated && !blocked,
	}, nil
}

// GetBalance returns the vault balance and the payout a win receives.
func (s *Service) GetBalance(ctx context.Context, in *crabpotv1.GetBalanceRequest) (*crabpotv1.GetBalanceResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get balance request is required")
	}
	if s == nil || s.engine == nil {
		return nil, status.Error(codes.Internal, "crab pot engine is not configured")
	}
	balance, err := s.engine.Balance(ctx)
	if err != nil {
		return nil, toStatus("get balance", err)
	}
	return &crabpotv1.GetBalanceResponse{Balance: balance, PayoutAmount: s.engine.PayoutAmount()}, nil
}

// Fund credits the vault. Callers must present the operator token.
func (s *Service) Fund(ctx context.Context, in *crabpotv1.FundRequest) (*crabpotv1.FundResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "fund request is required")
	}
	if s == nil || s.engine == nil {
		return nil, status.Error(codes.Internal, "crab pot engine is not configured")
	}
	if !s.authorizedOperator(ctx) {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "operator token rejected").ToGRPCStatus()
	}
	var from identity.Key
	if strings.TrimSpace(in.GetIdentity()) != "" {
		parsed, err := parseIdentity(in.GetIdentity(), apperrors.CodeInvalidIdentity)
		if err != nil {
			return nil, err
		}
		from = parsed
	}
	result, err := s.engine.Fund(ctx, from, in.GetAmount())
	if err != nil {
		return nil, toStatus("fund", err)
	}
	return &crabpotv1.FundResponse{Balance: result.Balance, TransferSequence: result.Transfer.Sequence}, nil
}

// WatchEvents streams plays and blocks committed after the call starts.
func (s *Service) WatchEvents(in *crabpotv1.WatchEventsRequest, stream grpc.ServerStreamingServer[crabpotv1.Event]) error {
	if in == nil {
		return status.Error(codes.InvalidArgument, "watch events request is required")
	}
	if s == nil || s.events == nil {
		return status.Error(codes.Internal, "event notifier is not configured")
	}
	ctx := stream.Context()

	events := make(chan notify.Event)
	done := make(chan struct{})
	handle, err := s.events.Subscribe(func(event notify.Event) {
		select {
		case events <- event:
		case <-done:
		}
	})
	if err != nil {
		return status.Errorf(codes.Unavailable, "subscribe: %v", err)
	}
	defer func() {
		s.events.Unsubscribe(handle)
		close(done)
	}()

	if err := stream.SendHeader(metadata.Pairs(SubscriptionHeader, string(handle))); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			if err := stream.Send(eventToWire(event)); err != nil {
				return err
			}
		}
	}
}

func (s *Service) authorizedOperator(ctx context.Context) bool {
	if s.operatorToken == "" {
		return false
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return false
	}
	for _, presented := range md.Get(OperatorTokenHeader) {
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(s.operatorToken)) == 1 {
			return true
		}
	}
	return false
}

func parseIdentity(raw string, code apperrors.Code) (identity.Key, error) {
	key, err := identity.Parse(raw)
	if err != nil {
		return identity.Key{}, apperrors.Wrap(code, "parse identity", err).ToGRPCStatus()
	}
	return key, nil
}

func invalidQuery(err error) error {
	return apperrors.Wrap(apperrors.CodeInvalidQuery, "parse list query", err).ToGRPCStatus()
}

func toStatus(op string, err error) error {
	domainErr, ok := apperrors.As(err)
	if !ok {
		log.Printf("crabpot: %s: %v", op, err)
		return status.Errorf(codes.Internal, "%s failed", op)
	}
	switch domainErr.Code.GRPCCode() {
	case codes.Internal, codes.Unavailable:
		log.Printf("crabpot: %s: %v", op, err)
	}
	return domainErr.ToGRPCStatus()
}
