package crabpotv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "crabpot.v1.CrabPotService"

const (
	CrabPotService_Play_FullMethodName        = "/" + ServiceName + "/Play"
	CrabPotService_Block_FullMethodName       = "/" + ServiceName + "/Block"
	CrabPotService_ListPlays_FullMethodName   = "/" + ServiceName + "/ListPlays"
	CrabPotService_GetPlay_FullMethodName     = "/" + ServiceName + "/GetPlay"
	CrabPotService_GetStatus_FullMethodName   = "/" + ServiceName + "/GetStatus"
	CrabPotService_GetBalance_FullMethodName  = "/" + ServiceName + "/GetBalance"
	CrabPotService_Fund_FullMethodName        = "/" + ServiceName + "/Fund"
	CrabPotService_WatchEvents_FullMethodName = "/" + ServiceName + "/WatchEvents"
)

// CrabPotServiceServer is the server API for crabpot.v1.CrabPotService.
type CrabPotServiceServer interface {
	Play(context.Context, *PlayRequest) (*PlayResponse, error)
	Block(context.Context, *BlockRequest) (*BlockResponse, error)
	ListPlays(context.Context, *ListPlaysRequest) (*ListPlaysResponse, error)
	GetPlay(context.Context, *GetPlayRequest) (*GetPlayResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	Fund(context.Context, *FundRequest) (*FundResponse, error)
	WatchEvents(*WatchEventsRequest, grpc.ServerStreamingServer[Event]) error
}

// UnimplementedCrabPotServiceServer answers every method with Unimplemented.
type UnimplementedCrabPotServiceServer struct{}

func (UnimplementedCrabPotServiceServer) Play(context.Context, *PlayRequest) (*PlayResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Play not implemented")
}

func (UnimplementedCrabPotServiceServer) Block(context.Context, *BlockRequest) (*BlockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Block not implemented")
}

func (UnimplementedCrabPotServiceServer) ListPlays(context.Context, *ListPlaysRequest) (*ListPlaysResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPlays not implemented")
}

func (UnimplementedCrabPotServiceServer) GetPlay(context.Context, *GetPlayRequest) (*GetPlayResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPlay not implemented")
}

func (UnimplementedCrabPotServiceServer) GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStatus not implemented")
}

func (UnimplementedCrabPotServiceServer) GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBalance not implemented")
}

func (UnimplementedCrabPotServiceServer) Fund(context.Context, *FundRequest) (*FundResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Fund not implemented")
}

func (UnimplementedCrabPotServiceServer) WatchEvents(*WatchEventsRequest, grpc.ServerStreamingServer[Event]) error {
	return status.Error(codes.Unimplemented, "method WatchEvents not implemented")
}

// RegisterCrabPotServiceServer registers srv on s.
func RegisterCrabPotServiceServer(s grpc.ServiceRegistrar, srv CrabPotServiceServer) {
	s.RegisterService(&CrabPotService_ServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(CrabPotServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CrabPotServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CrabPotServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CrabPotServiceServer).WatchEvents(in, &grpc.GenericServerStream[WatchEventsRequest, Event]{ServerStream: stream})
}

// CrabPotService_ServiceDesc is the grpc.ServiceDesc for crabpot.v1.CrabPotService.
var CrabPotService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CrabPotServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Play",
			Handler:    unaryHandler(CrabPotService_Play_FullMethodName, CrabPotServiceServer.Play),
		},
		{
			MethodName: "Block",
			Handler:    unaryHandler(CrabPotService_Block_FullMethodName, CrabPotServiceServer.Block),
		},
		{
			MethodName: "ListPlays",
			Handler:    unaryHandler(CrabPotService_ListPlays_FullMethodName, CrabPotServiceServer.ListPlays),
		},
		{
			MethodName: "GetPlay",
			Handler:    unaryHandler(CrabPotService_GetPlay_FullMethodName, CrabPotServiceServer.GetPlay),
		},
		{
			MethodName: "GetStatus",
			Handler:    unaryHandler(CrabPotService_GetStatus_FullMethodName, CrabPotServiceServer.GetStatus),
		},
		{
			MethodName: "GetBalance",
			Handler:    unaryHandler(CrabPotService_GetBalance_FullMethodName, CrabPotServiceServer.GetBalance),
		},
		{
			MethodName: "Fund",
			Handler:    unaryHandler(CrabPotService_Fund_FullMethodName, CrabPotServiceServer.Fund),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "crabpot/v1/crabpot.proto",
}

// CrabPotServiceClient is the client API for crabpot.v1.CrabPotService.
type CrabPotServiceClient interface {
	Play(ctx context.Context, in *PlayRequest, opts ...grpc.CallOption) (*PlayResponse, error)
	Block(ctx context.Context, in *BlockRequest, opts ...grpc.CallOption) (*BlockResponse, error)
	ListPlays(ctx context.Context, in *ListPlaysRequest, opts ...grpc.CallOption) (*ListPlaysResponse, error)
	GetPlay(ctx context.Context, in *GetPlayRequest, opts ...grpc.CallOption) (*GetPlayResponse, error)
	GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error)
	GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error)
	Fund(ctx context.Context, in *FundRequest, opts ...grpc.CallOption) (*FundResponse, error)
	WatchEvents(ctx context.Context, in *WatchEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error)
}

type crabPotServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCrabPotServiceClient returns a client that speaks the JSON codec over cc.
func NewCrabPotServiceClient(cc grpc.ClientConnInterface) CrabPotServiceClient {
	return &crabPotServiceClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *crabPotServiceClient) Play(ctx context.Context, in *PlayRequest, opts ...grpc.CallOption) (*PlayResponse, error) {
	return invoke[PlayResponse](ctx, c.cc, CrabPotService_Play_FullMethodName, in, opts)
}

func (c *crabPotServiceClient) Block(ctx context.Context, in *BlockRequest, opts ...grpc.CallOption) (*BlockResponse, error) {
	return invoke[BlockResponse](ctx, c.cc, CrabPotService_Block_FullMethodName, in, opts)
}

func (c *crabPotServiceClient) ListPlays(ctx context.Context, in *ListPlaysRequest, opts ...grpc.CallOption) (*ListPlaysResponse, error) {
	return invoke[ListPlaysResponse](ctx, c.cc, CrabPotService_ListPlays_FullMethodName, in, opts)
}

func (c *crabPotServiceClient) GetPlay(ctx context.Context, in *GetPlayRequest, opts ...grpc.CallOption) (*GetPlayResponse, error) {
	return invoke[GetPlayResponse](ctx, c.cc, CrabPotService_GetPlay_FullMethodName, in, opts)
}

func (c *crabPotServiceClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, CrabPotService_GetStatus_FullMethodName, in, opts)
}

func (c *crabPotServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	return invoke[GetBalanceResponse](ctx, c.cc, CrabPotService_GetBalance_FullMethodName, in, opts)
}

func (c *crabPotServiceClient) Fund(ctx context.Context, in *FundRequest, opts ...grpc.CallOption) (*FundResponse, error) {
	return invoke[FundResponse](ctx, c.cc, CrabPotService_Fund_FullMethodName, in, opts)
}

func (c *crabPotServiceClient) WatchEvents(ctx context.Context, in *WatchEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error) {
	stream, err := c.cc.NewStream(ctx, &CrabPotService_ServiceDesc.Streams[0], CrabPotService_WatchEvents_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchEventsRequest, Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
