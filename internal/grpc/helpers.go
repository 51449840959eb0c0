package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified Query service name.
const ServiceName = "levyd.v1.Query"

// queryServiceDesc wires the Query methods by hand; request decoding runs
// through whatever codec the connection negotiated, which for levyd
// clients is the CBOR codec in this package.
var queryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Balance", Handler: balanceHandler},
		{MethodName: "Accrued", Handler: accruedHandler},
		{MethodName: "Plan", Handler: planHandler},
		{MethodName: "Limits", Handler: limitsHandler},
		{MethodName: "Distributed", Handler: distributedHandler},
		{MethodName: "TreasuryStatus", Handler: treasuryStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "levyd/v1/query",
}

// RegisterQueryServer registers srv on s under the Query service name.
func RegisterQueryServer(s *grpc.Server, srv QueryServer) {
	s.RegisterService(&queryServiceDesc, srv)
}

func balanceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(BalanceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).Balance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Balance"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServer).Balance(ctx, req.(*BalanceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func accruedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AccruedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).Accrued(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Accrued"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServer).Accrued(ctx, req.(*AccruedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func planHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PlanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).Plan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Plan"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServer).Plan(ctx, req.(*PlanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func limitsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LimitsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).Limits(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Limits"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServer).Limits(ctx, req.(*LimitsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func distributedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DistributedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).Distributed(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Distributed"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServer).Distributed(ctx, req.(*DistributedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func treasuryStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TreasuryStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).TreasuryStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/TreasuryStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServer).TreasuryStatus(ctx, req.(*TreasuryStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}
