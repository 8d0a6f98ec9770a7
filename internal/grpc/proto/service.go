package proto

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// ServiceName полное имя gRPC сервиса
const ServiceName = "edgelink.v1.ControlService"

// Полные имена методов сервиса
const (
	MethodResolve     = "/" + ServiceName + "/Resolve"
	MethodGetHealth   = "/" + ServiceName + "/GetHealth"
	MethodCheckHealth = "/" + ServiceName + "/CheckHealth"
	MethodRepublish   = "/" + ServiceName + "/Republish"
	MethodPing        = "/" + ServiceName + "/Ping"
)

// CodecName имя кодека, под которым сообщения передаются в JSON
const CodecName = "json"

// jsonCodec кодирует сообщения сервиса в JSON вместо protobuf
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ControlServiceServer представляет интерфейс gRPC сервиса
type ControlServiceServer interface {
	Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error)
	GetHealth(ctx context.Context, req *HealthRequest) (*HealthResponse, error)
	CheckHealth(ctx context.Context, req *HealthRequest) (*HealthResponse, error)
	Republish(ctx context.Context, req *RepublishRequest) (*RepublishResponse, error)
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
}

// UnimplementedControlServiceServer отвечает Unimplemented на все методы
type UnimplementedControlServiceServer struct{}

// Resolve не реализован
func (UnimplementedControlServiceServer) Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Resolve not implemented")
}

// GetHealth не реализован
func (UnimplementedControlServiceServer) GetHealth(context.Context, *HealthRequest) (*HealthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetHealth not implemented")
}

// CheckHealth не реализован
func (UnimplementedControlServiceServer) CheckHealth(context.Context, *HealthRequest) (*HealthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckHealth not implemented")
}

// Republish не реализован
func (UnimplementedControlServiceServer) Republish(context.Context, *RepublishRequest) (*RepublishResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Republish not implemented")
}

// Ping не реализован
func (UnimplementedControlServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

// unaryHandler строит обработчик метода для ServiceDesc
func unaryHandler[Req any, Resp any](method string, call func(ControlServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ControlServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ControlServiceDesc описание сервиса для grpc.Server
var ControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: unaryHandler(MethodResolve, ControlServiceServer.Resolve)},
		{MethodName: "GetHealth", Handler: unaryHandler(MethodGetHealth, ControlServiceServer.GetHealth)},
		{MethodName: "CheckHealth", Handler: unaryHandler(MethodCheckHealth, ControlServiceServer.CheckHealth)},
		{MethodName: "Republish", Handler: unaryHandler(MethodRepublish, ControlServiceServer.Republish)},
		{MethodName: "Ping", Handler: unaryHandler(MethodPing, ControlServiceServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "edgelink/v1/control.proto",
}

// RegisterControlServiceServer регистрирует реализацию сервиса в gRPC сервере
func RegisterControlServiceServer(s grpc.ServiceRegistrar, srv ControlServiceServer) {
	s.RegisterService(&ControlServiceDesc, srv)
}

// ControlServiceClient клиент сервиса
type ControlServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewControlServiceClient создаёт клиент поверх соединения
func NewControlServiceClient(cc grpc.ClientConnInterface) *ControlServiceClient {
	return &ControlServiceClient{cc: cc}
}

func (c *ControlServiceClient) invoke(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

// Resolve вызывает ControlService.Resolve
func (c *ControlServiceClient) Resolve(ctx context.Context, in *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	out := new(ResolveResponse)
	if err := c.invoke(ctx, MethodResolve, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetHealth вызывает ControlService.GetHealth
func (c *ControlServiceClient) GetHealth(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.invoke(ctx, MethodGetHealth, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckHealth вызывает ControlService.CheckHealth
func (c *ControlServiceClient) CheckHealth(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.invoke(ctx, MethodCheckHealth, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Republish вызывает ControlService.Republish
func (c *ControlServiceClient) Republish(ctx context.Context, in *RepublishRequest, opts ...grpc.CallOption) (*RepublishResponse, error) {
	out := new(RepublishResponse)
	if err := c.invoke(ctx, MethodRepublish, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping вызывает ControlService.Ping
func (c *ControlServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.invoke(ctx, MethodPing, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
