package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// GenerateCodeRequest leaves NetworkId and Amount nil when unset, so an
// explicit zero stays distinguishable from an absent value.
type GenerateCodeRequest struct {
	Address                 string  `json:"address"`
	NetworkId               *uint64 `json:"network_id,omitempty"`
	Amount                  *int64  `json:"amount,omitempty"`
	Reason                  string  `json:"reason,omitempty"`
	Category                string  `json:"category,omitempty"`
	CounterPartyDisplayName string  `json:"counter_party_display_name,omitempty"`
}

type GenerateCodeResponse struct {
	Code string `json:"code"`
	Mnid string `json:"mnid"`
}

type ReadCodeRequest struct {
	Code string `json:"code"`
}

type PaymentIntent struct {
	NetworkId               uint64 `json:"network_id"`
	Address                 string `json:"address"`
	Amount                  int64  `json:"amount,omitempty"`
	Reason                  string `json:"reason,omitempty"`
	Category                string `json:"category,omitempty"`
	CounterPartyDisplayName string `json:"counter_party_display_name,omitempty"`
}

type CreateShareLinkRequest struct {
	Code     *GenerateCodeRequest `json:"code"`
	Action   string               `json:"action"`
	To       string               `json:"to,omitempty"`
	From     string               `json:"from,omitempty"`
	CanShare bool                 `json:"can_share,omitempty"`
}

type CreateShareLinkResponse struct {
	Id      string `json:"id"`
	Url     string `json:"url"`
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Href    string `json:"href,omitempty"`
}

type WithdrawStatusRequest struct {
	Code string `json:"code"`
}

type WithdrawStatusResponse struct {
	Id     string         `json:"id"`
	Status string         `json:"status"`
	Action string         `json:"action"`
	Intent *PaymentIntent `json:"intent,omitempty"`
}

type UserLinksResponse struct {
	Links []*UserLink `json:"links"`
}

type UserLink struct {
	Id     string `json:"id"`
	Url    string `json:"url"`
	Action string `json:"action"`
	Status string `json:"status"`
}

// PaymentLinkServiceServer is the server API for PaymentLinkService service.
type PaymentLinkServiceServer interface {
	GenerateCode(context.Context, *GenerateCodeRequest) (*GenerateCodeResponse, error)
	ReadCode(context.Context, *ReadCodeRequest) (*PaymentIntent, error)
	CreateShareLink(context.Context, *CreateShareLinkRequest) (*CreateShareLinkResponse, error)
	WithdrawStatus(context.Context, *WithdrawStatusRequest) (*WithdrawStatusResponse, error)
	ListUserLinks(context.Context, *emptypb.Empty) (*UserLinksResponse, error)
}

// PaymentLinkServiceClient is the client API for PaymentLinkService service.
type PaymentLinkServiceClient interface {
	GenerateCode(ctx context.Context, in *GenerateCodeRequest, opts ...grpc.CallOption) (*GenerateCodeResponse, error)
	ReadCode(ctx context.Context, in *ReadCodeRequest, opts ...grpc.CallOption) (*PaymentIntent, error)
	CreateShareLink(ctx context.Context, in *CreateShareLinkRequest, opts ...grpc.CallOption) (*CreateShareLinkResponse, error)
	WithdrawStatus(ctx context.Context, in *WithdrawStatusRequest, opts ...grpc.CallOption) (*WithdrawStatusResponse, error)
	ListUserLinks(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*UserLinksResponse, error)
}

const serviceName = "paylink.PaymentLinkService"

type paymentLinkServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPaymentLinkServiceClient returns a client that encodes calls with the
// JSON codec.
func NewPaymentLinkServiceClient(cc grpc.ClientConnInterface) PaymentLinkServiceClient {
	return &paymentLinkServiceClient{cc: cc}
}

func (c *paymentLinkServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *paymentLinkServiceClient) GenerateCode(ctx context.Context, in *GenerateCodeRequest, opts ...grpc.CallOption) (*GenerateCodeResponse, error) {
	out := new(GenerateCodeResponse)
	if err := c.invoke(ctx, "GenerateCode", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paymentLinkServiceClient) ReadCode(ctx context.Context, in *ReadCodeRequest, opts ...grpc.CallOption) (*PaymentIntent, error) {
	out := new(PaymentIntent)
	if err := c.invoke(ctx, "ReadCode", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paymentLinkServiceClient) CreateShareLink(ctx context.Context, in *CreateShareLinkRequest, opts ...grpc.CallOption) (*CreateShareLinkResponse, error) {
	out := new(CreateShareLinkResponse)
	if err := c.invoke(ctx, "CreateShareLink", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paymentLinkServiceClient) WithdrawStatus(ctx context.Context, in *WithdrawStatusRequest, opts ...grpc.CallOption) (*WithdrawStatusResponse, error) {
	out := new(WithdrawStatusResponse)
	if err := c.invoke(ctx, "WithdrawStatus", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paymentLinkServiceClient) ListUserLinks(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*UserLinksResponse, error) {
	out := new(UserLinksResponse)
	if err := c.invoke(ctx, "ListUserLinks", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterPaymentLinkServiceServer(s grpc.ServiceRegistrar, srv PaymentLinkServiceServer) {
	s.RegisterService(&paymentLinkServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodDesc.
func unaryHandler[Req any, Resp any](method string, call func(PaymentLinkServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PaymentLinkServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PaymentLinkServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var paymentLinkServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PaymentLinkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GenerateCode",
			Handler:    unaryHandler("GenerateCode", PaymentLinkServiceServer.GenerateCode),
		},
		{
			MethodName: "ReadCode",
			Handler:    unaryHandler("ReadCode", PaymentLinkServiceServer.ReadCode),
		},
		{
			MethodName: "CreateShareLink",
			Handler:    unaryHandler("CreateShareLink", PaymentLinkServiceServer.CreateShareLink),
		},
		{
			MethodName: "WithdrawStatus",
			Handler:    unaryHandler("WithdrawStatus", PaymentLinkServiceServer.WithdrawStatus),
		},
		{
			MethodName: "ListUserLinks",
			Handler:    unaryHandler("ListUserLinks", PaymentLinkServiceServer.ListUserLinks),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "paylink.proto",
}
