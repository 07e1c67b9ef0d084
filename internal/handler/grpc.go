package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/MikhailRaia/paylink/internal/middleware"
	"github.com/MikhailRaia/paylink/internal/model"
	"github.com/MikhailRaia/paylink/internal/paycode"
	"github.com/MikhailRaia/paylink/internal/proto"
	"github.com/MikhailRaia/paylink/internal/share"
	"github.com/MikhailRaia/paylink/internal/storage"
)

// PaymentLinkGRPCServer exposes PaymentService over gRPC.
type PaymentLinkGRPCServer struct {
	service PaymentService
}

func NewPaymentLinkGRPCServer(service PaymentService) *PaymentLinkGRPCServer {
	return &PaymentLinkGRPCServer{
		service: service,
	}
}

func (s *PaymentLinkGRPCServer) GenerateCode(_ context.Context, req *proto.GenerateCodeRequest) (*proto.GenerateCodeResponse, error) {
	codeReq := codeRequest(req)
	if err := validate.Struct(codeReq); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	code, err := s.service.GenerateCode(codeReq)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	payload, err := share.EncodePayload(code)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode code: %v", err)
	}

	return &proto.GenerateCodeResponse{Code: payload, Mnid: code.Mnid}, nil
}

func (s *PaymentLinkGRPCServer) ReadCode(ctx context.Context, req *proto.ReadCodeRequest) (*proto.PaymentIntent, error) {
	if req.Code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}

	intent, err := s.service.ReadCode(ctx, req.Code)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return paymentIntent(intent), nil
}

func (s *PaymentLinkGRPCServer) CreateShareLink(ctx context.Context, req *proto.CreateShareLinkRequest) (*proto.CreateShareLinkResponse, error) {
	if req.Code == nil {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}

	linkReq := model.ShareLinkRequest{
		CodeRequest: codeRequest(req.Code),
		Action:      req.Action,
		To:          req.To,
		From:        req.From,
		CanShare:    req.CanShare,
	}
	if err := validate.Struct(linkReq); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	userID, _ := middleware.GetUserIDFromContext(ctx)

	resp, err := s.service.CreateShareLink(ctx, userID, linkReq)
	if err != nil && !errors.Is(err, storage.ErrLinkExists) {
		if isClientError(err) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "failed to create link: %v", err)
	}

	return &proto.CreateShareLinkResponse{
		Id:      resp.ID,
		Url:     resp.URL,
		Code:    resp.Code,
		Title:   resp.Title,
		Message: resp.Message,
		Href:    resp.Href,
	}, nil
}

func (s *PaymentLinkGRPCServer) WithdrawStatus(ctx context.Context, req *proto.WithdrawStatusRequest) (*proto.WithdrawStatusResponse, error) {
	if req.Code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}

	resp, err := s.service.WithdrawStatus(ctx, req.Code)
	if err != nil {
		if errors.Is(err, storage.ErrLinkNotFound) {
			return nil, status.Error(codes.NotFound, "link not found")
		}
		return nil, status.Errorf(codes.Internal, "failed to get withdraw status: %v", err)
	}

	return &proto.WithdrawStatusResponse{
		Id:     resp.ID,
		Status: string(resp.Status),
		Action: resp.Action,
		Intent: paymentIntent(resp.Intent),
	}, nil
}

func (s *PaymentLinkGRPCServer) ListUserLinks(ctx context.Context, _ *emptypb.Empty) (*proto.UserLinksResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "user not authenticated")
	}

	links, err := s.service.GetUserLinks(ctx, userID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to get user links: %v", err)
	}

	resp := &proto.UserLinksResponse{
		Links: make([]*proto.UserLink, 0, len(links)),
	}
	for _, link := range links {
		resp.Links = append(resp.Links, &proto.UserLink{
			Id:     link.ID,
			Url:    link.URL,
			Action: link.Action,
			Status: string(link.Status),
		})
	}

	return resp, nil
}

func codeRequest(req *proto.GenerateCodeRequest) model.CodeRequest {
	return model.CodeRequest{
		Address:                 req.Address,
		NetworkID:               req.NetworkId,
		Amount:                  req.Amount,
		Reason:                  req.Reason,
		Category:                req.Category,
		CounterPartyDisplayName: req.CounterPartyDisplayName,
	}
}

func paymentIntent(intent *paycode.Intent) *proto.PaymentIntent {
	if intent == nil {
		return nil
	}
	return &proto.PaymentIntent{
		NetworkId:               intent.NetworkID,
		Address:                 intent.Address,
		Amount:                  intent.Amount,
		Reason:                  intent.Reason,
		Category:                intent.Category,
		CounterPartyDisplayName: intent.CounterPartyDisplayName,
	}
}
