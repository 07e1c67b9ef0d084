package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/MikhailRaia/paylink/internal/auth"
)

// GRPCAuthMiddleware reads the user token from "authorization" metadata.
type GRPCAuthMiddleware struct {
	jwtService *auth.JWTService
}

func NewGRPCAuthMiddleware(jwtService *auth.JWTService) *GRPCAuthMiddleware {
	return &GRPCAuthMiddleware{
		jwtService: jwtService,
	}
}

// UnaryInterceptor attaches the user id of a valid token to the context.
// Calls without a token stay anonymous; a token that fails validation is
// rejected.
func (m *GRPCAuthMiddleware) UnaryInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return handler(ctx, req)
	}

	values := md.Get("authorization")
	if len(values) == 0 || values[0] == "" {
		return handler(ctx, req)
	}

	token := bearerToken(values[0])
	if token == "" {
		token = values[0]
	}

	claims, err := m.jwtService.ValidateToken(token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return handler(context.WithValue(ctx, UserIDKey, claims.UserID), req)
}
