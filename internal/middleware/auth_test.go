package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/MikhailRaia/paylink/internal/auth"
	"github.com/MikhailRaia/paylink/internal/generator"
)

func captureUser(userID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*userID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateUser_IssuesCookie(t *testing.T) {
	jwtService := auth.NewJWTService("secret")
	mw := NewAuthMiddleware(jwtService)

	var userID string
	rec := httptest.NewRecorder()
	mw.AuthenticateUser(captureUser(&userID)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/link", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, userID, generator.UserIDLength)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AuthCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	claims, err := jwtService.ValidateToken(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestAuthenticateUser_KeepsExistingUser(t *testing.T) {
	jwtService := auth.NewJWTService("secret")
	mw := NewAuthMiddleware(jwtService)

	token, err := jwtService.GenerateToken("known-user")
	require.NoError(t, err)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
	}{
		{name: "cookie", prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: token}) }},
		{name: "bearer header", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }},
		{name: "lowercase bearer", prepare: func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user/links", nil)
			tt.prepare(req)

			var userID string
			rec := httptest.NewRecorder()
			mw.AuthenticateUser(captureUser(&userID)).ServeHTTP(rec, req)

			assert.Equal(t, "known-user", userID)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestRequireAuth(t *testing.T) {
	jwtService := auth.NewJWTService("secret")
	mw := NewAuthMiddleware(jwtService)

	token, err := jwtService.GenerateToken("known-user")
	require.NoError(t, err)

	tests := []struct {
		name       string
		cookie     string
		wantStatus int
		wantUser   string
	}{
		{name: "no cookie", wantStatus: http.StatusUnauthorized},
		{name: "invalid cookie", cookie: "garbage", wantStatus: http.StatusUnauthorized},
		{name: "valid cookie", cookie: token, wantStatus: http.StatusOK, wantUser: "known-user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user/links", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: tt.cookie})
			}

			var userID string
			rec := httptest.NewRecorder()
			mw.RequireAuth(captureUser(&userID)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, userID)
		})
	}
}

func TestGRPCAuthMiddleware_UnaryInterceptor(t *testing.T) {
	jwtService := auth.NewJWTService("secret")
	mw := NewGRPCAuthMiddleware(jwtService)

	token, err := jwtService.GenerateToken("grpc-user")
	require.NoError(t, err)

	handler := func(ctx context.Context, req any) (any, error) {
		userID, _ := GetUserIDFromContext(ctx)
		return userID, nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/paylink.PaymentLinkService/CreateShareLink"}

	tests := []struct {
		name     string
		ctx      context.Context
		wantUser string
		wantCode codes.Code
	}{
		{name: "no metadata", ctx: context.Background()},
		{name: "no token", ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs())},
		{name: "raw token", ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", token)), wantUser: "grpc-user"},
		{name: "bearer token", ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token)), wantUser: "grpc-user"},
		{name: "invalid token", ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "garbage")), wantCode: codes.Unauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := mw.UnaryInterceptor(tt.ctx, nil, info, handler)
			if tt.wantCode != codes.OK {
				assert.Equal(t, tt.wantCode, status.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, resp)
		})
	}
}
