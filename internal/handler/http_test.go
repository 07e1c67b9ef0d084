package handler

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikhailRaia/paylink/internal/auth"
	"github.com/MikhailRaia/paylink/internal/config"
	"github.com/MikhailRaia/paylink/internal/metrics"
	"github.com/MikhailRaia/paylink/internal/middleware"
	"github.com/MikhailRaia/paylink/internal/model"
	"github.com/MikhailRaia/paylink/internal/paycode"
	"github.com/MikhailRaia/paylink/internal/service"
	"github.com/MikhailRaia/paylink/internal/share"
	"github.com/MikhailRaia/paylink/internal/storage/memory"
)

const (
	testAddress = "0x00521965e7bd230323c423d96c657db5b79d099f"
	testMnid    = "2nQtiQG6Cgm1GYTBaaKAgr76uY7iSexUkqX"
)

type recordingCanceller struct {
	mu    sync.Mutex
	calls map[string][]string
	err   error
}

func (c *recordingCanceller) Submit(userID string, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.calls == nil {
		c.calls = make(map[string][]string)
	}
	c.calls[userID] = append(c.calls[userID], ids...)
	return nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error {
	return errors.New("connection refused")
}

type testServer struct {
	router    http.Handler
	service   *service.PaymentService
	jwt       *auth.JWTService
	canceller *recordingCanceller
}

func newTestServer(t *testing.T, shortURL bool) *testServer {
	t.Helper()

	cfg := &config.Config{
		AppURL:         "https://wallet.example",
		ReceiveURL:     "https://w.org/receive",
		SendURL:        "https://w.org/send",
		EnableShortURL: shortURL,
		NetworkID:      122,
	}
	m := metrics.NewMetrics()
	svc := service.NewPaymentService(memory.NewStorage(), cfg, m)
	jwtService := auth.NewJWTService("test-secret")
	canceller := &recordingCanceller{}

	h := NewHandler(svc, Options{
		Canceller:     canceller,
		Auth:          middleware.NewAuthMiddleware(jwtService),
		Metrics:       m,
		TrustedSubnet: "10.0.0.0/8",
	})

	return &testServer{router: h.RegisterRoutes(), service: svc, jwt: jwtService, canceller: canceller}
}

func (s *testServer) do(t *testing.T, method, target, body string, prepare ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, p := range prepare {
		p(req)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func withUser(t *testing.T, jwtService *auth.JWTService, userID string) func(*http.Request) {
	token, err := jwtService.GenerateToken(userID)
	require.NoError(t, err)
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: token})
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func linkBody(action, reason string) string {
	return `{"address":"` + testAddress + `","amount":1250,"reason":"` + reason + `","action":"` + action + `","from":"Alice"}`
}

func TestHandler_GenerateAndReadCode(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/code", `{"address":"`+testAddress+`","networkId":1,"amount":50,"reason":"coffee"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[model.CodeResponse](t, rec)
	assert.Equal(t, testMnid, resp.Payload.Mnid)
	require.NotNil(t, resp.Payload.Amount)
	assert.Equal(t, int64(50), *resp.Payload.Amount)
	assert.NotContains(t, resp.Code, "/")

	rec = s.do(t, http.MethodGet, "/api/code/"+resp.Code, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	intent := decode[paycode.Intent](t, rec)
	assert.Equal(t, paycode.Intent{NetworkID: 1, Address: testAddress, Amount: 50, Reason: "coffee"}, intent)
}

func TestHandler_GenerateCodeErrors(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
		wantError   string
	}{
		{name: "missing address", body: `{"reason":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "negative amount", body: `{"address":"` + testAddress + `","amount":-5}`, wantStatus: http.StatusBadRequest},
		{name: "invalid address", body: `{"address":"0x12"}`, wantStatus: http.StatusBadRequest, wantError: "invalid account address"},
		{name: "malformed json", body: `{"address":`, wantStatus: http.StatusBadRequest, wantError: "invalid JSON body"},
		{name: "wrong content type", body: `{}`, contentType: "text/plain", wantStatus: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/code", tt.body, func(r *http.Request) {
				if tt.contentType != "" {
					r.Header.Set("Content-Type", tt.contentType)
				}
			})

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Contains(t, decode[errorResponse](t, rec).Error, tt.wantError)
			}
		})
	}
}

func TestHandler_ReadCodeInvalid(t *testing.T) {
	s := newTestServer(t, false)

	for _, code := range []string{"garbage", "eyJtIjoiWCJ9", "eyJtIjoiZ2FyYmFnZSJ9"} {
		rec := s.do(t, http.MethodGet, "/api/code/"+code, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, code)
		assert.JSONEq(t, `{"error":"invalid link"}`, rec.Body.String())
	}
}

func TestHandler_CreateLink(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/link", linkBody("receive", "dinner"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.AuthCookieName, cookies[0].Name)

	created := decode[model.ShareLinkResponse](t, rec)
	assert.True(t, strings.HasPrefix(created.URL, "https://w.org/receive?code="), created.URL)
	assert.Contains(t, created.Message, "You've got a request from Alice for 12.50 G$")

	rec = s.do(t, http.MethodPost, "/api/link", linkBody("receive", "dinner"), func(r *http.Request) {
		r.AddCookie(cookies[0])
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, created.ID, decode[model.ShareLinkResponse](t, rec).ID)

	rec = s.do(t, http.MethodPost, "/api/link", linkBody("pay", "dinner"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_CreateLinkBatch(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/link/batch", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/link/batch", `[{"address":"`+testAddress+`","action":"send"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing correlation id")

	body := `[
		{"correlation_id":"a","address":"` + testAddress + `","action":"send","reason":"one"},
		{"correlation_id":"b","address":"` + testAddress + `","action":"receive","reason":"two"}
	]`
	rec = s.do(t, http.MethodPost, "/api/link/batch", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	items := decode[[]model.BatchLinkResponseItem](t, rec)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].CorrelationID)
	assert.True(t, strings.HasPrefix(items[0].URL, "https://w.org/send?paymentCode="))
	assert.True(t, strings.HasPrefix(items[1].URL, "https://w.org/receive?code="))
}

func TestHandler_UserLinks(t *testing.T) {
	s := newTestServer(t, false)
	asUser := withUser(t, s.jwt, "user-1")

	rec := s.do(t, http.MethodGet, "/api/user/links", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/links", "", asUser)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/link", linkBody("send", "gift"), asUser)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.ShareLinkResponse](t, rec)

	rec = s.do(t, http.MethodGet, "/api/user/links", "", asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	links := decode[[]model.UserLink](t, rec)
	require.Len(t, links, 1)
	assert.Equal(t, model.UserLink{ID: created.ID, URL: created.URL, Action: "send", Status: model.StatusPending}, links[0])

	rec = s.do(t, http.MethodDelete, "/api/user/links", `["`+created.ID+`"]`, asUser)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{created.ID}, s.canceller.calls["user-1"])

	rec = s.do(t, http.MethodDelete, "/api/user/links", `[]`, asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.canceller.err = errors.New("closed")
	rec = s.do(t, http.MethodDelete, "/api/user/links", `["x"]`, asUser)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_Withdraw(t *testing.T) {
	s := newTestServer(t, false)

	resp, err := s.service.CreateShareLink(context.Background(), "", model.ShareLinkRequest{
		CodeRequest: model.CodeRequest{Address: testAddress, Reason: "withdraw me"},
		Action:      "send",
	})
	require.NoError(t, err)
	path := "/api/withdraw/" + share.EscapeComponent(resp.Code)

	rec := s.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status := decode[model.WithdrawStatusResponse](t, rec)
	assert.Equal(t, model.StatusPending, status.Status)
	require.NotNil(t, status.Intent)
	assert.Equal(t, "withdraw me", status.Intent.Reason)

	rec = s.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusWithdrawn, decode[model.WithdrawStatusResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, path, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/withdraw/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Stats(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/link", linkBody("send", "stats"))
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name       string
		realIP     string
		wantStatus int
	}{
		{name: "no header", wantStatus: http.StatusForbidden},
		{name: "outside subnet", realIP: "192.168.1.1", wantStatus: http.StatusForbidden},
		{name: "garbage", realIP: "not-an-ip", wantStatus: http.StatusForbidden},
		{name: "inside subnet", realIP: "10.1.2.3", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/internal/stats", "", func(r *http.Request) {
				if tt.realIP != "" {
					r.Header.Set("X-Real-IP", tt.realIP)
				}
			})

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, model.Stats{Links: 1, Users: 1}, decode[model.Stats](t, rec))
			}
		})
	}
}

func TestHandler_ExpandShortLink(t *testing.T) {
	s := newTestServer(t, true)

	resp, err := s.service.CreateShareLink(context.Background(), "", model.ShareLinkRequest{
		CodeRequest: model.CodeRequest{Address: testAddress, Reason: "a/b+c?"},
		Action:      "receive",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.URL, "https://w.org/receive/"), resp.URL)

	rec := s.do(t, http.MethodGet, strings.TrimPrefix(resp.URL, "https://w.org"), "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code, rec.Body.String())

	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "https://wallet.example?code="), location)

	intent, err := s.service.ReadCode(context.Background(), location)
	require.NoError(t, err)
	assert.Equal(t, "a/b+c?", intent.Reason)

	rec = s.do(t, http.MethodGet, "/send/garbage", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Ping(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(t, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h := NewHandler(s.service, Options{DBPinger: failingPinger{}})
	rec = httptest.NewRecorder()
	h.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_Metrics(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/code", `{"address":"`+testAddress+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paylink_codes_generated_total 1")
	assert.Contains(t, rec.Body.String(), `route="/api/code"`)
}

func TestHandler_Compression(t *testing.T) {
	s := newTestServer(t, false)

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	_, err := gz.Write([]byte(`{"address":"` + testAddress + `","networkId":1}`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/code", &compressed)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	reader, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)

	var resp model.CodeResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, testMnid, resp.Payload.Mnid)
}
