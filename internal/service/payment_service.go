package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MikhailRaia/paylink/internal/config"
	"github.com/MikhailRaia/paylink/internal/metrics"
	"github.com/MikhailRaia/paylink/internal/model"
	"github.com/MikhailRaia/paylink/internal/paycode"
	"github.com/MikhailRaia/paylink/internal/share"
	"github.com/MikhailRaia/paylink/internal/storage"
)

var (
	ErrInvalidLink   = errors.New("invalid link")
	ErrInvalidAction = errors.New("unknown link action")
)

// maxUnescapeRounds bounds percent-decoding of codes that went through
// several layers of URL encoding.
const maxUnescapeRounds = 4

// PaymentService issues payment codes and links and tracks their withdrawal.
type PaymentService struct {
	storage   storage.LinkStorage
	links     share.Config
	app       share.Config
	networkID uint64
	metrics   *metrics.Metrics
}

// NewPaymentService constructs a PaymentService. m may be nil.
func NewPaymentService(storage storage.LinkStorage, cfg *config.Config, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		storage:   storage,
		links:     cfg.Share(),
		app:       cfg.AppShare(),
		networkID: cfg.NetworkID,
		metrics:   m,
	}
}

// GenerateCode builds a payment code. Without a network id the configured
// default network is used.
func (s *PaymentService) GenerateCode(req model.CodeRequest) (paycode.Code, error) {
	networkID := s.networkID
	if req.NetworkID != nil {
		networkID = *req.NetworkID
	}

	code, err := paycode.Generate(req.Address, networkID, req.Amount, req.Reason, req.Category, req.CounterPartyDisplayName)
	if err != nil {
		return paycode.Code{}, err
	}

	s.metrics.CodeGenerated()
	return code, nil
}

// ReadCode decodes a payment code. A full share link is accepted as well.
func (s *PaymentService) ReadCode(_ context.Context, code string) (*paycode.Intent, error) {
	if strings.Contains(code, "://") {
		payload, ok := share.PayloadFromLink(code)
		if !ok {
			s.metrics.CodeDecoded(metrics.OutcomeInvalid)
			return nil, ErrInvalidLink
		}
		code = payload
	}

	intent := paycode.Read(code)
	if intent == nil {
		s.metrics.CodeDecoded(metrics.OutcomeInvalid)
		return nil, ErrInvalidLink
	}

	s.metrics.CodeDecoded(metrics.OutcomeOK)
	return intent, nil
}

// CreateShareLink generates a code, wraps it into a link of the requested
// action and registers the link. When the same code was registered before the
// existing id is returned together with storage.ErrLinkExists.
func (s *PaymentService) CreateShareLink(ctx context.Context, userID string, req model.ShareLinkRequest) (model.ShareLinkResponse, error) {
	action, ok := share.ParseAction(req.Action)
	if !ok {
		return model.ShareLinkResponse{}, ErrInvalidAction
	}

	code, err := s.GenerateCode(req.CodeRequest)
	if err != nil {
		return model.ShareLinkResponse{}, err
	}

	payload, err := share.EncodePayload(code)
	if err != nil {
		return model.ShareLinkResponse{}, err
	}

	var amount int64
	if req.Amount != nil {
		amount = *req.Amount
	}

	var obj share.ShareObject
	switch action {
	case share.ActionSend:
		link, err := share.BuildLink(s.links, action, payload)
		if err != nil {
			return model.ShareLinkResponse{}, err
		}
		obj = share.SendShareObject(link, amount, req.To, req.From, req.CanShare)
	default:
		obj, err = share.ReceiveShareObject(s.links, code, amount, req.To, req.From, req.CanShare)
		if err != nil {
			return model.ShareLinkResponse{}, err
		}
	}

	resp := model.ShareLinkResponse{
		URL:     obj.URL,
		Code:    codeKey(payload),
		Title:   obj.Title,
		Message: obj.Message,
	}
	if href, ok := share.NewHrefLink(obj, req.To); ok {
		resp.Href = href.Link
	}

	id, err := s.storage.Save(ctx, model.PaymentLink{
		Code:   resp.Code,
		Action: string(action),
		URL:    resp.URL,
		UserID: userID,
	})
	resp.ID = id
	if err != nil {
		if errors.Is(err, storage.ErrLinkExists) && id != "" {
			return resp, err
		}
		return model.ShareLinkResponse{}, fmt.Errorf("failed to register link: %w", err)
	}

	s.metrics.LinkCreated(string(action))
	log.Debug().
		Str("id", id).
		Str("action", string(action)).
		Str("userID", userID).
		Msg("Payment link created")

	return resp, nil
}

// CreateShareLinkBatch creates links for every item. Items whose code is
// already registered resolve to the existing link.
func (s *PaymentService) CreateShareLinkBatch(ctx context.Context, userID string, items []model.BatchLinkRequestItem) ([]model.BatchLinkResponseItem, error) {
	result := make([]model.BatchLinkResponseItem, 0, len(items))
	for _, item := range items {
		resp, err := s.CreateShareLink(ctx, userID, item.ShareLinkRequest)
		if err != nil && !errors.Is(err, storage.ErrLinkExists) {
			return nil, fmt.Errorf("error creating link %q: %w", item.CorrelationID, err)
		}

		result = append(result, model.BatchLinkResponseItem{
			CorrelationID: item.CorrelationID,
			ID:            resp.ID,
			URL:           resp.URL,
		})
	}

	return result, nil
}

// WithdrawStatus reports the status of a registered link together with the
// intent its code carries.
func (s *PaymentService) WithdrawStatus(ctx context.Context, code string) (model.WithdrawStatusResponse, error) {
	key := codeKey(code)
	link, err := s.storage.GetByCode(ctx, key)
	if err != nil {
		return model.WithdrawStatusResponse{}, err
	}

	s.metrics.WithdrawLookup(string(link.Status))

	return model.WithdrawStatusResponse{
		ID:        link.ID,
		Status:    link.Status,
		Action:    link.Action,
		CreatedAt: link.CreatedAt,
		Intent:    paycode.Read(key),
	}, nil
}

// Withdraw marks a pending link as withdrawn.
func (s *PaymentService) Withdraw(ctx context.Context, code string) error {
	return s.storage.UpdateStatus(ctx, codeKey(code), model.StatusPending, model.StatusWithdrawn)
}

// GetUserLinks lists the links issued by a user.
func (s *PaymentService) GetUserLinks(ctx context.Context, userID string) ([]model.UserLink, error) {
	links, err := s.storage.GetUserLinks(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]model.UserLink, 0, len(links))
	for _, link := range links {
		result = append(result, model.UserLink{
			ID:     link.ID,
			URL:    link.URL,
			Action: link.Action,
			Status: link.Status,
		})
	}

	return result, nil
}

// CancelUserLinks cancels pending links owned by userID.
func (s *PaymentService) CancelUserLinks(ctx context.Context, userID string, ids []string) error {
	return s.storage.CancelUserLinks(ctx, userID, ids)
}

// GetStats returns the number of issued links and of users who issued them.
func (s *PaymentService) GetStats(ctx context.Context) (model.Stats, error) {
	links, users, err := s.storage.GetStats(ctx)
	if err != nil {
		return model.Stats{}, err
	}

	return model.Stats{Links: links, Users: users}, nil
}

// ExpandShortLink turns the payload of a short link into the wallet app link
// that carries it as a query parameter.
func (s *PaymentService) ExpandShortLink(ctx context.Context, action share.Action, payload string) (string, error) {
	key := codeKey(payload)
	if _, err := s.ReadCode(ctx, key); err != nil {
		return "", err
	}

	return share.BuildLink(s.app, action, share.EscapeComponent(key))
}

// codeKey reduces any escaped form of a code to its raw base64 text without
// padding, the form links are registered under.
func codeKey(code string) string {
	for i := 0; i < maxUnescapeRounds; i++ {
		unescaped, err := url.PathUnescape(code)
		if err != nil || unescaped == code {
			break
		}
		code = unescaped
	}

	return strings.TrimRight(code, "=")
}
