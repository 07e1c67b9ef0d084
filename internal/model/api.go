package model

import (
	"time"

	"github.com/MikhailRaia/paylink/internal/paycode"
)

// CodeRequest asks for a payment code. A nil NetworkID means the service default.
type CodeRequest struct {
	Address                 string  `json:"address" validate:"required"`
	NetworkID               *uint64 `json:"networkId,omitempty" validate:"omitempty,min=1"`
	Amount                  *int64  `json:"amount,omitempty" validate:"omitempty,min=0"`
	Reason                  string  `json:"reason,omitempty"`
	Category                string  `json:"category,omitempty"`
	CounterPartyDisplayName string  `json:"counterPartyDisplayName,omitempty"`
}

// CodeResponse carries a generated code. Code is the escaped payload as it
// appears in links.
type CodeResponse struct {
	Code    string       `json:"code"`
	Payload paycode.Code `json:"payload"`
}

// ShareLinkRequest asks for a shareable link and the message to send with it.
type ShareLinkRequest struct {
	CodeRequest
	Action   string `json:"action" validate:"required,oneof=send receive"`
	To       string `json:"to,omitempty"`
	From     string `json:"from,omitempty"`
	CanShare bool   `json:"canShare,omitempty"`
}

// ShareLinkResponse describes an issued link.
type ShareLinkResponse struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Href    string `json:"href,omitempty"`
}

// BatchLinkRequestItem is one element of a batch link request.
type BatchLinkRequestItem struct {
	CorrelationID string `json:"correlation_id" validate:"required"`
	ShareLinkRequest
}

// BatchLinkResponseItem is one element of a batch link response.
type BatchLinkResponseItem struct {
	CorrelationID string `json:"correlation_id"`
	ID            string `json:"id"`
	URL           string `json:"url"`
}

// WithdrawStatusResponse is returned by the withdraw status lookup.
type WithdrawStatusResponse struct {
	ID        string          `json:"id"`
	Status    LinkStatus      `json:"status"`
	Action    string          `json:"action"`
	CreatedAt time.Time       `json:"created_at"`
	Intent    *paycode.Intent `json:"intent,omitempty"`
}

// UserLink is the external representation of a user's link.
type UserLink struct {
	ID     string     `json:"id"`
	URL    string     `json:"url"`
	Action string     `json:"action"`
	Status LinkStatus `json:"status"`
}

// Stats is returned by the internal stats endpoint.
type Stats struct {
	Links int `json:"links"`
	Users int `json:"users"`
}
