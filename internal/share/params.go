package share

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// PaymentLinkParams are the parameters of a wallet payment link
// (the paymentCode issued by the backend, not the mnid code).
type PaymentLinkParams struct {
	PaymentCode string `json:"paymentCode"`
	Reason      string `json:"reason,omitempty"`
	Category    string `json:"category,omitempty"`
	InviteCode  string `json:"inviteCode,omitempty"`
}

type paymentLinkPayload struct {
	P           string `json:"p"`
	PaymentCode string `json:"paymentCode"`
	R           string `json:"r"`
	Reason      string `json:"reason"`
	Cat         string `json:"cat"`
	I           string `json:"i"`
}

// ParsePaymentLinkParams reads paymentCode from query params. The current
// format is base64 JSON; older links carry the plain code and a separate
// reason parameter. It returns nil when there is no paymentCode.
func ParsePaymentLinkParams(params map[string]string) *PaymentLinkParams {
	paymentCode := params["paymentCode"]
	if paymentCode == "" {
		return nil
	}

	unescaped := unescape(paymentCode)

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(unescaped, "="))
	if err == nil {
		var payload paymentLinkPayload
		if err = json.Unmarshal(raw, &payload); err == nil {
			return &PaymentLinkParams{
				PaymentCode: firstNonEmpty(payload.P, payload.PaymentCode),
				Reason:      firstNonEmpty(payload.R, payload.Reason),
				Category:    payload.Cat,
				InviteCode:  payload.I,
			}
		}
	}

	log.Info().
		Str("paymentCode", paymentCode).
		Str("reason", params["reason"]).
		Msg("uses old format")

	result := &PaymentLinkParams{PaymentCode: unescaped}
	if reason := params["reason"]; reason != "" {
		result.Reason = unescape(reason)
	}

	return result
}

// ReadReceiveLink accepts a scanned receive link only if it is a URL that
// carries both receiveLink and reason.
func ReadReceiveLink(link string) (string, bool) {
	if !strings.Contains(link, "receiveLink") || !strings.Contains(link, "reason") {
		return "", false
	}

	candidate := link
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}

	if validate.Var(candidate, "url") != nil {
		return "", false
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return "", false
	}

	return link, true
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
