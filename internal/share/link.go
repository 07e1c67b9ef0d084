// Package share assembles shareable G$ payment links and the messages sent
// along with them, and parses links coming back into the wallet.
package share

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrEmptyLink is returned when a link would carry no destination or no payload.
var ErrEmptyLink = errors.New("link couldn't be generated")

// Action selects the destination of a link.
type Action string

const (
	ActionReceive Action = "receive"
	ActionSend    Action = "send"
)

// ParseAction maps a route or request value to an Action.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionReceive, ActionSend:
		return Action(s), true
	default:
		return "", false
	}
}

// QueryParam is the query parameter a link of this action carries its payload in.
func (a Action) QueryParam() string {
	if a == ActionSend {
		return "paymentCode"
	}
	return "code"
}

// Config holds link destinations. In short URL mode the payload becomes the
// last path segment so a server can expand it.
type Config struct {
	ReceiveURL     string `json:"receive_url"`
	SendURL        string `json:"send_url"`
	EnableShortURL bool   `json:"enable_short_url"`
}

func (c Config) destination(action Action) string {
	switch action {
	case ActionReceive:
		return c.ReceiveURL
	case ActionSend:
		return c.SendURL
	default:
		return ""
	}
}

// GenerateShareLink serializes params into a link for action.
func GenerateShareLink(cfg Config, action Action, params any) (string, error) {
	if cfg.destination(action) == "" {
		return "", ErrEmptyLink
	}

	payload, err := EncodePayload(params)
	if err != nil {
		return "", err
	}

	return BuildLink(cfg, action, payload)
}

// EncodePayload turns params into the escaped link payload: JSON, base64
// without padding, then component escaping for '+' and '/'.
func EncodePayload(params any) (string, error) {
	raw, err := marshalJSON(params)
	if err != nil {
		return "", fmt.Errorf("encode link payload: %w", err)
	}

	if isEmptyJSON(raw) {
		return "", ErrEmptyLink
	}

	encoded := strings.TrimRight(base64.StdEncoding.EncodeToString(raw), "=")
	return EscapeComponent(encoded), nil
}

// BuildLink places an already escaped payload on the destination of action.
func BuildLink(cfg Config, action Action, payload string) (string, error) {
	destination := cfg.destination(action)
	if destination == "" || payload == "" {
		return "", ErrEmptyLink
	}

	var link string
	if cfg.EnableShortURL {
		link = destination + "/" + payload
	} else {
		link = destination + "?" + action.QueryParam() + "=" + payload
	}

	return EscapeURI(link), nil
}

// PayloadFromLink returns the payload of a link built by BuildLink, unescaped
// once, as a router would hand it to the wallet. The result is what
// paycode.Read expects.
func PayloadFromLink(link string) (string, bool) {
	params := ExtractQueryParams(link)
	raw := params[ActionSend.QueryParam()]
	if raw == "" {
		raw = params[ActionReceive.QueryParam()]
	}

	if raw == "" {
		path := link
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
		if u, err := url.Parse(path); err == nil && u.Host != "" && strings.Trim(u.EscapedPath(), "/") == "" {
			return "", false
		}
		raw = path[strings.LastIndexByte(path, '/')+1:]
	}

	if raw == "" {
		return "", false
	}

	payload, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}

	return payload, true
}

// ExtractQueryParams splits the query of link into raw, undecoded pairs.
func ExtractQueryParams(link string) map[string]string {
	result := make(map[string]string)

	_, query, found := strings.Cut(link, "?")
	if !found {
		return result
	}
	query, _, _ = strings.Cut(query, "#")

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		result[key] = value
	}

	return result
}

// marshalJSON serializes v the way JSON.stringify does, so payloads match
// those built by the wallet clients: '&', '<', '>', U+2028 and U+2029 are
// written as is.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json
// always emits back into raw characters. Escape sequences are walked pairwise
// so an escaped backslash followed by "u2028" text is left alone.
func unescapeLineSeparators(raw []byte) []byte {
	if !bytes.Contains(raw, []byte(`\u202`)) {
		return raw
	}

	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			out = append(out, raw[i])
			continue
		}

		if i+6 <= len(raw) && raw[i+1] == 'u' {
			switch string(raw[i+2 : i+6]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}

		out = append(out, raw[i], raw[i+1])
		i++
	}

	return out
}

func isEmptyJSON(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "{}", "[]", `""`:
		return true
	default:
		return false
	}
}
