package paycode

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MikhailRaia/paylink/internal/mnid"
)

var (
	ErrInvalidAmount    = errors.New("amount must not be negative")
	ErrInvalidMnid      = errors.New("code does not carry a valid mnid")
	ErrMalformedPayload = errors.New("malformed code payload")
	ErrUnexpectedDecode = errors.New("unexpected code decode failure")
)

// absent is what an older encoder wrote for missing fields.
const absent = "undefined"

type fields struct {
	mnid                    string
	amount                  string
	reason                  string
	category                string
	counterPartyDisplayName string
}

type decodeStrategy func(decoded string) (fields, error)

// Current base64 JSON payloads first, then the oldest pipe-delimited form.
var strategies = []decodeStrategy{jsonPayload, pipePayload}

// Read extracts the payment intent from a code produced by Generate and
// GenerateShareLink, or by older clients. It returns nil for anything that is
// not a valid payment code and never panics.
func Read(code string) (intent *Intent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("code", code).
				Interface("panic", r).
				Msg("readCode failed")
			intent = nil
		}
	}()

	intent, err := Decode(code)
	if err != nil {
		log.Error().
			Err(err).
			Str("code", code).
			Msg("readCode failed")
		return nil
	}

	return intent
}

// Decode is Read with the failure cause reported as an error.
func Decode(code string) (*Intent, error) {
	decoded, err := url.PathUnescape(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedDecode, err)
	}

	f, err := pick(decoded)
	if err != nil {
		return nil, err
	}

	address, err := mnid.Decode(f.mnid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnid, err)
	}

	return &Intent{
		NetworkID:               address.NetworkID,
		Address:                 address.Address,
		Amount:                  parseAmount(f.amount),
		Reason:                  normalize(f.reason),
		Category:                normalize(f.category),
		CounterPartyDisplayName: normalize(f.counterPartyDisplayName),
	}, nil
}

// pick returns the fields of the first strategy whose mnid is structurally valid.
func pick(decoded string) (fields, error) {
	var lastErr error
	for _, strategy := range strategies {
		f, err := strategy(decoded)
		if err != nil {
			lastErr = err
			continue
		}

		if !mnid.IsMNID(f.mnid) {
			lastErr = ErrInvalidMnid
			continue
		}

		return f, nil
	}

	if errors.Is(lastErr, ErrInvalidMnid) {
		return fields{}, lastErr
	}
	return fields{}, fmt.Errorf("%w: %v", ErrInvalidMnid, lastErr)
}

func jsonPayload(decoded string) (fields, error) {
	raw, err := decodeBase64(decoded)
	if err != nil {
		return fields{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return fields{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if obj == nil {
		return fields{}, fmt.Errorf("%w: null payload", ErrMalformedPayload)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fields{}, fmt.Errorf("%w: trailing data after payload", ErrMalformedPayload)
	}

	return fields{
		mnid:                    lookup(obj, "m", "mnid"),
		amount:                  lookup(obj, "a", "amount"),
		reason:                  lookup(obj, "r", "reason"),
		category:                lookup(obj, "cat", "category"),
		counterPartyDisplayName: lookup(obj, "c", "counterPartyDisplayName"),
	}, nil
}

func pipePayload(decoded string) (fields, error) {
	parts := strings.Split(decoded, "|")
	at := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	return fields{
		mnid:                    at(0),
		amount:                  at(1),
		reason:                  at(2),
		category:                at(3),
		counterPartyDisplayName: at(4),
	}, nil
}

// decodeBase64 accepts both alphabets, with or without padding.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	return base64.RawStdEncoding.DecodeString(s)
}

// lookup prefers the short key and falls back to the long one when the short
// value is missing or empty.
func lookup(obj map[string]any, short, long string) string {
	if v := scalar(obj[short]); v != "" {
		return v
	}
	return scalar(obj[long])
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func normalize(s string) string {
	if s == absent {
		return ""
	}
	return s
}

// parseAmount reads the leading integer of s. Zero, negative and non-numeric
// values mean no amount.
func parseAmount(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}

	amount, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}

	return amount
}
