// Package paycode builds and reads the payload carried by G$ payment links.
package paycode

import (
	"fmt"

	"github.com/MikhailRaia/paylink/internal/mnid"
)

// Code is the compact payload placed in a shareable link. Keys are kept short
// because the whole object ends up base64-encoded inside a URL.
type Code struct {
	Mnid                    string `json:"m"`
	Amount                  *int64 `json:"a,omitempty"`
	Reason                  string `json:"r"`
	Category                string `json:"cat"`
	CounterPartyDisplayName string `json:"c,omitempty"`
}

// Intent is a validated payment request recovered from a code.
type Intent struct {
	NetworkID               uint64 `json:"networkId"`
	Address                 string `json:"address"`
	Amount                  int64  `json:"amount,omitempty"`
	Reason                  string `json:"reason,omitempty"`
	Category                string `json:"category,omitempty"`
	CounterPartyDisplayName string `json:"counterPartyDisplayName,omitempty"`
}

// Generate builds a Code for address on networkID. A nil amount leaves the
// amount out of the payload, an empty counterPartyDisplayName is dropped.
func Generate(address string, networkID uint64, amount *int64, reason, category, counterPartyDisplayName string) (Code, error) {
	if amount != nil && *amount < 0 {
		return Code{}, fmt.Errorf("generate code: %w: %d", ErrInvalidAmount, *amount)
	}

	token, err := mnid.Encode(address, networkID)
	if err != nil {
		return Code{}, fmt.Errorf("generate code: %w", err)
	}

	code := Code{
		Mnid:                    token,
		Reason:                  reason,
		Category:                category,
		CounterPartyDisplayName: counterPartyDisplayName,
	}
	if amount != nil {
		a := *amount
		code.Amount = &a
	}

	return code, nil
}
