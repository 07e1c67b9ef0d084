// Package mnid encodes an account address together with its network identifier
// into a single checksummed base58 token (multi-network identifier).
package mnid

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

const (
	version      byte = 0x01
	checksumSize      = 4
	// minimal token: version byte, 20 address bytes and the checksum.
	fixedSize = 1 + common.AddressLength + checksumSize
)

var (
	ErrInvalidAddress = errors.New("invalid account address")
	ErrInvalidMnid    = errors.New("invalid mnid")
	ErrChecksum       = fmt.Errorf("%w: checksum mismatch", ErrInvalidMnid)
)

// NetworkAddress is the decoded form of a token.
type NetworkAddress struct {
	Address   string `json:"address"`
	NetworkID uint64 `json:"networkId"`
}

// Encode builds the token for address on networkID.
func Encode(address string, networkID uint64) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	network, err := networkBytes(networkID)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, fixedSize+len(network))
	payload = append(payload, version)
	payload = append(payload, network...)
	payload = append(payload, common.HexToAddress(address).Bytes()...)
	payload = append(payload, checksum(payload)...)

	return base58.Encode(payload), nil
}

// Decode validates token and returns the address and network it carries.
func Decode(token string) (NetworkAddress, error) {
	data, ok := structure(token)
	if !ok {
		return NetworkAddress{}, fmt.Errorf("%w: %q", ErrInvalidMnid, token)
	}

	netEnd := len(data) - common.AddressLength - checksumSize
	body, check := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	if !bytes.Equal(check, checksum(body)) {
		return NetworkAddress{}, ErrChecksum
	}

	network := data[1:netEnd]
	if len(network) == 0 || len(network) > 8 {
		return NetworkAddress{}, fmt.Errorf("%w: network identifier has %d bytes", ErrInvalidMnid, len(network))
	}

	var networkID uint64
	for _, b := range network {
		networkID = networkID<<8 | uint64(b)
	}

	return NetworkAddress{
		Address:   hexutil.Encode(data[netEnd : netEnd+common.AddressLength]),
		NetworkID: networkID,
	}, nil
}

// IsMNID reports whether token has the structure of an MNID. The checksum is
// only verified by Decode.
func IsMNID(token string) bool {
	_, ok := structure(token)
	return ok
}

func structure(token string) ([]byte, bool) {
	if token == "" {
		return nil, false
	}

	data, err := base58.Decode(token)
	if err != nil {
		return nil, false
	}

	return data, len(data) > fixedSize-1 && data[0] == version
}

// networkBytes renders networkID as the bytes of its hex form, padded on the
// left to a whole number of bytes.
func networkBytes(networkID uint64) ([]byte, error) {
	digits := strconv.FormatUint(networkID, 16)
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}

	return hexutil.Decode("0x" + digits)
}

func checksum(payload []byte) []byte {
	sum := sha3.Sum256(payload)
	return sum[:checksumSize]
}
