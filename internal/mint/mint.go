// Package mint validates Solana token mint addresses.
//
// The engine treats token identifiers as opaque strings; this check is only
// applied where an identifier is about to be sent to the quote source.
package mint

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
)

// Well-known mints used by the demo seed.
const (
	WrappedSOL = "So11111111111111111111111111111111111111112"
	Bonk       = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

// AddressLen is the decoded size of a Solana public key.
const AddressLen = 32

// mintRegex matches the base58 alphabet at the lengths a 32-byte key encodes to.
var mintRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

var (
	ErrInvalidMint   = errors.New("mint: invalid address format")
	ErrInvalidLength = errors.New("mint: address does not decode to 32 bytes")
)

// Mint is a parsed token mint address.
type Mint struct {
	Address string `json:"address"`
	Key     []byte `json:"-"`
}

func (m Mint) String() string { return m.Address }

// Parse validates and decodes a mint address.
func Parse(s string) (Mint, error) {
	addr := strings.TrimSpace(s)
	if !mintRegex.MatchString(addr) {
		return Mint{}, fmt.Errorf("%w: %q", ErrInvalidMint, s)
	}

	key, err := base58.Decode(addr)
	if err != nil {
		return Mint{}, fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if len(key) != AddressLen {
		return Mint{}, fmt.Errorf("%w: got %d", ErrInvalidLength, len(key))
	}

	return Mint{Address: addr, Key: key}, nil
}

// Valid reports whether s parses as a mint address.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
