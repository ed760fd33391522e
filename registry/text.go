package registry

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// ParseAccount decodes account from either Neo address or 40-char
// little-endian hex string with optional 0x prefix.
func ParseAccount(s string) (AccountID, error) {
	if acc, err := address.StringToUint160(s); err == nil {
		return acc, nil
	}

	acc, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return AccountID{}, fmt.Errorf("invalid account %q: neither address nor LE hex", s)
	}

	return acc, nil
}

// AccountString returns Neo address of the account.
func AccountString(acc AccountID) string {
	return address.Uint160ToString(acc)
}

// ParseHash decodes 64-char big-endian hex string with optional 0x prefix.
func ParseHash(s string) (Hash, error) {
	h, err := util.Uint256DecodeStringBE(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return h, nil
}
