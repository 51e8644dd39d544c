package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AccountID is a raw 32-byte Substrate public key.
type AccountID [32]byte

// ParseAccountID decodes a 0x-prefixed hex public key.
func ParseAccountID(s string) (AccountID, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("decode account id: %w", err)
	}
	if len(raw) != len(AccountID{}) {
		return AccountID{}, fmt.Errorf("account id must be 32 bytes, got %d", len(raw))
	}
	var id AccountID
	copy(id[:], raw)
	return id, nil
}

func (a AccountID) Bytes() []byte {
	return a[:]
}

func (a AccountID) String() string {
	return hexutil.Encode(a[:])
}

func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}
