// Package ss58 encodes Substrate public keys as SS58 addresses.
package ss58

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// PicassoPrefix is the network prefix of the Picasso parachain.
const PicassoPrefix uint16 = 49

const maxPrefix = 16383

var checksumPreimage = []byte("SS58PRE")

var (
	ErrInvalidPrefix   = errors.New("invalid ss58 prefix")
	ErrInvalidKey      = errors.New("invalid public key length")
	ErrInvalidChecksum = errors.New("invalid ss58 checksum")
)

// Codec encodes addresses for a fixed network prefix.
type Codec struct {
	prefix uint16
}

func NewCodec(prefix uint16) (*Codec, error) {
	if err := checkPrefix(prefix); err != nil {
		return nil, err
	}
	return &Codec{prefix: prefix}, nil
}

// Picasso returns the codec used for Picasso accounts.
func Picasso() *Codec {
	return &Codec{prefix: PicassoPrefix}
}

func (c *Codec) Prefix() uint16 {
	return c.prefix
}

func (c *Codec) Encode(publicKey []byte) (string, error) {
	return Encode(publicKey, c.prefix)
}

// Encode returns the SS58 address of publicKey under prefix.
func Encode(publicKey []byte, prefix uint16) (string, error) {
	if err := checkPrefix(prefix); err != nil {
		return "", err
	}
	if !validKeyLength(len(publicKey)) {
		return "", fmt.Errorf("%w: %d", ErrInvalidKey, len(publicKey))
	}

	payload := append(prefixBytes(prefix), publicKey...)
	sum, err := checksum(payload)
	if err != nil {
		return "", err
	}
	return base58.Encode(append(payload, sum[:2]...)), nil
}

// Decode parses an SS58 address into its public key and prefix.
func Decode(address string) ([]byte, uint16, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, 0, fmt.Errorf("decode base58: %w", err)
	}
	if len(raw) < 3 {
		return nil, 0, fmt.Errorf("%w: address too short", ErrInvalidKey)
	}

	var prefix uint16
	prefixLen := 1
	if raw[0] < 64 {
		prefix = uint16(raw[0])
	} else {
		if len(raw) < 4 {
			return nil, 0, fmt.Errorf("%w: address too short", ErrInvalidKey)
		}
		lower := (uint16(raw[0]&0x3f) << 2) | uint16(raw[1]>>6)
		upper := uint16(raw[1] & 0x3f)
		prefix = lower | upper<<8
		prefixLen = 2
	}

	body := raw[:len(raw)-2]
	key := body[prefixLen:]
	if !validKeyLength(len(key)) {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidKey, len(key))
	}
	sum, err := checksum(body)
	if err != nil {
		return nil, 0, err
	}
	if !bytes.Equal(sum[:2], raw[len(raw)-2:]) {
		return nil, 0, ErrInvalidChecksum
	}
	return key, prefix, nil
}

func checkPrefix(prefix uint16) error {
	if prefix > maxPrefix || prefix == 46 || prefix == 47 {
		return fmt.Errorf("%w: %d", ErrInvalidPrefix, prefix)
	}
	return nil
}

// Only 32 and 33 byte keys use the two byte checksum handled here.
func validKeyLength(n int) bool {
	return n == 32 || n == 33
}

func prefixBytes(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0x00fc)>>2) | 0x40
	second := byte(prefix>>8) | byte(prefix&0x0003)<<6
	return []byte{first, second}
}

func checksum(payload []byte) ([64]byte, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return [64]byte{}, fmt.Errorf("init blake2b: %w", err)
	}
	h.Write(checksumPreimage)
	h.Write(payload)
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
