package types

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressLength is the size of an origin chain address in bytes.
const AddressLength = 20

// Address is an origin chain address. The zero value is the all-zero address.
type Address [AddressLength]byte

// DecodeAddress parses exactly 40 hex characters. Upper and lower case digits are accepted.
func DecodeAddress(s string) (Address, error) {
	var a Address
	if len(s) != 2*AddressLength {
		return a, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidAddress, 2*AddressLength, len(s))
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return a, nil
}

// ParseAddressInput accepts user supplied text, trimming whitespace and an optional 0x prefix.
func ParseAddressInput(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	return DecodeAddress(s)
}

// MustDecodeAddress is DecodeAddress for constants and fixtures.
func MustDecodeAddress(s string) Address {
	a, err := DecodeAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromCommon converts a go-ethereum address.
func AddressFromCommon(c common.Address) Address {
	return Address(c)
}

// Common converts to a go-ethereum address.
func (a Address) Common() common.Address {
	return common.Address(a)
}

// Hex returns the canonical lowercase form without prefix.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Hex())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	decoded, err := ParseAddressInput(s)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// Value stores the canonical hex string.
func (a Address) Value() (driver.Value, error) {
	return a.Hex(), nil
}

// Scan reads the canonical hex string written by Value.
func (a *Address) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*a = Address{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Address", src)
	}
	decoded, err := DecodeAddress(s)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}
