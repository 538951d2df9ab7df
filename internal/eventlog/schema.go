// Package eventlog decodes and encodes the origin chain event logs carried inside proofs.
//
// A raw log is the RLP list [address, topics, data]. topics[0] is the keccak256 hash of the event
// signature, indexed parameters follow in declaration order, and the remaining parameters are ABI
// encoded in data.
package eventlog

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind is the wire type of a parameter.
type Kind uint8

const (
	KindAddress Kind = iota + 1
	KindString
	KindUInt
)

func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindString:
		return "string"
	case KindUInt:
		return "uint256"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Param is one declared event parameter.
type Param struct {
	Name    string
	Kind    Kind
	Indexed bool
}

// Schema is an ordered parameter list for one event.
type Schema struct {
	Name   string
	Params []Param

	id   common.Hash
	data abi.Arguments
}

// NewSchema validates the parameter list and precomputes the event id and data layout.
// Indexed strings are rejected since their topic only carries a hash.
func NewSchema(name string, params ...Param) (*Schema, error) {
	s := &Schema{Name: name, Params: params}
	seen := make(map[string]bool, len(params))
	sig := make([]string, 0, len(params))
	for _, p := range params {
		if p.Name == "" || seen[p.Name] {
			return nil, fmt.Errorf("event %s: duplicate or empty parameter name %q", name, p.Name)
		}
		seen[p.Name] = true

		t, err := abi.NewType(p.Kind.String(), "", nil)
		if err != nil {
			return nil, fmt.Errorf("event %s: parameter %s: %w", name, p.Name, err)
		}
		if p.Indexed && p.Kind == KindString {
			return nil, fmt.Errorf("event %s: indexed string parameter %s is not supported", name, p.Name)
		}
		if !p.Indexed {
			s.data = append(s.data, abi.Argument{Name: p.Name, Type: t})
		}
		sig = append(sig, p.Kind.String())
	}
	s.id = crypto.Keccak256Hash([]byte(name + "(" + strings.Join(sig, ",") + ")"))
	return s, nil
}

// MustSchema panics on an invalid declaration.
func MustSchema(name string, params ...Param) *Schema {
	s, err := NewSchema(name, params...)
	if err != nil {
		panic(err)
	}
	return s
}

// ID is topics[0] of every log of this event.
func (s *Schema) ID() common.Hash {
	return s.id
}

// Signature returns the canonical signature, e.g. "Locked(address,address,string,string,string)".
func (s *Schema) Signature() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.Kind.String()
	}
	return s.Name + "(" + strings.Join(parts, ",") + ")"
}

func (s *Schema) indexedCount() int {
	n := 0
	for _, p := range s.Params {
		if p.Indexed {
			n++
		}
	}
	return n
}

func (s *Schema) has(name string) bool {
	for _, p := range s.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Schemas of the final protocol revision.
var (
	LockedSchema = MustSchema("Locked",
		Param{Name: "token", Kind: KindAddress, Indexed: true},
		Param{Name: "sender", Kind: KindAddress, Indexed: true},
		Param{Name: "token_id", Kind: KindString},
		Param{Name: "account_id", Kind: KindString},
		Param{Name: "token_uri", Kind: KindString},
	)

	WithdrawSchema = MustSchema("Withdraw",
		Param{Name: "token_address", Kind: KindAddress, Indexed: true},
		Param{Name: "sender", Kind: KindAddress, Indexed: true},
		Param{Name: "token_account_id", Kind: KindString},
		Param{Name: "token_id", Kind: KindString},
		Param{Name: "account_id", Kind: KindString},
	)

	MetadataSchema = MustSchema("MetadataUpdated",
		Param{Name: "token", Kind: KindAddress, Indexed: true},
		Param{Name: "name", Kind: KindString},
		Param{Name: "symbol", Kind: KindString},
		Param{Name: "timestamp", Kind: KindUInt},
	)
)
