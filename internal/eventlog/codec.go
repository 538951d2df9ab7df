package eventlog

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// Log is a decoded event. Values are keyed by parameter name and hold types.Address, string or
// uint64 according to the parameter kind.
type Log struct {
	Emitter types.Address
	Values  map[string]interface{}
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", types.ErrMalformedEventLog, fmt.Sprintf(format, args...))
}

// Decode parses raw against schema.
func Decode(s *Schema, raw []byte) (*Log, error) {
	var entry gethtypes.Log
	if err := rlp.DecodeBytes(raw, &entry); err != nil {
		return nil, malformed("log entry: %v", err)
	}

	want := 1 + s.indexedCount()
	if len(entry.Topics) != want {
		return nil, malformed("%s: expected %d topics, got %d", s.Name, want, len(entry.Topics))
	}
	if entry.Topics[0] != s.id {
		return nil, malformed("%s: topic 0 is %s, not the event id", s.Name, entry.Topics[0].Hex())
	}

	out := &Log{
		Emitter: types.AddressFromCommon(entry.Address),
		Values:  make(map[string]interface{}, len(s.Params)),
	}

	topic := 1
	for _, p := range s.Params {
		if !p.Indexed {
			continue
		}
		v, err := decodeTopic(p, entry.Topics[topic])
		if err != nil {
			return nil, malformed("%s.%s: %v", s.Name, p.Name, err)
		}
		out.Values[p.Name] = v
		topic++
	}

	unpacked, err := s.data.Unpack(entry.Data)
	if err != nil {
		return nil, malformed("%s data: %v", s.Name, err)
	}
	if len(unpacked) != len(s.data) {
		return nil, malformed("%s data: expected %d values, got %d", s.Name, len(s.data), len(unpacked))
	}
	// data must be the canonical encoding of what it decodes to
	repacked, err := s.data.Pack(unpacked...)
	if err != nil || !bytes.Equal(repacked, entry.Data) {
		return nil, malformed("%s data: non-canonical encoding", s.Name)
	}

	i := 0
	for _, p := range s.Params {
		if p.Indexed {
			continue
		}
		v, err := fromABI(p, unpacked[i])
		if err != nil {
			return nil, malformed("%s.%s: %v", s.Name, p.Name, err)
		}
		out.Values[p.Name] = v
		i++
	}
	return out, nil
}

// Encode is the inverse of Decode.
func Encode(s *Schema, l *Log) ([]byte, error) {
	topics := make([]common.Hash, 0, 1+s.indexedCount())
	topics = append(topics, s.id)
	data := make([]interface{}, 0, len(s.data))

	for _, p := range s.Params {
		v, ok := l.Values[p.Name]
		if !ok {
			return nil, fmt.Errorf("%s: missing value for %s", s.Name, p.Name)
		}
		if p.Indexed {
			t, err := encodeTopic(p, v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", s.Name, p.Name, err)
			}
			topics = append(topics, t)
			continue
		}
		a, err := toABI(p, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.Name, p.Name, err)
		}
		data = append(data, a)
	}

	packed, err := s.data.Pack(data...)
	if err != nil {
		return nil, fmt.Errorf("%s: pack data: %w", s.Name, err)
	}
	entry := &gethtypes.Log{
		Address: l.Emitter.Common(),
		Topics:  topics,
		Data:    packed,
	}
	return rlp.EncodeToBytes(entry)
}

func decodeTopic(p Param, topic common.Hash) (interface{}, error) {
	switch p.Kind {
	case KindAddress:
		for _, b := range topic[:common.HashLength-types.AddressLength] {
			if b != 0 {
				return nil, fmt.Errorf("address topic is not left padded")
			}
		}
		return types.AddressFromCommon(common.BytesToAddress(topic.Bytes())), nil
	case KindUInt:
		v := new(big.Int).SetBytes(topic.Bytes())
		if !v.IsUint64() {
			return nil, fmt.Errorf("integer %s overflows u64", v)
		}
		return v.Uint64(), nil
	default:
		return nil, fmt.Errorf("unsupported indexed kind %s", p.Kind)
	}
}

func encodeTopic(p Param, v interface{}) (common.Hash, error) {
	switch p.Kind {
	case KindAddress:
		a, ok := v.(types.Address)
		if !ok {
			return common.Hash{}, fmt.Errorf("expected types.Address, got %T", v)
		}
		return common.BytesToHash(a[:]), nil
	case KindUInt:
		n, ok := v.(uint64)
		if !ok {
			return common.Hash{}, fmt.Errorf("expected uint64, got %T", v)
		}
		return common.BigToHash(new(big.Int).SetUint64(n)), nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported indexed kind %s", p.Kind)
	}
}

func fromABI(p Param, v interface{}) (interface{}, error) {
	switch p.Kind {
	case KindAddress:
		a, ok := v.(common.Address)
		if !ok {
			return nil, fmt.Errorf("expected address, got %T", v)
		}
		return types.AddressFromCommon(a), nil
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case KindUInt:
		n, ok := v.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
		if !n.IsUint64() {
			return nil, fmt.Errorf("integer %s overflows u64", n)
		}
		return n.Uint64(), nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", p.Kind)
	}
}

func toABI(p Param, v interface{}) (interface{}, error) {
	switch p.Kind {
	case KindAddress:
		a, ok := v.(types.Address)
		if !ok {
			return nil, fmt.Errorf("expected types.Address, got %T", v)
		}
		return a.Common(), nil
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case KindUInt:
		n, ok := v.(uint64)
		if !ok {
			return nil, fmt.Errorf("expected uint64, got %T", v)
		}
		return new(big.Int).SetUint64(n), nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", p.Kind)
	}
}

// Address returns the named address value.
func (l *Log) Address(name string) (types.Address, error) {
	v, ok := l.Values[name].(types.Address)
	if !ok {
		return types.Address{}, malformed("missing address field %s", name)
	}
	return v, nil
}

// String returns the named string value.
func (l *Log) String(name string) (string, error) {
	v, ok := l.Values[name].(string)
	if !ok {
		return "", malformed("missing string field %s", name)
	}
	return v, nil
}

// Uint returns the named integer value.
func (l *Log) Uint(name string) (uint64, error) {
	v, ok := l.Values[name].(uint64)
	if !ok {
		return 0, malformed("missing integer field %s", name)
	}
	return v, nil
}
