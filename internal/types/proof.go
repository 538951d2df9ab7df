package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
)

// Proof is the bundle a relay submits for an origin chain event. Only LogEntryData is interpreted
// by the bridge, the rest is forwarded to the verifier.
type Proof struct {
	LogIndex     uint64          `json:"log_index"`
	LogEntryData hexutil.Bytes   `json:"log_entry_data"`
	ReceiptIndex uint64          `json:"receipt_index"`
	ReceiptData  hexutil.Bytes   `json:"receipt_data"`
	HeaderData   hexutil.Bytes   `json:"header_data"`
	ProofPath    []hexutil.Bytes `json:"proof_path"`
}

// EncodeProof serializes the proof as an RLP list in field order.
func EncodeProof(p *Proof) ([]byte, error) {
	return rlp.EncodeToBytes(p)
}

// DecodeProof is the inverse of EncodeProof.
func DecodeProof(data []byte) (*Proof, error) {
	var p Proof
	if err := rlp.DecodeBytes(data, &p); err != nil {
		return nil, fmt.Errorf("decode proof: %w", err)
	}
	return &p, nil
}

// FingerprintLength is the size of a replay fingerprint.
const FingerprintLength = sha256.Size

// Fingerprint identifies one origin chain event for replay protection.
type Fingerprint [FingerprintLength]byte

// ComputeFingerprint hashes log_index and receipt_index (u64 little endian) followed by header_data.
func ComputeFingerprint(p *Proof) Fingerprint {
	var idx [16]byte
	binary.LittleEndian.PutUint64(idx[:8], p.LogIndex)
	binary.LittleEndian.PutUint64(idx[8:], p.ReceiptIndex)

	h := sha256.New()
	h.Write(idx[:])
	h.Write(p.HeaderData)

	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

func (f Fingerprint) String() string {
	return f.Hex()
}
