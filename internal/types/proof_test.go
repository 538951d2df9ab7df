package types

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProof() *Proof {
	return &Proof{
		LogIndex:     1,
		LogEntryData: hexutil.Bytes{0xc0},
		ReceiptIndex: 2,
		ReceiptData:  hexutil.Bytes{0x01, 0x02},
		HeaderData:   hexutil.Bytes("header"),
		ProofPath:    []hexutil.Bytes{{0xaa}, {0xbb, 0xcc}},
	}
}

func TestProofEncodeDecode(t *testing.T) {
	p := sampleProof()
	raw, err := EncodeProof(p)
	require.NoError(t, err)

	back, err := DecodeProof(raw)
	require.NoError(t, err)
	assert.Equal(t, p, back)

	_, err = DecodeProof(raw[:len(raw)-1])
	require.Error(t, err)
}

func TestComputeFingerprint(t *testing.T) {
	p := sampleProof()

	want := sha256.Sum256(append([]byte{1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}, []byte("header")...))
	assert.Equal(t, Fingerprint(want), ComputeFingerprint(p))

	// payloads outside the fingerprint do not change it
	other := sampleProof()
	other.ReceiptData = hexutil.Bytes{0xff}
	other.ProofPath = nil
	assert.Equal(t, ComputeFingerprint(p), ComputeFingerprint(other))

	other.LogIndex = 3
	assert.NotEqual(t, ComputeFingerprint(p), ComputeFingerprint(other))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("6000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "6000000000000000000000000", v.Dec())

	zero, err := ParseAmount("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseAmount("-1")
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestProofJSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(sampleProof())
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, name := range []string{"log_index", "log_entry_data", "receipt_index", "receipt_data", "header_data", "proof_path"} {
		assert.Contains(t, fields, name)
	}
	assert.JSONEq(t, `["0xaa","0xbbcc"]`, string(fields["proof_path"]))

	var decoded Proof
	require.NoError(t, json.Unmarshal([]byte(`{"log_index":1,"log_entry_data":"0xc0","proof_path":["0x01"]}`), &decoded))
	assert.Equal(t, []hexutil.Bytes{{0x01}}, decoded.ProofPath)
}
