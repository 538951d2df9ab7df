package services

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

func TestProvisionHappensOnce(t *testing.T) {
	h := newHarness(t)

	contractID, err := h.registry.Provision(h.ctx, "alice", testAsset, plenty)
	require.NoError(t, err)
	assert.Equal(t, SubContractID(testAsset, testOwner), contractID)

	_, err = h.registry.Provision(h.ctx, "bob", testAsset, plenty)
	assert.True(t, errors.Is(err, types.ErrAssetAlreadyProvisioned))

	resolved, err := h.registry.Resolve(h.ctx, testAsset)
	require.NoError(t, err)
	assert.Equal(t, contractID, resolved)

	contract, err := h.tokens.Contract(h.ctx, contractID)
	require.NoError(t, err)
	assert.Equal(t, testAsset, contract.Asset)
	assert.Equal(t, testOwner, contract.ControllerID)

	assets, err := h.registry.List(h.ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "alice", assets[0].ProvisionedBy)

	assert.Contains(t, h.events.Types(), EventAssetProvisioned)
}

func TestProvisionRequiresDeposit(t *testing.T) {
	h := newHarness(t)

	// 1000 base allocation + (40 + 40) registry bytes
	required := h.meter.ProvisionRequirement(RegistryEntryDelta)
	assert.Equal(t, uint64(1080), required.Uint64())

	_, err := h.registry.Provision(h.ctx, "alice", testAsset, uint256.NewInt(1079))
	assert.True(t, errors.Is(err, types.ErrInsufficientDeposit))

	ok, err := h.registry.Contains(h.ctx, testAsset)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.registry.Provision(h.ctx, "alice", testAsset, required)
	assert.NoError(t, err)
}

func TestResolveAndLegitimacy(t *testing.T) {
	h := newHarness(t)

	_, err := h.registry.Resolve(h.ctx, testAsset)
	assert.True(t, errors.Is(err, types.ErrUnknownAsset))

	legit, err := h.registry.IsCallerLegitimateSubcontract(h.ctx, testAsset, SubContractID(testAsset, testOwner))
	require.NoError(t, err)
	assert.False(t, legit)

	contractID := h.provision(testAsset)

	legit, err = h.registry.IsCallerLegitimateSubcontract(h.ctx, testAsset, contractID)
	require.NoError(t, err)
	assert.True(t, legit)

	legit, err = h.registry.IsCallerLegitimateSubcontract(h.ctx, testAsset, "alice")
	require.NoError(t, err)
	assert.False(t, legit)

	legit, err = h.registry.IsCallerLegitimateSubcontract(h.ctx, testAsset, "")
	require.NoError(t, err)
	assert.False(t, legit)
}
