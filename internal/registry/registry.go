// Package registry holds the static table of supported networks and deployed
// contract addresses. It is populated once at start-up and read-only afterwards.
package registry

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/trove-labs/auction-view/internal/config"
	"github.com/trove-labs/auction-view/internal/types"
)

// Registry answers membership and address lookups. Safe for concurrent use
// because nothing mutates it after New.
type Registry struct {
	supported []types.ChainID
	index     map[types.ChainID]struct{}
	addresses map[types.ContractRole]map[types.ChainID]common.Address
}

// New builds a registry from a validated deployment
func New(d config.Deployment) *Registry {
	r := &Registry{
		supported: make([]types.ChainID, len(d.Supported)),
		index:     make(map[types.ChainID]struct{}, len(d.Supported)),
		addresses: make(map[types.ContractRole]map[types.ChainID]common.Address, len(d.Addresses)),
	}
	copy(r.supported, d.Supported)
	for _, id := range d.Supported {
		r.index[id] = struct{}{}
	}
	for role, byChain := range d.Addresses {
		m := make(map[types.ChainID]common.Address, len(byChain))
		for id, addr := range byChain {
			m[id] = addr
		}
		r.addresses[role] = m
	}
	return r
}

// IsSupported reports whether the network is part of the deployment
func (r *Registry) IsSupported(chainID types.ChainID) bool {
	_, ok := r.index[chainID]
	return ok
}

// AddressOf returns the deployed address of role on chainID. A pair outside the
// table reports false; callers decide how severe that is.
func (r *Registry) AddressOf(role types.ContractRole, chainID types.ChainID) (common.Address, bool) {
	byChain, ok := r.addresses[role]
	if !ok {
		return common.Address{}, false
	}
	addr, ok := byChain[chainID]
	return addr, ok
}

// Supported returns the supported networks in manifest order
func (r *Registry) Supported() []types.ChainID {
	out := make([]types.ChainID, len(r.supported))
	copy(out, r.supported)
	return out
}

// FallbackChain is the first supported network, used for informational resolution
func (r *Registry) FallbackChain() types.ChainID {
	if len(r.supported) == 0 {
		return 0
	}
	return r.supported[0]
}
