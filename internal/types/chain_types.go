// Package types contains shared type definitions used across multiple packages
package types

import (
	"fmt"
	"strconv"
)

// ChainID identifies a blockchain network a wallet can be connected to
type ChainID uint64

// String renders the chain id in decimal, the way wallets report it
func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// Well-known networks of the trove deployment
const (
	ChainBaseSepolia ChainID = 84532
	ChainAnvil       ChainID = 31337
)

// ContractRole names which logical contract is being addressed
type ContractRole string

// Contract roles of the trove deployment. The set is closed.
const (
	RoleAuction    ContractRole = "troveAuction"
	RoleCollection ContractRole = "troveCollection"
	RoleToken      ContractRole = "troveToken"
	RoleStake      ContractRole = "troveStake"
)

var knownRoles = []ContractRole{RoleAuction, RoleCollection, RoleToken, RoleStake}

// Roles returns every recognized contract role
func Roles() []ContractRole {
	out := make([]ContractRole, len(knownRoles))
	copy(out, knownRoles)
	return out
}

// Valid reports whether r is one of the recognized roles
func (r ContractRole) Valid() bool {
	for _, k := range knownRoles {
		if r == k {
			return true
		}
	}
	return false
}

// ParseRole converts a manifest or CLI string into a ContractRole
func ParseRole(s string) (ContractRole, error) {
	r := ContractRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown contract role %q", s)
	}
	return r, nil
}

// ChainConfig holds transport configuration for a specific blockchain network
type ChainConfig struct {
	ChainID     ChainID `json:"chain_id"`
	RPCEndpoint string  `json:"rpc_endpoint"`
	Enabled     bool    `json:"enabled"`
}
