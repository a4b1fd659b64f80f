package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/trove-labs/auction-view/internal/types"
)

//go:embed manifest.default.yaml
var defaultManifest []byte

// Manifest is the deployment manifest as written on disk: an ordered list of
// supported networks and, per contract role, the deployed address on each network.
type Manifest struct {
	Supported []uint64                     `yaml:"supported"`
	Contracts map[string]map[uint64]string `yaml:"contracts"`
}

// Deployment is a validated manifest with typed keys and parsed addresses
type Deployment struct {
	// Supported networks in manifest order; Supported[0] is the fallback network
	Supported []types.ChainID

	Addresses map[types.ContractRole]map[types.ChainID]common.Address
}

// LoadManifest reads the manifest at path, or the built-in manifest when path is empty
func LoadManifest(path string) (Deployment, error) {
	raw := defaultManifest
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Deployment{}, fmt.Errorf("failed to read deployment manifest: %w", err)
		}
		raw = b
	}
	return ParseManifest(raw)
}

// ParseManifest decodes and validates a YAML manifest
func ParseManifest(raw []byte) (Deployment, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Deployment{}, fmt.Errorf("failed to decode deployment manifest: %w", err)
	}
	return m.Validate()
}

// Validate checks that every listed role has a non-zero address on every supported network
func (m Manifest) Validate() (Deployment, error) {
	if len(m.Supported) == 0 {
		return Deployment{}, errors.New("deployment manifest lists no supported networks")
	}

	d := Deployment{
		Supported: make([]types.ChainID, 0, len(m.Supported)),
		Addresses: make(map[types.ContractRole]map[types.ChainID]common.Address, len(m.Contracts)),
	}
	seen := make(map[uint64]bool, len(m.Supported))
	for _, id := range m.Supported {
		if seen[id] {
			return Deployment{}, fmt.Errorf("chain id %d listed twice in supported networks", id)
		}
		seen[id] = true
		d.Supported = append(d.Supported, types.ChainID(id))
	}

	// sorted so validation errors are reported deterministically
	roleNames := make([]string, 0, len(m.Contracts))
	for name := range m.Contracts {
		roleNames = append(roleNames, name)
	}
	sort.Strings(roleNames)

	var errs []error
	for _, name := range roleNames {
		role, err := types.ParseRole(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		byChain := make(map[types.ChainID]common.Address, len(m.Supported))
		for _, id := range m.Supported {
			hex, ok := m.Contracts[name][id]
			if !ok {
				errs = append(errs, fmt.Errorf("role %s has no address on chain %d", role, id))
				continue
			}
			if !common.IsHexAddress(hex) {
				errs = append(errs, fmt.Errorf("role %s on chain %d: malformed address %q", role, id, hex))
				continue
			}
			addr := common.HexToAddress(hex)
			if addr == (common.Address{}) {
				errs = append(errs, fmt.Errorf("role %s on chain %d: zero address", role, id))
				continue
			}
			byChain[types.ChainID(id)] = addr
		}
		for id := range m.Contracts[name] {
			if !seen[id] {
				errs = append(errs, fmt.Errorf("role %s has an address on unsupported chain %d", role, id))
			}
		}
		d.Addresses[role] = byChain
	}
	if len(errs) > 0 {
		return Deployment{}, fmt.Errorf("invalid deployment manifest: %w", errors.Join(errs...))
	}
	return d, nil
}
