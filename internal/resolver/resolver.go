// Package resolver maps the wallet's active network and a contract role to the
// deployed address that should be read, degrading to an informational fallback
// when the network is not part of the deployment.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trove-labs/auction-view/internal/metrics"
	"github.com/trove-labs/auction-view/internal/notify"
	"github.com/trove-labs/auction-view/internal/otel"
	"github.com/trove-labs/auction-view/internal/types"
)

// Source tags notifications posted by the resolver
const Source = "resolver"

// InvalidContractText is shown when a caller asks for a role outside the closed set
const InvalidContractText = "Invalid contract type"

// ErrInvalidRole matches any InvalidRoleError via errors.Is
var ErrInvalidRole = errors.New("invalid contract role")

// ErrInformationalOnly is returned by CallTarget for a fallback resolution
var ErrInformationalOnly = errors.New("resolution is informational only: wallet network is not supported")

// InvalidRoleError is a programming error: the role is not one of the recognized tags
type InvalidRoleError struct {
	Role types.ContractRole
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid contract role %q", string(e.Role))
}

func (e *InvalidRoleError) Is(target error) bool {
	return target == ErrInvalidRole
}

// UnsupportedChainText is the advisory shown for a network outside the deployment
func UnsupportedChainText(chainID types.ChainID) string {
	return fmt.Sprintf("Chain id %d not supported", uint64(chainID))
}

// Result is the outcome of one resolution
type Result struct {
	Role    types.ContractRole `json:"role"`
	ChainID types.ChainID      `json:"chain_id"`
	Address common.Address     `json:"address"`

	// Matched is false when ChainID is unsupported and Address belongs to SourceChainID
	Matched bool `json:"matched"`

	// SourceChainID is the network Address is deployed on
	SourceChainID types.ChainID `json:"source_chain_id"`
}

// CallTarget returns the address for state-mutating calls. A fallback result is
// never a valid call target.
func (r Result) CallTarget() (common.Address, error) {
	if !r.Matched {
		return common.Address{}, fmt.Errorf("%s on chain %d: %w", r.Role, uint64(r.ChainID), ErrInformationalOnly)
	}
	return r.Address, nil
}

// Registry is the lookup surface the resolver needs
type Registry interface {
	IsSupported(chainID types.ChainID) bool
	AddressOf(role types.ContractRole, chainID types.ChainID) (common.Address, bool)
	FallbackChain() types.ChainID
}

// Notifier is the producer side of the notification channel
type Notifier interface {
	ShowFrom(source, text string) notify.Notification
	HideFrom(source string) bool
}

// Resolver implements the resolution policy. Its only side effects are on the
// notification channel.
type Resolver struct {
	registry Registry
	notes    Notifier
	metrics  *metrics.Metrics
}

// New creates a resolver over registry that reports to notes
func New(registry Registry, notes Notifier) *Resolver {
	return &Resolver{registry: registry, notes: notes}
}

// WithMetrics attaches Prometheus collectors and returns the resolver
func (r *Resolver) WithMetrics(m *metrics.Metrics) *Resolver {
	r.metrics = m
	return r
}

// Resolve returns the address of role for chainID.
//
// An unrecognized role posts "Invalid contract type" and fails with
// *InvalidRoleError whatever the network. An unsupported network posts
// "Chain id N not supported" and falls back to the role's address on the first
// supported network with Matched=false. A supported network clears any pending
// resolver notification and returns the exact table address.
func (r *Resolver) Resolve(ctx context.Context, role types.ContractRole, chainID types.ChainID) (Result, error) {
	_, span := otel.Tracer().Start(ctx, "resolver.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("role", string(role)),
		attribute.Int64("chain_id", int64(chainID)),
	)

	log := logrus.WithFields(logrus.Fields{
		"role":     role,
		"chain_id": uint64(chainID),
	})

	if !role.Valid() {
		r.notes.ShowFrom(Source, InvalidContractText)
		r.metrics.Resolution(string(role), "invalid_role")
		err := &InvalidRoleError{Role: role}
		otel.RecordError(span, err)
		log.Error("Resolution requested for unknown contract role")
		return Result{}, err
	}

	if !r.registry.IsSupported(chainID) {
		fallback := r.registry.FallbackChain()
		addr, ok := r.registry.AddressOf(role, fallback)
		if !ok {
			// the manifest guarantees every role on every supported network
			return Result{}, fmt.Errorf("role %s has no address on fallback chain %d", role, uint64(fallback))
		}
		r.notes.ShowFrom(Source, UnsupportedChainText(chainID))
		r.metrics.Resolution(string(role), "fallback")
		log.WithFields(logrus.Fields{
			"fallback_chain_id": uint64(fallback),
			"address":           addr.Hex(),
		}).Warn("Wallet network not supported, using informational fallback")
		return Result{
			Role:          role,
			ChainID:       chainID,
			Address:       addr,
			Matched:       false,
			SourceChainID: fallback,
		}, nil
	}

	addr, ok := r.registry.AddressOf(role, chainID)
	if !ok {
		return Result{}, fmt.Errorf("role %s has no address on supported chain %d", role, uint64(chainID))
	}
	r.notes.HideFrom(Source)
	r.metrics.Resolution(string(role), "matched")
	log.WithField("address", addr.Hex()).Debug("Resolved contract address")
	return Result{
		Role:          role,
		ChainID:       chainID,
		Address:       addr,
		Matched:       true,
		SourceChainID: chainID,
	}, nil
}
