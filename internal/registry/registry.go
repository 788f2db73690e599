// Package registry maps venue string identifiers to the numeric codes and
// display metadata the call encoder and UI need.
package registry

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
)

// Family layout kinds form a small closed set; every venue maps to exactly one.
type FamilyKind uint8

const (
	KindConstantProduct FamilyKind = iota
	KindStableSwap
	KindConcentratedLiquidity
)

func (k FamilyKind) String() string {
	switch k {
	case KindConstantProduct:
		return "constant-product"
	case KindStableSwap:
		return "stable-swap"
	case KindConcentratedLiquidity:
		return "concentrated-liquidity"
	default:
		return "UNKNOWN"
	}
}

// VenueInfo describes one liquidity venue. FamilyType and VenueID are the
// single-digit codes packed into the on-chain venue descriptor.
type VenueInfo struct {
	FamilyType  uint8      `json:"familyType"`
	VenueID     uint8      `json:"venueId"`
	Family      string     `json:"family"`
	DisplayName string     `json:"displayName"`
	IconURL     string     `json:"iconUrl"`
	Kind        FamilyKind `json:"-"`
}

// DefaultVenueInfo is what unknown venues resolve to.
var DefaultVenueInfo = VenueInfo{
	FamilyType:  0,
	VenueID:     1,
	Family:      KindConstantProduct.String(),
	DisplayName: "Unknown",
	Kind:        KindConstantProduct,
}

// Registry resolves venue ids with network-specific overrides merged over an
// all-networks fallback. Immutable after load.
type Registry struct {
	byNetwork map[uint64]map[string]VenueInfo
	fallback  map[string]VenueInfo
}

type registryFile struct {
	// Keys of Networks are decimal chain ids; "all" entries live in Fallback.
	Networks map[string]map[string]VenueInfo `json:"networks"`
	Fallback map[string]VenueInfo            `json:"all"`
}

// Load reads the venue registry JSON from disk.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read venue registry: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from raw JSON.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse venue registry: %w", err)
	}

	reg := &Registry{
		byNetwork: make(map[uint64]map[string]VenueInfo),
		fallback:  make(map[string]VenueInfo, len(file.Fallback)),
	}
	for venue, info := range file.Fallback {
		reg.fallback[normalize(venue)] = withKind(info)
	}
	for chain, venues := range file.Networks {
		var chainID uint64
		if _, err := fmt.Sscanf(chain, "%d", &chainID); err != nil {
			continue
		}
		m := make(map[string]VenueInfo, len(venues))
		for venue, info := range venues {
			m[normalize(venue)] = withKind(info)
		}
		reg.byNetwork[chainID] = m
	}
	return reg, nil
}

// Empty returns a registry with no entries; every lookup yields the default.
func Empty() *Registry {
	return &Registry{
		byNetwork: make(map[uint64]map[string]VenueInfo),
		fallback:  make(map[string]VenueInfo),
	}
}

// Lookup resolves a venue for a network: network-specific entry first, then
// the all-networks fallback, then the unknown-venue default (type 0, id 1).
func (r *Registry) Lookup(networkID uint64, venue string) VenueInfo {
	key := normalize(venue)
	if venues, ok := r.byNetwork[networkID]; ok {
		if info, ok := venues[key]; ok {
			return info
		}
	}
	if info, ok := r.fallback[key]; ok {
		return info
	}
	return DefaultVenueInfo
}

// Venues returns the merged venue set for a network, overrides applied.
func (r *Registry) Venues(networkID uint64) map[string]VenueInfo {
	merged := make(map[string]VenueInfo, len(r.fallback))
	for venue, info := range r.fallback {
		merged[venue] = info
	}
	for venue, info := range r.byNetwork[networkID] {
		merged[venue] = info
	}
	return merged
}

func normalize(venue string) string {
	return strings.ToLower(strings.TrimSpace(venue))
}

func withKind(info VenueInfo) VenueInfo {
	switch normalize(info.Family) {
	case "stable-swap", "stable":
		info.Kind = KindStableSwap
	case "concentrated-liquidity", "concentrated", "clmm":
		info.Kind = KindConcentratedLiquidity
	default:
		info.Kind = KindConstantProduct
	}
	return info
}
