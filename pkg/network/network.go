package network

import (
	"fmt"
	"net"
	"time"

	"github.com/apparentlymart/go-cidr/cidr"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/log"
	"github.com/stratus-cloud/stratus/pkg/types"
)

const (
	// SegmentBits is the prefix length of every carved segment.
	SegmentBits = 24

	// MaxZones bounds the zone count so zone affinity letters stay in a..z.
	MaxZones = 26
)

// Config declares the address plan for one deployment.
type Config struct {
	// Name prefixes every segment and egress path name.
	Name string
	// CIDR is the parent block segments are carved from.
	CIDR string
	// Zones is the number of availability zones, 1 to MaxZones.
	Zones int
	// SharedEgress places a single egress path in zone a serving all
	// private segments instead of one path per zone. Cheaper, less
	// redundant; the trade-off is the caller's to make.
	SharedEgress bool
}

// Build carves cfg.CIDR into one /24 segment per visibility class per zone,
// in class-major, zone-minor order: all public zones first, then private,
// then data. The carve is a pure function of the config, so the same config
// always yields the same topology.
//
// Fails with AddressSpaceExhausted when the parent block cannot hold
// 3*Zones /24 segments.
func Build(cfg Config) (*types.NetworkTopology, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("network name is required")
	}
	if cfg.Zones < 1 || cfg.Zones > MaxZones {
		return nil, fmt.Errorf("zone count %d outside 1..%d", cfg.Zones, MaxZones)
	}
	_, parent, err := net.ParseCIDR(cfg.CIDR)
	if err != nil {
		return nil, fmt.Errorf("parse cidr %q: %w", cfg.CIDR, err)
	}

	parentBits, _ := parent.Mask.Size()
	newBits := SegmentBits - parentBits
	needed := len(types.VisibilityClasses()) * cfg.Zones
	if newBits < 0 {
		return nil, errdefs.New(errdefs.CodeAddressSpaceExhausted, cfg.Name,
			"parent %s is narrower than a /%d segment", cfg.CIDR, SegmentBits)
	}
	available := 1 << newBits
	if needed > available {
		return nil, errdefs.New(errdefs.CodeAddressSpaceExhausted, cfg.Name,
			"need %d /%d segments, parent %s holds %d", needed, SegmentBits, cfg.CIDR, available)
	}

	logger := log.WithComponent("network")

	var (
		segments []*types.NetworkSegment
		subnets  []*net.IPNet
	)
	for classIdx, class := range types.VisibilityClasses() {
		for zone := 1; zone <= cfg.Zones; zone++ {
			block, err := cidr.Subnet(parent, newBits, classIdx*cfg.Zones+(zone-1))
			if err != nil {
				return nil, errdefs.Wrap(errdefs.CodeAddressSpaceExhausted, cfg.Name, err)
			}
			segments = append(segments, &types.NetworkSegment{
				Name:  fmt.Sprintf("%s-%s-%s", cfg.Name, class, ZoneLetter(zone)),
				Class: class,
				Zone:  zone,
				CIDR:  block.String(),
			})
			subnets = append(subnets, block)
		}
	}

	if err := cidr.VerifyNoOverlap(subnets, parent); err != nil {
		return nil, errdefs.Wrap(errdefs.CodeAddressSpaceExhausted, cfg.Name, err)
	}

	var egress []*types.EgressPath
	if cfg.SharedEgress {
		egress = append(egress, &types.EgressPath{
			Name:   fmt.Sprintf("%s-egress-%s", cfg.Name, ZoneLetter(1)),
			Zone:   1,
			Shared: true,
		})
	} else {
		for zone := 1; zone <= cfg.Zones; zone++ {
			egress = append(egress, &types.EgressPath{
				Name: fmt.Sprintf("%s-egress-%s", cfg.Name, ZoneLetter(zone)),
				Zone: zone,
			})
		}
	}

	logger.Debug().
		Str("cidr", cfg.CIDR).
		Int("zones", cfg.Zones).
		Int("segments", len(segments)).
		Int("egress_paths", len(egress)).
		Msg("Network topology carved")

	return &types.NetworkTopology{
		Name:      cfg.Name,
		CIDR:      parent.String(),
		Zones:     cfg.Zones,
		Segments:  segments,
		Egress:    egress,
		CreatedAt: time.Now(),
	}, nil
}

// ZoneLetter maps a 1-based zone ordinal to its affinity letter (1 = a).
func ZoneLetter(zone int) string {
	return string(rune('a' + zone - 1))
}
