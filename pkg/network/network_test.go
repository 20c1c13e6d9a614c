package network

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/types"
)

func TestBuildCarvesNonOverlappingSegments(t *testing.T) {
	topo, err := Build(Config{Name: "staging", CIDR: "10.0.0.0/16", Zones: 3})
	require.NoError(t, err)

	require.Len(t, topo.Segments, 9, "3 classes x 3 zones")

	_, parent, err := net.ParseCIDR("10.0.0.0/16")
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, seg := range topo.Segments {
		ip, block, err := net.ParseCIDR(seg.CIDR)
		require.NoError(t, err)

		ones, _ := block.Mask.Size()
		assert.Equal(t, 24, ones, "segment %s is not a /24", seg.Name)
		assert.True(t, parent.Contains(ip), "segment %s outside parent", seg.Name)
		assert.False(t, seen[seg.CIDR], "segment %s reuses %s", seg.Name, seg.CIDR)
		seen[seg.CIDR] = true
	}
}

func TestBuildClassMajorZoneMinorOrder(t *testing.T) {
	topo, err := Build(Config{Name: "staging", CIDR: "10.0.0.0/16", Zones: 2})
	require.NoError(t, err)
	require.Len(t, topo.Segments, 6)

	want := []struct {
		name  string
		class types.VisibilityClass
		zone  int
		cidr  string
	}{
		{"staging-public-a", types.VisibilityPublic, 1, "10.0.0.0/24"},
		{"staging-public-b", types.VisibilityPublic, 2, "10.0.1.0/24"},
		{"staging-private-a", types.VisibilityPrivate, 1, "10.0.2.0/24"},
		{"staging-private-b", types.VisibilityPrivate, 2, "10.0.3.0/24"},
		{"staging-data-a", types.VisibilityData, 1, "10.0.4.0/24"},
		{"staging-data-b", types.VisibilityData, 2, "10.0.5.0/24"},
	}
	for i, w := range want {
		seg := topo.Segments[i]
		assert.Equal(t, w.name, seg.Name)
		assert.Equal(t, w.class, seg.Class)
		assert.Equal(t, w.zone, seg.Zone)
		assert.Equal(t, w.cidr, seg.CIDR)
	}
}

func TestBuildDeterministic(t *testing.T) {
	cfg := Config{Name: "staging", CIDR: "172.16.0.0/16", Zones: 3, SharedEgress: true}

	a, err := Build(cfg)
	require.NoError(t, err)
	b, err := Build(cfg)
	require.NoError(t, err)

	require.Len(t, b.Segments, len(a.Segments))
	for i := range a.Segments {
		assert.Equal(t, *a.Segments[i], *b.Segments[i])
	}
}

func TestBuildAddressSpaceExhausted(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"parent narrower than a segment", Config{Name: "n", CIDR: "10.0.0.0/26", Zones: 1}},
		{"parent too small for class set", Config{Name: "n", CIDR: "10.0.0.0/23", Zones: 1}},
		{"too many zones for parent", Config{Name: "n", CIDR: "10.0.0.0/22", Zones: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.cfg)
			require.Error(t, err)
			assert.True(t, errdefs.IsAddressSpaceExhausted(err))
		})
	}
}

func TestBuildEgressPaths(t *testing.T) {
	shared, err := Build(Config{Name: "s", CIDR: "10.0.0.0/16", Zones: 3, SharedEgress: true})
	require.NoError(t, err)
	require.Len(t, shared.Egress, 1)
	assert.Equal(t, "s-egress-a", shared.Egress[0].Name)
	assert.True(t, shared.Egress[0].Shared)

	perZone, err := Build(Config{Name: "s", CIDR: "10.0.0.0/16", Zones: 3})
	require.NoError(t, err)
	require.Len(t, perZone.Egress, 3)
	for i, path := range perZone.Egress {
		assert.Equal(t, i+1, path.Zone)
		assert.False(t, path.Shared)
	}
}

func TestBuildValidation(t *testing.T) {
	_, err := Build(Config{Name: "n", CIDR: "10.0.0.0/16", Zones: 0})
	assert.Error(t, err)

	_, err = Build(Config{Name: "n", CIDR: "10.0.0.0/16", Zones: MaxZones + 1})
	assert.Error(t, err)

	_, err = Build(Config{Name: "n", CIDR: "not-a-cidr", Zones: 1})
	assert.Error(t, err)

	_, err = Build(Config{CIDR: "10.0.0.0/16", Zones: 1})
	assert.Error(t, err)
}

func TestSegmentLookup(t *testing.T) {
	topo, err := Build(Config{Name: "s", CIDR: "10.0.0.0/16", Zones: 2})
	require.NoError(t, err)

	seg := topo.Segment(types.VisibilityData, 2)
	require.NotNil(t, seg)
	assert.Equal(t, "s-data-b", seg.Name)

	assert.Nil(t, topo.Segment(types.VisibilityData, 3))
	assert.Len(t, topo.SegmentsByClass(types.VisibilityPrivate), 2)
}
