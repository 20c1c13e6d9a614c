package policy

import (
	"sort"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
	"github.com/stratus-cloud/stratus/pkg/log"
	"github.com/stratus-cloud/stratus/pkg/types"
)

// Option adjusts policy derivation.
type Option func(*deriver)

// WithStrictEgress marks groups whose outbound traffic must come only from
// declared edges. Such groups never receive the default allow-all egress
// rule; with no outbound edges they end up default-deny.
func WithStrictEgress(groups ...string) Option {
	return func(d *deriver) {
		for _, g := range groups {
			d.strict[g] = true
		}
	}
}

type deriver struct {
	strict map[string]bool
}

// Graph is the derived access policy for one deployment. Each declared edge
// is realized exactly once: as one ingress rule on its destination and one
// egress rule on its source, never hand-duplicated.
type Graph struct {
	policy *types.AccessPolicy
}

// Derive turns declared edges into per-group ingress and egress rule sets.
//
// Rule lists are sorted and deduplicated and groups are emitted in lexical
// order, so deriving the same edge set twice, in any input order, yields
// identical output. Groups that appear only as destinations receive one
// explicit allow-all egress rule; the default is logged rather than applied
// silently.
//
// Fails with InvalidEdge when an edge names no source or destination, its
// port is outside 1-65535, or its protocol is unrecognized.
func Derive(edges []types.AccessEdge, opts ...Option) (*Graph, error) {
	d := &deriver{strict: map[string]bool{}}
	for _, opt := range opts {
		opt(d)
	}

	for _, e := range edges {
		if err := validateEdge(e); err != nil {
			return nil, err
		}
	}

	logger := log.WithComponent("policy")

	ingress := map[string][]*types.AccessRule{}
	egress := map[string][]*types.AccessRule{}
	members := map[string]bool{}
	for _, e := range edges {
		members[e.Source] = true
		members[e.Destination] = true
		ingress[e.Destination] = append(ingress[e.Destination], &types.AccessRule{
			Direction: types.DirectionIngress,
			Peer:      e.Source,
			Port:      e.Port,
			Protocol:  e.Protocol,
		})
		egress[e.Source] = append(egress[e.Source], &types.AccessRule{
			Direction: types.DirectionEgress,
			Peer:      e.Destination,
			Port:      e.Port,
			Protocol:  e.Protocol,
		})
	}

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]*types.AccessGroup, 0, len(names))
	for _, name := range names {
		out := egress[name]
		if len(out) == 0 && !d.strict[name] {
			logger.Info().
				Str("group", name).
				Msg("Group declares no outbound edges, applying default allow-all egress")
			out = []*types.AccessRule{{
				Direction: types.DirectionEgress,
				Peer:      types.PeerAny,
				Protocol:  types.ProtocolAll,
			}}
		}
		groups = append(groups, &types.AccessGroup{
			Name:    name,
			Ingress: normalize(ingress[name]),
			Egress:  normalize(out),
		})
	}

	return &Graph{policy: &types.AccessPolicy{Groups: groups}}, nil
}

// Policy returns the derived policy with groups in lexical order.
func (g *Graph) Policy() *types.AccessPolicy {
	return g.policy
}

// Groups returns all group names in lexical order.
func (g *Graph) Groups() []string {
	names := make([]string, 0, len(g.policy.Groups))
	for _, grp := range g.policy.Groups {
		names = append(names, grp.Name)
	}
	return names
}

// HasGroup reports whether the derived policy contains the named group.
func (g *Graph) HasGroup(name string) bool {
	return g.policy.Group(name) != nil
}

// Ingress returns the named group's inbound rules, nil if the group is
// unknown.
func (g *Graph) Ingress(name string) []*types.AccessRule {
	if grp := g.policy.Group(name); grp != nil {
		return grp.Ingress
	}
	return nil
}

// Egress returns the named group's outbound rules, nil if the group is
// unknown.
func (g *Graph) Egress(name string) []*types.AccessRule {
	if grp := g.policy.Group(name); grp != nil {
		return grp.Egress
	}
	return nil
}

func validateEdge(e types.AccessEdge) error {
	if e.Source == "" || e.Destination == "" {
		return errdefs.New(errdefs.CodeInvalidEdge, e.String(), "edge must name a source and a destination group")
	}
	if e.Port < 1 || e.Port > 65535 {
		return errdefs.New(errdefs.CodeInvalidEdge, e.String(), "port %d outside 1-65535", e.Port)
	}
	if !e.Protocol.Valid() {
		return errdefs.New(errdefs.CodeInvalidEdge, e.String(), "unrecognized protocol %q", e.Protocol)
	}
	return nil
}

// normalize sorts rules by peer, port, protocol and drops duplicates so
// derivation output is canonical.
func normalize(rules []*types.AccessRule) []*types.AccessRule {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Peer != rules[j].Peer {
			return rules[i].Peer < rules[j].Peer
		}
		if rules[i].Port != rules[j].Port {
			return rules[i].Port < rules[j].Port
		}
		return rules[i].Protocol < rules[j].Protocol
	})

	out := rules[:0]
	var prev *types.AccessRule
	for _, r := range rules {
		if prev != nil && *prev == *r {
			continue
		}
		out = append(out, r)
		prev = r
	}
	return out
}
