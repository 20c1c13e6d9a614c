// Package policy derives per-group firewall rule sets from declared access
// edges.
//
// An edge "source may reach destination on port/protocol" becomes exactly
// one ingress rule on the destination group and one egress rule on the
// source group. Rules are never declared on both sides by hand, so adding a
// tier can never leave the two sides inconsistent. Output is normalized
// (sorted, deduplicated, lexical group order) which makes derivation
// idempotent and safe to rerun on every compilation.
package policy
