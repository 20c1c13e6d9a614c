package router

import (
	"fmt"
	"time"

	"github.com/stratus-cloud/stratus/pkg/types"
)

// StaticCachePolicy is the long-lived policy applied to the default route.
// Bundle objects are content-addressed, so a stale copy is impossible once
// the reference changes; the edge can cache aggressively.
func StaticCachePolicy() *types.CachePolicy {
	return &types.CachePolicy{
		MinTTL:     time.Hour,
		DefaultTTL: 24 * time.Hour,
		MaxTTL:     365 * 24 * time.Hour,
	}
}

// DynamicCachePolicy is the near-zero policy applied to placement routes.
// The one-second ceiling lets the edge absorb bursts without ever serving a
// backend response unacceptably stale.
func DynamicCachePolicy() *types.CachePolicy {
	return &types.CachePolicy{
		MinTTL:     0,
		DefaultTTL: 0,
		MaxTTL:     time.Second,
	}
}

// CacheControl renders a cache policy as a Cache-Control header value.
func CacheControl(p *types.CachePolicy) string {
	if p == nil || p.DefaultTTL <= 0 {
		return "no-cache"
	}
	return fmt.Sprintf("public, max-age=%d", int(p.DefaultTTL.Seconds()))
}
