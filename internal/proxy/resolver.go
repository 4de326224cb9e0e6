// Package proxy rewrites asset URLs to route through a CORS-header-adding relay.
package proxy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/linkcard/linkcard/internal/card"
)

// Resolver wraps asset URLs in a proxied form with a cache-defeat token.
// Resolution is pure string construction; correctness of the remote relay is
// out of scope.
type Resolver struct {
	base  string
	clock card.Clock
}

// NewResolver builds a Resolver against the given relay base URL.
func NewResolver(base string, clock card.Clock) *Resolver {
	return &Resolver{base: strings.TrimRight(base, "?&"), clock: clock}
}

// Resolve returns the proxied form of target. The appended token varies
// monotonically so repeated calls for the same logical target never collide
// with a stale cached response.
func (r *Resolver) Resolve(target string) string {
	sep := "?"
	if strings.Contains(r.base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%surl=%s&t=%d", r.base, sep, url.QueryEscape(target), r.clock.Now().UnixNano())
}
