package frontier

import (
	"net/url"
	"strings"

	"github.com/foofork/riptide/pkg/hashutil"
	"github.com/foofork/riptide/pkg/urlutil"
)

// canonicalize delegates to pkg/urlutil.Canonicalize -- the frontier owns
// no URL-normalisation rules of its own; it only turns the canonical
// form into the fingerprint used for dedup.
func canonicalize(u url.URL) url.URL {
	return urlutil.Canonicalize(u)
}

// fingerprint derives the dedup key for a canonical URL: host+path plus
// the already-sorted query string canonicalize() produced. Hashed with
// blake3 (grounded on pkg/hashutil, which already wraps this hash for
// content fingerprints elsewhere in the tree) so the Set[string] dedup
// table stores a fixed-size key regardless of URL length.
func fingerprint(canonical url.URL) string {
	var b strings.Builder
	b.WriteString(canonical.Host)
	b.WriteString(canonical.Path)
	if canonical.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(canonical.RawQuery)
	}
	return hashutil.Fingerprint([]byte(b.String()))
}
