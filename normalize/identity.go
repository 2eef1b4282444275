package normalize

import (
	"net/url"
	"strings"
)

// Identity canonicalizes a link into the deduplication key used by the
// identity store. The same story is frequently re-served with different
// tracking query strings, so the query and fragment are dropped entirely;
// scheme, host and path are preserved. Relative links are resolved against
// base first.
func Identity(link, base string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	resolved := ResolveLink(link, base)

	u, err := url.Parse(resolved)
	if err != nil {
		// fallback: lowercase and trim, same degraded behaviour either way
		return strings.TrimRight(strings.ToLower(resolved), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	out := u.String()
	return strings.TrimRight(out, "/")
}

// ResolveLink resolves a possibly-relative link against the source's base
// URL. Absolute links and unparseable bases pass through unchanged.
func ResolveLink(link, base string) string {
	link = strings.TrimSpace(link)
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	bu, err := url.Parse(base)
	if err != nil || bu.Host == "" {
		return link
	}
	lu, err := url.Parse(link)
	if err != nil {
		return link
	}
	return bu.ResolveReference(lu).String()
}
