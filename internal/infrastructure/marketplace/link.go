package marketplace

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultTrackingParams are query keys used for attribution only. Dropping
// them never changes which product a link resolves to.
var DefaultTrackingParams = []string{
	"ref", "ref_", "dib", "dib_tag", "qid", "sr", "sprefix", "keywords", "s", "crid",
	"pd_rd_i", "pd_rd_w", "pd_rd_r", "pd_rd_wg", "pf_rd_p", "pf_rd_r", "content-id",
}

// LinkCanonicalizer qualifies relative product links against the site
// origin and strips tracking parameters. It is read-only after construction.
type LinkCanonicalizer struct {
	origin   string
	tracking map[string]struct{}
}

// NewLinkCanonicalizer builds a canonicalizer for baseURL. Only the scheme
// and host of baseURL are used.
func NewLinkCanonicalizer(baseURL string, trackingParams []string) (*LinkCanonicalizer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	tracking := make(map[string]struct{}, len(trackingParams))
	for _, p := range trackingParams {
		if p = strings.TrimSpace(p); p != "" {
			tracking[p] = struct{}{}
		}
	}

	return &LinkCanonicalizer{
		origin:   u.Scheme + "://" + u.Host,
		tracking: tracking,
	}, nil
}

// Qualify turns an href into an absolute link. Root-relative hrefs are joined
// to the origin, absolute http(s) hrefs pass through, anything else is rejected.
func (c *LinkCanonicalizer) Qualify(href string) (string, bool) {
	href = strings.TrimSpace(href)
	switch {
	case strings.HasPrefix(href, "/"):
		return c.origin + href, true
	case strings.HasPrefix(href, "http"):
		return href, true
	default:
		return "", false
	}
}

// Canonicalize qualifies href and removes tracking parameters, the fragment
// and any trailing "/ref=..." path segment. If the qualified link cannot be
// parsed it is returned as-is; a product is never dropped for that reason.
func (c *LinkCanonicalizer) Canonicalize(href string) (string, bool) {
	link, ok := c.Qualify(href)
	if !ok {
		return "", false
	}

	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link, true
	}

	path := u.EscapedPath()
	if idx := strings.Index(path, "/ref="); idx > 0 {
		path = path[:idx]
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	b.WriteString(path)
	if query := c.stripTracking(u.RawQuery); query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String(), true
}

// stripTracking filters rawQuery pair by pair so the surviving parameters
// keep their original order and encoding.
func (c *LinkCanonicalizer) stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	kept := make([]string, 0, strings.Count(rawQuery, "&")+1)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if _, drop := c.tracking[key]; drop {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}
