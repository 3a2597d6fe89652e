package ddiclient

import (
	"fmt"
	"net/url"
	"strings"
)

// link is the hypermedia link shape the server embeds under "_links" in
// every document: {"href": "https://host/path"}.
type link struct {
	Href string `json:"href"`
}

// resolveHref parses a link's href and, when it is relative, resolves it
// against base. The hawkBit wire format always sends absolute hrefs, but
// artifact links on some gateways come back host-relative; resolving keeps
// the controller from special-casing that at every call site.
func resolveHref(base *url.URL, href string) (*url.URL, error) {
	if href == "" {
		return nil, fmt.Errorf("ddiclient: empty href")
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("ddiclient: malformed href %q: %w", href, err)
	}
	if parsed.IsAbs() {
		return parsed, nil
	}
	if base == nil {
		return nil, fmt.Errorf("ddiclient: relative href %q with no base URI", href)
	}
	return base.ResolveReference(parsed), nil
}

// sameAuthority reports whether two URLs share scheme+host, the boundary
// redirects may not cross unless token auth is in use (replaying a client
// cert to a different authority would be a credential leak; bearer tokens
// are explicitly exempted by §4.3 of the spec).
func sameAuthority(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// feedbackURI derives the "<link>/feedback" sub-resource conventionally used
// to post cancelAction/deploymentBase feedback.
func feedbackURI(base *url.URL) *url.URL {
	u := *base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/feedback"
	return &u
}

// buildControllerURI recomposes the polling root URI from endpoint, tenant
// and controllerId, following the same "{scheme}://{authority}/{tenant}/controller/v1/{controllerId}"
// convention the original client used to assemble its base URI.
func buildControllerURI(endpoint, tenant, controllerID string) (*url.URL, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("ddiclient: invalid endpoint %q: %w", endpoint, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("ddiclient: endpoint %q is not an absolute URI", endpoint)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + tenant + "/controller/v1/" + controllerID
	return base, nil
}
