package view

import (
	"net/url"
	"slices"
	"strings"

	"emperror.dev/errors"
	"github.com/pkg/browser"
	"golang.org/x/net/publicsuffix"
)

// DomainFilter decides whether a navigation target may load inside the
// surface. The surface runs with elevated media permissions, so only the
// hosted service's own domain family and its authentication family are
// allowed in place. Everything else goes to the user's default browser.
type DomainFilter struct {
	families []string
}

// NewDomainFilter builds a filter from host names. Each host is reduced to
// its registrable domain, so every subdomain of a family passes.
func NewDomainFilter(hosts ...string) (*DomainFilter, error) {
	families := make([]string, 0, len(hosts))
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		base, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid domain %s", host)
		}
		if !slices.Contains(families, base) {
			families = append(families, base)
		}
	}
	if len(families) == 0 {
		return nil, errors.New("no domains configured")
	}
	return &DomainFilter{families: families}, nil
}

// Allowed reports whether rawURL may navigate inside the surface.
func (filter *DomainFilter) Allowed(rawURL string) bool {
	if rawURL == "" || rawURL == "about:blank" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return false
	}
	base, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(u.Hostname()))
	if err != nil {
		return false
	}
	return slices.Contains(filter.families, base)
}

// openExternal delivers an out-of-domain URL to the user's default browser.
func openExternal(rawURL string) error {
	return errors.Wrapf(browser.OpenURL(rawURL), "cannot open %s externally", rawURL)
}
