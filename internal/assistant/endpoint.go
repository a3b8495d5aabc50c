package assistant

import (
	"fmt"
	"net/url"
	"strings"
)

type Mode string

const (
	ModeLocal    Mode = "local"
	ModeDeployed Mode = "deployed"
)

// Location describes where the hosting page is served from.
type Location struct {
	Protocol string // including the trailing colon, e.g. "https:"
	Hostname string
}

// ParseLocation builds a Location from a page URL.
func ParseLocation(pageURL string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return Location{}, fmt.Errorf("assistant: parse page url: %w", err)
	}
	loc := Location{Hostname: u.Hostname()}
	if u.Scheme != "" {
		loc.Protocol = u.Scheme + ":"
	}
	return loc, nil
}

// IsLocal reports whether the page is opened from disk or a loopback host.
func (l Location) IsLocal() bool {
	if strings.EqualFold(l.Protocol, "file:") {
		return true
	}
	switch strings.ToLower(strings.Trim(l.Hostname, "[]")) {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// EndpointTable holds one candidate URL per mode. Deployed is usually
// relative to the page origin.
type EndpointTable struct {
	Local    string
	Deployed string
}

func DefaultEndpoints() EndpointTable {
	return EndpointTable{
		Local:    "http://localhost:3000/api/openrouter",
		Deployed: "/api/openrouter",
	}
}

type Endpoint struct {
	Mode Mode
	URL  string
}

// Resolve picks exactly one endpoint for loc. There is no fallback between
// the candidates.
func Resolve(loc Location, table EndpointTable) Endpoint {
	if loc.IsLocal() {
		return Endpoint{Mode: ModeLocal, URL: table.Local}
	}
	return Endpoint{Mode: ModeDeployed, URL: table.Deployed}
}

// ResolvePage resolves the endpoint for pageURL and makes it absolute
// against the page, the way a browser would for a relative fetch.
func ResolvePage(pageURL string, table EndpointTable) (Endpoint, error) {
	loc, err := ParseLocation(pageURL)
	if err != nil {
		return Endpoint{}, err
	}
	ep := Resolve(loc, table)
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return Endpoint{}, fmt.Errorf("assistant: parse page url: %w", err)
	}
	ref, err := url.Parse(ep.URL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("assistant: parse %s endpoint: %w", ep.Mode, err)
	}
	ep.URL = base.ResolveReference(ref).String()
	return ep, nil
}
