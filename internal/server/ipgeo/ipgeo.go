// Package ipgeo tags requests with the client's country using a MaxMind MMDB
// file.
package ipgeo

import (
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

// Labels returned for addresses that are never looked up.
const (
	Local     = "local"
	Tailscale = "tailscale"
)

// Checker resolves IP addresses to ISO 3166-1 alpha-2 country codes. A nil
// Checker only classifies local and Tailscale addresses.
type Checker struct {
	reader *maxminddb.Reader
}

// Open opens an MMDB file for country lookups.
func Open(dbPath string) (*Checker, error) {
	r, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Checker{reader: r}, nil
}

// Close releases the MMDB reader.
func (c *Checker) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// tailscalePrefix is the Tailscale CGNAT range.
var tailscalePrefix = netip.MustParsePrefix("100.64.0.0/10")

// classify returns the label of addresses that need no lookup.
func classify(addr netip.Addr) string {
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return Local
	}
	if tailscalePrefix.Contains(addr) {
		return Tailscale
	}
	return ""
}

// CountryCode returns the country of ip, Local or Tailscale for addresses
// that are not routed on the internet, and "" when unknown.
func (c *Checker) CountryCode(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	if l := classify(addr.Unmap()); l != "" {
		return l
	}
	if c == nil || c.reader == nil {
		return ""
	}
	var rec countryRecord
	if err := c.reader.Lookup(addr).Decode(&rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}
