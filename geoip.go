package trustkit

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

var (
	// ErrGeoIPNotConfigured is returned when a lookup is attempted without a
	// configured GeoIP database path.
	ErrGeoIPNotConfigured = errors.New("trustkit: GeoIP database path not configured")

	// ErrInvalidIP is returned when an invalid IP address is provided.
	ErrInvalidIP = errors.New("trustkit: invalid IP address")
)

// GeoIPReader resolves an IP address to a coarse "City, Country" label using
// a MaxMind GeoLite2 database. It fills in device locations the service left
// blank; it has no say in risk classification.
type GeoIPReader struct {
	db *geoip2.Reader
}

// NewGeoIPReader opens a MaxMind GeoLite2-City database.
func NewGeoIPReader(dbPath string) (*GeoIPReader, error) {
	if dbPath == "" {
		return nil, ErrGeoIPNotConfigured
	}

	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("geoip: failed to open database: %w", err)
	}
	return &GeoIPReader{db: db}, nil
}

// Lookup returns a "City, Country" label for an IP address. Either part may
// be missing from the database; whatever is present is returned.
func (r *GeoIPReader) Lookup(ip string) (string, error) {
	if r == nil || r.db == nil {
		return "", ErrGeoIPNotConfigured
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidIP, ip)
	}

	record, err := r.db.City(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup failed: %w", err)
	}

	city := localizedName(record.City.Names)
	country := localizedName(record.Country.Names)

	switch {
	case city != "" && country != "":
		return city + ", " + country, nil
	case country != "":
		return country, nil
	default:
		return city, nil
	}
}

// Close closes the GeoIP database.
func (r *GeoIPReader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// localizedName prefers English, falling back to any available language.
func localizedName(names map[string]string) string {
	if name, ok := names["en"]; ok {
		return name
	}
	for _, name := range names {
		return name
	}
	return ""
}
