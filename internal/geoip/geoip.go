package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Service answers country lookups from a MaxMind Country or City database.
type Service struct {
	reader *geoip2.Reader
}

// Open loads the .mmdb database at path.
func Open(path string) (*Service, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Service{reader: reader}, nil
}

// Close releases the underlying database.
func (s *Service) Close() error {
	if s == nil || s.reader == nil {
		return nil
	}
	return s.reader.Close()
}

// CountryCode returns the ISO 3166-1 code for ip, or "" when the database
// has no country for it.
func (s *Service) CountryCode(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid ip address: %q", ip)
	}
	record, err := s.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("country lookup: %w", err)
	}
	return record.Country.IsoCode, nil
}
