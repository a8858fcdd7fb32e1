package localhost

import (
	"context"
	"encoding/json"
	"net"
	"os"

	"github.com/eugener/saru/internal/saru"
)

// geoRecord is one entry of the reference host's geo database file: a CIDR
// range plus the fields internal/wiring.Geo expects in the JSON blob
// geo_lookup returns.
type geoRecord struct {
	CIDR        string  `json:"cidr"`
	AsName      string  `json:"as_name"`
	AsNumber    int64   `json:"as_number"`
	AreaCode    int     `json:"area_code"`
	City        string  `json:"city"`
	ConnSpeed   string  `json:"conn_speed"`
	ConnType    string  `json:"conn_type"`
	Continent   string  `json:"continent"`
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Region      string  `json:"region"`
	UTCOffset   int     `json:"utc_offset"`
}

type geoEntry struct {
	network *net.IPNet
	record  geoRecord
}

// geoDB is a tiny CIDR-keyed lookup table loaded from a JSON file (spec's
// Geo.DatabasePath). Unmatched addresses resolve to a zero-value record
// rather than an error, matching a geolocation provider that simply
// doesn't recognize an address.
type geoDB struct {
	entries []geoEntry
}

// loadGeoDB reads path as a JSON array of geoRecord; a missing or empty path
// yields an empty database (every lookup returns the zero record).
func loadGeoDB(path string) *geoDB {
	db := &geoDB{}
	if path == "" {
		return db
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return db
	}
	var records []geoRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return db
	}
	for _, r := range records {
		_, network, err := net.ParseCIDR(r.CIDR)
		if err != nil {
			continue
		}
		db.entries = append(db.entries, geoEntry{network: network, record: r})
	}
	return db
}

func (db *geoDB) lookup(ip net.IP) geoRecord {
	for _, e := range db.entries {
		if e.network.Contains(ip) {
			return e.record
		}
	}
	return geoRecord{}
}

// GeoLookup returns the JSON blob internal/wiring.Lookup parses for addr.
func (s *Session) GeoLookup(ctx context.Context, addr []byte) (string, error) {
	ip := net.IP(addr)
	record := s.host.geo.lookup(ip)
	out, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
