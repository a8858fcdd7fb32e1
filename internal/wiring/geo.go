package wiring

import (
	"context"
	"fmt"
	"net"

	"github.com/tidwall/gjson"

	"github.com/eugener/saru/internal/hostabi"
)

// Geo is the parsed result of fastly.getGeolocationForIpAddress. Field
// names follow the original runtime's geo JSON shape.
type Geo struct {
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

// Lookup resolves addr's geo info via the host, which returns a JSON
// string (spec §6 geo_lookup), parsed with gjson rather than
// encoding/json to avoid a struct-tag round trip for a handful of fields.
func Lookup(ctx context.Context, host hostabi.Geo, addr net.IP) (*Geo, error) {
	octets := addr.To4()
	if octets == nil {
		octets = addr.To16()
	}
	raw, err := host.GeoLookup(ctx, octets)
	if err != nil {
		return nil, fmt.Errorf("geo lookup: %w", err)
	}
	r := gjson.Parse(raw)
	return &Geo{
		AsName:      r.Get("as_name").String(),
		AsNumber:    r.Get("as_number").Int(),
		AreaCode:    int(r.Get("area_code").Int()),
		City:        r.Get("city").String(),
		ConnSpeed:   r.Get("conn_speed").String(),
		ConnType:    r.Get("conn_type").String(),
		Continent:   r.Get("continent").String(),
		CountryCode: r.Get("country_code").String(),
		CountryName: r.Get("country_name").String(),
		Latitude:    r.Get("latitude").Float(),
		Longitude:   r.Get("longitude").Float(),
		Region:      r.Get("region").String(),
		UTCOffset:   int(r.Get("utc_offset").Int()),
	}, nil
}
