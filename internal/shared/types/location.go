package types

import "fmt"

// Location represents a point where assistance is needed or an incident occurred.
type Location struct {
	Address string  `json:"address,omitempty"`
	City    string  `json:"city,omitempty"`
	Region  string  `json:"region,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// NewLocation creates a location from coordinates.
func NewLocation(lat, lng float64) Location {
	return Location{Lat: lat, Lng: lng}
}

// WithAddress adds a human-readable address to the location.
func (l Location) WithAddress(address, city string) Location {
	l.Address = address
	l.City = city
	return l
}

// IsZero reports whether the location carries no coordinates and no address.
func (l Location) IsZero() bool {
	return l.Address == "" && l.City == "" && l.Lat == 0 && l.Lng == 0
}

// String returns a short display form, preferring the address.
func (l Location) String() string {
	if l.Address != "" {
		if l.City != "" {
			return l.Address + ", " + l.City
		}
		return l.Address
	}
	return fmt.Sprintf("%.5f,%.5f", l.Lat, l.Lng)
}

// ContactInfo represents contact information for a user or company.
type ContactInfo struct {
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}
