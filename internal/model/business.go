package model

// BusinessIdentity is the verified identity a scan runs against. Exactly one
// of Domain or (Name, Location) pairs is required at intake; verification
// fills in whatever the caller omitted.
type BusinessIdentity struct {
	Name     string `json:"name"`
	Domain   string `json:"domain,omitempty"`
	Location string `json:"location,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Country  string `json:"country,omitempty"` // ISO 3166-1 alpha-2, lowercase
	Industry string `json:"industry,omitempty"`
	PlaceID  string `json:"place_id,omitempty"`
}

// HasDomain reports whether the identity carries a usable website domain.
func (b BusinessIdentity) HasDomain() bool {
	return b.Domain != ""
}

// Candidate is one possible business match returned when a name+location
// lookup is ambiguous. The caller picks one and resumes the run with its
// PlaceID.
type Candidate struct {
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount *int     `json:"rating_count,omitempty"`
	Types       []string `json:"types,omitempty"`
}

// ListingReview is one customer review carried on the listing snapshot.
type ListingReview struct {
	Author string   `json:"author,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
	Text   string   `json:"text,omitempty"`
	When   string   `json:"when,omitempty"`
}

// PlacesProfile is the business listing snapshot pulled from the places
// provider for a resolved identity.
type PlacesProfile struct {
	// Found is false when the lookup was skipped or matched nothing;
	// Reason says why.
	Found  bool   `json:"found"`
	Reason string `json:"reason,omitempty"`

	PlaceID     string            `json:"place_id,omitempty"`
	Name        string            `json:"name"`
	Address     string            `json:"address,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Website     string            `json:"website,omitempty"`
	Rating      *float64          `json:"rating,omitempty"`
	RatingCount *int              `json:"rating_count,omitempty"`
	MapsURL     string            `json:"maps_url,omitempty"`
	Hours       []string          `json:"hours,omitempty"`
	Reviews     []ListingReview   `json:"reviews,omitempty"`
	Socials     map[string]string `json:"socials,omitempty"`
}
