package model

// HardFilters are the deterministic constraints an event must satisfy.
// Empty allow-lists impose no constraint. BoroughAllow is ordered: it filters
// and, by position, ranks.
type HardFilters struct {
	AudienceAllow   []string `json:"audience_allow,omitempty"`
	ExcludeChildren bool     `json:"exclude_children"`
	VenueExclude    []string `json:"emplacement_exclude,omitempty"`
	TypeAllow       []string `json:"type_evenement_allow,omitempty"`
	BoroughAllow    []string `json:"arrondissement_allow,omitempty"`
	MaxPrice        *float64 `json:"max_price,omitempty"`
	FreeOnly        bool     `json:"free_only"`
}

// Preferences is the per-run user profile. It is read once and never mutated.
type Preferences struct {
	HardFilters HardFilters `json:"hard_filters"`
	Likes       string      `json:"likes"`
}
