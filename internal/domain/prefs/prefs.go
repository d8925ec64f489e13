// Package prefs loads and validates the user preference document.
package prefs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/okian/sortie/internal/domain/model"
)

// document mirrors the JSON layout. Pointers distinguish a missing key from
// its zero value where the default is not the zero value.
type document struct {
	HardFilters *hardFilters `json:"hard_filters"`
	Likes       string       `json:"likes" validate:"required"`
}

type hardFilters struct {
	AudienceAllow   []string `json:"audience_allow" validate:"dive,required"`
	ExcludeChildren *bool    `json:"exclude_children"`
	VenueExclude    []string `json:"emplacement_exclude" validate:"dive,required"`
	TypeAllow       []string `json:"type_evenement_allow" validate:"dive,required"`
	BoroughAllow    []string `json:"arrondissement_allow" validate:"unique,dive,required"`
	MaxPrice        *float64 `json:"max_price" validate:"omitempty,gte=0"`
	FreeOnly        bool     `json:"free_only"`
}

var validate = validator.New()

// Load reads and parses the preferences file at path.
func Load(path string) (model.Preferences, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Parse decodes a preferences document held in memory.
func Parse(data []byte) (model.Preferences, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a preferences document from r. Unknown keys, a blank likes
// statement, negative prices and duplicate boroughs are rejected.
func Decode(r io.Reader) (model.Preferences, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return model.Preferences{}, fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	doc.Likes = strings.TrimSpace(doc.Likes)
	if doc.HardFilters == nil {
		doc.HardFilters = &hardFilters{}
	}
	if err := validate.Struct(doc); err != nil {
		return model.Preferences{}, fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	return doc.toModel(), nil
}

func (d document) toModel() model.Preferences {
	hf := d.HardFilters
	excludeChildren := true
	if hf.ExcludeChildren != nil {
		excludeChildren = *hf.ExcludeChildren
	}
	return model.Preferences{
		HardFilters: model.HardFilters{
			AudienceAllow:   trimAll(hf.AudienceAllow),
			ExcludeChildren: excludeChildren,
			VenueExclude:    trimAll(hf.VenueExclude),
			TypeAllow:       trimAll(hf.TypeAllow),
			BoroughAllow:    trimAll(hf.BoroughAllow),
			MaxPrice:        hf.MaxPrice,
			FreeOnly:        hf.FreeOnly,
		},
		Likes: d.Likes,
	}
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
