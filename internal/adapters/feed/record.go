// Package feed reads the public events dataset, from the open-data portal or
// from a local export, into typed events.
package feed

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sortie/internal/domain/model"
)

// Dataset column names.
const (
	colID          = "id"
	colTitle       = "titre"
	colDescription = "description"
	colURL         = "url_fiche"
	colBorough     = "arrondissement"
	colType        = "type_evenement"
	colVenue       = "emplacement"
	colAudience    = "public_cible"
	colCost        = "cout"
	colStart       = "date_debut"
	colEnd         = "date_fin"
	colLat         = "lat"
	colLon         = "long"
	colVenueTitle  = "titre_adresse"
)

// Columns lists the dataset columns in export order.
var Columns = []string{
	colID, colTitle, colDescription, colURL, colBorough, colType, colVenue,
	colAudience, colCost, colStart, colEnd, colLat, colLon, colVenueTitle,
}

var (
	// Digit groups of three may be split by a space, a no-break space or a
	// comma; otherwise a comma or dot starts the decimals.
	priceNumber     = regexp.MustCompile(`(\d{1,3}(?:[ \x{00a0}\x{202f},]\d{3})+)(?:[.,](\d+))?(?:\D|$)|(\d+)(?:[.,](\d+))?`)
	groupSeparators = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", ",", "")
	freeWords       = []string{"gratuit", "free"}
	// Timestamps are naive local times; RFC 3339 inputs keep their offset.
	layouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	idNamespace = uuid.MustParse("6f1c5b3e-8f7a-4c1e-9b0d-2a4e6c8d0f13")
)

// ParsePrice extracts a price from free-form cost text. Text mentioning a
// free event is 0, the first number found is the price, anything else is
// absent. "1 000 $" and "1,000 $" read as 1000 while "12,50 $" reads as 12.5;
// a comma followed by exactly three digits is always a thousands separator.
func ParsePrice(cost string) *float64 {
	c := strings.ToLower(strings.TrimSpace(cost))
	if c == "" {
		return nil
	}
	for _, w := range freeWords {
		if strings.Contains(c, w) {
			return model.Float(0)
		}
	}
	m := priceNumber.FindStringSubmatch(c)
	if m == nil {
		return nil
	}
	whole, frac := m[3], m[4]
	if m[1] != "" {
		whole, frac = groupSeparators.Replace(m[1]), m[2]
	}
	if frac != "" {
		whole += "." + frac
	}
	v, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseTime reads a feed timestamp in loc. Unparseable or blank values
// return the zero time.
func ParseTime(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc)
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &v
}

// FromRecord maps one dataset row onto an Event. Rows without an id get a
// stable one derived from their URL, title and start.
func FromRecord(rec map[string]string, loc *time.Location) model.Event {
	get := func(k string) string { return strings.TrimSpace(rec[k]) }
	e := model.Event{
		ID:          get(colID),
		Title:       get(colTitle),
		Description: get(colDescription),
		URL:         get(colURL),
		Audience:    get(colAudience),
		EventType:   get(colType),
		Borough:     get(colBorough),
		Venue:       get(colVenue),
		VenueTitle:  get(colVenueTitle),
		Cost:        get(colCost),
		Start:       ParseTime(rec[colStart], loc),
		End:         ParseTime(rec[colEnd], loc),
		Lat:         parseCoord(rec[colLat]),
		Lon:         parseCoord(rec[colLon]),
	}
	e.Price = ParsePrice(e.Cost)
	if e.ID == "" {
		e.ID = uuid.NewSHA1(idNamespace, []byte(e.URL+"\x00"+e.Title+"\x00"+rec[colStart])).String()
	}
	return e
}

// ToRecord is the inverse of FromRecord for exports.
func ToRecord(e *model.Event) []string {
	coord := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	ts := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layouts[0])
	}
	return []string{
		e.ID, e.Title, e.Description, e.URL, e.Borough, e.EventType, e.Venue,
		e.Audience, e.Cost, ts(e.Start), ts(e.End), coord(e.Lat), coord(e.Lon), e.VenueTitle,
	}
}
