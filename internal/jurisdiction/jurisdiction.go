// Package jurisdiction provides the static resale price-cap rule table.
//
// Several jurisdictions cap ticket resale at or near face value. The
// table maps a jurisdiction code ("US-CT", "FR", ...) to its legal cap
// expressed as a multiplier over face value. A nil multiplier means the
// jurisdiction places no cap on resale prices.
package jurisdiction

import "strings"

// DefaultCode is the sentinel used when no location is known.
const DefaultCode = "DEFAULT"

// Rule is a single jurisdiction's resale price rule. Immutable.
type Rule struct {
	Code          string   `json:"code"`
	MaxMultiplier *float64 `json:"maxMultiplier"` // nil = unrestricted
	Notes         string   `json:"notes"`
}

// Unrestricted reports whether the rule places no cap on resale price.
func (r Rule) Unrestricted() bool {
	return r.MaxMultiplier == nil
}

func capAt(m float64, notes string) Rule {
	return Rule{MaxMultiplier: &m, Notes: notes}
}

// rules is the static table, loaded once at init. Codes follow
// "<ISO-country>" or "<ISO-country>-<region>".
var rules = map[string]Rule{
	"US-CT": capAt(1.0, "Connecticut: resale at or below face value"),
	"US-LA": capAt(1.0, "Louisiana: resale above face value prohibited"),
	"US-MI": capAt(1.0, "Michigan: face value cap without operator consent"),
	"US-MN": capAt(1.0, "Minnesota: face value cap"),
	"US-NY": {Notes: "New York: disclosure requirements, no price cap"},
	"FR":    capAt(1.0, "France: resale above face value prohibited"),
	"IT":    capAt(1.0, "Italy: resale capped at face value"),
	"BE":    capAt(1.0, "Belgium: resale above face value prohibited"),
	"UK":    capAt(1.1, "United Kingdom: 10% over face value"),
}

func init() {
	for code, r := range rules {
		r.Code = code
		rules[code] = r
	}
}

// Lookup returns the rule for a jurisdiction code, or an unrestricted
// default rule when the code is not listed.
func Lookup(code string) Rule {
	if r, ok := rules[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return r
	}
	return Rule{Code: strings.ToUpper(strings.TrimSpace(code)), Notes: "no specific resale restrictions"}
}

// Location is the subset of an address needed for jurisdiction detection.
type Location struct {
	Country string `json:"country"`          // ISO country code, e.g. "US", "FR"
	Region  string `json:"region,omitempty"` // state/province code for US addresses, e.g. "ct"
}

// Detect derives the jurisdiction code for a resale. Venue location is
// preferred over buyer location when both are known; US addresses
// format as "US-<STATE>" with the state upper-cased, other countries
// use the bare country code. With no location at all the sentinel
// DefaultCode is returned, itself unrestricted.
func Detect(venue, buyer *Location) string {
	loc := venue
	if loc == nil || loc.Country == "" {
		loc = buyer
	}
	if loc == nil || loc.Country == "" {
		return DefaultCode
	}

	country := strings.ToUpper(strings.TrimSpace(loc.Country))
	if country == "US" && loc.Region != "" {
		return "US-" + strings.ToUpper(strings.TrimSpace(loc.Region))
	}
	return country
}
