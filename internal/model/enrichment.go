package model

// AlternateName is a localized title extracted from a game's detail page.
type AlternateName struct {
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

// EnrichmentData is the structured metadata scraped from a game's detail
// page. Stored as a JSON blob in the games table; missing source fields
// map to empty strings and empty slices, never to an error.
type EnrichmentData struct {
	AlternateNames   []AlternateName `json:"alternate_names"`
	PrimaryName      string          `json:"primary_name"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"short_description"`
	Slug             string          `json:"slug"`
	Designers        []string        `json:"designers"`
	Artists          []string        `json:"artists"`
	Publishers       []string        `json:"publishers"`
	Categories       []string        `json:"categories"`
	Mechanics        []string        `json:"mechanics"`
}

// AlternateNameStrings returns just the names, preserving source order.
func (d *EnrichmentData) AlternateNameStrings() []string {
	names := make([]string, 0, len(d.AlternateNames))
	for _, an := range d.AlternateNames {
		names = append(names, an.Name)
	}
	return names
}
