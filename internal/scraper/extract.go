// Package scraper extracts structured enrichment metadata from a game's
// detail page HTML. The contract is best-effort: missing optional fields
// become empty values, but a missing payload is an error.
package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"boardmeta-api/internal/model"
)

// preloadMarker is the literal that precedes the embedded JSON payload
// on a game detail page.
const preloadMarker = "GEEK.geekitemPreload"

// Link table keys for the five categorical lists.
const (
	linkDesigners  = "boardgamedesigner"
	linkArtists    = "boardgameartist"
	linkPublishers = "boardgamepublisher"
	linkCategories = "boardgamecategory"
	linkMechanics  = "boardgamemechanic"
)

// Extract locates the embedded JSON payload and builds EnrichmentData.
// It fails when the marker is absent, the JSON does not parse, or the
// payload lacks the required "item" object. All other fields are
// optional and default to empty values.
func Extract(html string) (*model.EnrichmentData, error) {
	idx := strings.Index(html, preloadMarker)
	if idx < 0 {
		return nil, fmt.Errorf("page does not contain the %s marker", preloadMarker)
	}

	raw, err := extractJSONObject(html[idx+len(preloadMarker):])
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse embedded JSON: %w", err)
	}

	item, ok := payload["item"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("embedded JSON has no item object")
	}

	data := &model.EnrichmentData{
		AlternateNames:   extractAlternateNames(item["alternatenames"]),
		PrimaryName:      stringField(item, "name"),
		Description:      SanitizeDescription(stringField(item, "description")),
		ShortDescription: stringField(item, "short_description"),
		Slug:             stringField(item, "slug"),
		Designers:        []string{},
		Artists:          []string{},
		Publishers:       []string{},
		Categories:       []string{},
		Mechanics:        []string{},
	}

	if links, ok := item["links"].(map[string]interface{}); ok {
		data.Designers = extractNameList(links[linkDesigners])
		data.Artists = extractNameList(links[linkArtists])
		data.Publishers = extractNameList(links[linkPublishers])
		data.Categories = extractNameList(links[linkCategories])
		data.Mechanics = extractNameList(links[linkMechanics])
	}

	return data, nil
}

// extractJSONObject scans forward to the first '{' and returns the
// balanced JSON object, tracking string literals and escapes.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object follows the preload marker")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("embedded JSON object is not terminated")
}

// extractAlternateNames tolerantly reads an optional array of
// {name, language?} entries, skipping entries without a name.
func extractAlternateNames(v interface{}) []model.AlternateName {
	names := []model.AlternateName{}
	entries, ok := v.([]interface{})
	if !ok {
		return names
	}
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		language, _ := entry["language"].(string)
		names = append(names, model.AlternateName{Name: name, Language: language})
	}
	return names
}

// extractNameList maps an optional array of objects to their "name"
// fields, defaulting to an empty list.
func extractNameList(v interface{}) []string {
	names := []string{}
	entries, ok := v.([]interface{})
	if !ok {
		return names
	}
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		if name, _ := entry["name"].(string); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
