package scraper

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageWith(payload string) string {
	return fmt.Sprintf(`<html><head><script>
		GEEK.geekitemPreload = %s;
		GEEK.geekitemSettings = {"wiki":"https://example.invalid"};
	</script></head><body></body></html>`, payload)
}

func TestExtractMissingMarker(t *testing.T) {
	_, err := Extract("<html><body>No payload here</body></html>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEEK.geekitemPreload")
}

func TestExtractMalformedJSON(t *testing.T) {
	_, err := Extract(pageWith(`{"item": {"name": "Broken"`))
	require.Error(t, err)
}

func TestExtractMissingItemKey(t *testing.T) {
	_, err := Extract(pageWith(`{"somethingelse": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item")
}

func TestExtractFullPayload(t *testing.T) {
	payload := `{
		"item": {
			"name": "Die Macher",
			"slug": "die-macher",
			"short_description": "Win elections in Germany",
			"description": "<p>The first game in the catalog.</p>",
			"alternatenames": [
				{"name": "Die Macher: Limited", "language": "German"},
				{"name": "マハー", "language": "Japanese"}
			],
			"links": {
				"boardgamedesigner": [{"name": "Karl-Heinz Schmiel"}],
				"boardgameartist": [{"name": "Marcus Gschwendtner"}, {"name": "Harald Lieske"}],
				"boardgamepublisher": [{"name": "Hans im Glück"}],
				"boardgamecategory": [{"name": "Economic"}, {"name": "Political"}],
				"boardgamemechanic": [{"name": "Area Majority"}]
			}
		}
	}`

	data, err := Extract(pageWith(payload))
	require.NoError(t, err)

	assert.Equal(t, "Die Macher", data.PrimaryName)
	assert.Equal(t, "die-macher", data.Slug)
	assert.Equal(t, "Win elections in Germany", data.ShortDescription)
	assert.Equal(t, "<p>The first game in the catalog.</p>", data.Description)

	require.Len(t, data.AlternateNames, 2)
	assert.Equal(t, "Die Macher: Limited", data.AlternateNames[0].Name)
	assert.Equal(t, "German", data.AlternateNames[0].Language)

	assert.Equal(t, []string{"Karl-Heinz Schmiel"}, data.Designers)
	assert.Equal(t, []string{"Marcus Gschwendtner", "Harald Lieske"}, data.Artists)
	assert.Equal(t, []string{"Hans im Glück"}, data.Publishers)
	assert.Equal(t, []string{"Economic", "Political"}, data.Categories)
	assert.Equal(t, []string{"Area Majority"}, data.Mechanics)
}

func TestExtractMissingOptionalFieldsDefaults(t *testing.T) {
	data, err := Extract(pageWith(`{"item": {}}`))
	require.NoError(t, err)

	assert.Equal(t, "", data.PrimaryName)
	assert.Equal(t, "", data.Description)
	assert.Equal(t, "", data.ShortDescription)
	assert.Equal(t, "", data.Slug)
	assert.Empty(t, data.AlternateNames)
	assert.NotNil(t, data.Designers)
	assert.Empty(t, data.Designers)
	assert.Empty(t, data.Artists)
	assert.Empty(t, data.Publishers)
	assert.Empty(t, data.Categories)
	assert.Empty(t, data.Mechanics)
}

func TestExtractSkipsAlternateNamesWithoutName(t *testing.T) {
	payload := `{
		"item": {
			"alternatenames": [
				{"language": "French"},
				{"name": "Kept"},
				"not an object",
				{"name": "", "language": "German"}
			]
		}
	}`

	data, err := Extract(pageWith(payload))
	require.NoError(t, err)
	require.Len(t, data.AlternateNames, 1)
	assert.Equal(t, "Kept", data.AlternateNames[0].Name)
}

func TestExtractLinksNotArrays(t *testing.T) {
	data, err := Extract(pageWith(`{"item": {"links": {"boardgamedesigner": "oops"}}}`))
	require.NoError(t, err)
	assert.Empty(t, data.Designers)
}

func TestExtractHandlesBracesInStrings(t *testing.T) {
	payload := `{"item": {"name": "Curly {Brace} Game", "description": "a } b { c"}}`
	data, err := Extract(pageWith(payload))
	require.NoError(t, err)
	assert.Equal(t, "Curly {Brace} Game", data.PrimaryName)
}

func TestExtractUnterminatedJSON(t *testing.T) {
	_, err := Extract(`<html>GEEK.geekitemPreload = {"item": {"name": "x"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not terminated")
}

func TestSanitizeDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips script blocks",
			in:   `<p>Fine</p><script type="text/javascript">alert("x")</script><b>Bold</b>`,
			want: `<p>Fine</p><b>Bold</b>`,
		},
		{
			name: "strips iframe blocks",
			in:   `before<iframe src="https://evil.invalid"></iframe>after`,
			want: `beforeafter`,
		},
		{
			name: "strips self-closing iframes",
			in:   `a<iframe src="x"/>b`,
			want: `ab`,
		},
		{
			name: "strips inline event handlers",
			in:   `<p onclick="steal()" class="big">Hi</p><img src="x" onerror='run()'/>`,
			want: `<p class="big">Hi</p><img src="x"/>`,
		},
		{
			name: "preserves ordinary markup",
			in:   `<p>Par</p><b>bold</b><i>it</i><br/>`,
			want: `<p>Par</p><b>bold</b><i>it</i><br/>`,
		},
		{
			name: "case insensitive",
			in:   `<SCRIPT>x</SCRIPT><p ONCLICK="y">z</p>`,
			want: `<p>z</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeDescription(tt.in))
		})
	}
}

func TestSanitizedOutputNeverContainsActiveContent(t *testing.T) {
	in := `<div onmouseover="a()"><script>b()</script><iframe src="c"></iframe><p>ok</p></div>`
	out := SanitizeDescription(in)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<iframe")
	assert.NotContains(t, out, "onmouseover")
	assert.Contains(t, out, "<p>ok</p>")
}
