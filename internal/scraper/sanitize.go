package scraper

import "regexp"

// Descriptions come from scraped pages and may carry active content.
// Only script blocks, iframe blocks and inline event handlers are
// removed; ordinary markup (<p>, <b>, <i>, <br/>) passes through
// unchanged.
var (
	scriptRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	iframeRe  = regexp.MustCompile(`(?is)<iframe\b[^>]*>.*?</iframe>|<iframe\b[^>]*/>`)
	handlerRe = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*')`)
)

// SanitizeDescription strips script blocks, iframe blocks and inline
// on*="..." event-handler attributes from scraped HTML.
func SanitizeDescription(html string) string {
	html = scriptRe.ReplaceAllString(html, "")
	html = iframeRe.ReplaceAllString(html, "")
	html = handlerRe.ReplaceAllString(html, "")
	return html
}
