package cry

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Each pattern family below extracts raw audio references from one kind
// of source text. Scoring and tie-breaking live in score.go and never
// depend on which family produced a candidate.
var (
	audioExtRe = regexp.MustCompile(`(?i)\.(?:ogg|mp3|wav)$`)

	// Wikitext families.
	mediaLinkRe = regexp.MustCompile(`(?i)\[\[(?:fichier|file)\s*:\s*([^\]|]+\.(?:ogg|mp3|wav))`)
	cryParamRe  = regexp.MustCompile(`(?i)(?:\bcri\b|\bcry\b)\s*=\s*([^\n|}]+?\.(?:ogg|mp3|wav))`)
	absoluteRe  = regexp.MustCompile(`(?i)(https?://[^\s|<>"']+\.(?:ogg|mp3|wav))`)
	protoRelRe  = regexp.MustCompile(`(?i)(//[^\s|<>"']+\.(?:ogg|mp3|wav))`)

	// Rendered-HTML families.
	filePageRe    = regexp.MustCompile(`(?i)(https?://www\.pokepedia\.fr/Fichier:[^"'<> ]+\.(?:ogg|mp3|wav))`)
	relFilePageRe = regexp.MustCompile(`(?i)(/Fichier:[^"'<> ]+\.(?:ogg|mp3|wav))`)
	htmlURLRe     = regexp.MustCompile(`(?i)(https?://[^"'<> ]+\.(?:ogg|mp3|wav))`)
	htmlProtoRe   = regexp.MustCompile(`(?i)(//[^"'<> ]+\.(?:ogg|mp3|wav))`)

	pokepediaPrefixRe = regexp.MustCompile(`(?i)^https?://www\.pokepedia\.fr/`)
	filePrefixRe      = regexp.MustCompile(`(?i)^(?:fichier|file)\s*:`)
	trailingPunctRe   = regexp.MustCompile(`[)>.,;]+$`)
)

// collector accumulates normalized candidates, de-duplicated
// case-insensitively, preserving first-seen order.
type collector struct {
	seen map[string]struct{}
	out  []string
}

func newCollector() *collector {
	return &collector{seen: map[string]struct{}{}}
}

func (c *collector) add(raw string) {
	cleaned := normalizeMediaName(raw)
	if cleaned == "" || !audioExtRe.MatchString(cleaned) {
		return
	}
	key := strings.ToLower(cleaned)
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.out = append(c.out, cleaned)
}

func (c *collector) addMatches(re *regexp.Regexp, text string) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		c.add(m[1])
	}
}

// extractFromWikitext pulls audio references out of raw wiki markup.
func extractFromWikitext(wikitext string) []string {
	if wikitext == "" {
		return nil
	}
	c := newCollector()
	c.addMatches(mediaLinkRe, wikitext)
	c.addMatches(cryParamRe, wikitext)
	c.addMatches(absoluteRe, wikitext)
	c.addMatches(protoRelRe, wikitext)
	return c.out
}

// extractFromHTML pulls audio references out of the rendered page HTML.
// Besides the textual patterns it walks anchor/audio/source elements,
// which catches site-relative links the regexes cannot see.
func extractFromHTML(html string) []string {
	if html == "" {
		return nil
	}
	c := newCollector()
	c.addMatches(filePageRe, html)
	c.addMatches(relFilePageRe, html)
	c.addMatches(htmlURLRe, html)
	c.addMatches(htmlProtoRe, html)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return c.out
	}
	doc.Find("a[href], audio[src], source[src]").Each(func(_ int, sel *goquery.Selection) {
		ref, ok := sel.Attr("href")
		if !ok {
			ref, _ = sel.Attr("src")
		}
		if audioExtRe.MatchString(strings.TrimSpace(ref)) {
			c.add(ref)
		}
	})
	return c.out
}

// cleanToken trims the value and collapses internal whitespace.
func cleanToken(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// normalizeMediaName reduces a raw extracted token to a bare media name
// or URL: markup brackets and file prefixes stripped, underscores turned
// into spaces, trailing punctuation and fragment/query parts removed,
// percent-encoding decoded.
func normalizeMediaName(raw string) string {
	cleaned := cleanToken(raw)
	cleaned = strings.TrimPrefix(cleaned, "[[")
	cleaned = strings.TrimSuffix(cleaned, "]]")
	cleaned = pokepediaPrefixRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimLeft(cleaned, "/")
	cleaned = filePrefixRe.ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	cleaned = trailingPunctRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if i := strings.Index(cleaned, "#"); i >= 0 {
		cleaned = cleaned[:i]
	}
	if i := strings.Index(cleaned, "?"); i >= 0 {
		cleaned = cleaned[:i]
	}
	cleaned = strings.TrimSpace(cleaned)

	if decoded, err := url.PathUnescape(cleaned); err == nil {
		cleaned = decoded
	}
	return cleaned
}
