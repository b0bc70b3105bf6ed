// Package cry resolves best-effort audio URLs for pokemon names from a
// wiki-style content API that has no stable schema.
//
// The resolver never fails: every internal error degrades to an empty
// result so a missing cry never blocks ingestion of the rest of a record.
package cry

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pokedexfr/ingest/internal/metrics"
	"github.com/pokedexfr/ingest/internal/wiki"
)

const searchLimit = 6

// PageSource is the subset of the content API the resolver depends on.
type PageSource interface {
	ParsePage(ctx context.Context, title string) (wiki.ParseResult, error)
	Search(ctx context.Context, query string, limit int) ([]string, error)
	ImageURL(ctx context.Context, fileTitle string) (string, error)
}

// NameLookup resolves a localized display name for a pokemon name.
type NameLookup interface {
	LocalizedName(ctx context.Context, name string) (string, error)
}

var (
	filePageURLRe    = regexp.MustCompile(`(?i)^https?://www\.pokepedia\.fr/Fichier:(.+)$`)
	relFilePageURLRe = regexp.MustCompile(`(?i)^/Fichier:(.+)$`)
	punctToSpaceRe   = regexp.MustCompile(`[.\-]`)

	keyStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Resolver memoizes cry lookups per instance; the cache lives for the
// lifetime of the resolver, not the process, so runs stay independent.
type Resolver struct {
	source      PageSource
	names       NameLookup
	fileBaseURL string
	logger      *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver builds a Resolver. names may be nil to disable the
// localized-name fallback.
func NewResolver(source PageSource, names NameLookup, fileBaseURL string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:      source,
		names:       names,
		fileBaseURL: strings.TrimRight(fileBaseURL, "/"),
		logger:      logger,
		cache:       map[string]string{},
	}
}

// Resolve returns a direct audio URL for the given name, or "" when no
// cry could be located. It never returns an error.
func (r *Resolver) Resolve(ctx context.Context, name string) string {
	cleaned := cleanToken(name)
	if cleaned == "" {
		return ""
	}
	key := normalizeKey(cleaned)
	if cached, ok := r.lookup(key); ok {
		metrics.ObserveCryResolution("cached")
		return cached
	}

	resolved := r.resolveFromName(ctx, cleaned)
	if resolved == "" && r.names != nil {
		localized, err := r.names.LocalizedName(ctx, cleaned)
		if err != nil {
			r.logger.Debug("localized name lookup failed", zap.String("name", cleaned), zap.Error(err))
		} else if localized != "" && normalizeKey(localized) != key {
			resolved = r.resolveFromName(ctx, localized)
		}
	}

	// Negative results are cached too: the content API is the expensive
	// part, and a miss is just as repeatable as a hit within one run.
	r.store(key, resolved)
	if resolved == "" {
		metrics.ObserveCryResolution("miss")
	} else {
		metrics.ObserveCryResolution("hit")
	}
	return resolved
}

func (r *Resolver) lookup(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.cache[key]
	return value, ok
}

func (r *Resolver) store(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = value
}

func (r *Resolver) resolveFromName(ctx context.Context, name string) string {
	page := r.findPage(ctx, name)
	if page.Empty() {
		return ""
	}
	candidates := append(extractFromWikitext(page.Wikitext), extractFromHTML(page.HTML)...)
	best := pickBest(candidates)
	if best == "" {
		return ""
	}
	return r.resolveMediaURL(ctx, best)
}

// findPage tries each title candidate in order and falls back to a
// bounded full-text search when none of them yields content.
func (r *Resolver) findPage(ctx context.Context, name string) wiki.ParseResult {
	for _, candidate := range titleCandidates(name) {
		page, err := r.source.ParsePage(ctx, candidate)
		if err == nil && !page.Empty() {
			return page
		}
	}

	titles, err := r.source.Search(ctx, name, searchLimit)
	if err != nil {
		r.logger.Debug("content search failed", zap.String("name", name), zap.Error(err))
		return wiki.ParseResult{}
	}
	for _, title := range titles {
		page, err := r.source.ParsePage(ctx, title)
		if err == nil && !page.Empty() {
			return page
		}
	}
	return wiki.ParseResult{}
}

// resolveMediaURL promotes the winning candidate to a concrete URL.
func (r *Resolver) resolveMediaURL(ctx context.Context, token string) string {
	token = cleanToken(token)
	if token == "" {
		return ""
	}

	if m := filePageURLRe.FindStringSubmatch(token); m != nil {
		token = "Fichier:" + m[1]
	} else if m := relFilePageURLRe.FindStringSubmatch(token); m != nil {
		token = "Fichier:" + m[1]
	}

	if strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") {
		return token
	}
	if strings.HasPrefix(token, "//") {
		return "https:" + token
	}

	fileName := normalizeMediaName(token)
	if fileName == "" {
		return ""
	}
	title := "Fichier:" + fileName
	directURL, err := r.source.ImageURL(ctx, title)
	if err == nil && directURL != "" {
		return directURL
	}
	if err != nil {
		r.logger.Debug("image info lookup failed", zap.String("title", title), zap.Error(err))
	}
	return r.fileBaseURL + "/wiki/Sp%C3%A9cial:Fichier/" +
		url.PathEscape(strings.ReplaceAll(fileName, " ", "_"))
}

// titleCandidates generates the ordered, de-duplicated page title guesses
// for a name. Order matters: the first candidate returning content wins.
func titleCandidates(name string) []string {
	base := cleanToken(name)
	if base == "" {
		return nil
	}
	raw := []string{
		base,
		strings.ReplaceAll(base, " ", "_"),
		strings.ReplaceAll(base, "'", "’"),
		strings.ReplaceAll(base, "’", "'"),
		punctToSpaceRe.ReplaceAllString(base, " "),
		titleCaseWords(base),
	}
	seen := map[string]struct{}{}
	candidates := make([]string, 0, len(raw))
	for _, candidate := range raw {
		candidate = cleanToken(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func titleCaseWords(value string) string {
	words := strings.Fields(value)
	for i, word := range words {
		r := []rune(word)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// normalizeKey builds the case- and diacritic-insensitive cache key.
func normalizeKey(value string) string {
	cleaned := cleanToken(value)
	stripped, _, err := transform.String(keyStripper, cleaned)
	if err != nil {
		stripped = cleaned
	}
	return strings.ToLower(stripped)
}
