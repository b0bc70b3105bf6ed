// Package pokeapi is a client for the paginated pokemon catalog API.
package pokeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pokedexfr/ingest/internal/fetch"
)

// Client wraps the retrying fetcher with catalog-specific endpoints.
type Client struct {
	baseURL string
	fetcher *fetch.Client
}

// NewClient builds a Client rooted at baseURL (e.g. https://pokeapi.co/api/v2).
func NewClient(baseURL string, fetcher *fetch.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
	}
}

// ListPokemon fetches one page of the catalog.
func (c *Client) ListPokemon(ctx context.Context, offset, limit int) (ListResponse, error) {
	listURL := fmt.Sprintf("%s/pokemon?offset=%d&limit=%d", c.baseURL, offset, limit)
	var page ListResponse
	if err := c.fetcher.GetJSON(ctx, listURL, &page); err != nil {
		return ListResponse{}, fmt.Errorf("list pokemon: %w", err)
	}
	return page, nil
}

// GetPokemon fetches a detail payload by its list-entry URL. The raw body
// is returned alongside the decoded payload so callers can archive it.
func (c *Client) GetPokemon(ctx context.Context, detailURL string) (Pokemon, []byte, error) {
	raw, err := c.fetcher.Get(ctx, detailURL)
	if err != nil {
		return Pokemon{}, nil, fmt.Errorf("get pokemon: %w", err)
	}
	var payload Pokemon
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Pokemon{}, nil, fmt.Errorf("decode pokemon %s: %w", detailURL, err)
	}
	return payload, raw, nil
}

// GetSpecies fetches the secondary species payload by URL.
func (c *Client) GetSpecies(ctx context.Context, speciesURL string) (Species, error) {
	var payload Species
	if err := c.fetcher.GetJSON(ctx, speciesURL, &payload); err != nil {
		return Species{}, fmt.Errorf("get species: %w", err)
	}
	return payload, nil
}

// LocalizedName looks up the French display name for a pokemon name via
// the species endpoint. It returns "" when the species is unknown.
func (c *Client) LocalizedName(ctx context.Context, name string) (string, error) {
	key := speciesKey(name)
	if key == "" {
		return "", nil
	}
	speciesURL := fmt.Sprintf("%s/pokemon-species/%s", c.baseURL, url.PathEscape(key))
	var payload Species
	if err := c.fetcher.GetJSON(ctx, speciesURL, &payload); err != nil {
		return "", fmt.Errorf("lookup species %q: %w", key, err)
	}
	return payload.LocalizedNameFor("fr"), nil
}

// speciesKey derives the species lookup key from a display name:
// lowercase, apostrophes removed, whitespace collapsed to dashes.
func speciesKey(name string) string {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	cleaned = strings.NewReplacer("’", "", "'", "").Replace(cleaned)
	return strings.Join(strings.Fields(cleaned), "-")
}
