// Package wiki is a minimal client for the MediaWiki-style content API.
package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pokedexfr/ingest/internal/fetch"
)

// ParseResult holds the parsed representation of one wiki page.
type ParseResult struct {
	Title    string
	Wikitext string
	HTML     string
}

// Empty reports whether the page carried no usable content.
func (r ParseResult) Empty() bool {
	return r.Wikitext == "" && r.HTML == ""
}

// Client issues read-only operations against one api.php endpoint.
type Client struct {
	apiURL  string
	fetcher *fetch.Client
}

// NewClient builds a Client for the given api.php URL.
func NewClient(apiURL string, fetcher *fetch.Client) *Client {
	return &Client{apiURL: apiURL, fetcher: fetcher}
}

func (c *Client) buildURL(params url.Values) string {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	return c.apiURL + "?" + params.Encode()
}

type parseResponse struct {
	Parse struct {
		Title    string `json:"title"`
		Wikitext string `json:"wikitext"`
		Text     string `json:"text"`
	} `json:"parse"`
}

// ParsePage returns the wikitext and rendered HTML of a page by title,
// following redirects.
func (c *Client) ParsePage(ctx context.Context, title string) (ParseResult, error) {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", title)
	params.Set("redirects", "1")
	params.Set("prop", "wikitext|text")

	var payload parseResponse
	if err := c.fetcher.GetJSON(ctx, c.buildURL(params), &payload); err != nil {
		return ParseResult{}, fmt.Errorf("parse page %q: %w", title, err)
	}
	return ParseResult{
		Title:    payload.Parse.Title,
		Wikitext: payload.Parse.Wikitext,
		HTML:     payload.Parse.Text,
	}, nil
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

// Search runs a bounded full-text search and returns candidate titles.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 6
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))

	var payload searchResponse
	if err := c.fetcher.GetJSON(ctx, c.buildURL(params), &payload); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	titles := make([]string, 0, len(payload.Query.Search))
	for _, result := range payload.Query.Search {
		title := strings.TrimSpace(result.Title)
		if title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

type imageInfoResponse struct {
	Query struct {
		Pages []struct {
			ImageInfo []struct {
				URL string `json:"url"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

// ImageURL resolves a file-page title to the direct asset URL, or ""
// when the API knows no such file.
func (c *Client) ImageURL(ctx context.Context, fileTitle string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "imageinfo")
	params.Set("iiprop", "url")
	params.Set("titles", fileTitle)

	var payload imageInfoResponse
	if err := c.fetcher.GetJSON(ctx, c.buildURL(params), &payload); err != nil {
		return "", fmt.Errorf("image info %q: %w", fileTitle, err)
	}
	for _, page := range payload.Query.Pages {
		for _, info := range page.ImageInfo {
			if u := strings.TrimSpace(info.URL); u != "" {
				return u, nil
			}
		}
	}
	return "", nil
}
