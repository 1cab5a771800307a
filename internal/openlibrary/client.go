// Package openlibrary fetches book metadata from the Open Library API.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"pageturner/internal/models"
)

const (
	unknown         = "Unknown"
	noDescription   = "No description available"
	defaultPageSize = 10
)

// Metadata is what the catalog can learn about a book from its ISBN.
type Metadata struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	Description     string `json:"description"`
	CoverImage      string `json:"coverImage"`
	Publisher       string `json:"publisher"`
	PublicationYear int    `json:"publicationYear"`
	Pages           int    `json:"pages,omitempty"`
	Category        string `json:"category"`
}

// SearchResult is one hit of a free-text search.
type SearchResult struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	FirstPublishYear int      `json:"firstPublishYear,omitempty"`
	ISBN             []string `json:"isbn,omitempty"`
	CoverImage       string   `json:"coverImage,omitempty"`
}

// DefaultCoversURL is the public Open Library covers host.
const DefaultCoversURL = "https://covers.openlibrary.org"

// PlaceholderCover is the cover shown for books without one.
func PlaceholderCover(coversURL string) string {
	return coversURL + "/b/id/-1-M.jpg"
}

// Client talks to Open Library over HTTP.
type Client struct {
	baseURL   string
	coversURL string
	http      *http.Client
	log       logrus.FieldLogger
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the clock used for the publication year fallback.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client. A nil httpClient gets a 5 second timeout.
func New(baseURL, coversURL string, httpClient *http.Client, log logrus.FieldLogger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	c := &Client{
		baseURL:   baseURL,
		coversURL: coversURL,
		http:      httpClient,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type authorRef struct {
	Key string `json:"key"`
}

type edition struct {
	Title       string          `json:"title"`
	Authors     []authorRef     `json:"authors"`
	Covers      []int           `json:"covers"`
	Description json.RawMessage `json:"description"`
	Publishers  []string        `json:"publishers"`
	PublishDate string          `json:"publish_date"`
	Pages       int             `json:"number_of_pages"`
}

type author struct {
	Name string `json:"name"`
}

// FetchByISBN looks up an edition by ISBN. On any failure it returns nil metadata and an
// error describing why; callers treat that as "nothing known".
func (c *Client) FetchByISBN(ctx context.Context, isbn string) (*Metadata, error) {
	var ed edition
	if err := c.getJSON(ctx, c.baseURL+"/isbn/"+url.PathEscape(isbn)+".json", &ed); err != nil {
		return nil, fmt.Errorf("fetch edition %s: %w", isbn, err)
	}

	meta := &Metadata{
		Title:           ed.Title,
		Author:          unknown,
		Description:     description(ed.Description),
		CoverImage:      PlaceholderCover(c.coversURL),
		Publisher:       unknown,
		PublicationYear: c.now().Year(),
		Pages:           ed.Pages,
		Category:        models.CategoryOther,
	}

	if len(ed.Authors) > 0 && ed.Authors[0].Key != "" {
		var a author
		if err := c.getJSON(ctx, c.baseURL+ed.Authors[0].Key+".json", &a); err != nil {
			c.log.WithError(err).WithField("isbn", isbn).Warn("open library author lookup failed")
		} else if a.Name != "" {
			meta.Author = a.Name
		}
	}
	if len(ed.Covers) > 0 && ed.Covers[0] > 0 {
		meta.CoverImage = fmt.Sprintf("%s/b/id/%d-M.jpg", c.coversURL, ed.Covers[0])
	}
	if len(ed.Publishers) > 0 && ed.Publishers[0] != "" {
		meta.Publisher = ed.Publishers[0]
	}
	if year, ok := publicationYear(ed.PublishDate); ok {
		meta.PublicationYear = year
	}
	return meta, nil
}

// Search runs a free-text query. Failures yield an empty result and are logged.
func (c *Client) Search(ctx context.Context, query string, limit int) []SearchResult {
	if limit < 1 {
		limit = defaultPageSize
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var body struct {
		Docs []struct {
			Key              string   `json:"key"`
			Title            string   `json:"title"`
			AuthorName       []string `json:"author_name"`
			FirstPublishYear int      `json:"first_publish_year"`
			ISBN             []string `json:"isbn"`
			CoverID          int      `json:"cover_i"`
		} `json:"docs"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/search.json?"+q.Encode(), &body); err != nil {
		c.log.WithError(err).WithField("query", query).Warn("open library search failed")
		return []SearchResult{}
	}

	results := make([]SearchResult, 0, len(body.Docs))
	for _, d := range body.Docs {
		r := SearchResult{
			Key:              d.Key,
			Title:            d.Title,
			Authors:          d.AuthorName,
			FirstPublishYear: d.FirstPublishYear,
			ISBN:             d.ISBN,
		}
		if r.Authors == nil {
			r.Authors = []string{}
		}
		if d.CoverID > 0 {
			r.CoverImage = fmt.Sprintf("%s/b/id/%d-M.jpg", c.coversURL, d.CoverID)
		}
		results = append(results, r)
	}
	return results
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// description accepts either a plain string or {"value": "..."}.
func description(raw json.RawMessage) string {
	if len(raw) == 0 {
		return noDescription
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var v struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &v); err == nil && v.Value != "" {
		return v.Value
	}
	return noDescription
}

var fourDigits = regexp.MustCompile(`\d{4}`)

func publicationYear(publishDate string) (int, bool) {
	m := fourDigits.FindString(publishDate)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	return year, err == nil
}
