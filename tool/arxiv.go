package tool

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Arxiv looks up papers through the arXiv export API.
type Arxiv struct {
	BaseURL     string
	MaxResults  int
	DocMaxChars int
	HTTPClient  *http.Client
}

var _ Tool = (*Arxiv)(nil)

type ArxivOption func(*Arxiv)

// WithArxivBaseURL sets the query endpoint.
func WithArxivBaseURL(baseURL string) ArxivOption {
	return func(a *Arxiv) {
		a.BaseURL = baseURL
	}
}

// WithArxivMaxResults sets how many papers are returned.
func WithArxivMaxResults(n int) ArxivOption {
	return func(a *Arxiv) {
		a.MaxResults = max(n, 1)
	}
}

// WithArxivMaxChars bounds the length of the combined result.
func WithArxivMaxChars(n int) ArxivOption {
	return func(a *Arxiv) {
		a.DocMaxChars = n
	}
}

// WithArxivHTTPClient sets the HTTP client used for API calls.
func WithArxivHTTPClient(client *http.Client) ArxivOption {
	return func(a *Arxiv) {
		a.HTTPClient = client
	}
}

// NewArxiv creates the "arxiv" tool. It returns the top paper trimmed to 500
// characters unless configured otherwise.
func NewArxiv(opts ...ArxivOption) *Arxiv {
	a := &Arxiv{
		BaseURL:     "https://export.arxiv.org/api/query",
		MaxResults:  1,
		DocMaxChars: 500,
		HTTPClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the name of the tool.
func (a *Arxiv) Name() string {
	return "arxiv"
}

// Description returns the description of the tool.
func (a *Arxiv) Description() string {
	return "Search arXiv for scientific papers in physics, mathematics, computer science " +
		"and related fields. Input is a search query."
}

// Schema declares the "query" argument.
func (a *Arxiv) Schema() *Schema {
	return QuerySchema("The search query")
}

type arxivFeed struct {
	Entries []struct {
		Title     string `xml:"title"`
		Summary   string `xml:"summary"`
		Published string `xml:"published"`
		Authors   []struct {
			Name string `xml:"name"`
		} `xml:"author"`
	} `xml:"entry"`
}

// Call executes the search.
func (a *Arxiv) Call(ctx context.Context, args map[string]any) (string, error) {
	query, err := String(args, "query")
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(a.MaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("arxiv api returned status: %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return "No good Arxiv Result was found", nil
	}

	docs := make([]string, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		authors := make([]string, 0, len(e.Authors))
		for _, au := range e.Authors {
			authors = append(authors, au.Name)
		}
		published := e.Published
		if len(published) >= 10 {
			published = published[:10]
		}
		docs = append(docs, fmt.Sprintf("Published: %s\nTitle: %s\nAuthors: %s\nSummary: %s",
			published, plainText(e.Title), strings.Join(authors, ", "), plainText(e.Summary)))
	}

	out := strings.Join(docs, "\n\n")
	if a.DocMaxChars > 0 && len(out) > a.DocMaxChars {
		out = truncateRunes(out, a.DocMaxChars)
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
