package tool

import (
	"net/http"

	"github.com/tmc/langchaingo/tools/wikipedia"
)

const defaultWikipediaUserAgent = "toolchat/1.0 (https://github.com/smallnest/toolchat)"

type wikipediaConfig struct {
	userAgent   string
	topK        int
	docMaxChars int
	language    string
	httpClient  *http.Client
}

// WikipediaOption configures the wikipedia tool.
type WikipediaOption func(*wikipediaConfig)

// WithWikipediaTopK sets how many pages are included in a result.
func WithWikipediaTopK(k int) WikipediaOption {
	return func(c *wikipediaConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithWikipediaMaxChars sets how many characters are kept from each page.
func WithWikipediaMaxChars(n int) WikipediaOption {
	return func(c *wikipediaConfig) {
		if n > 0 {
			c.docMaxChars = n
		}
	}
}

// WithWikipediaLanguage sets the wiki language code, e.g. "en" or "zh".
func WithWikipediaLanguage(code string) WikipediaOption {
	return func(c *wikipediaConfig) {
		c.language = code
	}
}

// WithWikipediaUserAgent sets the User-Agent sent to the MediaWiki API.
func WithWikipediaUserAgent(ua string) WikipediaOption {
	return func(c *wikipediaConfig) {
		c.userAgent = ua
	}
}

// WithWikipediaHTTPClient sets the HTTP client used for API calls.
func WithWikipediaHTTPClient(client *http.Client) WikipediaOption {
	return func(c *wikipediaConfig) {
		c.httpClient = client
	}
}

// NewWikipedia returns the "wikipedia" tool: the top page for a query,
// trimmed to 500 characters of plain text.
func NewWikipedia(opts ...WikipediaOption) *LangchainTool {
	cfg := &wikipediaConfig{
		userAgent:   defaultWikipediaUserAgent,
		topK:        1,
		docMaxChars: 500,
		language:    "en",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var wopts []wikipedia.Option
	if cfg.httpClient != nil {
		wopts = append(wopts, wikipedia.WithHTTPClient(cfg.httpClient))
	}
	wt := wikipedia.New(cfg.userAgent, wopts...)
	wt.TopK = cfg.topK
	wt.DocMaxChars = cfg.docMaxChars
	wt.LanguageCode = cfg.language

	return FromLangchain(wt,
		WithName("wikipedia"),
		WithArgName("query"),
		WithDescription("Look up general knowledge about people, places, companies, "+
			"historical events and other subjects on Wikipedia. Input is a search query."),
		WithPostProcess(plainText),
	)
}
