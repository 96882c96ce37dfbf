// Package deviantart resolves deviations through the public oEmbed backend,
// which needs no credentials.
package deviantart

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Veetaha/snowpity/service/rpc"
)

const oembedBase = "https://backend.deviantart.com/oembed"

// OEmbed is the subset of the oEmbed payload the adapter consumes.
type OEmbed struct {
	Type       string `json:"type"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
	AuthorURL  string `json:"author_url"`
	Safety     string `json:"safety"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// IsAdult reports whether the deviation is flagged as mature.
func (o OEmbed) IsAdult() bool {
	return o.Safety == "adult"
}

type Client struct {
	httpClient *http.Client
	base       string
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithBaseURL(base string) ClientOption {
	return func(client *Client) {
		client.base = base
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: rpc.NewHTTPClient(),
		base:       oembedBase,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// GetOEmbed resolves a deviation page URL to its oEmbed metadata.
func (c *Client) GetOEmbed(ctx context.Context, deviationURL string) (OEmbed, error) {
	endpoint := c.base + "?url=" + url.QueryEscape(deviationURL)

	var resp OEmbed
	if err := rpc.GetJSON(ctx, c.httpClient, endpoint, nil, &resp); err != nil {
		return OEmbed{}, err
	}
	return resp, nil
}
