// Package booru talks to Derpibooru-family image boards. All of them descend
// from the same Philomena codebase and share the JSON API shape; Twibooru
// forked earlier and serves posts instead of images.
package booru

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Veetaha/snowpity/service/rpc"
)

// Image is a booru image as returned by /api/v1/json/images/:id. Unknown
// fields are ignored for forward compatibility.
type Image struct {
	ID       int64    `json:"id"`
	Tags     []string `json:"tags"`
	ViewURL  string   `json:"view_url"`
	Format   string   `json:"format"`
	MimeType string   `json:"mime_type"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	// Size is what the API claims the file weighs. At least one booru is known
	// to report wrong sizes, so it must never be trusted as exact.
	Size int64 `json:"size"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	// twibooru switches to the /api/v3/posts shape
	twibooru bool
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithAPIKey(key string) ClientOption {
	return func(client *Client) {
		client.apiKey = key
	}
}

func WithTwibooruAPI() ClientOption {
	return func(client *Client) {
		client.twibooru = true
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		httpClient: rpc.NewHTTPClient(),
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// GetImage fetches one image's metadata by id.
func (c *Client) GetImage(ctx context.Context, id string) (Image, error) {
	endpoint := fmt.Sprintf("%s/api/v1/json/images/%s", c.baseURL, url.PathEscape(id))
	if c.twibooru {
		endpoint = fmt.Sprintf("%s/api/v3/posts/%s", c.baseURL, url.PathEscape(id))
	}
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	var resp struct {
		Image *Image `json:"image"`
		Post  *Image `json:"post"`
	}
	if err := rpc.GetJSON(ctx, c.httpClient, endpoint, nil, &resp); err != nil {
		return Image{}, err
	}

	if c.twibooru {
		if resp.Post == nil {
			return Image{}, fmt.Errorf("booru: empty post payload from %s", endpoint)
		}
		return *resp.Post, nil
	}
	if resp.Image == nil {
		return Image{}, fmt.Errorf("booru: empty image payload from %s", endpoint)
	}
	return *resp.Image, nil
}
