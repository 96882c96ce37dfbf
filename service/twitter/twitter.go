// Package twitter talks to the Twitter v2 API with an app-only bearer token.
package twitter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Veetaha/snowpity/service/rpc"
)

const apiBase = "https://api.twitter.com"

// Media kinds as reported in includes.media[].type.
const (
	MediaTypePhoto       = "photo"
	MediaTypeVideo       = "video"
	MediaTypeAnimatedGif = "animated_gif"
)

type Client struct {
	httpClient  *http.Client
	bearerToken string
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func NewClient(bearerToken string, opts ...ClientOption) *Client {
	client := &Client{
		httpClient:  rpc.NewHTTPClient(),
		bearerToken: bearerToken,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Tweet is the tweet plus its expanded author and media.
type Tweet struct {
	ID                string
	Text              string
	PossiblySensitive bool
	Author            User
	Media             []Media
}

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Media is one attachment. The order within a tweet is the attachment order.
type Media struct {
	MediaKey        string    `json:"media_key"`
	Type            string    `json:"type"`
	URL             string    `json:"url"`
	PreviewImageURL string    `json:"preview_image_url"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Variants        []Variant `json:"variants"`
}

type Variant struct {
	BitRate     int64  `json:"bit_rate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// BestMp4Variant returns the mp4 variant with the highest bitrate.
func (m Media) BestMp4Variant() (Variant, bool) {
	var best Variant
	found := false
	for _, v := range m.Variants {
		if v.ContentType != "video/mp4" {
			continue
		}
		if !found || v.BitRate > best.BitRate {
			best = v
			found = true
		}
	}
	return best, found
}

type tweetResponse struct {
	Data *struct {
		ID                string `json:"id"`
		Text              string `json:"text"`
		AuthorID          string `json:"author_id"`
		PossiblySensitive bool   `json:"possibly_sensitive"`
		Attachments       struct {
			MediaKeys []string `json:"media_keys"`
		} `json:"attachments"`
	} `json:"data"`
	Includes struct {
		Media []Media `json:"media"`
		Users []User  `json:"users"`
	} `json:"includes"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// GetTweet fetches a tweet with its media and author expanded. Media order is
// the tweet's attachment order, reconstructed from attachments.media_keys.
func (c *Client) GetTweet(ctx context.Context, id string) (Tweet, error) {
	url := fmt.Sprintf(
		"%s/2/tweets/%s?expansions=attachments.media_keys,author_id&media.fields=media_key,type,url,preview_image_url,width,height,variants&tweet.fields=possibly_sensitive",
		apiBase, id,
	)

	var resp tweetResponse
	err := rpc.GetJSON(ctx, c.httpClient, url, map[string]string{"Authorization": "Bearer " + c.bearerToken}, &resp)
	if err != nil {
		return Tweet{}, err
	}

	if resp.Data == nil {
		if len(resp.Errors) > 0 {
			return Tweet{}, fmt.Errorf("twitter: %s: %s", resp.Errors[0].Title, resp.Errors[0].Detail)
		}
		return Tweet{}, fmt.Errorf("twitter: empty response for tweet %s", id)
	}

	tweet := Tweet{
		ID:                resp.Data.ID,
		Text:              resp.Data.Text,
		PossiblySensitive: resp.Data.PossiblySensitive,
	}

	for _, user := range resp.Includes.Users {
		if user.ID == resp.Data.AuthorID {
			tweet.Author = user
			break
		}
	}

	byKey := make(map[string]Media, len(resp.Includes.Media))
	for _, media := range resp.Includes.Media {
		byKey[media.MediaKey] = media
	}
	for _, key := range resp.Data.Attachments.MediaKeys {
		if media, ok := byKey[key]; ok {
			tweet.Media = append(tweet.Media, media)
		}
	}

	return tweet, nil
}
