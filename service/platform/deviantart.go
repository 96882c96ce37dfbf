package platform

import (
	"context"
	"regexp"
	"strings"

	"github.com/Veetaha/snowpity/service/deviantart"
	"github.com/Veetaha/snowpity/service/persist"
	"github.com/pkg/errors"
)

var deviationURLRegex = regexp.MustCompile(`((?:www\.)?deviantart\.com)/([\w-]+)/art/([\w-]+)`)

// DeviantArtAdapter resolves deviations via oEmbed. The oEmbed backend keys
// on the page URL, so the canonical URL doubles as the request and post id.
type DeviantArtAdapter struct {
	client *deviantart.Client
}

func NewDeviantArtAdapter(client *deviantart.Client) *DeviantArtAdapter {
	return &DeviantArtAdapter{client: client}
}

func (a *DeviantArtAdapter) Platforms() []persist.Platform {
	return []persist.Platform{persist.PlatformDeviantArt}
}

func (a *DeviantArtAdapter) ParseQuery(query string) (ParsedQuery, bool) {
	match := deviationURLRegex.FindStringSubmatch(query)
	if match == nil {
		return ParsedQuery{}, false
	}
	canonical := "https://www.deviantart.com/" + match[2] + "/art/" + match[3]
	return ParsedQuery{
		Origin: match[1],
		ID:     persist.RequestID{Platform: persist.PlatformDeviantArt, ID: canonical},
	}, true
}

func (a *DeviantArtAdapter) GetPost(ctx context.Context, id persist.RequestID) (persist.Post, error) {
	oembed, err := a.client.GetOEmbed(ctx, id.ID)
	if err != nil {
		return persist.Post{}, errors.Wrapf(err, "fetching deviation %s", id.ID)
	}

	postID := persist.PostID{Platform: persist.PlatformDeviantArt, ID: id.ID}

	post := persist.Post{
		ID:     postID,
		WebURL: id.ID,
	}
	if oembed.AuthorName != "" {
		post.Authors = []persist.Author{{
			Name:   oembed.AuthorName,
			WebURL: oembed.AuthorURL,
		}}
	}
	if oembed.IsAdult() {
		post.Rating = persist.Nsfw()
	}

	// Deviations may legitimately carry no downloadable media (literature,
	// journals); the boundary reports that to the user.
	if oembed.URL == "" || oembed.Type != "photo" {
		return post, nil
	}

	kind := persist.RepKindImageJpeg
	if strings.HasSuffix(strings.ToLower(oembed.URL), ".png") {
		kind = persist.RepKindImagePng
	}

	dims := &persist.Dimensions{Width: oembed.Width, Height: oembed.Height}
	if oembed.Width == 0 && oembed.Height == 0 {
		dims = nil
	}

	post.Blobs = []persist.Blob{{
		Reps: []persist.Representation{{
			Kind:       kind,
			Dimensions: dims,
			SizeHint:   persist.SizeUnknown,
			URL:        oembed.URL,
		}},
	}}

	return post, nil
}
