package platform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veetaha/snowpity/service/persist"
	"github.com/Veetaha/snowpity/service/twitter"
	"github.com/Veetaha/snowpity/util"
	"github.com/pkg/errors"
)

// Mirror hostnames all resolve to the same tweet; the matched host is kept as
// the origin tag so results can link through the host the user typed.
var tweetURLRegex = regexp.MustCompile(`((?:mobile\.)?(?:twitter|x|vxtwitter|fixvx)\.com)/([A-Za-z0-9_]+)/status/(\d+)`)

const (
	twitterPhotoMaxBytes = 5 * util.MB
	twitterGifMaxBytes   = 15 * util.MB
)

type TwitterAdapter struct {
	client *twitter.Client
}

func NewTwitterAdapter(client *twitter.Client) *TwitterAdapter {
	return &TwitterAdapter{client: client}
}

func (a *TwitterAdapter) Platforms() []persist.Platform {
	return []persist.Platform{persist.PlatformTwitter}
}

func (a *TwitterAdapter) ParseQuery(query string) (ParsedQuery, bool) {
	match := tweetURLRegex.FindStringSubmatch(query)
	if match == nil {
		return ParsedQuery{}, false
	}
	return ParsedQuery{
		Origin: match[1],
		ID:     persist.RequestID{Platform: persist.PlatformTwitter, ID: match[3]},
	}, true
}

func (a *TwitterAdapter) GetPost(ctx context.Context, id persist.RequestID) (persist.Post, error) {
	tweet, err := a.client.GetTweet(ctx, id.ID)
	if err != nil {
		return persist.Post{}, errors.Wrapf(err, "fetching tweet %s", id.ID)
	}

	post := persist.Post{
		ID:     persist.PostID{Platform: persist.PlatformTwitter, ID: tweet.ID},
		WebURL: fmt.Sprintf("https://twitter.com/%s/status/%s", tweet.Author.Username, tweet.ID),
	}
	if tweet.Author.Name != "" {
		post.Authors = []persist.Author{{
			Name:   tweet.Author.Name,
			WebURL: "https://twitter.com/" + tweet.Author.Username,
		}}
	}
	if tweet.PossiblySensitive {
		post.Rating = persist.Nsfw()
	}

	post.Blobs, err = util.Map(tweet.Media, tweetBlob)
	if err != nil {
		return persist.Post{}, err
	}

	return post, nil
}

func tweetBlob(media twitter.Media) (persist.Blob, error) {
	dims := &persist.Dimensions{Width: media.Width, Height: media.Height}
	if media.Width == 0 && media.Height == 0 {
		dims = nil
	}

	switch media.Type {
	case twitter.MediaTypePhoto:
		kind := persist.RepKindImageJpeg
		if strings.HasSuffix(media.URL, ".png") {
			kind = persist.RepKindImagePng
		}
		return persist.Blob{
			ID: persist.BlobID(media.MediaKey),
			Reps: []persist.Representation{{
				Kind:       kind,
				Dimensions: dims,
				SizeHint:   persist.MaxBytes(twitterPhotoMaxBytes),
				URL:        origResolution(media.URL),
			}},
		}, nil

	case twitter.MediaTypeAnimatedGif:
		variant, ok := media.BestMp4Variant()
		if !ok {
			return persist.Blob{}, fmt.Errorf("platform: gif %s has no mp4 variant", media.MediaKey)
		}
		return persist.Blob{
			ID: persist.BlobID(media.MediaKey),
			Reps: []persist.Representation{{
				Kind:       persist.RepKindAnimationMp4,
				Dimensions: dims,
				SizeHint:   persist.MaxBytes(twitterGifMaxBytes),
				URL:        variant.URL,
			}},
		}, nil

	case twitter.MediaTypeVideo:
		variant, ok := media.BestMp4Variant()
		if !ok {
			return persist.Blob{}, fmt.Errorf("platform: video %s has no mp4 variant", media.MediaKey)
		}
		return persist.Blob{
			ID: persist.BlobID(media.MediaKey),
			Reps: []persist.Representation{{
				Kind:       persist.RepKindVideoMp4,
				Dimensions: dims,
				SizeHint:   persist.SizeUnknown,
				URL:        variant.URL,
			}},
		}, nil
	}

	return persist.Blob{}, fmt.Errorf("platform: unsupported tweet media type %q", media.Type)
}

// origResolution asks the image CDN for the original resolution.
func origResolution(url string) string {
	if strings.Contains(url, "?") {
		return url + "&name=orig"
	}
	return url + "?name=orig"
}
