package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/Veetaha/snowpity/env"
	"github.com/Veetaha/snowpity/service/booru"
	"github.com/Veetaha/snowpity/service/persist"
	"github.com/Veetaha/snowpity/util"
	"github.com/pkg/errors"
)

// ratingTags are the Derpibooru-family rating tags. A post whose only rating
// tag is "safe" is SFW; any other combination is NSFW with all rating tags
// listed.
var ratingTags = []string{
	"safe",
	"suggestive",
	"questionable",
	"explicit",
	"semi-grimdark",
	"grimdark",
	"grotesque",
}

type booruSite struct {
	platform persist.Platform
	baseURL  string
	// urlRegexes match the canonical page forms and CDN variants. The "id"
	// group is the image id; the "host" group, present only on page forms,
	// is the mirror hostname the user typed. CDN matches carry no host and
	// the caption links through the canonical URL instead.
	urlRegexes []*regexp.Regexp
	// mp4Renditions is false on Twibooru, which ships no server-side mp4
	// variant for gifs and webms.
	mp4Renditions bool
	twibooruAPI   bool
}

func booruSites() []booruSite {
	return []booruSite{
		{
			platform: persist.PlatformDerpibooru,
			baseURL:  "https://derpibooru.org",
			urlRegexes: []*regexp.Regexp{
				regexp.MustCompile(`(?P<host>derpibooru\.org|trixiebooru\.org)/(?:images/)?(?P<id>\d+)`),
				regexp.MustCompile(`derpicdn\.net/img/(?:view/|download/)?\d+/\d+/\d+/(?P<id>\d+)`),
			},
			mp4Renditions: true,
		},
		{
			platform: persist.PlatformPonybooru,
			baseURL:  "https://ponybooru.org",
			urlRegexes: []*regexp.Regexp{
				regexp.MustCompile(`(?P<host>ponybooru\.org)/(?:images/)?(?P<id>\d+)`),
			},
			mp4Renditions: true,
		},
		{
			platform: persist.PlatformPonerpics,
			baseURL:  "https://ponerpics.org",
			urlRegexes: []*regexp.Regexp{
				regexp.MustCompile(`(?P<host>ponerpics\.(?:org|com))/(?:images/)?(?P<id>\d+)`),
			},
			mp4Renditions: true,
		},
		{
			platform: persist.PlatformManebooru,
			baseURL:  "https://manebooru.art",
			urlRegexes: []*regexp.Regexp{
				regexp.MustCompile(`(?P<host>manebooru\.art)/(?:images/)?(?P<id>\d+)`),
			},
			mp4Renditions: true,
		},
		{
			platform: persist.PlatformFurbooru,
			baseURL:  "https://furbooru.org",
			urlRegexes: []*regexp.Regexp{
				regexp.MustCompile(`(?P<host>furbooru\.org)/(?:images/)?(?P<id>\d+)`),
				regexp.MustCompile(`furrycdn\.org/img/(?:view/|download/)?\d+/\d+/\d+/(?P<id>\d+)`),
			},
			mp4Renditions: true,
		},
		{
			platform: persist.PlatformTwibooru,
			baseURL:  "https://twibooru.org",
			urlRegexes: []*regexp.Regexp{
				regexp.MustCompile(`(?P<host>twibooru\.(?:org|com))/(?:posts/)?(?P<id>\d+)`),
				regexp.MustCompile(`cdn\.twibooru\.org/img/\d+/\d+/\d+/(?P<id>\d+)`),
			},
			mp4Renditions: false,
			twibooruAPI:   true,
		},
	}
}

// BooruAdapter serves every Derpibooru-family image board.
type BooruAdapter struct {
	sites   []booruSite
	clients map[persist.Platform]*booru.Client
}

// NewBooruAdapter builds clients for every supported booru. API keys are read
// from <PLATFORM>_API_KEY and optional; anonymous access sees default-filtered
// results.
func NewBooruAdapter(httpClient *http.Client) *BooruAdapter {
	ctx := context.Background()
	sites := booruSites()
	clients := make(map[persist.Platform]*booru.Client, len(sites))
	for _, site := range sites {
		opts := []booru.ClientOption{booru.WithHTTPClient(httpClient)}
		if key, ok := env.GetIfExists[string](ctx, strings.ToUpper(string(site.platform))+"_API_KEY"); ok && key != "" {
			opts = append(opts, booru.WithAPIKey(key))
		}
		if site.twibooruAPI {
			opts = append(opts, booru.WithTwibooruAPI())
		}
		clients[site.platform] = booru.NewClient(site.baseURL, opts...)
	}
	return &BooruAdapter{sites: sites, clients: clients}
}

func (a *BooruAdapter) Platforms() []persist.Platform {
	platforms := make([]persist.Platform, len(a.sites))
	for i, site := range a.sites {
		platforms[i] = site.platform
	}
	return platforms
}

func (a *BooruAdapter) ParseQuery(query string) (ParsedQuery, bool) {
	for _, site := range a.sites {
		for _, re := range site.urlRegexes {
			match := re.FindStringSubmatch(query)
			if match == nil {
				continue
			}
			origin := ""
			if hostIdx := re.SubexpIndex("host"); hostIdx >= 0 {
				origin = match[hostIdx]
			}
			return ParsedQuery{
				Origin: origin,
				ID:     persist.RequestID{Platform: site.platform, ID: match[re.SubexpIndex("id")]},
			}, true
		}
	}
	return ParsedQuery{}, false
}

func (a *BooruAdapter) GetPost(ctx context.Context, id persist.RequestID) (persist.Post, error) {
	site, ok := a.site(id.Platform)
	if !ok {
		return persist.Post{}, fmt.Errorf("platform: %s is not a booru", id.Platform)
	}

	image, err := a.clients[id.Platform].GetImage(ctx, id.ID)
	if err != nil {
		return persist.Post{}, errors.Wrapf(err, "fetching %s image %s", id.Platform, id.ID)
	}

	postID := persist.PostID{Platform: id.Platform, ID: id.ID}

	post := persist.Post{
		ID:      postID,
		Authors: booruAuthors(image.Tags, site.baseURL),
		WebURL:  fmt.Sprintf("%s/images/%s", site.baseURL, id.ID),
		Rating:  booruRating(image.Tags),
	}
	if site.twibooruAPI {
		post.WebURL = fmt.Sprintf("%s/posts/%s", site.baseURL, id.ID)
	}

	blob, err := booruBlob(image, site.mp4Renditions)
	if err != nil {
		return persist.Post{}, err
	}
	post.Blobs = []persist.Blob{blob}

	return post, nil
}

func (a *BooruAdapter) site(p persist.Platform) (booruSite, bool) {
	return util.FindFirst(a.sites, func(s booruSite) bool { return s.platform == p })
}

// booruBlob maps the image's format to its representation preference list.
func booruBlob(image booru.Image, mp4Renditions bool) (persist.Blob, error) {
	dims := &persist.Dimensions{Width: image.Width, Height: image.Height}
	if image.Width == 0 && image.Height == 0 {
		dims = nil
	}

	rep := func(kind persist.RepKind, url string) persist.Representation {
		// The API-declared size is known to be wrong on occasion, so the size
		// hint stays unknown and content-length decides at download time.
		return persist.Representation{Kind: kind, Dimensions: dims, SizeHint: persist.SizeUnknown, URL: url}
	}

	format := strings.ToLower(image.Format)
	switch format {
	case "jpg", "jpeg":
		return persist.Blob{Reps: []persist.Representation{rep(persist.RepKindImageJpeg, image.ViewURL)}}, nil
	case "png":
		return persist.Blob{Reps: []persist.Representation{rep(persist.RepKindImagePng, image.ViewURL)}}, nil
	case "svg":
		return persist.Blob{Reps: []persist.Representation{rep(persist.RepKindImageSvg, image.ViewURL)}}, nil
	case "gif":
		reps := []persist.Representation{}
		if mp4Renditions {
			reps = append(reps, rep(persist.RepKindAnimationMp4, swapExt(image.ViewURL, "mp4")))
		}
		reps = append(reps, rep(persist.RepKindAnimationGif, image.ViewURL))
		return persist.Blob{Reps: reps}, nil
	case "webm":
		if mp4Renditions {
			return persist.Blob{Reps: []persist.Representation{rep(persist.RepKindVideoMp4, swapExt(image.ViewURL, "mp4"))}}, nil
		}
		return persist.Blob{Reps: []persist.Representation{rep(persist.RepKindVideoWebm, image.ViewURL)}}, nil
	case "mp4":
		return persist.Blob{Reps: []persist.Representation{rep(persist.RepKindVideoMp4, image.ViewURL)}}, nil
	}
	return persist.Blob{}, fmt.Errorf("platform: unsupported booru media format %q", image.Format)
}

func booruAuthors(tags []string, baseURL string) []persist.Author {
	var authors []persist.Author
	for _, tag := range tags {
		name, kind, ok := authorTag(tag)
		if !ok {
			continue
		}
		authors = append(authors, persist.Author{
			Name:   name,
			WebURL: fmt.Sprintf("%s/search?q=%s", baseURL, url.QueryEscape(tag)),
			Kind:   kind,
		})
	}
	return authors
}

var authorTagPrefixes = []struct {
	prefix string
	kind   persist.AuthorKind
}{
	{"artist:", persist.AuthorKindArtist},
	{"editor:", persist.AuthorKindEditor},
	{"prompter:", persist.AuthorKindPrompter},
}

func authorTag(tag string) (string, persist.AuthorKind, bool) {
	for _, it := range authorTagPrefixes {
		if strings.HasPrefix(tag, it.prefix) {
			return strings.TrimPrefix(tag, it.prefix), it.kind, true
		}
	}
	return "", persist.AuthorKindUnspecified, false
}

func booruRating(tags []string) persist.Rating {
	var ratings []string
	for _, tag := range tags {
		if util.Contains(ratingTags, tag) {
			ratings = append(ratings, tag)
		}
	}
	if len(ratings) == 1 && ratings[0] == "safe" {
		return persist.Sfw()
	}
	if len(ratings) == 0 {
		return persist.Sfw()
	}
	return persist.Nsfw(ratings...)
}

func swapExt(url, ext string) string {
	if i := strings.LastIndex(url, "."); i >= 0 && !strings.ContainsAny(url[i:], "/") {
		return url[:i+1] + ext
	}
	return url + "." + ext
}
