package platform

import (
	"net/http"
	"testing"

	"github.com/Veetaha/snowpity/service/booru"
	"github.com/Veetaha/snowpity/service/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBooruParseQuery(t *testing.T) {
	adapter := NewBooruAdapter(http.DefaultClient)

	tests := []struct {
		name     string
		query    string
		platform persist.Platform
		id       string
		origin   string
	}{
		{name: "derpibooru canonical", query: "https://derpibooru.org/images/123", platform: persist.PlatformDerpibooru, id: "123", origin: "derpibooru.org"},
		{name: "derpibooru short", query: "https://derpibooru.org/123", platform: persist.PlatformDerpibooru, id: "123", origin: "derpibooru.org"},
		{name: "trixiebooru mirror", query: "https://trixiebooru.org/images/123", platform: persist.PlatformDerpibooru, id: "123", origin: "trixiebooru.org"},
		{name: "derpicdn view URL", query: "https://derpicdn.net/img/view/2023/1/5/123.png", platform: persist.PlatformDerpibooru, id: "123", origin: ""},
		{name: "derpicdn download URL", query: "https://derpicdn.net/img/download/2023/1/5/123.png", platform: persist.PlatformDerpibooru, id: "123", origin: ""},
		{name: "ponybooru", query: "https://ponybooru.org/images/55", platform: persist.PlatformPonybooru, id: "55", origin: "ponybooru.org"},
		{name: "ponerpics com mirror", query: "https://ponerpics.com/images/7", platform: persist.PlatformPonerpics, id: "7", origin: "ponerpics.com"},
		{name: "manebooru", query: "https://manebooru.art/images/99", platform: persist.PlatformManebooru, id: "99", origin: "manebooru.art"},
		{name: "furbooru", query: "https://furbooru.org/images/41", platform: persist.PlatformFurbooru, id: "41", origin: "furbooru.org"},
		{name: "twibooru post", query: "https://twibooru.org/posts/812", platform: persist.PlatformTwibooru, id: "812", origin: "twibooru.org"},
		{name: "twibooru cdn", query: "https://cdn.twibooru.org/img/2022/7/2/812/full.png", platform: persist.PlatformTwibooru, id: "812", origin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := adapter.ParseQuery(tt.query)
			require.True(t, ok)
			assert.Equal(t, tt.platform, parsed.ID.Platform)
			assert.Equal(t, tt.id, parsed.ID.ID)
			assert.Equal(t, tt.origin, parsed.Origin)
			// The origin feeds the caption's source-link host, so a path here
			// would corrupt every booru source link.
			assert.NotContains(t, parsed.Origin, "/")
		})
	}

	t.Run("rejects unrelated URLs", func(t *testing.T) {
		_, ok := adapter.ParseQuery("https://example.com/images/123")
		assert.False(t, ok)
	})
}

func TestTwitterParseQuery(t *testing.T) {
	adapter := NewTwitterAdapter(nil)

	tests := []struct {
		name  string
		query string
		id    string
	}{
		{name: "twitter.com", query: "https://twitter.com/mlp/status/112233", id: "112233"},
		{name: "x.com", query: "https://x.com/mlp/status/112233", id: "112233"},
		{name: "mobile", query: "https://mobile.twitter.com/mlp/status/112233", id: "112233"},
		{name: "vxtwitter proxy", query: "https://vxtwitter.com/mlp/status/112233", id: "112233"},
		{name: "with query params", query: "https://twitter.com/mlp/status/112233?s=20", id: "112233"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := adapter.ParseQuery(tt.query)
			require.True(t, ok)
			assert.Equal(t, persist.PlatformTwitter, parsed.ID.Platform)
			assert.Equal(t, tt.id, parsed.ID.ID)
		})
	}

	t.Run("rejects profile URLs", func(t *testing.T) {
		_, ok := adapter.ParseQuery("https://twitter.com/mlp")
		assert.False(t, ok)
	})
}

func TestDeviantArtParseQuery(t *testing.T) {
	adapter := NewDeviantArtAdapter(nil)

	parsed, ok := adapter.ParseQuery("https://www.deviantart.com/someartist/art/great-piece-123456")
	require.True(t, ok)
	assert.Equal(t, persist.PlatformDeviantArt, parsed.ID.Platform)
	assert.Contains(t, parsed.ID.ID, "deviantart.com/someartist/art/great-piece-123456")

	_, ok = adapter.ParseQuery("https://www.deviantart.com/someartist")
	assert.False(t, ok)
}

func TestRegistryFirstMatchWins(t *testing.T) {
	registry := NewRegistry(NewBooruAdapter(http.DefaultClient), NewTwitterAdapter(nil))

	parsed, ok := registry.ParseQuery("  https://derpibooru.org/images/1  ")
	require.True(t, ok)
	assert.Equal(t, persist.PlatformDerpibooru, parsed.ID.Platform)

	parsed, ok = registry.ParseQuery("https://x.com/a/status/2")
	require.True(t, ok)
	assert.Equal(t, persist.PlatformTwitter, parsed.ID.Platform)

	_, ok = registry.ParseQuery("how do I use this bot")
	assert.False(t, ok)
}

func TestBooruBlobRepresentations(t *testing.T) {
	base := booru.Image{ID: 9, ViewURL: "https://derpicdn.net/img/view/2023/1/5/9.gif", Width: 100, Height: 100}

	t.Run("gif prefers server-side mp4", func(t *testing.T) {
		img := base
		img.Format = "gif"
		blob, err := booruBlob(img, true)
		require.NoError(t, err)
		require.Len(t, blob.Reps, 2)
		assert.Equal(t, persist.RepKindAnimationMp4, blob.Reps[0].Kind)
		assert.Equal(t, "https://derpicdn.net/img/view/2023/1/5/9.mp4", blob.Reps[0].URL)
		assert.Equal(t, persist.RepKindAnimationGif, blob.Reps[1].Kind)
	})

	t.Run("gif without mp4 renditions", func(t *testing.T) {
		img := base
		img.Format = "gif"
		blob, err := booruBlob(img, false)
		require.NoError(t, err)
		require.Len(t, blob.Reps, 1)
		assert.Equal(t, persist.RepKindAnimationGif, blob.Reps[0].Kind)
	})

	t.Run("webm swaps to mp4 rendition", func(t *testing.T) {
		img := base
		img.Format = "webm"
		img.ViewURL = "https://derpicdn.net/img/view/2023/1/5/9.webm"
		blob, err := booruBlob(img, true)
		require.NoError(t, err)
		require.Len(t, blob.Reps, 1)
		assert.Equal(t, persist.RepKindVideoMp4, blob.Reps[0].Kind)
		assert.Equal(t, "https://derpicdn.net/img/view/2023/1/5/9.mp4", blob.Reps[0].URL)
	})

	t.Run("size hint stays unknown", func(t *testing.T) {
		img := base
		img.Format = "jpg"
		img.Size = 12345
		blob, err := booruBlob(img, true)
		require.NoError(t, err)
		assert.Equal(t, persist.SizeUnknown, blob.Reps[0].SizeHint)
	})

	t.Run("unsupported format errors", func(t *testing.T) {
		img := base
		img.Format = "tiff"
		_, err := booruBlob(img, true)
		assert.Error(t, err)
	})
}

func TestBooruAuthors(t *testing.T) {
	tags := []string{"safe", "artist:rainbow", "editor:dash", "oc only", "prompter:cloud"}
	authors := booruAuthors(tags, "https://derpibooru.org")

	require.Len(t, authors, 3)
	assert.Equal(t, persist.Author{
		Name:   "rainbow",
		WebURL: "https://derpibooru.org/search?q=artist%3Arainbow",
		Kind:   persist.AuthorKindArtist,
	}, authors[0])
	assert.Equal(t, persist.AuthorKindEditor, authors[1].Kind)
	assert.Equal(t, persist.AuthorKindPrompter, authors[2].Kind)
}

func TestBooruRating(t *testing.T) {
	assert.False(t, booruRating([]string{"safe", "cute"}).NSFW)
	assert.False(t, booruRating([]string{"no rating tags at all"}).NSFW)

	r := booruRating([]string{"suggestive", "questionable"})
	assert.True(t, r.NSFW)
	assert.Equal(t, []string{"suggestive", "questionable"}, r.Kinds)

	// Mixed tags still count as NSFW with every rating tag listed.
	r = booruRating([]string{"safe", "grimdark"})
	assert.True(t, r.NSFW)
	assert.Equal(t, []string{"safe", "grimdark"}, r.Kinds)
}
